package allocator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/claim-router/pkg/core/model"
)

// ErrEmptyPlan is returned when there is nothing to execute
var ErrEmptyPlan = errors.New("no claims provided to execute")

// MemberResolver looks up a member by name at execution time
type MemberResolver func(name string) (*model.Member, bool)

// ClaimWriter durably creates claims. CreateClaims must be atomic: either every claim
// is written or none is.
type ClaimWriter interface {
	CreateClaims(ctx context.Context, claims []model.Claim) error
}

// SkippedEntry is a plan entry that was not executed
type SkippedEntry struct {
	ClaimID    string
	MemberName string
	Reason     string
}

// ExecutionResult reports what an execution wrote
type ExecutionResult struct {
	CreatedCount int
	Created      []model.Claim
	Skipped      []SkippedEntry
}

// ExecutePlan commits a previously produced plan. Nothing is re-matched: each entry's
// member is resolved by name and entries whose member no longer resolves are skipped.
// The remaining claims are written in a single atomic batch with status NEW; a write
// failure aborts the whole batch.
func ExecutePlan(ctx context.Context, planned []PlannedClaim, resolve MemberResolver, writer ClaimWriter, now time.Time) (*ExecutionResult, error) {
	if len(planned) == 0 {
		return nil, ErrEmptyPlan
	}

	result := &ExecutionResult{
		Created: []model.Claim{},
		Skipped: []SkippedEntry{},
	}

	for _, pc := range planned {
		member, ok := resolve(pc.MemberName)
		if !ok {
			result.Skipped = append(result.Skipped, SkippedEntry{
				ClaimID:    pc.Claim.ClaimID,
				MemberName: pc.MemberName,
				Reason:     fmt.Sprintf("member %q no longer exists", pc.MemberName),
			})
			continue
		}

		result.Created = append(result.Created, model.Claim{
			ID:             uuid.New().String(),
			ClaimCandidate: pc.Claim,
			Status:         model.ClaimStatusNew,
			AssignedToID:   member.ID,
			CreatedAt:      now,
		})
	}

	if len(result.Created) == 0 {
		return result, nil
	}

	if err := writer.CreateClaims(ctx, result.Created); err != nil {
		return nil, fmt.Errorf("failed to create claims: %w", err)
	}

	result.CreatedCount = len(result.Created)
	return result, nil
}
