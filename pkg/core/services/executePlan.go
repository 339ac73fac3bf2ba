package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/pkg/core/allocator"
	"github.com/jakechorley/claim-router/pkg/core/model"
	"github.com/jakechorley/claim-router/pkg/db"
)

// ExecutePlanStore defines the database operations needed to commit a plan
type ExecutePlanStore interface {
	GetMembers(ctx context.Context) ([]db.Member, error)
	InsertClaims(ctx context.Context, claims []db.Claim) error
}

// ExecutePlan commits planned claims. Members are looked up by name at this point, so a
// plan produced earlier still executes against the current roster.
func ExecutePlan(
	ctx context.Context,
	store ExecutePlanStore,
	logger *zap.Logger,
	planned []allocator.PlannedClaim,
	now time.Time,
) (*allocator.ExecutionResult, error) {
	logger.Debug("Starting executePlan", zap.Int("planned", len(planned)))

	if len(planned) == 0 {
		return nil, allocator.ErrEmptyPlan
	}

	memberRecs, err := store.GetMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}

	result, err := allocator.ExecutePlan(ctx, planned, resolverFor(membersFromRecords(memberRecs)), &storeClaimWriter{store: store}, now)
	if err != nil {
		return nil, err
	}

	for _, skipped := range result.Skipped {
		logger.Warn("Skipped planned claim",
			zap.String("claim_id", skipped.ClaimID),
			zap.String("member", skipped.MemberName),
			zap.String("reason", skipped.Reason))
	}
	logger.Info("Executed plan",
		zap.Int("created", result.CreatedCount),
		zap.Int("skipped", len(result.Skipped)))

	return result, nil
}

// resolverFor resolves members by name; the first member with a name wins
func resolverFor(members []model.Member) allocator.MemberResolver {
	byName := make(map[string]*model.Member, len(members))
	for i := range members {
		if _, ok := byName[members[i].Name]; !ok {
			byName[members[i].Name] = &members[i]
		}
	}
	return func(name string) (*model.Member, bool) {
		m, ok := byName[name]
		return m, ok
	}
}

// storeClaimWriter adapts a claim store to allocator.ClaimWriter
type storeClaimWriter struct {
	store ExecutePlanStore
}

func (w *storeClaimWriter) CreateClaims(ctx context.Context, claims []model.Claim) error {
	records := make([]db.Claim, len(claims))
	for i, c := range claims {
		records[i] = claimToRecord(c)
	}
	return w.store.InsertClaims(ctx, records)
}
