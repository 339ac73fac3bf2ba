package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/internal/config"
	"github.com/jakechorley/claim-router/pkg/core/allocator"
	"github.com/jakechorley/claim-router/pkg/core/model"
	"github.com/jakechorley/claim-router/pkg/core/workperiod"
	"github.com/jakechorley/claim-router/pkg/db"
)

// PlanClaimsStore defines the database operations needed to plan a claim batch
type PlanClaimsStore interface {
	GetMembers(ctx context.Context) ([]db.Member, error)
	GetRules(ctx context.Context) ([]db.Rule, error)
	FindExistingClaimIDs(ctx context.Context, claimIDs []string) ([]string, error)
	CountClaimsByAssigneeSince(ctx context.Context, since time.Time) (map[string]int, error)
}

// PlanResult is a plan together with the inputs it was computed from
type PlanResult struct {
	Outcome     *allocator.PlanOutcome
	Roster      []model.Member
	PeriodStart time.Time
}

// PlanClaims proposes an assignment for a batch of validated claims.
//
// It loads the roster and rules, counts what each member already holds in the current
// accounting period, drops claims whose IDs are already stored (reporting them as
// unassignable) and runs the engine. Nothing is written.
func PlanClaims(
	ctx context.Context,
	store PlanClaimsStore,
	cfg *config.Config,
	logger *zap.Logger,
	candidates []model.ClaimCandidate,
	now time.Time,
) (*PlanResult, error) {
	logger.Debug("Starting planClaims", zap.Int("candidates", len(candidates)))

	memberRecs, err := store.GetMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}
	roster := membersFromRecords(memberRecs)
	logger.Debug("Fetched members", zap.Int("count", len(roster)))

	ruleRecs, err := store.GetRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules: %w", err)
	}
	rules := rulesFromRecords(ruleRecs)
	logger.Debug("Fetched rules", zap.Int("count", len(rules)))

	periodStart, err := workperiod.PeriodStart(cfg.Assignment.WorkloadPeriod, now, cfg.Location())
	if err != nil {
		return nil, fmt.Errorf("failed to compute workload period: %w", err)
	}

	workload, err := store.CountClaimsByAssigneeSince(ctx, periodStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count workload: %w", err)
	}
	logger.Debug("Loaded workload", zap.Time("period_start", periodStart), zap.Int("members", len(workload)))

	existing, err := store.FindExistingClaimIDs(ctx, getClaimIDs(candidates))
	if err != nil {
		return nil, fmt.Errorf("failed to check existing claims: %w", err)
	}
	fresh, duplicates := splitExisting(candidates, existing)
	if len(duplicates) > 0 {
		logger.Info("Skipping claims that already exist", zap.Strings("claim_ids", duplicates))
	}

	outcome, err := allocator.PlanAssignments(allocator.PlanConfig{
		Candidates:         fresh,
		Roster:             roster,
		Rules:              rules,
		InitialWorkload:    workload,
		Today:              now.In(cfg.Location()),
		Precedence:         cfg.Precedence(),
		SeniorBillersFirst: cfg.Assignment.SeniorBillersFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to plan assignments: %w", err)
	}

	for _, claimID := range duplicates {
		outcome.Unassignable = append(outcome.Unassignable, allocator.UnassignableClaim{
			ClaimID: claimID,
			Reason:  fmt.Sprintf("Claim %s already exists.", claimID),
		})
	}

	if len(outcome.SkippedRules) > 0 {
		logger.Warn("Skipped rules with invalid criteria", zap.Strings("rule_ids", outcome.SkippedRules))
	}
	for _, verr := range outcome.ValidationErrors {
		logger.Error("Plan validation failed",
			zap.String("check", verr.Check),
			zap.String("claim_id", verr.ClaimID),
			zap.String("member_id", verr.MemberID),
			zap.String("description", verr.Description))
	}

	logger.Info("Planned claims",
		zap.Int("assignable", len(outcome.Assignable)),
		zap.Int("unassignable", len(outcome.Unassignable)))

	return &PlanResult{
		Outcome:     outcome,
		Roster:      roster,
		PeriodStart: periodStart,
	}, nil
}

// splitExisting separates candidates whose claim ID is already stored, keeping input order
func splitExisting(candidates []model.ClaimCandidate, existing []string) ([]model.ClaimCandidate, []string) {
	if len(existing) == 0 {
		return candidates, nil
	}

	stored := make(map[string]bool, len(existing))
	for _, id := range existing {
		stored[id] = true
	}

	fresh := make([]model.ClaimCandidate, 0, len(candidates))
	var duplicates []string
	for _, c := range candidates {
		if stored[c.ClaimID] {
			duplicates = append(duplicates, c.ClaimID)
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh, duplicates
}
