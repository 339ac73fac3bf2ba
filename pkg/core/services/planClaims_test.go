package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/internal/config"
	"github.com/jakechorley/claim-router/pkg/core/model"
	"github.com/jakechorley/claim-router/pkg/db"
)

var runTime = time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Assignment: config.AssignmentConfig{WorkloadPeriod: "FREQ=DAILY"},
		Sheets: config.SheetsConfig{
			ClaimsSheetID: "claims-sheet",
			ClaimsTab:     "Claims",
			PlanSheetID:   "plan-sheet",
			PlanTab:       "Plan",
		},
	}
}

func candidate(claimID, payer string, dob time.Time, priority int) model.ClaimCandidate {
	return model.ClaimCandidate{
		ClaimID:            claimID,
		PatientID:          "P-" + claimID,
		PatientName:        "Patient " + claimID,
		DOB:                dob,
		DOS:                time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		SubmissionDeadline: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		Priority:           priority,
		Amount:             decimal.RequireFromString("150.00"),
		Payer:              payer,
	}
}

func TestPlanClaims_SpreadsAcrossMembersByCapacity(t *testing.T) {
	store := &mockStore{
		members: []db.Member{
			memberRecord("m1", "Alice", "payer", 1, "Medicare"),
			memberRecord("m2", "Bob", "payer", 1, "Medicare"),
		},
	}
	dob := time.Date(1980, 5, 1, 0, 0, 0, 0, time.UTC)

	result, err := PlanClaims(context.Background(), store, testConfig(), zap.NewNop(),
		[]model.ClaimCandidate{candidate("C1", "Medicare", dob, 1), candidate("C2", "Medicare", dob, 1)}, runTime)
	require.NoError(t, err)

	outcome := result.Outcome
	require.Len(t, outcome.Assignable, 2)
	assert.Equal(t, "Alice", outcome.Assignable[0].MemberName)
	assert.Equal(t, "Bob", outcome.Assignable[1].MemberName)
	assert.Empty(t, outcome.Unassignable)
	assert.Empty(t, outcome.ValidationErrors)
}

func TestPlanClaims_CountsWorkloadFromPeriodStart(t *testing.T) {
	store := &mockStore{
		members:  []db.Member{memberRecord("m1", "Alice", "payer", 2, "Medicare")},
		workload: map[string]int{"m1": 2},
	}

	result, err := PlanClaims(context.Background(), store, testConfig(), zap.NewNop(),
		[]model.ClaimCandidate{candidate("C1", "Medicare", time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC), 1)}, runTime)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), store.workloadArg)
	assert.Equal(t, store.workloadArg, result.PeriodStart)
	assert.Empty(t, result.Outcome.Assignable)
	require.Len(t, result.Outcome.Unassignable, 1)
	assert.Contains(t, result.Outcome.Unassignable[0].Reason, `skill "Medicare"`)
}

func TestPlanClaims_ExistingClaimsAreUnassignable(t *testing.T) {
	store := &mockStore{
		members: []db.Member{memberRecord("m1", "Alice", "payer", 5, "Medicare")},
		claims:  []db.Claim{claimRecord("id-1", "C1", "m1", "NEW")},
	}
	dob := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

	result, err := PlanClaims(context.Background(), store, testConfig(), zap.NewNop(),
		[]model.ClaimCandidate{candidate("C1", "Medicare", dob, 1), candidate("C2", "Medicare", dob, 1)}, runTime)
	require.NoError(t, err)

	require.Len(t, result.Outcome.Assignable, 1)
	assert.Equal(t, "C2", result.Outcome.Assignable[0].Claim.ClaimID)
	require.Len(t, result.Outcome.Unassignable, 1)
	assert.Equal(t, "C1", result.Outcome.Unassignable[0].ClaimID)
	assert.Equal(t, "Claim C1 already exists.", result.Outcome.Unassignable[0].Reason)
}

func TestPlanClaims_AppliesStoredRules(t *testing.T) {
	store := &mockStore{
		members: []db.Member{
			memberRecord("m1", "Payer Pat", "payer", 5, "Medicare"),
			memberRecord("m2", "Senior Sam", "seniority", 5, "Medicare"),
		},
		rules: []db.Rule{{ID: "r1", CriteriaType: "age", CriteriaValue: ">65", Strategy: "seniority", Priority: 1}},
	}

	result, err := PlanClaims(context.Background(), store, testConfig(), zap.NewNop(),
		[]model.ClaimCandidate{candidate("C1", "Medicare", time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), 1)}, runTime)
	require.NoError(t, err)

	require.Len(t, result.Outcome.Assignable, 1)
	assert.Equal(t, "Senior Sam", result.Outcome.Assignable[0].MemberName)
	assert.Equal(t, "r1", result.Outcome.Assignable[0].RuleID)
	assert.Equal(t, "seniority (Rule)", result.Outcome.Assignable[0].Label)
}

func TestPlanClaims_MemberFetchError(t *testing.T) {
	store := &mockStore{getMembersErr: errors.New("connection refused")}

	_, err := PlanClaims(context.Background(), store, testConfig(), zap.NewNop(), nil, runTime)
	assert.ErrorContains(t, err, "failed to fetch members")
}

func TestSplitExisting(t *testing.T) {
	dob := time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.ClaimCandidate{
		candidate("C1", "Medicare", dob, 1),
		candidate("C2", "Medicare", dob, 1),
		candidate("C3", "Medicare", dob, 1),
	}

	fresh, duplicates := splitExisting(candidates, []string{"C2"})

	assert.Equal(t, []string{"C1", "C3"}, getClaimIDs(fresh))
	assert.Equal(t, []string{"C2"}, duplicates)
}
