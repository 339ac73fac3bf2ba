package allocator

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/claim-router/pkg/core/model"
)

var today = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func newMember(id string, strategy model.Strategy, capacity int, skills ...string) model.Member {
	return model.Member{
		ID:             id,
		Name:           "Member " + id,
		Role:           model.RoleBiller,
		IsActive:       true,
		Skills:         skills,
		MaxDailyClaims: capacity,
		AssignBy:       strategy,
	}
}

func newClaim(id, payer string) model.ClaimCandidate {
	return model.ClaimCandidate{
		ClaimID:            id,
		PatientID:          "p-" + id,
		PatientName:        "Patient " + id,
		DOB:                time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		DOS:                time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		SubmissionDeadline: time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC),
		Priority:           1,
		Amount:             decimal.NewFromInt(100),
		Payer:              payer,
	}
}

func assignedTo(outcome *PlanOutcome) map[string]string {
	result := make(map[string]string)
	for _, pc := range outcome.Assignable {
		result[pc.Claim.ClaimID] = pc.MemberID
	}
	return result
}

func TestPlanAssignments_RequiresRunDate(t *testing.T) {
	_, err := PlanAssignments(PlanConfig{})
	assert.Error(t, err)
}

func TestPlanAssignments_SecondClaimGoesToOtherMemberWhenFirstIsFull(t *testing.T) {
	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c1", "Medicare"), newClaim("c2", "Medicare")},
		Roster: []model.Member{
			newMember("a", model.StrategyPayer, 1, "Medicare"),
			newMember("b", model.StrategyPayer, 5, "Medicare"),
		},
		Today: today,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 2)
	assert.Equal(t, "a", outcome.Assignable[0].MemberID)
	assert.Equal(t, "b", outcome.Assignable[1].MemberID)
	assert.Equal(t, "Payer", outcome.Assignable[0].Label)
	assert.Empty(t, outcome.Unassignable)
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, outcome.Workload)
	assert.Empty(t, outcome.ValidationErrors)
}

func TestPlanAssignments_AgeRuleForcesSeniorityGroup(t *testing.T) {
	claim := newClaim("c1", "Medicare")
	claim.DOB = today.AddDate(-70, 0, 0)

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{claim},
		Roster: []model.Member{
			newMember("payer", model.StrategyPayer, 10, "Medicare"),
			newMember("senior", model.StrategySeniority, 10, "Medicare"),
		},
		Rules: []model.Rule{
			{ID: "r1", CriteriaType: model.CriteriaAge, CriteriaValue: ">65", Strategy: model.StrategySeniority, Priority: 1},
		},
		Today: today,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 1)
	planned := outcome.Assignable[0]
	assert.Equal(t, "senior", planned.MemberID)
	assert.Equal(t, "seniority (Rule)", planned.Label)
	assert.Equal(t, model.StrategySeniority, planned.Strategy)
	assert.Equal(t, "r1", planned.RuleID)
	assert.True(t, planned.ByRule())
}

func TestPlanAssignments_TaggedClaimDoesNotFallThroughToPasses(t *testing.T) {
	claim := newClaim("c1", "Medicare")
	claim.DOB = today.AddDate(-70, 0, 0)

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{claim},
		Roster: []model.Member{
			newMember("payer", model.StrategyPayer, 10, "Medicare"),
			newMember("senior", model.StrategySeniority, 10, "Aetna"),
		},
		Rules: []model.Rule{
			{ID: "r1", CriteriaType: model.CriteriaAge, CriteriaValue: ">65", Strategy: model.StrategySeniority, Priority: 1},
		},
		Today: today,
	})
	require.NoError(t, err)

	assert.Empty(t, outcome.Assignable)
	require.Len(t, outcome.Unassignable, 1)
	assert.Equal(t, "c1", outcome.Unassignable[0].ClaimID)
	assert.Equal(t, "r1", outcome.Unassignable[0].RuleID)
	assert.Contains(t, outcome.Unassignable[0].Reason, "Rule r1")
	assert.Contains(t, outcome.Unassignable[0].Reason, `"Medicare"`)
}

func TestPlanAssignments_NoSkilledMemberIsUnassignable(t *testing.T) {
	claim := newClaim("c1", "Cigna")
	claim.Priority = 4

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{claim},
		Roster: []model.Member{
			newMember("a", model.StrategyPayer, 10, "Medicare"),
			newMember("b", model.StrategyAge, 10, "Aetna"),
		},
		Today: today,
	})
	require.NoError(t, err)

	assert.Empty(t, outcome.Assignable)
	require.Len(t, outcome.Unassignable, 1)
	reason := outcome.Unassignable[0].Reason
	assert.Contains(t, reason, `"Cigna"`)
	assert.Contains(t, reason, "priority 4")
	assert.Contains(t, reason, "2026-11-30")
	assert.Empty(t, outcome.Unassignable[0].RuleID)
}

func TestPlanAssignments_IsDeterministic(t *testing.T) {
	config := PlanConfig{
		Candidates: []model.ClaimCandidate{
			newClaim("c1", "Medicare"),
			newClaim("c2", "Aetna"),
			newClaim("c3", "Medicare"),
			newClaim("c4", "Medicare"),
			newClaim("c5", "Aetna"),
		},
		Roster: []model.Member{
			newMember("a", model.StrategyPayer, 2, "Medicare", "Aetna"),
			newMember("b", model.StrategyPayer, 2, "Medicare"),
			newMember("c", model.StrategySeniority, 1, "Aetna"),
		},
		InitialWorkload: map[string]int{"a": 1},
		Today:           today,
	}

	first, err := PlanAssignments(config)
	require.NoError(t, err)
	second, err := PlanAssignments(config)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPlanAssignments_DoesNotMutateInitialWorkload(t *testing.T) {
	initial := map[string]int{"a": 0}
	_, err := PlanAssignments(PlanConfig{
		Candidates:      []model.ClaimCandidate{newClaim("c1", "Medicare")},
		Roster:          []model.Member{newMember("a", model.StrategyPayer, 5, "Medicare")},
		InitialWorkload: initial,
		Today:           today,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 0}, initial)
}

func TestPlanAssignments_SeniorityPassPicksMostSeniorEligible(t *testing.T) {
	junior := newMember("junior", model.StrategySeniority, 10, "Medicare")
	junior.Seniority = 2
	senior := newMember("senior", model.StrategySeniority, 2, "Medicare")
	senior.Seniority = 9
	unskilled := newMember("unskilled", model.StrategySeniority, 10, "Aetna")
	unskilled.Seniority = 20

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{
			newClaim("c1", "Medicare"),
			newClaim("c2", "Medicare"),
			newClaim("c3", "Medicare"),
		},
		Roster: []model.Member{junior, unskilled, senior},
		Today:  today,
	})
	require.NoError(t, err)

	assignments := assignedTo(outcome)
	assert.Equal(t, "senior", assignments["c1"])
	assert.Equal(t, "senior", assignments["c2"])
	assert.Equal(t, "junior", assignments["c3"], "junior only takes over once senior is full")
	for _, pc := range outcome.Assignable {
		assert.Equal(t, "Seniority", pc.Label)
	}
}

func TestPlanAssignments_SeniorityPassOrdersByPriority(t *testing.T) {
	low := newClaim("low", "Medicare")
	low.Priority = 1
	high := newClaim("high", "Medicare")
	high.Priority = 5

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{low, high},
		Roster:     []model.Member{newMember("s", model.StrategySeniority, 1, "Medicare")},
		Today:      today,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 1)
	assert.Equal(t, "high", outcome.Assignable[0].Claim.ClaimID)
	require.Len(t, outcome.Unassignable, 1)
	assert.Equal(t, "low", outcome.Unassignable[0].ClaimID)
}

func TestPlanAssignments_SeniorityPassOrdersExtremePriorities(t *testing.T) {
	low := newClaim("low", "Medicare")
	low.Priority = -2
	high := newClaim("high", "Medicare")
	high.Priority = math.MaxInt

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{low, high},
		Roster:     []model.Member{newMember("s", model.StrategySeniority, 1, "Medicare")},
		Today:      today,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 1)
	assert.Equal(t, "high", outcome.Assignable[0].Claim.ClaimID)
	require.Len(t, outcome.Unassignable, 1)
	assert.Equal(t, "low", outcome.Unassignable[0].ClaimID)
}

func TestPlanAssignments_SeniorityGroupOrdersExtremeSeniority(t *testing.T) {
	junior := newMember("junior", model.StrategySeniority, 1, "Medicare")
	junior.Seniority = math.MinInt
	senior := newMember("senior", model.StrategySeniority, 1, "Medicare")
	senior.Seniority = math.MaxInt

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c1", "Medicare")},
		Roster:     []model.Member{junior, senior},
		Today:      today,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 1)
	assert.Equal(t, "senior", outcome.Assignable[0].MemberID)
}

func TestPlanAssignments_AgePassTakesOldestPatientFirst(t *testing.T) {
	young := newClaim("young", "Medicare")
	young.DOB = time.Date(2000, 5, 1, 0, 0, 0, 0, time.UTC)
	old := newClaim("old", "Medicare")
	old.DOB = time.Date(1940, 5, 1, 0, 0, 0, 0, time.UTC)

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{young, old},
		Roster: []model.Member{
			newMember("age", model.StrategyAge, 1, "Medicare"),
			newMember("payer", model.StrategyPayer, 1, "Medicare"),
		},
		Today: today,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 2)
	assert.Equal(t, "old", outcome.Assignable[0].Claim.ClaimID)
	assert.Equal(t, "age", outcome.Assignable[0].MemberID)
	assert.Equal(t, "Age", outcome.Assignable[0].Label)
	assert.Equal(t, "young", outcome.Assignable[1].Claim.ClaimID)
	assert.Equal(t, "payer", outcome.Assignable[1].MemberID)
	assert.Equal(t, "Payer", outcome.Assignable[1].Label)
}

func TestPlanAssignments_PassesRunInOrder(t *testing.T) {
	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{
			newClaim("c1", "Medicare"),
			newClaim("c2", "Medicare"),
			newClaim("c3", "Medicare"),
		},
		Roster: []model.Member{
			newMember("payer", model.StrategyPayer, 1, "Medicare"),
			newMember("senior", model.StrategySeniority, 1, "Medicare"),
			newMember("age", model.StrategyAge, 1, "Medicare"),
		},
		Today: today,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 3)
	assert.Equal(t, "Age", outcome.Assignable[0].Label)
	assert.Equal(t, "Seniority", outcome.Assignable[1].Label)
	assert.Equal(t, "Payer", outcome.Assignable[2].Label)
}

func TestPlanAssignments_RoundRobinSpreadsConsecutiveClaims(t *testing.T) {
	candidates := make([]model.ClaimCandidate, 6)
	for i := range candidates {
		candidates[i] = newClaim(fmt.Sprintf("c%d", i), "Medicare")
	}

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: candidates,
		Roster: []model.Member{
			newMember("a", model.StrategyPayer, 10, "Medicare"),
			newMember("b", model.StrategyPayer, 10, "Medicare"),
			newMember("c", model.StrategyPayer, 10, "Medicare"),
		},
		Today: today,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 6)
	for i := 1; i < len(outcome.Assignable); i++ {
		assert.NotEqual(t, outcome.Assignable[i-1].MemberID, outcome.Assignable[i].MemberID,
			"consecutive claims should not go to the same member")
	}
	assert.Equal(t, map[string]int{"a": 2, "b": 2, "c": 2}, outcome.Workload)
}

func TestPlanAssignments_LedgerUpdatesAreVisibleWithinRun(t *testing.T) {
	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{
			newClaim("c1", "Medicare"),
			newClaim("c2", "Medicare"),
			newClaim("c3", "Medicare"),
			newClaim("c4", "Medicare"),
		},
		Roster: []model.Member{
			newMember("a", model.StrategyPayer, 5, "Medicare"),
			newMember("b", model.StrategyPayer, 5, "Medicare"),
		},
		InitialWorkload: map[string]int{"a": 3},
		Today:           today,
	})
	require.NoError(t, err)

	assignments := assignedTo(outcome)
	assert.Equal(t, "b", assignments["c1"])
	assert.Equal(t, "b", assignments["c2"])
	assert.Equal(t, "b", assignments["c3"])
	assert.Equal(t, "a", assignments["c4"], "tie at 3 claims goes to the earlier member")
	assert.Equal(t, map[string]int{"a": 4, "b": 3}, outcome.Workload)
}

func TestPlanAssignments_CapacityNeverExceeded(t *testing.T) {
	candidates := make([]model.ClaimCandidate, 10)
	for i := range candidates {
		candidates[i] = newClaim(fmt.Sprintf("c%d", i), "Medicare")
	}

	roster := []model.Member{
		newMember("a", model.StrategyPayer, 3, "Medicare"),
		newMember("b", model.StrategyAge, 2, "Medicare"),
		newMember("c", model.StrategySeniority, 1, "Medicare"),
	}
	outcome, err := PlanAssignments(PlanConfig{
		Candidates:      candidates,
		Roster:          roster,
		InitialWorkload: map[string]int{"a": 1},
		Today:           today,
	})
	require.NoError(t, err)

	assert.Len(t, outcome.Assignable, 5)
	assert.Len(t, outcome.Unassignable, 5)
	for _, member := range roster {
		assert.LessOrEqual(t, outcome.Workload[member.ID], member.MaxDailyClaims)
	}
	for _, pc := range outcome.Assignable {
		assert.Equal(t, "Medicare", pc.Claim.Payer)
	}
	assert.Empty(t, outcome.ValidationErrors)
}

func TestPlanAssignments_IneligibleMembers(t *testing.T) {
	inactive := newMember("inactive", model.StrategyPayer, 10, "Medicare")
	inactive.IsActive = false
	admin := newMember("admin", model.StrategyPayer, 10, "Medicare")
	admin.Role = model.RoleAdmin
	zero := newMember("zero", model.StrategyPayer, 0, "Medicare")

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c1", "Medicare")},
		Roster:     []model.Member{inactive, admin, zero},
		Today:      today,
	})
	require.NoError(t, err)

	assert.Empty(t, outcome.Assignable)
	assert.Len(t, outcome.Unassignable, 1)
}

func TestPlanAssignments_UnknownPreferenceUsesPayerPass(t *testing.T) {
	submitter := newMember("s", model.Strategy("submitter"), 5, "Medicare")

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c1", "Medicare")},
		Roster:     []model.Member{submitter},
		Today:      today,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 1)
	assert.Equal(t, "Payer", outcome.Assignable[0].Label)
}

func TestPlanAssignments_LastMatchingRuleWins(t *testing.T) {
	rules := []model.Rule{
		{ID: "late", CriteriaType: model.CriteriaPayer, CriteriaValue: "Medicare", Strategy: model.StrategySeniority, Priority: 10},
		{ID: "early", CriteriaType: model.CriteriaPayer, CriteriaValue: "Medicare", Strategy: model.StrategyAge, Priority: 1},
	}
	roster := []model.Member{
		newMember("age", model.StrategyAge, 5, "Medicare"),
		newMember("senior", model.StrategySeniority, 5, "Medicare"),
	}

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c1", "Medicare")},
		Roster:     roster,
		Rules:      rules,
		Today:      today,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 1)
	assert.Equal(t, "late", outcome.Assignable[0].RuleID)
	assert.Equal(t, "senior", outcome.Assignable[0].MemberID)
	assert.Equal(t, "seniority (Rule)", outcome.Assignable[0].Label)
}

func TestPlanAssignments_FirstMatchWinsPolicy(t *testing.T) {
	rules := []model.Rule{
		{ID: "late", CriteriaType: model.CriteriaPayer, CriteriaValue: "Medicare", Strategy: model.StrategySeniority, Priority: 10},
		{ID: "early", CriteriaType: model.CriteriaPayer, CriteriaValue: "Medicare", Strategy: model.StrategyAge, Priority: 1},
	}

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c1", "Medicare")},
		Roster: []model.Member{
			newMember("age", model.StrategyAge, 5, "Medicare"),
			newMember("senior", model.StrategySeniority, 5, "Medicare"),
		},
		Rules:      rules,
		Precedence: FirstMatchWins,
		Today:      today,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 1)
	assert.Equal(t, "early", outcome.Assignable[0].RuleID)
	assert.Equal(t, "age (Rule)", outcome.Assignable[0].Label)
}

func TestPlanAssignments_UnparsableAgeRuleIsSkipped(t *testing.T) {
	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c1", "Medicare")},
		Roster:     []model.Member{newMember("a", model.StrategyPayer, 5, "Medicare")},
		Rules: []model.Rule{
			{ID: "bad", CriteriaType: model.CriteriaAge, CriteriaValue: "old", Strategy: model.StrategySeniority, Priority: 1},
		},
		Today: today,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"bad"}, outcome.SkippedRules)
	require.Len(t, outcome.Assignable, 1)
	assert.Equal(t, "Payer", outcome.Assignable[0].Label)
}

func TestPlanAssignments_SeniorBillersFirstInAgePass(t *testing.T) {
	biller := newMember("biller", model.StrategyAge, 5, "Medicare")
	senior := newMember("sr", model.StrategyAge, 5, "Medicare")
	senior.Role = model.RoleSeniorBiller

	config := PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c1", "Medicare")},
		Roster:     []model.Member{biller, senior},
		Today:      today,
	}

	outcome, err := PlanAssignments(config)
	require.NoError(t, err)
	assert.Equal(t, "biller", outcome.Assignable[0].MemberID)

	config.SeniorBillersFirst = true
	outcome, err = PlanAssignments(config)
	require.NoError(t, err)
	assert.Equal(t, "sr", outcome.Assignable[0].MemberID)
}

func TestPlanAssignments_SharedLedgerAcrossRuns(t *testing.T) {
	roster := []model.Member{newMember("a", model.StrategyPayer, 1, "Medicare")}
	shared := NewSharedLedger(nil)

	first, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c1", "Medicare")},
		Roster:     roster,
		Today:      today,
		Ledger:     shared,
	})
	require.NoError(t, err)
	second, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c2", "Medicare")},
		Roster:     roster,
		Today:      today,
		Ledger:     shared,
	})
	require.NoError(t, err)

	assert.Len(t, first.Assignable, 1)
	assert.Empty(t, second.Assignable)
	assert.Len(t, second.Unassignable, 1)
}

func TestPlanAssignments_ConcurrentRunsNeverOverbookSharedLedger(t *testing.T) {
	roster := []model.Member{
		newMember("a", model.StrategyPayer, 3, "Medicare"),
		newMember("b", model.StrategyPayer, 2, "Medicare"),
	}
	shared := NewSharedLedger(map[string]int{})

	const runs = 20
	var wg sync.WaitGroup
	counts := make([]int, runs)
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := PlanAssignments(PlanConfig{
				Candidates: []model.ClaimCandidate{newClaim(fmt.Sprintf("c%d", i), "Medicare")},
				Roster:     roster,
				Today:      today,
				Ledger:     shared,
			})
			if err == nil {
				counts[i] = len(outcome.Assignable)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, map[string]int{"a": 3, "b": 2}, shared.Snapshot())
}

// racingLedger loses the first reservations to another run, which takes the slot
type racingLedger struct {
	*WorkloadLedger
	losses int
}

func (l *racingLedger) TryReserve(memberID string, capacity int) bool {
	if l.losses > 0 {
		l.losses--
		l.WorkloadLedger.TryReserve(memberID, capacity)
		return false
	}
	return l.WorkloadLedger.TryReserve(memberID, capacity)
}

func TestPlanAssignments_RetriesReservationWhileCapacityRemains(t *testing.T) {
	ledger := &racingLedger{WorkloadLedger: NewWorkloadLedger(nil), losses: 3}

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c1", "Medicare")},
		Roster:     []model.Member{newMember("a", model.StrategyPayer, 5, "Medicare")},
		Today:      today,
		Ledger:     ledger,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Assignable, 1)
	assert.Equal(t, "a", outcome.Assignable[0].MemberID)
	assert.Equal(t, 4, ledger.Count("a"))
}

func TestPlanAssignments_LostRacesUntilFullIsUnassignable(t *testing.T) {
	ledger := &racingLedger{WorkloadLedger: NewWorkloadLedger(nil), losses: 10}

	outcome, err := PlanAssignments(PlanConfig{
		Candidates: []model.ClaimCandidate{newClaim("c1", "Medicare")},
		Roster:     []model.Member{newMember("a", model.StrategyPayer, 2, "Medicare")},
		Today:      today,
		Ledger:     ledger,
	})
	require.NoError(t, err)

	assert.Empty(t, outcome.Assignable)
	require.Len(t, outcome.Unassignable, 1)
	assert.Equal(t, 2, ledger.Count("a"))
}
