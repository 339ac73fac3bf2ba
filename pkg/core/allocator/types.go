package allocator

import (
	"time"

	"github.com/jakechorley/claim-router/pkg/core/model"
)

// PlanConfig contains everything a planning run needs. The engine keeps no state
// between runs: roster, rules and workload are passed in explicitly.
type PlanConfig struct {
	// Candidates are the pre-validated claims to plan, in input order
	Candidates []model.ClaimCandidate

	// Roster is every member that could receive claims (inactive members are ignored)
	Roster []model.Member

	// Rules is the administrative override table, in any order
	Rules []model.Rule

	// InitialWorkload is the number of claims already committed to each member
	// in the current accounting period, keyed by member ID
	InitialWorkload map[string]int

	// Today is the run date used for age rules
	Today time.Time

	// Precedence decides which rule wins when several match one claim
	Precedence PrecedencePolicy

	// SeniorBillersFirst makes the age pass try Sr. Billers before other members of the group
	SeniorBillersFirst bool

	// Ledger overrides the per-run workload ledger. When nil a WorkloadLedger is
	// seeded from InitialWorkload. Pass a SharedLedger to reserve capacity across runs.
	Ledger Ledger
}

// PlannedClaim is a claim matched to a member
type PlannedClaim struct {
	Claim      model.ClaimCandidate
	MemberID   string
	MemberName string

	// Strategy is the strategy of the group the member was picked from
	Strategy model.Strategy

	// Label is "Age", "Seniority", "Payer" or "<strategy> (Rule)"
	Label string

	// RuleID is set when a rule forced the strategy
	RuleID string
}

// ByRule returns true if a rule forced the strategy for this claim
func (p PlannedClaim) ByRule() bool {
	return p.RuleID != ""
}

// UnassignableClaim is a claim no member could take in this run
type UnassignableClaim struct {
	ClaimID string
	Reason  string

	// RuleID is set when the claim was tagged by a rule
	RuleID string
}

// PlanValidationError describes a broken plan invariant
type PlanValidationError struct {
	ClaimID     string
	MemberID    string
	Check       string
	Description string
}

// PlanOutcome is the result of a planning run
type PlanOutcome struct {
	// Assignable claims in the order they were accepted
	Assignable []PlannedClaim

	// Unassignable claims with a human-readable reason
	Unassignable []UnassignableClaim

	// Workload is the final per-member count including claims planned in this run
	Workload map[string]int

	// SkippedRules are the IDs of rules whose criteria could not be parsed
	SkippedRules []string

	// ValidationErrors from post-plan invariant checks (empty for a sound plan)
	ValidationErrors []PlanValidationError
}

// memberGroup is the set of members a claim can be matched against
type memberGroup struct {
	strategy model.Strategy
	members  []*model.Member
}

// taggedClaim is a claim whose strategy was forced by a rule
type taggedClaim struct {
	claim model.ClaimCandidate
	rule  model.Rule
}
