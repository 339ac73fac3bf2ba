package allocator

import (
	"fmt"

	"github.com/jakechorley/claim-router/pkg/core/model"
)

// Planner holds the state of a single planning run
type Planner struct {
	config PlanConfig
	groups map[model.Strategy]memberGroup
	rules  *RuleTable
	ledger Ledger

	assignable   []PlannedClaim
	unassignable []UnassignableClaim
}

// PlanAssignments proposes which member should take each candidate claim.
//
// Candidates tagged by a rule are matched against the group of their forced strategy.
// The rest flow through the age, seniority and payer passes in that order, each pass
// seeing only what the previous ones left. Every accepted match is reserved in the ledger
// before the next claim is considered. Claims nobody can take are returned as
// unassignable with a reason; that is an outcome, not an error.
func PlanAssignments(config PlanConfig) (*PlanOutcome, error) {
	planner, err := NewPlanner(config)
	if err != nil {
		return nil, err
	}

	untagged, tagged := planner.tagClaims(config.Candidates)

	planner.runRulePass(tagged)
	remaining := planner.runAgePass(untagged)
	remaining = planner.runSeniorityPass(remaining)
	planner.runPayerPass(remaining)

	return planner.buildOutcome(), nil
}

// NewPlanner validates the config and prepares groups, rules and the ledger
func NewPlanner(config PlanConfig) (*Planner, error) {
	if config.Today.IsZero() {
		return nil, fmt.Errorf("run date is required")
	}

	ledger := config.Ledger
	if ledger == nil {
		ledger = NewWorkloadLedger(config.InitialWorkload)
	}

	return &Planner{
		config:       config,
		groups:       buildGroups(config.Roster),
		rules:        NewRuleTable(config.Rules, config.Precedence),
		ledger:       ledger,
		assignable:   []PlannedClaim{},
		unassignable: []UnassignableClaim{},
	}, nil
}

// tagClaims splits candidates into untagged claims and claims forced by a rule, keeping input order
func (p *Planner) tagClaims(candidates []model.ClaimCandidate) ([]model.ClaimCandidate, []taggedClaim) {
	untagged := make([]model.ClaimCandidate, 0, len(candidates))
	tagged := make([]taggedClaim, 0)

	for _, claim := range candidates {
		if rule, ok := p.rules.Evaluate(claim, p.config.Today); ok {
			tagged = append(tagged, taggedClaim{claim: claim, rule: rule})
			continue
		}
		untagged = append(untagged, claim)
	}

	return untagged, tagged
}

// assign matches the claim against the groups in order and reserves the first member found.
// Returns nil if no group has an eligible member.
func (p *Planner) assign(claim model.ClaimCandidate, groups ...memberGroup) *model.Member {
	for _, group := range groups {
		// A failed reservation means another run sharing the ledger took the slot, so
		// counts only grow and the group eventually runs out of eligible members.
		for {
			member := Match(claim, group, p.ledger)
			if member == nil {
				break
			}
			if p.ledger.TryReserve(member.ID, member.MaxDailyClaims) {
				return member
			}
		}
	}
	return nil
}

func (p *Planner) accept(claim model.ClaimCandidate, member *model.Member, strategy model.Strategy, label string, ruleID string) {
	p.assignable = append(p.assignable, PlannedClaim{
		Claim:      claim,
		MemberID:   member.ID,
		MemberName: member.Name,
		Strategy:   strategy,
		Label:      label,
		RuleID:     ruleID,
	})
}

func (p *Planner) reject(claimID, reason, ruleID string) {
	p.unassignable = append(p.unassignable, UnassignableClaim{
		ClaimID: claimID,
		Reason:  reason,
		RuleID:  ruleID,
	})
}

// buildOutcome creates the final plan report
func (p *Planner) buildOutcome() *PlanOutcome {
	outcome := &PlanOutcome{
		Assignable:   p.assignable,
		Unassignable: p.unassignable,
		Workload:     make(map[string]int),
		SkippedRules: p.rules.Skipped(),
	}

	for id := range p.config.InitialWorkload {
		outcome.Workload[id] = p.ledger.Count(id)
	}
	for _, member := range p.config.Roster {
		outcome.Workload[member.ID] = p.ledger.Count(member.ID)
	}

	outcome.ValidationErrors = ValidatePlan(outcome, p.config.Roster, p.config.InitialWorkload)

	return outcome
}
