package allocator

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/jakechorley/claim-router/pkg/core/model"
)

const dateFormat = "2006-01-02"

// runRulePass matches rule-tagged claims against the group of their forced strategy only.
// A tagged claim never falls through to the built-in passes.
func (p *Planner) runRulePass(tagged []taggedClaim) {
	for _, tc := range tagged {
		strategy := tc.rule.Strategy
		member := p.assign(tc.claim, p.groups[strategy])
		if member == nil {
			p.reject(tc.claim.ClaimID, ruleReason(tc), tc.rule.ID)
			continue
		}
		p.accept(tc.claim, member, strategy, strategy.RuleLabel(), tc.rule.ID)
	}
}

// runAgePass assigns the oldest patients first to members who prefer the age strategy.
// Returns the claims left unassigned, in input order.
func (p *Planner) runAgePass(claims []model.ClaimCandidate) []model.ClaimCandidate {
	group := p.groups[model.StrategyAge]
	groups := []memberGroup{group}
	if p.config.SeniorBillersFirst {
		senior, rest := splitSeniorBillers(group)
		groups = []memberGroup{senior, rest}
	}

	sorted := slices.Clone(claims)
	slices.SortStableFunc(sorted, func(a, b model.ClaimCandidate) int {
		return a.DOB.Compare(b.DOB)
	})

	return p.runPass(claims, sorted, model.StrategyAge, groups...)
}

// runSeniorityPass assigns the highest priority claims first to the most senior members
// who prefer the seniority strategy. Returns the claims left unassigned, in input order.
func (p *Planner) runSeniorityPass(claims []model.ClaimCandidate) []model.ClaimCandidate {
	sorted := slices.Clone(claims)
	slices.SortStableFunc(sorted, func(a, b model.ClaimCandidate) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	return p.runPass(claims, sorted, model.StrategySeniority, p.groups[model.StrategySeniority])
}

// runPayerPass round-robins the remaining claims in input order over everyone else.
// Whatever is left after this pass is unassignable for this run.
func (p *Planner) runPayerPass(claims []model.ClaimCandidate) {
	remaining := p.runPass(claims, claims, model.StrategyPayer, p.groups[model.StrategyPayer])
	for _, claim := range remaining {
		p.reject(claim.ClaimID, unassignableReason(claim), "")
	}
}

// runPass walks the claims in the given order and assigns what it can.
// The unassigned remainder is returned in the original input order so the next pass
// applies its own ordering to a stable base.
func (p *Planner) runPass(claims, ordered []model.ClaimCandidate, strategy model.Strategy, groups ...memberGroup) []model.ClaimCandidate {
	assigned := make(map[string]bool)
	for _, claim := range ordered {
		member := p.assign(claim, groups...)
		if member == nil {
			continue
		}
		p.accept(claim, member, strategy, strategy.Label(), "")
		assigned[claim.ClaimID] = true
	}

	remaining := make([]model.ClaimCandidate, 0, len(claims)-len(assigned))
	for _, claim := range claims {
		if !assigned[claim.ClaimID] {
			remaining = append(remaining, claim)
		}
	}
	return remaining
}

func unassignableReason(claim model.ClaimCandidate) string {
	return fmt.Sprintf("No active member with skill %q and available capacity (priority %d, submission deadline %s).",
		claim.Payer, claim.Priority, claim.SubmissionDeadline.Format(dateFormat))
}

func ruleReason(tc taggedClaim) string {
	return fmt.Sprintf("Rule %s (%s %s) forced strategy %q but no %s member with skill %q has available capacity (priority %d, submission deadline %s).",
		tc.rule.ID, tc.rule.CriteriaType, tc.rule.CriteriaValue, tc.rule.Strategy, tc.rule.Strategy,
		tc.claim.Payer, tc.claim.Priority, tc.claim.SubmissionDeadline.Format(dateFormat))
}
