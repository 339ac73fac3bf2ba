package allocator

import (
	"cmp"
	"slices"

	"github.com/jakechorley/claim-router/pkg/core/model"
)

// IsMemberEligible returns true if the member can take the claim given the current ledger:
// active, not an admin, skilled for the claim's payer and below capacity
func IsMemberEligible(claim model.ClaimCandidate, member *model.Member, ledger Ledger) bool {
	if !member.IsWorker() {
		return false
	}

	if !member.HasSkill(claim.Payer) {
		return false
	}

	return ledger.Count(member.ID) < member.MaxDailyClaims
}

// Match finds the member of the group that should take the claim, or nil if nobody can.
// It reads the ledger but never changes it.
//
// Seniority groups are ordered most senior first and the first eligible member wins,
// whatever their load. Every other group picks the eligible member with the fewest
// claims, ties going to the earlier member.
func Match(claim model.ClaimCandidate, group memberGroup, ledger Ledger) *model.Member {
	if group.strategy == model.StrategySeniority {
		for _, member := range group.members {
			if IsMemberEligible(claim, member, ledger) {
				return member
			}
		}
		return nil
	}

	var chosen *model.Member
	chosenCount := 0
	for _, member := range group.members {
		if !IsMemberEligible(claim, member, ledger) {
			continue
		}
		count := ledger.Count(member.ID)
		if chosen == nil || count < chosenCount {
			chosen = member
			chosenCount = count
		}
	}

	return chosen
}

// buildGroups splits the roster into one group per strategy.
// Inactive members and admins are left out entirely.
func buildGroups(roster []model.Member) map[model.Strategy]memberGroup {
	groups := make(map[model.Strategy]memberGroup, len(model.Strategies))
	for _, strategy := range model.Strategies {
		groups[strategy] = memberGroup{strategy: strategy}
	}

	for i := range roster {
		member := &roster[i]
		if !member.IsActive || member.Role == model.RoleAdmin {
			continue
		}
		strategy := model.StrategyFromPreference(string(member.AssignBy))
		group := groups[strategy]
		group.members = append(group.members, member)
		groups[strategy] = group
	}

	seniority := groups[model.StrategySeniority]
	slices.SortStableFunc(seniority.members, func(a, b *model.Member) int {
		return cmp.Compare(b.Seniority, a.Seniority)
	})
	groups[model.StrategySeniority] = seniority

	return groups
}

// splitSeniorBillers splits a group into its Sr. Billers and everyone else, keeping order
func splitSeniorBillers(group memberGroup) (memberGroup, memberGroup) {
	senior := memberGroup{strategy: group.strategy}
	rest := memberGroup{strategy: group.strategy}
	for _, member := range group.members {
		if member.Role == model.RoleSeniorBiller {
			senior.members = append(senior.members, member)
		} else {
			rest.members = append(rest.members, member)
		}
	}
	return senior, rest
}
