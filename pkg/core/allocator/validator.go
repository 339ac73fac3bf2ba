package allocator

import (
	"fmt"

	"github.com/jakechorley/claim-router/pkg/core/model"
)

const (
	CheckSkill     = "Skill"
	CheckCapacity  = "Capacity"
	CheckDuplicate = "Duplicate"
	CheckRoster    = "Roster"
)

// ValidatePlan checks the invariants every plan must hold:
//   - each planned member is in the roster and has the claim's payer as a skill
//   - no member ends up above capacity (initial workload plus this plan)
//   - no claim is planned more than once
//
// An empty slice means the plan is sound.
func ValidatePlan(outcome *PlanOutcome, roster []model.Member, initialWorkload map[string]int) []PlanValidationError {
	errors := []PlanValidationError{}

	membersByID := make(map[string]*model.Member, len(roster))
	for i := range roster {
		membersByID[roster[i].ID] = &roster[i]
	}

	planned := make(map[string]int)
	seen := make(map[string]bool)

	for _, pc := range outcome.Assignable {
		if seen[pc.Claim.ClaimID] {
			errors = append(errors, PlanValidationError{
				ClaimID:     pc.Claim.ClaimID,
				MemberID:    pc.MemberID,
				Check:       CheckDuplicate,
				Description: fmt.Sprintf("Claim %s is planned more than once", pc.Claim.ClaimID),
			})
		}
		seen[pc.Claim.ClaimID] = true

		member, ok := membersByID[pc.MemberID]
		if !ok {
			errors = append(errors, PlanValidationError{
				ClaimID:     pc.Claim.ClaimID,
				MemberID:    pc.MemberID,
				Check:       CheckRoster,
				Description: fmt.Sprintf("Member %s is not in the roster", pc.MemberID),
			})
			continue
		}

		if !member.HasSkill(pc.Claim.Payer) {
			errors = append(errors, PlanValidationError{
				ClaimID:     pc.Claim.ClaimID,
				MemberID:    pc.MemberID,
				Check:       CheckSkill,
				Description: fmt.Sprintf("Member %s does not have skill %q", member.Name, pc.Claim.Payer),
			})
		}

		planned[pc.MemberID]++
	}

	for _, member := range roster {
		total := initialWorkload[member.ID] + planned[member.ID]
		if planned[member.ID] > 0 && total > member.MaxDailyClaims {
			errors = append(errors, PlanValidationError{
				MemberID:    member.ID,
				Check:       CheckCapacity,
				Description: fmt.Sprintf("Member %s would hold %d claims but capacity is %d", member.Name, total, member.MaxDailyClaims),
			})
		}
	}

	for _, claim := range outcome.Unassignable {
		if seen[claim.ClaimID] {
			errors = append(errors, PlanValidationError{
				ClaimID:     claim.ClaimID,
				Check:       CheckDuplicate,
				Description: fmt.Sprintf("Claim %s is both assignable and unassignable", claim.ClaimID),
			})
		}
	}

	return errors
}
