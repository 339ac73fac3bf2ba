package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jakechorley/claim-router/pkg/core/allocator"
	"github.com/jakechorley/claim-router/pkg/core/ingest"
)

// printValidationError prints every row problem of a claims file; other errors are returned as-is
func printValidationError(w io.Writer, err error) error {
	var verr *ingest.ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	fmt.Fprintf(w, "\n✗ %s\n", verr.Message)
	for _, e := range verr.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
	fmt.Fprintln(w)
	return fmt.Errorf("claims file is invalid")
}

// memberLoad is the number of claims planned for one member in this run
type memberLoad struct {
	Name  string
	Count int
}

// plannedPerMember counts planned claims per member, busiest first then by name
func plannedPerMember(planned []allocator.PlannedClaim) []memberLoad {
	counts := make(map[string]int)
	for _, pc := range planned {
		counts[pc.MemberName]++
	}

	loads := make([]memberLoad, 0, len(counts))
	for name, count := range counts {
		loads = append(loads, memberLoad{Name: name, Count: count})
	}
	sort.Slice(loads, func(i, j int) bool {
		if loads[i].Count != loads[j].Count {
			return loads[i].Count > loads[j].Count
		}
		return loads[i].Name < loads[j].Name
	})
	return loads
}

// printOutcome prints a plan: assignable claims, per-member totals and unassignable claims
func printOutcome(w io.Writer, outcome *allocator.PlanOutcome) {
	fmt.Fprintf(w, "\nAssignable claims (%d):\n", len(outcome.Assignable))
	for _, pc := range outcome.Assignable {
		fmt.Fprintf(w, "  %-14s %-16s %-12s → %-20s %s\n",
			pc.Claim.ClaimID, pc.Claim.Payer, pc.Claim.Amount.StringFixed(2), pc.MemberName, pc.Label)
	}

	if loads := plannedPerMember(outcome.Assignable); len(loads) > 0 {
		fmt.Fprintf(w, "\nPer member:\n")
		for _, l := range loads {
			fmt.Fprintf(w, "  %-20s %d\n", l.Name, l.Count)
		}
	}

	if len(outcome.Unassignable) > 0 {
		fmt.Fprintf(w, "\n⚠️  Unassignable claims (%d):\n", len(outcome.Unassignable))
		for _, u := range outcome.Unassignable {
			fmt.Fprintf(w, "  %-14s %s\n", u.ClaimID, u.Reason)
		}
	}

	if len(outcome.SkippedRules) > 0 {
		fmt.Fprintf(w, "\n⚠️  Skipped rules with invalid criteria: %v\n", outcome.SkippedRules)
	}
	if len(outcome.ValidationErrors) > 0 {
		fmt.Fprintf(w, "\n✗ Plan failed %d invariant checks:\n", len(outcome.ValidationErrors))
		for _, v := range outcome.ValidationErrors {
			fmt.Fprintf(w, "  [%s] %s\n", v.Check, v.Description)
		}
	}
	fmt.Fprintln(w)
}

// printExecution prints what an execution wrote and skipped
func printExecution(w io.Writer, result *allocator.ExecutionResult) {
	fmt.Fprintf(w, "\n✓ Successfully assigned and created %d claims.\n", result.CreatedCount)
	if len(result.Skipped) > 0 {
		fmt.Fprintf(w, "\n⚠️  Skipped %d claims:\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Fprintf(w, "  %-14s %s\n", s.ClaimID, s.Reason)
		}
	}
	fmt.Fprintln(w)
}
