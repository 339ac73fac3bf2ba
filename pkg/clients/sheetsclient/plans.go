package sheetsclient

import (
	"fmt"
)

// PublishedPlanRow is one claim line of a published plan
type PublishedPlanRow struct {
	ClaimID            string
	PatientName        string
	Payer              string
	Amount             string
	DOS                string
	SubmissionDeadline string
	AssignTo           string // Empty for unassignable claims
	Strategy           string
	Reason             string // Set for unassignable claims
}

// PublishedPlan is a plan laid out for a spreadsheet tab
type PublishedPlan struct {
	Title        string
	Assignable   []PublishedPlanRow
	Unassignable []PublishedPlanRow
}

var (
	assignableHeader   = []interface{}{"Claim ID", "Patient", "Payer", "Amount", "DOS", "Submission deadline", "Assign to", "Strategy"}
	unassignableHeader = []interface{}{"Claim ID", "Reason"}
)

// PublishPlan writes a plan to the tab named by its title, creating the tab if needed.
// An existing tab is cleared and rewritten so republishing a plan is idempotent.
func (c *Client) PublishPlan(spreadsheetID string, plan *PublishedPlan) error {
	exists, err := c.sheetExists(spreadsheetID, plan.Title)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := c.CreateSheet(spreadsheetID, plan.Title); err != nil {
			return fmt.Errorf("failed to create plan tab: %w", err)
		}
	}

	return c.replaceValues(spreadsheetID, plan.Title, planRows(plan))
}

// planRows lays out the assignable table, a blank row, then the unassignable table
func planRows(plan *PublishedPlan) [][]interface{} {
	rows := make([][]interface{}, 0, len(plan.Assignable)+len(plan.Unassignable)+3)

	rows = append(rows, assignableHeader)
	for _, r := range plan.Assignable {
		rows = append(rows, []interface{}{r.ClaimID, r.PatientName, r.Payer, r.Amount, r.DOS, r.SubmissionDeadline, r.AssignTo, r.Strategy})
	}

	if len(plan.Unassignable) == 0 {
		return rows
	}

	rows = append(rows, []interface{}{}, unassignableHeader)
	for _, r := range plan.Unassignable {
		rows = append(rows, []interface{}{r.ClaimID, r.Reason})
	}
	return rows
}
