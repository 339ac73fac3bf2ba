package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/internal/config"
	"github.com/jakechorley/claim-router/pkg/clients/sheetsclient"
)

// PlanPublisher writes a laid-out plan to a spreadsheet
type PlanPublisher interface {
	PublishPlan(spreadsheetID string, plan *sheetsclient.PublishedPlan) error
}

// PublishPlan writes a plan document to a tab named "<plan tab> <run time>" in the
// configured plan spreadsheet and returns the tab title
func PublishPlan(
	publisher PlanPublisher,
	cfg *config.Config,
	logger *zap.Logger,
	doc *PlanDocument,
	now time.Time,
) (string, error) {
	if cfg.Sheets.PlanSheetID == "" {
		return "", fmt.Errorf("sheets.planSheetID is not configured")
	}

	plan := BuildPublishedPlan(doc, fmt.Sprintf("%s %s", cfg.Sheets.PlanTab, now.In(cfg.Location()).Format("2006-01-02 15:04")))

	logger.Debug("Publishing plan",
		zap.String("spreadsheet_id", cfg.Sheets.PlanSheetID),
		zap.String("tab", plan.Title),
		zap.Int("assignable", len(plan.Assignable)),
		zap.Int("unassignable", len(plan.Unassignable)))

	if err := publisher.PublishPlan(cfg.Sheets.PlanSheetID, plan); err != nil {
		return "", fmt.Errorf("failed to publish plan: %w", err)
	}

	logger.Info("Published plan", zap.String("tab", plan.Title))
	return plan.Title, nil
}

// BuildPublishedPlan lays out a plan document as spreadsheet rows
func BuildPublishedPlan(doc *PlanDocument, title string) *sheetsclient.PublishedPlan {
	plan := &sheetsclient.PublishedPlan{
		Title:        title,
		Assignable:   make([]sheetsclient.PublishedPlanRow, 0, len(doc.AssignableClaims)),
		Unassignable: make([]sheetsclient.PublishedPlanRow, 0, len(doc.UnassignableClaims)),
	}

	for _, c := range doc.AssignableClaims {
		plan.Assignable = append(plan.Assignable, sheetsclient.PublishedPlanRow{
			ClaimID:            c.ClaimID,
			PatientName:        c.PatientName,
			Payer:              c.Payer,
			Amount:             c.Amount.StringFixed(2),
			DOS:                c.DOS,
			SubmissionDeadline: c.SubmissionDeadline,
			AssignTo:           c.AssignTo,
			Strategy:           c.Strategy,
		})
	}
	for _, u := range doc.UnassignableClaims {
		plan.Unassignable = append(plan.Unassignable, sheetsclient.PublishedPlanRow{
			ClaimID: u.ClaimID,
			Reason:  u.Reason,
		})
	}

	return plan
}
