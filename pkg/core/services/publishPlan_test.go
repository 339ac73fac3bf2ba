package services

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/pkg/clients/sheetsclient"
	"github.com/jakechorley/claim-router/pkg/core/ingest"
)

type mockPublisher struct {
	spreadsheetID string
	plan          *sheetsclient.PublishedPlan
	err           error
}

func (m *mockPublisher) PublishPlan(spreadsheetID string, plan *sheetsclient.PublishedPlan) error {
	m.spreadsheetID = spreadsheetID
	m.plan = plan
	return m.err
}

type mockSheetReader struct {
	values [][]interface{}
	err    error
}

func (m *mockSheetReader) ReadClaims(spreadsheetID, tab string) ([][]interface{}, error) {
	return m.values, m.err
}

func TestPublishPlan(t *testing.T) {
	publisher := &mockPublisher{}
	doc := &PlanDocument{
		AssignableClaims: []PlannedClaimDoc{{
			ClaimID: "C1", PatientName: "Ann", Payer: "Medicare", Amount: decimal.RequireFromString("99.5"),
			DOS: "2026-10-01", SubmissionDeadline: "2026-11-01", AssignTo: "Alice", Strategy: "Payer",
		}},
		UnassignableClaims: []UnassignableClaimDoc{{ClaimID: "C2", Reason: "nobody"}},
	}

	title, err := PublishPlan(publisher, testConfig(), zap.NewNop(), doc, runTime)
	require.NoError(t, err)

	assert.Equal(t, "Plan 2026-10-19 14:30", title)
	assert.Equal(t, "plan-sheet", publisher.spreadsheetID)
	require.Len(t, publisher.plan.Assignable, 1)
	assert.Equal(t, "99.50", publisher.plan.Assignable[0].Amount)
	assert.Equal(t, "Alice", publisher.plan.Assignable[0].AssignTo)
	require.Len(t, publisher.plan.Unassignable, 1)
	assert.Equal(t, "nobody", publisher.plan.Unassignable[0].Reason)
}

func TestPublishPlan_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Sheets.PlanSheetID = ""
	_, err := PublishPlan(&mockPublisher{}, cfg, zap.NewNop(), &PlanDocument{}, runTime)
	assert.ErrorContains(t, err, "planSheetID")

	_, err = PublishPlan(&mockPublisher{err: errors.New("quota exceeded")}, testConfig(), zap.NewNop(), &PlanDocument{}, runTime)
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestImportClaims(t *testing.T) {
	reader := &mockSheetReader{values: [][]interface{}{
		{"claim_id", "patient_id", "patient_name", "status", "payer", "cpt_codes", "icd10_codes", "priority", "amount", "dob", "dos", "submission_deadline"},
		{"C1", "P1", "Ann", "new", "Medicare", "99213", "E11.9", "2", "120.50", "1950-01-01", "2026-10-01", "2026-11-01"},
	}}

	claims, err := ImportClaims(reader, testConfig(), zap.NewNop())
	require.NoError(t, err)

	require.Len(t, claims, 1)
	assert.Equal(t, "C1", claims[0].ClaimID)
	assert.Equal(t, 2, claims[0].Priority)
	assert.Equal(t, "120.50", claims[0].Amount.StringFixed(2))
}

func TestImportClaims_InvalidRows(t *testing.T) {
	reader := &mockSheetReader{values: [][]interface{}{
		{"claim_id", "patient_id"},
		{"C1", "P1"},
	}}

	_, err := ImportClaims(reader, testConfig(), zap.NewNop())

	var verr *ingest.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "missing required headers")
}
