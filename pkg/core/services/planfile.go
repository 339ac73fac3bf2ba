package services

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jakechorley/claim-router/pkg/core/allocator"
	"github.com/jakechorley/claim-router/pkg/core/ingest"
	"github.com/jakechorley/claim-router/pkg/core/model"
)

// PlanDocument is the serialized form of a plan. The same shape is returned by the
// upload-validate endpoint, written by `plan --out` and accepted by execute.
type PlanDocument struct {
	AssignableClaims   []PlannedClaimDoc      `json:"assignable_claims" validate:"dive"`
	UnassignableClaims []UnassignableClaimDoc `json:"unassignable_claims"`
	SkippedRules       []string               `json:"skipped_rules,omitempty"`
}

// PlannedClaimDoc is one assignable claim in a plan document
type PlannedClaimDoc struct {
	ClaimID            string          `json:"claim_id" validate:"required"`
	PatientID          string          `json:"patient_id" validate:"required"`
	PatientName        string          `json:"patient_name" validate:"required"`
	CPTCodes           string          `json:"cpt_codes"`
	ICD10Codes         string          `json:"icd10_codes"`
	DOB                string          `json:"dob" validate:"required"`
	DOS                string          `json:"dos" validate:"required"`
	SubmissionDeadline string          `json:"submission_deadline" validate:"required"`
	Priority           int             `json:"priority"`
	Amount             decimal.Decimal `json:"amount"`
	Payer              string          `json:"payer" validate:"required"`
	Status             string          `json:"status,omitempty"`
	AssignTo           string          `json:"assign_to" validate:"required"`
	AssignedToID       string          `json:"assigned_to_id,omitempty"`
	Strategy           string          `json:"strategy,omitempty"`
	RuleID             string          `json:"rule_id,omitempty"`
}

// UnassignableClaimDoc is one unassignable claim in a plan document
type UnassignableClaimDoc struct {
	ClaimID string `json:"claim_id"`
	Reason  string `json:"reason"`
	RuleID  string `json:"rule_id,omitempty"`
}

var planValidate = validator.New()

func init() {
	planValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return jsonName(fld.Tag.Get("json"))
	})
}

// NewPlanDocument converts a plan outcome to its serialized form
func NewPlanDocument(outcome *allocator.PlanOutcome) *PlanDocument {
	doc := &PlanDocument{
		AssignableClaims:   make([]PlannedClaimDoc, 0, len(outcome.Assignable)),
		UnassignableClaims: make([]UnassignableClaimDoc, 0, len(outcome.Unassignable)),
		SkippedRules:       outcome.SkippedRules,
	}

	for _, pc := range outcome.Assignable {
		c := pc.Claim
		doc.AssignableClaims = append(doc.AssignableClaims, PlannedClaimDoc{
			ClaimID:            c.ClaimID,
			PatientID:          c.PatientID,
			PatientName:        c.PatientName,
			CPTCodes:           c.CPTCodes,
			ICD10Codes:         c.ICD10Codes,
			DOB:                c.DOB.Format(dateFormat),
			DOS:                c.DOS.Format(dateFormat),
			SubmissionDeadline: c.SubmissionDeadline.Format(dateFormat),
			Priority:           c.Priority,
			Amount:             c.Amount,
			Payer:              c.Payer,
			Status:             c.UploadStatus,
			AssignTo:           pc.MemberName,
			AssignedToID:       pc.MemberID,
			Strategy:           pc.Label,
			RuleID:             pc.RuleID,
		})
	}

	for _, u := range outcome.Unassignable {
		doc.UnassignableClaims = append(doc.UnassignableClaims, UnassignableClaimDoc{
			ClaimID: u.ClaimID,
			Reason:  u.Reason,
			RuleID:  u.RuleID,
		})
	}

	return doc
}

// WritePlanDocument encodes the document as indented JSON
func WritePlanDocument(w io.Writer, doc *PlanDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return nil
}

// ReadPlanDocument decodes a plan document
func ReadPlanDocument(r io.Reader) (*PlanDocument, error) {
	var doc PlanDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return &doc, nil
}

// ToPlanned converts the assignable section back into planned claims for execution.
// Every entry must carry the claim fields and an assign_to member name.
func (d *PlanDocument) ToPlanned() ([]allocator.PlannedClaim, error) {
	if err := planValidate.Struct(d); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	planned := make([]allocator.PlannedClaim, 0, len(d.AssignableClaims))
	for _, entry := range d.AssignableClaims {
		candidate, err := entry.toCandidate()
		if err != nil {
			return nil, err
		}
		planned = append(planned, allocator.PlannedClaim{
			Claim:      candidate,
			MemberID:   entry.AssignedToID,
			MemberName: entry.AssignTo,
			Strategy:   strategyFromLabel(entry.Strategy),
			Label:      entry.Strategy,
			RuleID:     entry.RuleID,
		})
	}
	return planned, nil
}

func (e PlannedClaimDoc) toCandidate() (model.ClaimCandidate, error) {
	dob, err := ingest.ParseDate(e.DOB)
	if err != nil {
		return model.ClaimCandidate{}, fmt.Errorf("claim %s: invalid dob %q", e.ClaimID, e.DOB)
	}
	dos, err := ingest.ParseDate(e.DOS)
	if err != nil {
		return model.ClaimCandidate{}, fmt.Errorf("claim %s: invalid dos %q", e.ClaimID, e.DOS)
	}
	deadline, err := ingest.ParseDate(e.SubmissionDeadline)
	if err != nil {
		return model.ClaimCandidate{}, fmt.Errorf("claim %s: invalid submission_deadline %q", e.ClaimID, e.SubmissionDeadline)
	}

	return model.ClaimCandidate{
		ClaimID:            e.ClaimID,
		PatientID:          e.PatientID,
		PatientName:        e.PatientName,
		CPTCodes:           e.CPTCodes,
		ICD10Codes:         e.ICD10Codes,
		DOB:                dob,
		DOS:                dos,
		SubmissionDeadline: deadline,
		Priority:           e.Priority,
		Amount:             e.Amount,
		Payer:              e.Payer,
		UploadStatus:       e.Status,
	}, nil
}

// strategyFromLabel reads "Age" or "age (Rule)" back into a strategy
func strategyFromLabel(label string) model.Strategy {
	name, _, _ := strings.Cut(label, " ")
	return model.StrategyFromPreference(name)
}

func jsonName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}
