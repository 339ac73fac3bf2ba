package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jakechorley/claim-router/pkg/core/model"
	"github.com/jakechorley/claim-router/pkg/db"
)

const dateFormat = "2006-01-02"

// memberFromRecord converts a member record into the engine's member type.
// Stored preferences outside age/seniority collapse to payer.
func memberFromRecord(rec db.Member) model.Member {
	skills := make([]string, len(rec.Skills))
	copy(skills, rec.Skills)

	return model.Member{
		ID:             rec.ID,
		Name:           rec.Name,
		Username:       rec.Username,
		Role:           model.Role(rec.Role),
		IsActive:       rec.IsActive,
		Skills:         skills,
		MaxDailyClaims: rec.MaxDailyClaims,
		Seniority:      rec.Seniority,
		AssignBy:       model.StrategyFromPreference(rec.AssignBy),
	}
}

func membersFromRecords(recs []db.Member) []model.Member {
	members := make([]model.Member, 0, len(recs))
	for _, rec := range recs {
		members = append(members, memberFromRecord(rec))
	}
	return members
}

func ruleFromRecord(rec db.Rule) model.Rule {
	return model.Rule{
		ID:            rec.ID,
		CriteriaType:  model.CriteriaType(rec.CriteriaType),
		CriteriaValue: rec.CriteriaValue,
		Strategy:      model.Strategy(rec.Strategy),
		Priority:      rec.Priority,
	}
}

func rulesFromRecords(recs []db.Rule) []model.Rule {
	rules := make([]model.Rule, 0, len(recs))
	for _, rec := range recs {
		rules = append(rules, ruleFromRecord(rec))
	}
	return rules
}

func claimToRecord(claim model.Claim) db.Claim {
	return db.Claim{
		ID:                 claim.ID,
		ClaimID:            claim.ClaimID,
		PatientID:          claim.PatientID,
		PatientName:        claim.PatientName,
		CPTCodes:           claim.CPTCodes,
		ICD10Codes:         claim.ICD10Codes,
		DOB:                claim.DOB.Format(dateFormat),
		DOS:                claim.DOS.Format(dateFormat),
		SubmissionDeadline: claim.SubmissionDeadline.Format(dateFormat),
		Priority:           claim.Priority,
		Amount:             claim.Amount.StringFixed(2),
		Payer:              claim.Payer,
		Status:             string(claim.Status),
		AssignedToID:       claim.AssignedToID,
		CreatedAt:          claim.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func claimFromRecord(rec db.Claim) (model.Claim, error) {
	dob, err := time.Parse(dateFormat, rec.DOB)
	if err != nil {
		return model.Claim{}, fmt.Errorf("claim %s: invalid dob %q: %w", rec.ClaimID, rec.DOB, err)
	}
	dos, err := time.Parse(dateFormat, rec.DOS)
	if err != nil {
		return model.Claim{}, fmt.Errorf("claim %s: invalid dos %q: %w", rec.ClaimID, rec.DOS, err)
	}
	deadline, err := time.Parse(dateFormat, rec.SubmissionDeadline)
	if err != nil {
		return model.Claim{}, fmt.Errorf("claim %s: invalid submission deadline %q: %w", rec.ClaimID, rec.SubmissionDeadline, err)
	}
	amount, err := decimal.NewFromString(rec.Amount)
	if err != nil {
		return model.Claim{}, fmt.Errorf("claim %s: invalid amount %q: %w", rec.ClaimID, rec.Amount, err)
	}
	createdAt, err := time.Parse(time.RFC3339, rec.CreatedAt)
	if err != nil {
		return model.Claim{}, fmt.Errorf("claim %s: invalid created_at %q: %w", rec.ClaimID, rec.CreatedAt, err)
	}

	return model.Claim{
		ID: rec.ID,
		ClaimCandidate: model.ClaimCandidate{
			ClaimID:            rec.ClaimID,
			PatientID:          rec.PatientID,
			PatientName:        rec.PatientName,
			CPTCodes:           rec.CPTCodes,
			ICD10Codes:         rec.ICD10Codes,
			DOB:                dob,
			DOS:                dos,
			SubmissionDeadline: deadline,
			Priority:           rec.Priority,
			Amount:             amount,
			Payer:              rec.Payer,
		},
		Status:       model.ClaimStatus(rec.Status),
		AssignedToID: rec.AssignedToID,
		CreatedAt:    createdAt,
	}, nil
}

func noteFromRecord(rec db.Note) (model.Note, error) {
	ts, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		return model.Note{}, fmt.Errorf("note %s: invalid timestamp %q: %w", rec.ID, rec.Timestamp, err)
	}
	return model.Note{
		ID:        rec.ID,
		ClaimID:   rec.ClaimID,
		MemberID:  rec.MemberID,
		Content:   rec.Content,
		Timestamp: ts,
	}, nil
}

func getClaimIDs(candidates []model.ClaimCandidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ClaimID
	}
	return ids
}
