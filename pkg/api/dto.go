package api

import (
	"time"

	"github.com/jakechorley/claim-router/pkg/core/allocator"
	"github.com/jakechorley/claim-router/pkg/core/model"
	"github.com/jakechorley/claim-router/pkg/core/services"
	"github.com/jakechorley/claim-router/pkg/db"
)

const dateFormat = "2006-01-02"

// MessageResponse is the body of every non-data response
type MessageResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

type MemberDTO struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Username       string   `json:"username"`
	Role           string   `json:"role"`
	IsActive       bool     `json:"is_active"`
	Skills         []string `json:"skills"`
	MaxDailyClaims int      `json:"max_daily_claims"`
	Seniority      int      `json:"seniority"`
	AssignBy       string   `json:"assign_by"`
}

type CreateMemberRequest struct {
	Name           string   `json:"name"`
	Username       string   `json:"username"`
	Role           string   `json:"role"`
	IsActive       *bool    `json:"is_active"`
	Skills         []string `json:"skills"`
	MaxDailyClaims int      `json:"max_daily_claims"`
	Seniority      int      `json:"seniority"`
	AssignBy       string   `json:"assign_by"`
}

// UpdateMemberRequest fields are optional; absent fields are left unchanged
type UpdateMemberRequest struct {
	Role           *string   `json:"role"`
	IsActive       *bool     `json:"is_active"`
	Skills         *[]string `json:"skills"`
	MaxDailyClaims *int      `json:"max_daily_claims"`
	Seniority      *int      `json:"seniority"`
	AssignBy       *string   `json:"assign_by"`
}

type SkillDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateSkillRequest struct {
	Name string `json:"name"`
}

type RuleDTO struct {
	ID            string `json:"id"`
	CriteriaType  string `json:"criteria_type"`
	CriteriaValue string `json:"criteria_value"`
	Strategy      string `json:"strategy"`
	Priority      int    `json:"priority"`
}

type RuleRequest struct {
	CriteriaType  string `json:"criteria_type"`
	CriteriaValue string `json:"criteria_value"`
	Strategy      string `json:"strategy"`
	Priority      int    `json:"priority"`
}

type ClaimDTO struct {
	ID          string  `json:"id"`
	ClaimID     string  `json:"claim_id"`
	PatientName string  `json:"patient_name"`
	Payer       string  `json:"payer"`
	Amount      *string `json:"amount"`
	DOS         string  `json:"dos"`
	Status      string  `json:"status"`
	Assignee    string  `json:"assignee,omitempty"`
}

type NoteDTO struct {
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type MemberClaimDTO struct {
	ClaimDTO
	Notes []NoteDTO `json:"notes"`
}

type UpdateClaimRequest struct {
	Status *string `json:"status"`
	Note   *string `json:"note"`
}

type SkippedDTO struct {
	ClaimID  string `json:"claim_id"`
	AssignTo string `json:"assign_to"`
	Reason   string `json:"reason"`
}

type ExecuteResponse struct {
	Message string       `json:"message"`
	Created int          `json:"created"`
	Skipped []SkippedDTO `json:"skipped"`
}

func toMemberDTO(m model.Member) MemberDTO {
	skills := m.Skills
	if skills == nil {
		skills = []string{}
	}
	return MemberDTO{
		ID:             m.ID,
		Name:           m.Name,
		Username:       m.Username,
		Role:           string(m.Role),
		IsActive:       m.IsActive,
		Skills:         skills,
		MaxDailyClaims: m.MaxDailyClaims,
		Seniority:      m.Seniority,
		AssignBy:       string(m.AssignBy),
	}
}

func toSkillDTO(s db.Skill) SkillDTO {
	return SkillDTO{ID: s.ID, Name: s.Name}
}

func toRuleDTO(r model.Rule) RuleDTO {
	return RuleDTO{
		ID:            r.ID,
		CriteriaType:  string(r.CriteriaType),
		CriteriaValue: r.CriteriaValue,
		Strategy:      string(r.Strategy),
		Priority:      r.Priority,
	}
}

func toClaimDTO(c model.Claim) ClaimDTO {
	dto := ClaimDTO{
		ID:          c.ID,
		ClaimID:     c.ClaimID,
		PatientName: c.PatientName,
		Payer:       c.Payer,
		DOS:         c.DOS.Format(dateFormat),
		Status:      string(c.Status),
	}
	if !c.Amount.IsZero() {
		amount := c.Amount.StringFixed(2)
		dto.Amount = &amount
	}
	return dto
}

func toClaimViewDTO(v services.ClaimView) ClaimDTO {
	dto := toClaimDTO(v.Claim)
	dto.Assignee = v.Assignee
	return dto
}

func toSkippedDTOs(entries []allocator.SkippedEntry) []SkippedDTO {
	dtos := make([]SkippedDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, SkippedDTO{ClaimID: e.ClaimID, AssignTo: e.MemberName, Reason: e.Reason})
	}
	return dtos
}

func toMemberClaimDTO(mc services.MemberClaim) MemberClaimDTO {
	notes := make([]NoteDTO, 0, len(mc.Notes))
	for _, n := range mc.Notes {
		notes = append(notes, NoteDTO{Content: n.Content, Timestamp: n.Timestamp.Format(time.RFC3339)})
	}
	return MemberClaimDTO{ClaimDTO: toClaimDTO(mc.Claim), Notes: notes}
}
