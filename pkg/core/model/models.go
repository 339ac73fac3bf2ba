package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Strategy is the policy used to pick a member for a claim
type Strategy string

const (
	StrategyAge       Strategy = "age"
	StrategySeniority Strategy = "seniority"
	StrategyPayer     Strategy = "payer"
)

// Strategies lists every strategy in pass order
var Strategies = []Strategy{StrategyAge, StrategySeniority, StrategyPayer}

func (s Strategy) IsValid() bool {
	return s == StrategyAge || s == StrategySeniority || s == StrategyPayer
}

// Label returns the strategy label used in plans ("Age", "Seniority", "Payer")
func (s Strategy) Label() string {
	switch s {
	case StrategyAge:
		return "Age"
	case StrategySeniority:
		return "Seniority"
	default:
		return "Payer"
	}
}

// RuleLabel returns the label used for claims routed by a rule, e.g. "seniority (Rule)"
func (s Strategy) RuleLabel() string {
	return fmt.Sprintf("%s (Rule)", s)
}

// ParseStrategy parses a strategy name, rejecting anything unknown
func ParseStrategy(s string) (Strategy, error) {
	strategy := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if !strategy.IsValid() {
		return "", fmt.Errorf("unknown strategy %q (expected age, seniority or payer)", s)
	}
	return strategy, nil
}

// StrategyFromPreference maps a stored preference to a strategy.
// Anything that is not age or seniority routes through the default payer pass.
func StrategyFromPreference(s string) Strategy {
	strategy := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if strategy == StrategyAge || strategy == StrategySeniority {
		return strategy
	}
	return StrategyPayer
}

type Role string

const (
	RoleBiller       Role = "Biller"
	RoleSeniorBiller Role = "Sr. Biller"
	RoleAdmin        Role = "Admin"
)

func (r Role) IsValid() bool {
	return r == RoleBiller || r == RoleSeniorBiller || r == RoleAdmin
}

// ParseRole parses a role name (case-insensitive)
func ParseRole(s string) (Role, error) {
	for _, r := range []Role{RoleBiller, RoleSeniorBiller, RoleAdmin} {
		if strings.EqualFold(strings.TrimSpace(s), string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type ClaimStatus string

const (
	ClaimStatusNew        ClaimStatus = "NEW"
	ClaimStatusInProgress ClaimStatus = "IN_PROGRESS"
	ClaimStatusSubmitted  ClaimStatus = "SUBMITTED"
	ClaimStatusOnHold     ClaimStatus = "ON_HOLD"
	ClaimStatusAssigned   ClaimStatus = "ASSIGNED"
)

var claimStatuses = []ClaimStatus{
	ClaimStatusNew,
	ClaimStatusInProgress,
	ClaimStatusSubmitted,
	ClaimStatusOnHold,
	ClaimStatusAssigned,
}

func (s ClaimStatus) IsValid() bool {
	return slices.Contains(claimStatuses, s)
}

// ParseClaimStatus parses a claim status, accepting any case and spaces for underscores
func ParseClaimStatus(s string) (ClaimStatus, error) {
	status := ClaimStatus(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")))
	if !status.IsValid() {
		return "", fmt.Errorf("unknown claim status %q", s)
	}
	return status, nil
}

// CriteriaType is what a rule matches a claim on
type CriteriaType string

const (
	CriteriaPayer CriteriaType = "payer"
	CriteriaAge   CriteriaType = "age"
)

func (c CriteriaType) IsValid() bool {
	return c == CriteriaPayer || c == CriteriaAge
}

// Member is a worker that claims are routed to
type Member struct {
	ID             string
	Name           string
	Username       string
	Role           Role
	IsActive       bool
	Skills         []string // Payer names, ordered
	MaxDailyClaims int
	Seniority      int
	AssignBy       Strategy
}

// HasSkill returns true if the member can handle claims for the payer
func (m *Member) HasSkill(payer string) bool {
	return slices.Contains(m.Skills, payer)
}

// IsWorker returns true if the member can ever receive claims
func (m *Member) IsWorker() bool {
	return m.IsActive && m.Role != RoleAdmin && m.MaxDailyClaims > 0
}

// ClaimCandidate is a validated, typed claim row waiting to be planned
type ClaimCandidate struct {
	ClaimID            string
	PatientID          string
	PatientName        string
	CPTCodes           string
	ICD10Codes         string
	DOB                time.Time
	DOS                time.Time
	SubmissionDeadline time.Time
	Priority           int
	Amount             decimal.Decimal
	Payer              string
	UploadStatus       string
}

// AgeOn returns the patient's age in completed years on the given date
func (c *ClaimCandidate) AgeOn(date time.Time) int {
	years := date.Year() - c.DOB.Year()
	if date.Month() < c.DOB.Month() || (date.Month() == c.DOB.Month() && date.Day() < c.DOB.Day()) {
		years--
	}
	return years
}

// Claim is a committed claim assigned to a member
type Claim struct {
	ID string
	ClaimCandidate
	Status       ClaimStatus
	AssignedToID string // Empty if unassigned
	CreatedAt    time.Time
}

// Rule forces a strategy onto claims matching its criteria
type Rule struct {
	ID            string
	CriteriaType  CriteriaType
	CriteriaValue string
	Strategy      Strategy
	Priority      int
}

// Note is an append-only annotation on a claim
type Note struct {
	ID        string
	ClaimID   string
	MemberID  string
	Content   string
	Timestamp time.Time
}
