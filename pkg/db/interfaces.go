package db

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique key is already taken
	ErrDuplicate = errors.New("record already exists")
)

// MemberStore defines the interface for member and skill database operations
type MemberStore interface {
	GetMembers(ctx context.Context) ([]Member, error)
	GetMember(ctx context.Context, id string) (*Member, error)
	InsertMember(ctx context.Context, member *Member) error
	UpdateMember(ctx context.Context, member *Member) error
	GetSkills(ctx context.Context) ([]Skill, error)
	InsertSkill(ctx context.Context, skill *Skill) error
}

// RuleStore defines the interface for assignment rule database operations
type RuleStore interface {
	GetRules(ctx context.Context) ([]Rule, error)
	GetRule(ctx context.Context, id string) (*Rule, error)
	InsertRule(ctx context.Context, rule *Rule) error
	UpdateRule(ctx context.Context, rule *Rule) error
	DeleteRule(ctx context.Context, id string) error
}

// ClaimStore defines the interface for claim and note database operations
type ClaimStore interface {
	// GetClaims returns every claim ordered by claim_id descending
	GetClaims(ctx context.Context) ([]Claim, error)

	// GetClaimsByAssignee returns a member's claims ordered by status then claim_id
	GetClaimsByAssignee(ctx context.Context, memberID string) ([]Claim, error)

	GetClaim(ctx context.Context, id string) (*Claim, error)

	// FindExistingClaimIDs returns which of the given business claim IDs are already stored
	FindExistingClaimIDs(ctx context.Context, claimIDs []string) ([]string, error)

	// CountClaimsByAssigneeSince counts assigned claims created at or after since, keyed by member ID
	CountClaimsByAssigneeSince(ctx context.Context, since time.Time) (map[string]int, error)

	// InsertClaims writes all claims in one transaction. A duplicate claim_id fails the whole batch.
	InsertClaims(ctx context.Context, claims []Claim) error

	// UpdateClaim sets the claim's status and appends the note in one transaction.
	// An empty status leaves the status as it is; a nil note adds none.
	UpdateClaim(ctx context.Context, id string, status string, note *Note) error

	// GetNotes returns the notes of the given claims ordered by timestamp
	GetNotes(ctx context.Context, claimIDs []string) ([]Note, error)
}

// Database defines the interface for all database operations.
// Both postgres.DB and sqlite.DB implement this interface.
type Database interface {
	MemberStore
	RuleStore
	ClaimStore
	Close() error
}
