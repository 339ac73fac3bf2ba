package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/pkg/core/model"
	"github.com/jakechorley/claim-router/pkg/db"
)

// ErrInvalidMember is returned when member input fails validation
var ErrInvalidMember = errors.New("invalid member")

var memberValidate = validator.New()

// NewMember holds the fields needed to create a member
type NewMember struct {
	Name           string   `validate:"required"`
	Username       string   `validate:"required"`
	Role           string   `validate:"required"`
	IsActive       bool
	MaxDailyClaims int      `validate:"min=0"`
	Seniority      int      `validate:"min=0"`
	AssignBy       string
	Skills         []string `validate:"dive,required"`
}

// MemberUpdate holds optional member changes; nil fields are left as they are
type MemberUpdate struct {
	Role           *string
	IsActive       *bool
	MaxDailyClaims *int
	Seniority      *int
	AssignBy       *string
	Skills         []string // nil leaves skills unchanged, empty clears them
}

// ListMembers returns every member except admins
func ListMembers(ctx context.Context, store db.MemberStore, logger *zap.Logger) ([]model.Member, error) {
	recs, err := store.GetMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}

	members := make([]model.Member, 0, len(recs))
	for _, rec := range recs {
		if strings.EqualFold(rec.Role, string(model.RoleAdmin)) {
			continue
		}
		members = append(members, memberFromRecord(rec))
	}

	logger.Debug("Fetched members", zap.Int("count", len(members)))
	return members, nil
}

// CreateMember validates and stores a new member. Skills must already exist.
func CreateMember(ctx context.Context, store db.MemberStore, logger *zap.Logger, input NewMember) (*model.Member, error) {
	if err := memberValidate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMember, err)
	}

	role, err := model.ParseRole(input.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMember, err)
	}

	if err := checkSkillsExist(ctx, store, input.Skills); err != nil {
		return nil, err
	}

	rec := &db.Member{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(input.Name),
		Username:       strings.TrimSpace(input.Username),
		Role:           string(role),
		IsActive:       input.IsActive,
		MaxDailyClaims: input.MaxDailyClaims,
		Seniority:      input.Seniority,
		AssignBy:       normalizePreference(input.AssignBy),
		Skills:         sortedSkills(input.Skills),
	}

	if err := store.InsertMember(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to insert member: %w", err)
	}

	logger.Info("Created member", zap.String("id", rec.ID), zap.String("name", rec.Name))
	member := memberFromRecord(*rec)
	return &member, nil
}

// UpdateMember applies the non-nil fields of update to an existing member
func UpdateMember(ctx context.Context, store db.MemberStore, logger *zap.Logger, id string, update MemberUpdate) (*model.Member, error) {
	rec, err := store.GetMember(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member %s: %w", id, err)
	}

	if update.Role != nil {
		role, err := model.ParseRole(*update.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMember, err)
		}
		rec.Role = string(role)
	}
	if update.IsActive != nil {
		rec.IsActive = *update.IsActive
	}
	if update.MaxDailyClaims != nil {
		if *update.MaxDailyClaims < 0 {
			return nil, fmt.Errorf("%w: max daily claims cannot be negative", ErrInvalidMember)
		}
		rec.MaxDailyClaims = *update.MaxDailyClaims
	}
	if update.Seniority != nil {
		if *update.Seniority < 0 {
			return nil, fmt.Errorf("%w: seniority cannot be negative", ErrInvalidMember)
		}
		rec.Seniority = *update.Seniority
	}
	if update.AssignBy != nil {
		rec.AssignBy = normalizePreference(*update.AssignBy)
	}
	if update.Skills != nil {
		if err := checkSkillsExist(ctx, store, update.Skills); err != nil {
			return nil, err
		}
		rec.Skills = sortedSkills(update.Skills)
	}

	if err := store.UpdateMember(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}

	logger.Info("Updated member", zap.String("id", rec.ID), zap.String("name", rec.Name))
	member := memberFromRecord(*rec)
	return &member, nil
}

// ListSkills returns every skill
func ListSkills(ctx context.Context, store db.MemberStore) ([]db.Skill, error) {
	skills, err := store.GetSkills(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch skills: %w", err)
	}
	return skills, nil
}

// CreateSkill stores a new payer skill
func CreateSkill(ctx context.Context, store db.MemberStore, logger *zap.Logger, name string) (*db.Skill, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: skill name is required", ErrInvalidMember)
	}

	skill := &db.Skill{ID: uuid.New().String(), Name: name}
	if err := store.InsertSkill(ctx, skill); err != nil {
		return nil, fmt.Errorf("failed to insert skill: %w", err)
	}

	logger.Info("Created skill", zap.String("id", skill.ID), zap.String("name", skill.Name))
	return skill, nil
}

func checkSkillsExist(ctx context.Context, store db.MemberStore, names []string) error {
	if len(names) == 0 {
		return nil
	}

	skills, err := store.GetSkills(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch skills: %w", err)
	}
	known := make(map[string]bool, len(skills))
	for _, s := range skills {
		known[s.Name] = true
	}

	var unknown []string
	for _, name := range names {
		if !known[strings.TrimSpace(name)] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: unknown skills: %s", ErrInvalidMember, strings.Join(unknown, ", "))
	}
	return nil
}

func sortedSkills(names []string) []string {
	skills := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if !slices.Contains(skills, name) {
			skills = append(skills, name)
		}
	}
	slices.Sort(skills)
	return skills
}

// normalizePreference lowercases a stored preference; empty means payer
func normalizePreference(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return string(model.StrategyPayer)
	}
	return s
}
