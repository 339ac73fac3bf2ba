package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/pkg/core/allocator"
	"github.com/jakechorley/claim-router/pkg/core/model"
	"github.com/jakechorley/claim-router/pkg/db"
)

// ErrInvalidRule is returned when a rule's criteria or strategy cannot be used
var ErrInvalidRule = errors.New("invalid rule")

// RuleInput holds the editable fields of a rule
type RuleInput struct {
	CriteriaType  string
	CriteriaValue string
	Strategy      string
	Priority      int
}

// ListRules returns every rule in evaluation order
func ListRules(ctx context.Context, store db.RuleStore, logger *zap.Logger) ([]model.Rule, error) {
	recs, err := store.GetRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules: %w", err)
	}
	logger.Debug("Fetched rules", zap.Int("count", len(recs)))
	return rulesFromRecords(recs), nil
}

// CreateRule validates and stores a new rule. Age expressions must parse.
func CreateRule(ctx context.Context, store db.RuleStore, logger *zap.Logger, input RuleInput) (*model.Rule, error) {
	rule, err := buildRule(input)
	if err != nil {
		return nil, err
	}
	rule.ID = uuid.New().String()

	if err := store.InsertRule(ctx, ruleToRecord(rule)); err != nil {
		return nil, fmt.Errorf("failed to insert rule: %w", err)
	}

	logger.Info("Created rule",
		zap.String("id", rule.ID),
		zap.String("criteria_type", string(rule.CriteriaType)),
		zap.String("criteria_value", rule.CriteriaValue),
		zap.String("strategy", string(rule.Strategy)),
		zap.Int("priority", rule.Priority))

	return &rule, nil
}

// UpdateRule replaces the fields of an existing rule
func UpdateRule(ctx context.Context, store db.RuleStore, logger *zap.Logger, id string, input RuleInput) (*model.Rule, error) {
	if _, err := store.GetRule(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to fetch rule %s: %w", id, err)
	}

	rule, err := buildRule(input)
	if err != nil {
		return nil, err
	}
	rule.ID = id

	if err := store.UpdateRule(ctx, ruleToRecord(rule)); err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	logger.Info("Updated rule", zap.String("id", id))
	return &rule, nil
}

// DeleteRule removes a rule
func DeleteRule(ctx context.Context, store db.RuleStore, logger *zap.Logger, id string) error {
	if err := store.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}
	logger.Info("Deleted rule", zap.String("id", id))
	return nil
}

func buildRule(input RuleInput) (model.Rule, error) {
	criteriaType := model.CriteriaType(strings.ToLower(strings.TrimSpace(input.CriteriaType)))
	if !criteriaType.IsValid() {
		return model.Rule{}, fmt.Errorf("%w: unknown criteria type %q (expected payer or age)", ErrInvalidRule, input.CriteriaType)
	}

	value := strings.TrimSpace(input.CriteriaValue)
	if value == "" {
		return model.Rule{}, fmt.Errorf("%w: criteria value is required", ErrInvalidRule)
	}
	if criteriaType == model.CriteriaAge {
		if _, err := allocator.ParseAgeThreshold(value); err != nil {
			return model.Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
	}

	strategy, err := model.ParseStrategy(input.Strategy)
	if err != nil {
		return model.Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	return model.Rule{
		CriteriaType:  criteriaType,
		CriteriaValue: value,
		Strategy:      strategy,
		Priority:      input.Priority,
	}, nil
}

func ruleToRecord(rule model.Rule) *db.Rule {
	return &db.Rule{
		ID:            rule.ID,
		CriteriaType:  string(rule.CriteriaType),
		CriteriaValue: rule.CriteriaValue,
		Strategy:      string(rule.Strategy),
		Priority:      rule.Priority,
	}
}
