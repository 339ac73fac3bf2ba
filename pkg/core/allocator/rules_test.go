package allocator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/claim-router/pkg/core/model"
)

func TestParseAgeThreshold(t *testing.T) {
	tests := []struct {
		expr     string
		expected AgeThreshold
	}{
		{">65", AgeThreshold{Operator: ">", Years: 65}},
		{">= 18", AgeThreshold{Operator: ">=", Years: 18}},
		{"<12", AgeThreshold{Operator: "<", Years: 12}},
		{"<=2", AgeThreshold{Operator: "<=", Years: 2}},
		{"=40", AgeThreshold{Operator: "=", Years: 40}},
		{"70", AgeThreshold{Operator: ">", Years: 70}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			threshold, err := ParseAgeThreshold(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, threshold)
		})
	}
}

func TestParseAgeThreshold_Invalid(t *testing.T) {
	for _, expr := range []string{"", "old", ">", ">-5", "65+"} {
		_, err := ParseAgeThreshold(expr)
		assert.Error(t, err, "expected %q to be rejected", expr)
	}
}

func TestAgeThreshold_Matches(t *testing.T) {
	over := AgeThreshold{Operator: ">", Years: 65}
	assert.False(t, over.Matches(65))
	assert.True(t, over.Matches(66))

	atLeast := AgeThreshold{Operator: ">=", Years: 65}
	assert.True(t, atLeast.Matches(65))

	under := AgeThreshold{Operator: "<", Years: 18}
	assert.True(t, under.Matches(17))
	assert.False(t, under.Matches(18))
}

func TestParsePrecedencePolicy(t *testing.T) {
	policy, err := ParsePrecedencePolicy("")
	require.NoError(t, err)
	assert.Equal(t, LastMatchWins, policy)

	policy, err = ParsePrecedencePolicy("FirstMatchWins")
	require.NoError(t, err)
	assert.Equal(t, FirstMatchWins, policy)
	assert.Equal(t, "firstMatchWins", policy.String())

	_, err = ParsePrecedencePolicy("highest")
	assert.Error(t, err)
}

func TestRuleTable_AgeRuleUsesCompletedYears(t *testing.T) {
	table := NewRuleTable([]model.Rule{
		{ID: "r1", CriteriaType: model.CriteriaAge, CriteriaValue: ">65", Strategy: model.StrategySeniority, Priority: 1},
	}, LastMatchWins)

	runDate := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	turns66Tomorrow := newClaim("c1", "Medicare")
	turns66Tomorrow.DOB = time.Date(1960, 6, 16, 0, 0, 0, 0, time.UTC)
	_, ok := table.Evaluate(turns66Tomorrow, runDate)
	assert.False(t, ok)

	turned66Today := newClaim("c2", "Medicare")
	turned66Today.DOB = time.Date(1960, 6, 15, 0, 0, 0, 0, time.UTC)
	rule, ok := table.Evaluate(turned66Today, runDate)
	assert.True(t, ok)
	assert.Equal(t, "r1", rule.ID)
}

func TestRuleTable_PayerRuleIsExactMatch(t *testing.T) {
	table := NewRuleTable([]model.Rule{
		{ID: "r1", CriteriaType: model.CriteriaPayer, CriteriaValue: "Medicare", Strategy: model.StrategyAge, Priority: 1},
	}, LastMatchWins)

	_, ok := table.Evaluate(newClaim("c1", "medicare"), today)
	assert.False(t, ok)
	_, ok = table.Evaluate(newClaim("c2", "Medicare"), today)
	assert.True(t, ok)
}

func TestRuleTable_EqualPriorityKeepsInputOrder(t *testing.T) {
	rules := []model.Rule{
		{ID: "first", CriteriaType: model.CriteriaPayer, CriteriaValue: "Medicare", Strategy: model.StrategyAge, Priority: 3},
		{ID: "second", CriteriaType: model.CriteriaPayer, CriteriaValue: "Medicare", Strategy: model.StrategySeniority, Priority: 3},
	}

	rule, ok := NewRuleTable(rules, LastMatchWins).Evaluate(newClaim("c1", "Medicare"), today)
	require.True(t, ok)
	assert.Equal(t, "second", rule.ID)

	rule, ok = NewRuleTable(rules, FirstMatchWins).Evaluate(newClaim("c1", "Medicare"), today)
	require.True(t, ok)
	assert.Equal(t, "first", rule.ID)
}

func TestRuleTable_ExtremePrioritiesKeepOrder(t *testing.T) {
	rules := []model.Rule{
		{ID: "big", CriteriaType: model.CriteriaPayer, CriteriaValue: "Medicare", Strategy: model.StrategySeniority, Priority: math.MaxInt},
		{ID: "neg", CriteriaType: model.CriteriaPayer, CriteriaValue: "Medicare", Strategy: model.StrategyAge, Priority: -2},
	}

	rule, ok := NewRuleTable(rules, LastMatchWins).Evaluate(newClaim("c1", "Medicare"), today)
	require.True(t, ok)
	assert.Equal(t, "big", rule.ID)

	rule, ok = NewRuleTable(rules, FirstMatchWins).Evaluate(newClaim("c1", "Medicare"), today)
	require.True(t, ok)
	assert.Equal(t, "neg", rule.ID)
}

func TestRuleTable_SkipsInvalidRules(t *testing.T) {
	table := NewRuleTable([]model.Rule{
		{ID: "bad-age", CriteriaType: model.CriteriaAge, CriteriaValue: "elderly", Strategy: model.StrategyAge, Priority: 1},
		{ID: "bad-strategy", CriteriaType: model.CriteriaPayer, CriteriaValue: "Medicare", Strategy: "submitter", Priority: 2},
		{ID: "bad-type", CriteriaType: "state", CriteriaValue: "NY", Strategy: model.StrategyAge, Priority: 3},
		{ID: "good", CriteriaType: model.CriteriaPayer, CriteriaValue: "Medicare", Strategy: model.StrategyAge, Priority: 4},
	}, LastMatchWins)

	assert.Equal(t, []string{"bad-age", "bad-strategy", "bad-type"}, table.Skipped())
	rule, ok := table.Evaluate(newClaim("c1", "Medicare"), today)
	require.True(t, ok)
	assert.Equal(t, "good", rule.ID)
}
