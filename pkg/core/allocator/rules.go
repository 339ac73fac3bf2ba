package allocator

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jakechorley/claim-router/pkg/core/model"
)

// PrecedencePolicy decides which rule applies when several rules match the same claim
type PrecedencePolicy int

const (
	// LastMatchWins applies the matching rule evaluated last in ascending priority order,
	// i.e. the matching rule with the largest priority value. This is the historical
	// behaviour. It is probably not what rule authors expect and should be revisited.
	LastMatchWins PrecedencePolicy = iota

	// FirstMatchWins applies the matching rule with the smallest priority value
	FirstMatchWins
)

func (p PrecedencePolicy) String() string {
	if p == FirstMatchWins {
		return "firstMatchWins"
	}
	return "lastMatchWins"
}

// ParsePrecedencePolicy parses "lastMatchWins" or "firstMatchWins". Empty means LastMatchWins.
func ParsePrecedencePolicy(s string) (PrecedencePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lastmatchwins":
		return LastMatchWins, nil
	case "firstmatchwins":
		return FirstMatchWins, nil
	}
	return LastMatchWins, fmt.Errorf("unknown rule precedence %q", s)
}

// AgeThreshold is a parsed age criterion such as ">65"
type AgeThreshold struct {
	Operator string
	Years    int
}

// ParseAgeThreshold parses an age expression. Supported operators are >, >=, <, <= and =.
// A bare number means ">".
func ParseAgeThreshold(expr string) (AgeThreshold, error) {
	s := strings.ReplaceAll(strings.TrimSpace(expr), " ", "")
	operator := ">"
	for _, op := range []string{">=", "<=", ">", "<", "="} {
		if strings.HasPrefix(s, op) {
			operator = op
			s = strings.TrimPrefix(s, op)
			break
		}
	}

	years, err := strconv.Atoi(s)
	if err != nil {
		return AgeThreshold{}, fmt.Errorf("invalid age threshold %q: %w", expr, err)
	}
	if years < 0 {
		return AgeThreshold{}, fmt.Errorf("invalid age threshold %q: years must not be negative", expr)
	}

	return AgeThreshold{Operator: operator, Years: years}, nil
}

// Matches returns true if the age satisfies the threshold
func (t AgeThreshold) Matches(age int) bool {
	switch t.Operator {
	case ">=":
		return age >= t.Years
	case "<":
		return age < t.Years
	case "<=":
		return age <= t.Years
	case "=":
		return age == t.Years
	default:
		return age > t.Years
	}
}

// compiledRule is a rule with its criteria parsed once per run
type compiledRule struct {
	rule model.Rule
	age  AgeThreshold
}

// RuleTable evaluates claims against rules in ascending priority order
type RuleTable struct {
	rules   []compiledRule
	skipped []string
	policy  PrecedencePolicy
}

// NewRuleTable sorts the rules by priority (stable on input order) and parses their criteria.
// Rules with an unknown criteria type, an invalid strategy or an unparsable age threshold
// are skipped and reported by Skipped.
func NewRuleTable(rules []model.Rule, policy PrecedencePolicy) *RuleTable {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b model.Rule) int {
		return cmp.Compare(a.Priority, b.Priority)
	})

	table := &RuleTable{policy: policy}
	for _, rule := range sorted {
		if !rule.Strategy.IsValid() {
			table.skipped = append(table.skipped, rule.ID)
			continue
		}

		compiled := compiledRule{rule: rule}
		switch rule.CriteriaType {
		case model.CriteriaPayer:
		case model.CriteriaAge:
			threshold, err := ParseAgeThreshold(rule.CriteriaValue)
			if err != nil {
				table.skipped = append(table.skipped, rule.ID)
				continue
			}
			compiled.age = threshold
		default:
			table.skipped = append(table.skipped, rule.ID)
			continue
		}
		table.rules = append(table.rules, compiled)
	}

	return table
}

// Skipped returns the IDs of rules that could not be evaluated
func (t *RuleTable) Skipped() []string {
	return t.skipped
}

// Evaluate returns the rule that applies to the claim, if any
func (t *RuleTable) Evaluate(claim model.ClaimCandidate, today time.Time) (model.Rule, bool) {
	var matched model.Rule
	found := false

	for _, compiled := range t.rules {
		if !compiled.matches(claim, today) {
			continue
		}
		matched = compiled.rule
		found = true
		if t.policy == FirstMatchWins {
			break
		}
	}

	return matched, found
}

func (c compiledRule) matches(claim model.ClaimCandidate, today time.Time) bool {
	switch c.rule.CriteriaType {
	case model.CriteriaPayer:
		return claim.Payer == c.rule.CriteriaValue
	case model.CriteriaAge:
		return c.age.Matches(claim.AgeOn(today))
	}
	return false
}
