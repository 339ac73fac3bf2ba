// Package workperiod works out the accounting period that member workload is counted over.
package workperiod

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultRule starts a new period every day at midnight
const DefaultRule = "FREQ=DAILY"

// anchor is midnight on Monday 1 January 2001. Periods start from it unless the rule
// sets its own DTSTART.
func anchor(loc *time.Location) time.Time {
	return time.Date(2001, time.January, 1, 0, 0, 0, 0, loc)
}

// Validate checks that the rule parses
func Validate(rule string) error {
	if _, err := parse(rule); err != nil {
		return err
	}
	return nil
}

// PeriodStart returns the start of the accounting period containing now: the latest
// occurrence of the rule at or before now.
func PeriodStart(rule string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	r, err := parse(rule)
	if err != nil {
		return time.Time{}, err
	}

	if !strings.Contains(strings.ToUpper(rule), "DTSTART") {
		r.DTStart(anchor(loc))
	}

	start := r.Before(now.In(loc), true)
	if start.IsZero() {
		return time.Time{}, fmt.Errorf("workload period rule %q has no occurrence before %s", rule, now.Format(time.RFC3339))
	}

	return start, nil
}

func parse(rule string) (*rrule.RRule, error) {
	if strings.TrimSpace(rule) == "" {
		rule = DefaultRule
	}
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("invalid workload period rule %q: %w", rule, err)
	}
	return r, nil
}
