package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/claim-router/pkg/db"
)

// GetRules retrieves all rules ordered by priority. Equal priorities keep creation order.
func (d *DB) GetRules(ctx context.Context) ([]db.Rule, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, criteria_type, criteria_value, strategy, priority
		FROM rules
		ORDER BY priority, seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	rules := []db.Rule{}
	for rows.Next() {
		var r db.Rule
		if err := rows.Scan(&r.ID, &r.CriteriaType, &r.CriteriaValue, &r.Strategy, &r.Priority); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// GetRule retrieves a single rule by ID
func (d *DB) GetRule(ctx context.Context, id string) (*db.Rule, error) {
	var r db.Rule
	err := d.pool.QueryRow(ctx, `
		SELECT id, criteria_type, criteria_value, strategy, priority
		FROM rules WHERE id = $1
	`, id).Scan(&r.ID, &r.CriteriaType, &r.CriteriaValue, &r.Strategy, &r.Priority)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule %s: %w", id, err)
	}
	return &r, nil
}

// InsertRule inserts a rule record
func (d *DB) InsertRule(ctx context.Context, rule *db.Rule) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO rules (id, criteria_type, criteria_value, strategy, priority)
		VALUES ($1, $2, $3, $4, $5)
	`, rule.ID, rule.CriteriaType, rule.CriteriaValue, rule.Strategy, rule.Priority)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// UpdateRule replaces a rule's criteria, strategy and priority
func (d *DB) UpdateRule(ctx context.Context, rule *db.Rule) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE rules SET criteria_type = $2, criteria_value = $3, strategy = $4, priority = $5
		WHERE id = $1
	`, rule.ID, rule.CriteriaType, rule.CriteriaValue, rule.Strategy, rule.Priority)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// DeleteRule deletes a rule
func (d *DB) DeleteRule(ctx context.Context, id string) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}
