package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/claim-router/pkg/db"
)

const memberQuery = `
	SELECT m.id, m.name, m.username, m.role, m.is_active, m.max_daily_claims, m.seniority, m.assign_by,
		COALESCE(array_agg(s.name ORDER BY s.name) FILTER (WHERE s.name IS NOT NULL), '{}') AS skills
	FROM members m
	LEFT JOIN member_skills ms ON ms.member_id = m.id
	LEFT JOIN skills s ON s.id = ms.skill_id
`

func scanMember(row pgx.Row) (db.Member, error) {
	var m db.Member
	err := row.Scan(&m.ID, &m.Name, &m.Username, &m.Role, &m.IsActive, &m.MaxDailyClaims, &m.Seniority, &m.AssignBy, &m.Skills)
	return m, err
}

// GetMembers retrieves all members ordered by name
func (d *DB) GetMembers(ctx context.Context) ([]db.Member, error) {
	rows, err := d.pool.Query(ctx, memberQuery+` GROUP BY m.id ORDER BY m.name, m.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := []db.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return members, nil
}

// GetMember retrieves a single member by ID
func (d *DB) GetMember(ctx context.Context, id string) (*db.Member, error) {
	m, err := scanMember(d.pool.QueryRow(ctx, memberQuery+` WHERE m.id = $1 GROUP BY m.id`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member %s: %w", id, err)
	}
	return &m, nil
}

// InsertMember inserts a member and links its skills, creating unknown skills by name
func (d *DB) InsertMember(ctx context.Context, member *db.Member) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO members (id, name, username, role, is_active, max_daily_claims, seniority, assign_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, member.ID, member.Name, member.Username, member.Role, member.IsActive, member.MaxDailyClaims, member.Seniority, member.AssignBy)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: username %s", db.ErrDuplicate, member.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}

	if err := setMemberSkills(ctx, tx, member.ID, member.Skills); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateMember updates a member's settings and replaces its skills
func (d *DB) UpdateMember(ctx context.Context, member *db.Member) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE members
		SET name = $2, role = $3, is_active = $4, max_daily_claims = $5, seniority = $6, assign_by = $7
		WHERE id = $1
	`, member.ID, member.Name, member.Role, member.IsActive, member.MaxDailyClaims, member.Seniority, member.AssignBy)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM member_skills WHERE member_id = $1`, member.ID); err != nil {
		return fmt.Errorf("failed to clear member skills: %w", err)
	}
	if err := setMemberSkills(ctx, tx, member.ID, member.Skills); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func setMemberSkills(ctx context.Context, tx pgx.Tx, memberID string, skills []string) error {
	for _, name := range skills {
		_, err := tx.Exec(ctx, `
			INSERT INTO skills (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
		`, uuid.New().String(), name)
		if err != nil {
			return fmt.Errorf("failed to insert skill %s: %w", name, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO member_skills (member_id, skill_id)
			SELECT $1, id FROM skills WHERE name = $2
			ON CONFLICT DO NOTHING
		`, memberID, name)
		if err != nil {
			return fmt.Errorf("failed to link skill %s: %w", name, err)
		}
	}
	return nil
}

// GetSkills retrieves all skills ordered by name
func (d *DB) GetSkills(ctx context.Context) ([]db.Skill, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, name FROM skills ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query skills: %w", err)
	}
	defer rows.Close()

	skills := []db.Skill{}
	for rows.Next() {
		var s db.Skill
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		skills = append(skills, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating skills: %w", err)
	}

	return skills, nil
}

// InsertSkill inserts a skill record
func (d *DB) InsertSkill(ctx context.Context, skill *db.Skill) error {
	_, err := d.pool.Exec(ctx, `INSERT INTO skills (id, name) VALUES ($1, $2)`, skill.ID, skill.Name)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: skill %s", db.ErrDuplicate, skill.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to insert skill: %w", err)
	}
	return nil
}
