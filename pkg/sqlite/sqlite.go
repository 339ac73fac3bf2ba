// Package sqlite is a single-file implementation of the claim router storage for local use.
// The schema is created on Open and the database runs in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/jakechorley/claim-router/pkg/db"
)

// timestampFormat is fixed width so stored timestamps compare correctly as text
const timestampFormat = "2006-01-02T15:04:05Z"

// DB implements db.Database on SQLite
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

var _ db.Database = (*DB)(nil)

// Open opens or creates the database at path. Use ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	}

	d := &DB{conn: conn}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return d, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		username TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'Biller',
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		max_daily_claims INTEGER NOT NULL DEFAULT 0 CHECK (max_daily_claims >= 0),
		seniority INTEGER NOT NULL DEFAULT 0,
		assign_by TEXT NOT NULL DEFAULT 'payer'
	);

	CREATE TABLE IF NOT EXISTS skills (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS member_skills (
		member_id TEXT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
		skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
		PRIMARY KEY (member_id, skill_id)
	);

	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		criteria_type TEXT NOT NULL,
		criteria_value TEXT NOT NULL,
		strategy TEXT NOT NULL,
		priority INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS claims (
		id TEXT PRIMARY KEY,
		claim_id TEXT NOT NULL UNIQUE,
		patient_id TEXT NOT NULL,
		patient_name TEXT NOT NULL DEFAULT '',
		cpt_codes TEXT NOT NULL DEFAULT '',
		icd10_codes TEXT NOT NULL DEFAULT '',
		dob TEXT NOT NULL,
		dos TEXT NOT NULL,
		submission_deadline TEXT NOT NULL,
		priority INTEGER NOT NULL,
		amount TEXT NOT NULL,
		payer TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'NEW',
		assigned_to_id TEXT REFERENCES members(id),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_claims_assignee_created
		ON claims(assigned_to_id, created_at);

	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		claim_id TEXT NOT NULL REFERENCES claims(id) ON DELETE CASCADE,
		member_id TEXT NOT NULL REFERENCES members(id),
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notes_claim
		ON notes(claim_id, timestamp);
	`

	_, err := d.conn.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// normalizeTimestamp converts an RFC3339 timestamp to the stored UTC format
func normalizeTimestamp(value string) (string, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(timestampFormat), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// =============================================================================
// MEMBERS & SKILLS
// =============================================================================

// GetMembers returns all members ordered by name
func (d *DB) GetMembers(ctx context.Context) ([]db.Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, name, username, role, is_active, max_daily_claims, seniority, assign_by
		FROM members ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := []db.Member{}
	for rows.Next() {
		var m db.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Username, &m.Role, &m.IsActive, &m.MaxDailyClaims, &m.Seniority, &m.AssignBy); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Skills = []string{}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	skills, err := d.memberSkills(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if s, ok := skills[members[i].ID]; ok {
			members[i].Skills = s
		}
	}

	return members, nil
}

func (d *DB) memberSkills(ctx context.Context) (map[string][]string, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT ms.member_id, s.name
		FROM member_skills ms JOIN skills s ON s.id = ms.skill_id
		ORDER BY s.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query member skills: %w", err)
	}
	defer rows.Close()

	skills := make(map[string][]string)
	for rows.Next() {
		var memberID, name string
		if err := rows.Scan(&memberID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan member skill: %w", err)
		}
		skills[memberID] = append(skills[memberID], name)
	}
	return skills, rows.Err()
}

// GetMember returns a single member by ID
func (d *DB) GetMember(ctx context.Context, id string) (*db.Member, error) {
	members, err := d.GetMembers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].ID == id {
			return &members[i], nil
		}
	}
	return nil, db.ErrNotFound
}

// InsertMember inserts a member and links its skills, creating unknown skills by name
func (d *DB) InsertMember(ctx context.Context, member *db.Member) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO members (id, name, username, role, is_active, max_daily_claims, seniority, assign_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, member.ID, member.Name, member.Username, member.Role, member.IsActive, member.MaxDailyClaims, member.Seniority, member.AssignBy)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: username %s", db.ErrDuplicate, member.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}

	if err := setMemberSkills(ctx, tx, member.ID, member.Skills); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateMember updates a member's settings and replaces its skills
func (d *DB) UpdateMember(ctx context.Context, member *db.Member) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE members
		SET name = ?, role = ?, is_active = ?, max_daily_claims = ?, seniority = ?, assign_by = ?
		WHERE id = ?
	`, member.Name, member.Role, member.IsActive, member.MaxDailyClaims, member.Seniority, member.AssignBy, member.ID)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM member_skills WHERE member_id = ?`, member.ID); err != nil {
		return fmt.Errorf("failed to clear member skills: %w", err)
	}
	if err := setMemberSkills(ctx, tx, member.ID, member.Skills); err != nil {
		return err
	}

	return tx.Commit()
}

func setMemberSkills(ctx context.Context, tx execer, memberID string, skills []string) error {
	for _, name := range skills {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO skills (id, name) VALUES (?, ?)`, uuid.New().String(), name); err != nil {
			return fmt.Errorf("failed to insert skill %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO member_skills (member_id, skill_id)
			SELECT ?, id FROM skills WHERE name = ?
		`, memberID, name); err != nil {
			return fmt.Errorf("failed to link skill %s: %w", name, err)
		}
	}
	return nil
}

// GetSkills returns all skills ordered by name
func (d *DB) GetSkills(ctx context.Context) ([]db.Skill, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.conn.QueryContext(ctx, `SELECT id, name FROM skills ORDER BY name`)
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
	return skills, rows.Err()
}

// InsertSkill inserts a skill
func (d *DB) InsertSkill(ctx context.Context, skill *db.Skill) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.conn.ExecContext(ctx, `INSERT INTO skills (id, name) VALUES (?, ?)`, skill.ID, skill.Name)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: skill %s", db.ErrDuplicate, skill.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to insert skill: %w", err)
	}
	return nil
}

// =============================================================================
// RULES
// =============================================================================

// GetRules returns all rules ordered by priority, equal priorities in creation order
func (d *DB) GetRules(ctx context.Context) ([]db.Rule, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, criteria_type, criteria_value, strategy, priority
		FROM rules ORDER BY priority, rowid
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
	return rules, rows.Err()
}

// GetRule returns a single rule by ID
func (d *DB) GetRule(ctx context.Context, id string) (*db.Rule, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var r db.Rule
	err := d.conn.QueryRowContext(ctx, `
		SELECT id, criteria_type, criteria_value, strategy, priority FROM rules WHERE id = ?
	`, id).Scan(&r.ID, &r.CriteriaType, &r.CriteriaValue, &r.Strategy, &r.Priority)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule %s: %w", id, err)
	}
	return &r, nil
}

// InsertRule inserts a rule
func (d *DB) InsertRule(ctx context.Context, rule *db.Rule) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO rules (id, criteria_type, criteria_value, strategy, priority) VALUES (?, ?, ?, ?, ?)
	`, rule.ID, rule.CriteriaType, rule.CriteriaValue, rule.Strategy, rule.Priority)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// UpdateRule replaces a rule's criteria, strategy and priority
func (d *DB) UpdateRule(ctx context.Context, rule *db.Rule) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	result, err := d.conn.ExecContext(ctx, `
		UPDATE rules SET criteria_type = ?, criteria_value = ?, strategy = ?, priority = ? WHERE id = ?
	`, rule.CriteriaType, rule.CriteriaValue, rule.Strategy, rule.Priority, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return checkAffected(result)
}

// DeleteRule deletes a rule
func (d *DB) DeleteRule(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	result, err := d.conn.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return checkAffected(result)
}

// =============================================================================
// CLAIMS & NOTES
// =============================================================================

const claimColumns = `id, claim_id, patient_id, patient_name, cpt_codes, icd10_codes, dob, dos,
	submission_deadline, priority, amount, payer, status, assigned_to_id, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(row scanner) (db.Claim, error) {
	var c db.Claim
	var assignedTo sql.NullString
	err := row.Scan(&c.ID, &c.ClaimID, &c.PatientID, &c.PatientName, &c.CPTCodes, &c.ICD10Codes,
		&c.DOB, &c.DOS, &c.SubmissionDeadline, &c.Priority, &c.Amount, &c.Payer, &c.Status, &assignedTo, &c.CreatedAt)
	c.AssignedToID = assignedTo.String
	return c, err
}

func (d *DB) queryClaims(ctx context.Context, query string, args ...any) ([]db.Claim, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	claims := []db.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// GetClaims returns all claims, newest claim_id first
func (d *DB) GetClaims(ctx context.Context) ([]db.Claim, error) {
	return d.queryClaims(ctx, `SELECT `+claimColumns+` FROM claims ORDER BY claim_id DESC`)
}

// GetClaimsByAssignee returns a member's claims ordered by status then claim_id
func (d *DB) GetClaimsByAssignee(ctx context.Context, memberID string) ([]db.Claim, error) {
	return d.queryClaims(ctx, `SELECT `+claimColumns+` FROM claims WHERE assigned_to_id = ? ORDER BY status, claim_id`, memberID)
}

// GetClaim returns a single claim by record ID
func (d *DB) GetClaim(ctx context.Context, id string) (*db.Claim, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, err := scanClaim(d.conn.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim %s: %w", id, err)
	}
	return &c, nil
}

// FindExistingClaimIDs returns the subset of claim IDs already stored
func (d *DB) FindExistingClaimIDs(ctx context.Context, claimIDs []string) ([]string, error) {
	existing := []string{}
	if len(claimIDs) == 0 {
		return existing, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.conn.QueryContext(ctx,
		`SELECT claim_id FROM claims WHERE claim_id IN (`+placeholders(len(claimIDs))+`) ORDER BY claim_id`,
		toArgs(claimIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing claims: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan claim id: %w", err)
		}
		existing = append(existing, id)
	}
	return existing, rows.Err()
}

// CountClaimsByAssigneeSince counts claims assigned to each member created at or after since
func (d *DB) CountClaimsByAssigneeSince(ctx context.Context, since time.Time) (map[string]int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT assigned_to_id, COUNT(*) FROM claims
		WHERE assigned_to_id IS NOT NULL AND created_at >= ?
		GROUP BY assigned_to_id
	`, since.UTC().Format(timestampFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to count claims: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var memberID string
		var count int
		if err := rows.Scan(&memberID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan claim count: %w", err)
		}
		counts[memberID] = count
	}
	return counts, rows.Err()
}

// InsertClaims inserts claim records atomically
func (d *DB) InsertClaims(ctx context.Context, claims []db.Claim) error {
	if len(claims) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range claims {
		createdAt, err := normalizeTimestamp(c.CreatedAt)
		if err != nil {
			return fmt.Errorf("invalid created_at for claim %s: %w", c.ClaimID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO claims (`+claimColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.ClaimID, c.PatientID, c.PatientName, c.CPTCodes, c.ICD10Codes, c.DOB, c.DOS,
			c.SubmissionDeadline, c.Priority, c.Amount, c.Payer, c.Status, nullString(c.AssignedToID), createdAt)
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: claim %s", db.ErrDuplicate, c.ClaimID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert claim %s: %w", c.ClaimID, err)
		}
	}

	return tx.Commit()
}

// UpdateClaim sets a claim's status and appends a note in one transaction
func (d *DB) UpdateClaim(ctx context.Context, id string, status string, note *db.Note) error {
	var ts string
	if note != nil {
		var err error
		if ts, err = normalizeTimestamp(note.Timestamp); err != nil {
			return fmt.Errorf("invalid note timestamp: %w", err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if status != "" {
		result, err := tx.ExecContext(ctx, `UPDATE claims SET status = ? WHERE id = ?`, status, id)
		if err != nil {
			return fmt.Errorf("failed to update claim status: %w", err)
		}
		if err := checkAffected(result); err != nil {
			return err
		}
	}

	if note != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notes (id, claim_id, member_id, content, timestamp) VALUES (?, ?, ?, ?, ?)
		`, note.ID, id, note.MemberID, note.Content, ts)
		if err != nil {
			return fmt.Errorf("failed to insert note: %w", err)
		}
	}

	return tx.Commit()
}

// GetNotes returns the notes of the given claims, oldest first
func (d *DB) GetNotes(ctx context.Context, claimIDs []string) ([]db.Note, error) {
	notes := []db.Note{}
	if len(claimIDs) == 0 {
		return notes, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, claim_id, member_id, content, timestamp FROM notes
		WHERE claim_id IN (`+placeholders(len(claimIDs))+`)
		ORDER BY timestamp, rowid
	`, toArgs(claimIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n db.Note
		if err := rows.Scan(&n.ID, &n.ClaimID, &n.MemberID, &n.Content, &n.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
