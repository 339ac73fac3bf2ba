package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/claim-router/pkg/db"
)

const dateFormat = "2006-01-02"

const claimColumns = `id, claim_id, patient_id, patient_name, cpt_codes, icd10_codes, dob, dos,
	submission_deadline, priority, amount::text, payer, status, assigned_to_id, created_at`

func scanClaim(row pgx.Row) (db.Claim, error) {
	var c db.Claim
	var dob, dos, deadline, createdAt time.Time
	var assignedTo *string
	err := row.Scan(&c.ID, &c.ClaimID, &c.PatientID, &c.PatientName, &c.CPTCodes, &c.ICD10Codes,
		&dob, &dos, &deadline, &c.Priority, &c.Amount, &c.Payer, &c.Status, &assignedTo, &createdAt)
	if err != nil {
		return c, err
	}

	c.DOB = dob.Format(dateFormat)
	c.DOS = dos.Format(dateFormat)
	c.SubmissionDeadline = deadline.Format(dateFormat)
	c.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	if assignedTo != nil {
		c.AssignedToID = *assignedTo
	}
	return c, nil
}

func (d *DB) queryClaims(ctx context.Context, query string, args ...any) ([]db.Claim, error) {
	rows, err := d.pool.Query(ctx, query, args...)
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

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claims: %w", err)
	}

	return claims, nil
}

// GetClaims retrieves all claims, newest claim_id first
func (d *DB) GetClaims(ctx context.Context) ([]db.Claim, error) {
	return d.queryClaims(ctx, `SELECT `+claimColumns+` FROM claims ORDER BY claim_id DESC`)
}

// GetClaimsByAssignee retrieves a member's claims ordered by status then claim_id
func (d *DB) GetClaimsByAssignee(ctx context.Context, memberID string) ([]db.Claim, error) {
	return d.queryClaims(ctx, `
		SELECT `+claimColumns+` FROM claims
		WHERE assigned_to_id = $1
		ORDER BY status, claim_id
	`, memberID)
}

// GetClaim retrieves a single claim by record ID
func (d *DB) GetClaim(ctx context.Context, id string) (*db.Claim, error) {
	c, err := scanClaim(d.pool.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := d.pool.Query(ctx, `SELECT claim_id FROM claims WHERE claim_id = ANY($1) ORDER BY claim_id`, claimIDs)
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

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating existing claims: %w", err)
	}

	return existing, nil
}

// CountClaimsByAssigneeSince counts claims assigned to each member created at or after since
func (d *DB) CountClaimsByAssigneeSince(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT assigned_to_id, COUNT(*)
		FROM claims
		WHERE assigned_to_id IS NOT NULL AND created_at >= $1
		GROUP BY assigned_to_id
	`, since.UTC())
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

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claim counts: %w", err)
	}

	return counts, nil
}

// InsertClaims inserts claim records in a single transaction
func (d *DB) InsertClaims(ctx context.Context, claims []db.Claim) error {
	if len(claims) == 0 {
		return nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range claims {
		createdAt, err := time.Parse(time.RFC3339, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("invalid created_at for claim %s: %w", c.ClaimID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO claims (id, claim_id, patient_id, patient_name, cpt_codes, icd10_codes, dob, dos,
				submission_deadline, priority, amount, payer, status, assigned_to_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7::text::date, $8::text::date, $9::text::date, $10, $11::text::numeric,
				$12, $13, $14, $15)
		`, c.ID, c.ClaimID, c.PatientID, c.PatientName, c.CPTCodes, c.ICD10Codes, c.DOB, c.DOS,
			c.SubmissionDeadline, c.Priority, c.Amount, c.Payer, c.Status, nullable(c.AssignedToID), createdAt.UTC())
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: claim %s", db.ErrDuplicate, c.ClaimID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert claim %s: %w", c.ClaimID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateClaim sets a claim's status and appends a note in one transaction
func (d *DB) UpdateClaim(ctx context.Context, id string, status string, note *db.Note) error {
	var ts time.Time
	if note != nil {
		var err error
		if ts, err = time.Parse(time.RFC3339, note.Timestamp); err != nil {
			return fmt.Errorf("invalid note timestamp: %w", err)
		}
	}

	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		if status != "" {
			tag, err := tx.Exec(ctx, `UPDATE claims SET status = $2 WHERE id = $1`, id, status)
			if err != nil {
				return fmt.Errorf("failed to update claim status: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return db.ErrNotFound
			}
		}

		if note != nil {
			_, err := tx.Exec(ctx, `
				INSERT INTO notes (id, claim_id, member_id, content, timestamp)
				VALUES ($1, $2, $3, $4, $5)
			`, note.ID, id, note.MemberID, note.Content, ts.UTC())
			if err != nil {
				return fmt.Errorf("failed to insert note: %w", err)
			}
		}
		return nil
	})
}

// GetNotes retrieves the notes of the given claims, oldest first
func (d *DB) GetNotes(ctx context.Context, claimIDs []string) ([]db.Note, error) {
	notes := []db.Note{}
	if len(claimIDs) == 0 {
		return notes, nil
	}

	rows, err := d.pool.Query(ctx, `
		SELECT id, claim_id, member_id, content, timestamp
		FROM notes
		WHERE claim_id = ANY($1)
		ORDER BY timestamp, id
	`, claimIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n db.Note
		var ts time.Time
		if err := rows.Scan(&n.ID, &n.ClaimID, &n.MemberID, &n.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.Timestamp = ts.UTC().Format(time.RFC3339)
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return notes, nil
}
