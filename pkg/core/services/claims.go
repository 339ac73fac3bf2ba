package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/pkg/core/model"
	"github.com/jakechorley/claim-router/pkg/db"
)

var (
	// ErrClaimNotFound is returned when a claim does not exist or is not assigned to the member
	ErrClaimNotFound = errors.New("claim not found or not assigned to you")

	// ErrInvalidClaimUpdate is returned when a claim update carries an unknown status
	ErrInvalidClaimUpdate = errors.New("invalid claim update")
)

// UnassignedLabel is shown as the assignee of a claim nobody holds
const UnassignedLabel = "Unassigned"

// ClaimListStore defines the database operations needed to list all claims
type ClaimListStore interface {
	GetClaims(ctx context.Context) ([]db.Claim, error)
	GetMembers(ctx context.Context) ([]db.Member, error)
}

// ClaimView is a claim with its assignee's name
type ClaimView struct {
	model.Claim
	Assignee string
}

// MemberClaim is a claim with its notes
type MemberClaim struct {
	model.Claim
	Notes []model.Note
}

// ClaimUpdate carries optional changes to a member's claim
type ClaimUpdate struct {
	Status *string
	Note   *string
}

// ListClaims returns every claim, newest claim ID first
func ListClaims(ctx context.Context, store ClaimListStore, logger *zap.Logger) ([]ClaimView, error) {
	recs, err := store.GetClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch claims: %w", err)
	}

	members, err := store.GetMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	views := make([]ClaimView, 0, len(recs))
	for _, rec := range recs {
		claim, err := claimFromRecord(rec)
		if err != nil {
			return nil, err
		}
		assignee := UnassignedLabel
		if name, ok := names[claim.AssignedToID]; ok {
			assignee = name
		}
		views = append(views, ClaimView{Claim: claim, Assignee: assignee})
	}

	logger.Debug("Fetched claims", zap.Int("count", len(views)))
	return views, nil
}

// ListMemberClaims returns a member's claims ordered by status then claim ID, with notes
func ListMemberClaims(ctx context.Context, store db.ClaimStore, logger *zap.Logger, memberID string) ([]MemberClaim, error) {
	recs, err := store.GetClaimsByAssignee(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch claims: %w", err)
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}

	noteRecs, err := store.GetNotes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notes: %w", err)
	}
	notesByClaim := make(map[string][]model.Note)
	for _, rec := range noteRecs {
		note, err := noteFromRecord(rec)
		if err != nil {
			return nil, err
		}
		notesByClaim[note.ClaimID] = append(notesByClaim[note.ClaimID], note)
	}

	claims := make([]MemberClaim, 0, len(recs))
	for _, rec := range recs {
		claim, err := claimFromRecord(rec)
		if err != nil {
			return nil, err
		}
		notes := notesByClaim[claim.ID]
		if notes == nil {
			notes = []model.Note{}
		}
		claims = append(claims, MemberClaim{Claim: claim, Notes: notes})
	}

	logger.Debug("Fetched member claims", zap.String("member_id", memberID), zap.Int("count", len(claims)))
	return claims, nil
}

// UpdateMemberClaim changes a claim's status and/or appends a note in one write. Only the
// assigned member may update a claim; anyone else gets ErrClaimNotFound.
func UpdateMemberClaim(
	ctx context.Context,
	store db.ClaimStore,
	logger *zap.Logger,
	memberID string,
	claimID string,
	update ClaimUpdate,
	now time.Time,
) error {
	rec, err := store.GetClaim(ctx, claimID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrClaimNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to fetch claim %s: %w", claimID, err)
	}
	if rec.AssignedToID != memberID {
		return ErrClaimNotFound
	}

	var status model.ClaimStatus
	if update.Status != nil {
		status, err = model.ParseClaimStatus(*update.Status)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidClaimUpdate, err)
		}
	}

	var note *db.Note
	if update.Note != nil && strings.TrimSpace(*update.Note) != "" {
		note = &db.Note{
			ID:        uuid.New().String(),
			ClaimID:   rec.ID,
			MemberID:  memberID,
			Content:   strings.TrimSpace(*update.Note),
			Timestamp: now.UTC().Format(time.RFC3339),
		}
	}

	if status == "" && note == nil {
		return nil
	}

	if err := store.UpdateClaim(ctx, rec.ID, string(status), note); err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}

	if status != "" {
		logger.Info("Updated claim status",
			zap.String("claim_id", rec.ClaimID),
			zap.String("from", rec.Status),
			zap.String("to", string(status)))
	}
	if note != nil {
		logger.Info("Added claim note", zap.String("claim_id", rec.ClaimID), zap.String("note_id", note.ID))
	}

	return nil
}
