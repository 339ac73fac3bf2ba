package services

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/jakechorley/claim-router/pkg/db"
)

// mockStore is an in-memory db.Database for service tests
type mockStore struct {
	members []db.Member
	skills  []db.Skill
	rules   []db.Rule
	claims  []db.Claim
	notes   []db.Note

	workload    map[string]int
	workloadArg time.Time

	getMembersErr   error
	insertClaimsErr error
	updateClaimErr  error
}

func (m *mockStore) GetMembers(ctx context.Context) ([]db.Member, error) {
	if m.getMembersErr != nil {
		return nil, m.getMembersErr
	}
	return m.members, nil
}

func (m *mockStore) GetMember(ctx context.Context, id string) (*db.Member, error) {
	for i := range m.members {
		if m.members[i].ID == id {
			member := m.members[i]
			return &member, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockStore) InsertMember(ctx context.Context, member *db.Member) error {
	m.members = append(m.members, *member)
	return nil
}

func (m *mockStore) UpdateMember(ctx context.Context, member *db.Member) error {
	for i := range m.members {
		if m.members[i].ID == member.ID {
			m.members[i] = *member
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *mockStore) GetSkills(ctx context.Context) ([]db.Skill, error) {
	return m.skills, nil
}

func (m *mockStore) InsertSkill(ctx context.Context, skill *db.Skill) error {
	for _, s := range m.skills {
		if s.Name == skill.Name {
			return db.ErrDuplicate
		}
	}
	m.skills = append(m.skills, *skill)
	return nil
}

func (m *mockStore) GetRules(ctx context.Context) ([]db.Rule, error) {
	return m.rules, nil
}

func (m *mockStore) GetRule(ctx context.Context, id string) (*db.Rule, error) {
	for i := range m.rules {
		if m.rules[i].ID == id {
			rule := m.rules[i]
			return &rule, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockStore) InsertRule(ctx context.Context, rule *db.Rule) error {
	m.rules = append(m.rules, *rule)
	return nil
}

func (m *mockStore) UpdateRule(ctx context.Context, rule *db.Rule) error {
	for i := range m.rules {
		if m.rules[i].ID == rule.ID {
			m.rules[i] = *rule
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *mockStore) DeleteRule(ctx context.Context, id string) error {
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules = slices.Delete(m.rules, i, i+1)
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *mockStore) GetClaims(ctx context.Context) ([]db.Claim, error) {
	claims := slices.Clone(m.claims)
	slices.SortFunc(claims, func(a, b db.Claim) int { return strings.Compare(b.ClaimID, a.ClaimID) })
	return claims, nil
}

func (m *mockStore) GetClaimsByAssignee(ctx context.Context, memberID string) ([]db.Claim, error) {
	var claims []db.Claim
	for _, c := range m.claims {
		if c.AssignedToID == memberID {
			claims = append(claims, c)
		}
	}
	slices.SortFunc(claims, func(a, b db.Claim) int {
		if s := strings.Compare(a.Status, b.Status); s != 0 {
			return s
		}
		return strings.Compare(a.ClaimID, b.ClaimID)
	})
	return claims, nil
}

func (m *mockStore) GetClaim(ctx context.Context, id string) (*db.Claim, error) {
	for i := range m.claims {
		if m.claims[i].ID == id {
			claim := m.claims[i]
			return &claim, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockStore) FindExistingClaimIDs(ctx context.Context, claimIDs []string) ([]string, error) {
	var found []string
	for _, c := range m.claims {
		if slices.Contains(claimIDs, c.ClaimID) {
			found = append(found, c.ClaimID)
		}
	}
	return found, nil
}

func (m *mockStore) CountClaimsByAssigneeSince(ctx context.Context, since time.Time) (map[string]int, error) {
	m.workloadArg = since
	if m.workload == nil {
		return map[string]int{}, nil
	}
	return m.workload, nil
}

func (m *mockStore) InsertClaims(ctx context.Context, claims []db.Claim) error {
	if m.insertClaimsErr != nil {
		return m.insertClaimsErr
	}
	m.claims = append(m.claims, claims...)
	return nil
}

func (m *mockStore) UpdateClaim(ctx context.Context, id string, status string, note *db.Note) error {
	if m.updateClaimErr != nil {
		return m.updateClaimErr
	}
	for i := range m.claims {
		if m.claims[i].ID != id {
			continue
		}
		if status != "" {
			m.claims[i].Status = status
		}
		if note != nil {
			m.notes = append(m.notes, *note)
		}
		return nil
	}
	return db.ErrNotFound
}

func (m *mockStore) GetNotes(ctx context.Context, claimIDs []string) ([]db.Note, error) {
	var notes []db.Note
	for _, n := range m.notes {
		if slices.Contains(claimIDs, n.ClaimID) {
			notes = append(notes, n)
		}
	}
	return notes, nil
}

func (m *mockStore) Close() error {
	return nil
}

var _ db.Database = (*mockStore)(nil)

func memberRecord(id, name, assignBy string, capacity int, skills ...string) db.Member {
	return db.Member{
		ID:             id,
		Name:           name,
		Username:       strings.ToLower(name),
		Role:           "Biller",
		IsActive:       true,
		MaxDailyClaims: capacity,
		AssignBy:       assignBy,
		Skills:         skills,
	}
}

func claimRecord(id, claimID, assignee, status string) db.Claim {
	return db.Claim{
		ID:                 id,
		ClaimID:            claimID,
		PatientID:          "P-" + claimID,
		PatientName:        "Patient " + claimID,
		DOB:                "1950-01-01",
		DOS:                "2026-10-01",
		SubmissionDeadline: "2026-11-01",
		Priority:           1,
		Amount:             "100.00",
		Payer:              "Medicare",
		Status:             status,
		AssignedToID:       assignee,
		CreatedAt:          "2026-10-19T09:00:00Z",
	}
}
