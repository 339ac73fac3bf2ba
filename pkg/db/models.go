package db

// Member represents a database member record.
// Skills holds skill names ordered by name.
type Member struct {
	ID             string
	Name           string
	Username       string
	Role           string
	IsActive       bool
	MaxDailyClaims int
	Seniority      int
	AssignBy       string
	Skills         []string
}

// Skill represents a database skill (payer) record
type Skill struct {
	ID   string
	Name string
}

// Rule represents a database assignment rule record
type Rule struct {
	ID            string
	CriteriaType  string
	CriteriaValue string
	Strategy      string
	Priority      int
}

// Claim represents a database claim record.
// Dates are formatted 2006-01-02, CreatedAt is RFC3339 and Amount is a decimal string.
type Claim struct {
	ID                 string
	ClaimID            string
	PatientID          string
	PatientName        string
	CPTCodes           string
	ICD10Codes         string
	DOB                string
	DOS                string
	SubmissionDeadline string
	Priority           int
	Amount             string
	Payer              string
	Status             string
	AssignedToID       string
	CreatedAt          string
}

// Note represents a database note record
type Note struct {
	ID        string
	ClaimID   string
	MemberID  string
	Content   string
	Timestamp string
}
