package ingest

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jakechorley/claim-router/pkg/core/model"
)

// RequiredHeaders are the columns every claims file must have
var RequiredHeaders = []string{
	"claim_id",
	"patient_id",
	"patient_name",
	"status",
	"payer",
	"cpt_codes",
	"icd10_codes",
	"priority",
	"amount",
	"dob",
	"dos",
	"submission_deadline",
}

// Columns are checked in this order so errors come out grouped by kind
var (
	dateColumns    = []string{"dob", "dos", "submission_deadline"}
	stringColumns  = []string{"claim_id", "patient_id", "patient_name", "payer", "cpt_codes", "icd10_codes"}
	numericColumns = []string{"priority", "amount"}
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"01-02-06",
	"1/2/06",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// Table is a header row plus data rows as read from a file or sheet
type Table struct {
	Header []string
	Rows   [][]string
}

// ValidationError reports every problem found in a claims file
type ValidationError struct {
	Message string
	Errors  []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Message, strings.Join(e.Errors, " "))
}

// rawClaim is one trimmed row. The csv tag names the column.
type rawClaim struct {
	ClaimID            string `csv:"claim_id" validate:"required"`
	PatientID          string `csv:"patient_id" validate:"required"`
	PatientName        string `csv:"patient_name" validate:"required"`
	Status             string `csv:"status"`
	Payer              string `csv:"payer" validate:"required"`
	CPTCodes           string `csv:"cpt_codes" validate:"required"`
	ICD10Codes         string `csv:"icd10_codes" validate:"required"`
	Priority           string `csv:"priority" validate:"required"`
	Amount             string `csv:"amount" validate:"required"`
	DOB                string `csv:"dob" validate:"required"`
	DOS                string `csv:"dos" validate:"required"`
	SubmissionDeadline string `csv:"submission_deadline" validate:"required"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("csv")
	})
}

// ParseRows validates a claims table and converts it to candidates.
// Every violation in the file is collected and returned together in a *ValidationError;
// no candidates are returned unless the whole file is valid.
func ParseRows(table Table) ([]model.ClaimCandidate, error) {
	index := make(map[string]int, len(table.Header))
	for i, h := range table.Header {
		name := normalizeHeader(h)
		if _, exists := index[name]; !exists {
			index[name] = i
		}
	}

	missing := []string{}
	for _, h := range RequiredHeaders {
		if _, ok := index[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{
			Message: fmt.Sprintf("File is missing required headers (%s).", strings.Join(missing, ", ")),
		}
	}

	raws := make([]rawClaim, 0, len(table.Rows))
	for _, row := range table.Rows {
		if isBlankRow(row) {
			continue
		}
		raws = append(raws, toRawClaim(row, index))
	}

	empty := emptyColumns(raws)
	failed := make(map[string]bool)
	problems := []string{}

	report := func(column, problem string) {
		failed[column] = true
		problems = append(problems, fmt.Sprintf("Column '%s' %s.", column, problem))
	}

	for _, column := range dateColumns {
		if empty[column] {
			report(column, "contains empty values")
			continue
		}
		for _, raw := range raws {
			if _, err := ParseDate(raw.field(column)); err != nil {
				report(column, "has invalid date formats")
				break
			}
		}
	}

	for _, column := range stringColumns {
		if empty[column] {
			report(column, "contains empty values")
		}
	}

	for _, column := range numericColumns {
		if empty[column] {
			report(column, "contains empty values")
			continue
		}
		for _, raw := range raws {
			if _, err := decimal.NewFromString(raw.field(column)); err != nil {
				report(column, "has non-numeric values")
				break
			}
			if column == "priority" {
				if _, err := parsePriority(raw.Priority); err != nil {
					if errors.Is(err, errPriorityRange) {
						report(column, "has values out of range")
					} else {
						report(column, "has non-integer values")
					}
					break
				}
			}
		}
	}

	if !failed["claim_id"] {
		if duplicates := duplicateClaimIDs(raws); len(duplicates) > 0 {
			report("claim_id", fmt.Sprintf("contains duplicate values (%s)", strings.Join(duplicates, ", ")))
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Message: "File contains invalid data.", Errors: problems}
	}

	candidates := make([]model.ClaimCandidate, 0, len(raws))
	for _, raw := range raws {
		candidate, err := raw.toCandidate()
		if err != nil {
			return nil, fmt.Errorf("failed to convert claim %s: %w", raw.ClaimID, err)
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// ParseDate parses a date in any of the accepted layouts
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

var (
	errPriorityNotInteger = errors.New("priority is not a whole number")
	errPriorityRange      = errors.New("priority is out of range")

	minPriority = decimal.NewFromInt(math.MinInt)
	maxPriority = decimal.NewFromInt(math.MaxInt)
)

// parsePriority accepts integers and whole decimals such as "3.0" from spreadsheets
func parsePriority(value string) (int, error) {
	if p, err := strconv.Atoi(value); err == nil {
		return p, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %q", errPriorityNotInteger, value)
	}
	if d.LessThan(minPriority) || d.GreaterThan(maxPriority) {
		return 0, fmt.Errorf("%w: %q", errPriorityRange, value)
	}
	return int(d.IntPart()), nil
}

func (r rawClaim) toCandidate() (model.ClaimCandidate, error) {
	dob, err := ParseDate(r.DOB)
	if err != nil {
		return model.ClaimCandidate{}, err
	}
	dos, err := ParseDate(r.DOS)
	if err != nil {
		return model.ClaimCandidate{}, err
	}
	deadline, err := ParseDate(r.SubmissionDeadline)
	if err != nil {
		return model.ClaimCandidate{}, err
	}
	priority, err := parsePriority(r.Priority)
	if err != nil {
		return model.ClaimCandidate{}, err
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return model.ClaimCandidate{}, err
	}

	return model.ClaimCandidate{
		ClaimID:            r.ClaimID,
		PatientID:          r.PatientID,
		PatientName:        r.PatientName,
		CPTCodes:           r.CPTCodes,
		ICD10Codes:         r.ICD10Codes,
		DOB:                dob,
		DOS:                dos,
		SubmissionDeadline: deadline,
		Priority:           priority,
		Amount:             amount,
		Payer:              r.Payer,
		UploadStatus:       r.Status,
	}, nil
}

func (r rawClaim) field(column string) string {
	switch column {
	case "claim_id":
		return r.ClaimID
	case "patient_id":
		return r.PatientID
	case "patient_name":
		return r.PatientName
	case "status":
		return r.Status
	case "payer":
		return r.Payer
	case "cpt_codes":
		return r.CPTCodes
	case "icd10_codes":
		return r.ICD10Codes
	case "priority":
		return r.Priority
	case "amount":
		return r.Amount
	case "dob":
		return r.DOB
	case "dos":
		return r.DOS
	case "submission_deadline":
		return r.SubmissionDeadline
	}
	return ""
}

func toRawClaim(row []string, index map[string]int) rawClaim {
	cell := func(column string) string {
		i := index[column]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	return rawClaim{
		ClaimID:            cell("claim_id"),
		PatientID:          cell("patient_id"),
		PatientName:        cell("patient_name"),
		Status:             cell("status"),
		Payer:              cell("payer"),
		CPTCodes:           cell("cpt_codes"),
		ICD10Codes:         cell("icd10_codes"),
		Priority:           cell("priority"),
		Amount:             cell("amount"),
		DOB:                cell("dob"),
		DOS:                cell("dos"),
		SubmissionDeadline: cell("submission_deadline"),
	}
}

// emptyColumns returns the columns that have at least one empty required value
func emptyColumns(raws []rawClaim) map[string]bool {
	empty := make(map[string]bool)
	for _, raw := range raws {
		err := validate.Struct(raw)
		if err == nil {
			continue
		}
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrors {
				empty[fe.Field()] = true
			}
		}
	}
	return empty
}

func duplicateClaimIDs(raws []rawClaim) []string {
	counts := make(map[string]int)
	duplicates := []string{}
	for _, raw := range raws {
		counts[raw.ClaimID]++
		if counts[raw.ClaimID] == 2 {
			duplicates = append(duplicates, raw.ClaimID)
		}
	}
	return duplicates
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

func isBlankRow(row []string) bool {
	return !slices.ContainsFunc(row, func(cell string) bool {
		return strings.TrimSpace(cell) != ""
	})
}
