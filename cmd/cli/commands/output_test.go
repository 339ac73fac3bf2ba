package commands

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/claim-router/pkg/core/allocator"
	"github.com/jakechorley/claim-router/pkg/core/ingest"
)

func TestPlannedPerMember(t *testing.T) {
	planned := []allocator.PlannedClaim{
		{MemberName: "Bob"},
		{MemberName: "Alice"},
		{MemberName: "Carol"},
		{MemberName: "Bob"},
		{MemberName: "Alice"},
	}

	loads := plannedPerMember(planned)

	assert.Equal(t, []memberLoad{
		{Name: "Alice", Count: 2},
		{Name: "Bob", Count: 2},
		{Name: "Carol", Count: 1},
	}, loads)
}

func TestPlannedPerMember_Empty(t *testing.T) {
	assert.Empty(t, plannedPerMember(nil))
}

func TestPrintValidationError_ListsRowErrors(t *testing.T) {
	var buf bytes.Buffer
	err := printValidationError(&buf, &ingest.ValidationError{
		Message: "Validation failed with 2 errors.",
		Errors:  []string{"Row 2: Missing payer.", "Row 3: Invalid amount."},
	})

	require.Error(t, err)
	assert.Equal(t, "claims file is invalid", err.Error())
	assert.Contains(t, buf.String(), "Validation failed with 2 errors.")
	assert.Contains(t, buf.String(), "  - Row 2: Missing payer.")
	assert.Contains(t, buf.String(), "  - Row 3: Invalid amount.")
}

func TestPrintValidationError_PassesOtherErrorsThrough(t *testing.T) {
	var buf bytes.Buffer
	orig := errors.New("disk full")

	err := printValidationError(&buf, orig)

	assert.Same(t, orig, err)
	assert.Empty(t, buf.String())
}

func TestPrintExecution_ShowsSkipped(t *testing.T) {
	var buf bytes.Buffer
	printExecution(&buf, &allocator.ExecutionResult{
		CreatedCount: 1,
		Skipped:      []allocator.SkippedEntry{{ClaimID: "CLM-2", MemberName: "Gone", Reason: `member "Gone" no longer exists`}},
	})

	assert.Contains(t, buf.String(), "Successfully assigned and created 1 claims.")
	assert.Contains(t, buf.String(), "Skipped 1 claims")
	assert.Contains(t, buf.String(), "CLM-2")
}
