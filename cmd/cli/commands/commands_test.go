package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/internal/config"
	"github.com/jakechorley/claim-router/pkg/sqlite"
)

func newTestApp(t *testing.T) *AppContext {
	t.Helper()

	database, err := sqlite.Open(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return &AppContext{
		Env:      "test",
		Cfg:      &config.Config{},
		Database: database,
		Logger:   zap.NewNop(),
		Ctx:      context.Background(),
		Now:      func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) },
	}
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRulesCmd_AddListDelete(t *testing.T) {
	app := newTestApp(t)

	out, err := run(t, RulesCmd(app), "add", "payer", "Aetna", "seniority", "--priority", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Rule created")

	out, err = run(t, RulesCmd(app), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 rules")
	assert.Contains(t, out, "Aetna")

	rules, err := app.Database.GetRules(app.Ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 2, rules[0].Priority)

	_, err = run(t, RulesCmd(app), "delete", rules[0].ID)
	require.NoError(t, err)

	rules, err = app.Database.GetRules(app.Ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRulesCmd_RejectsUnknownStrategy(t *testing.T) {
	app := newTestApp(t)

	_, err := run(t, RulesCmd(app), "add", "payer", "Aetna", "fastest")

	require.Error(t, err)
}

func TestMembersCmd_AddAndUpdate(t *testing.T) {
	app := newTestApp(t)

	_, err := run(t, SkillsCmd(app), "add", "Aetna")
	require.NoError(t, err)

	out, err := run(t, MembersCmd(app), "add", "Alice", "alice", "--max-claims", "5", "--skills", "Aetna")
	require.NoError(t, err)
	assert.Contains(t, out, "Member created: Alice")

	members, err := app.Database.GetMembers(app.Ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, members[0].IsActive)
	assert.Equal(t, 5, members[0].MaxDailyClaims)

	_, err = run(t, MembersCmd(app), "update", members[0].ID, "--active=false", "--seniority", "3")
	require.NoError(t, err)

	updated, err := app.Database.GetMember(app.Ctx, members[0].ID)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 3, updated.Seniority)
	assert.Equal(t, 5, updated.MaxDailyClaims)
	assert.Equal(t, []string{"Aetna"}, updated.Skills)

	out, err = run(t, MembersCmd(app), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "inactive")
}

func TestClaimsCmd_UpdateNeedsAChange(t *testing.T) {
	app := newTestApp(t)

	_, err := run(t, ClaimsCmd(app), "update", "member-1", "claim-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")
}

func TestRunInteractive_RunsNestedCommands(t *testing.T) {
	app := newTestApp(t)
	root := &cobra.Command{Use: "cli"}
	root.AddCommand(SkillsCmd(app), RulesCmd(app), InteractiveCmd())

	var out bytes.Buffer
	input := strings.NewReader("skills add Cigna\nskills list\nbogus\nrules\nexit\n")

	err := runInteractive(root, input, &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Skill created: Cigna")
	assert.Contains(t, out.String(), "- Cigna")
	assert.Contains(t, out.String(), "unknown command: bogus")
	assert.Contains(t, out.String(), "needs a subcommand")
	assert.Contains(t, out.String(), "Goodbye")
}
