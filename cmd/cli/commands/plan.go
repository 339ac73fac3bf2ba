package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/claim-router/pkg/core/allocator"
	"github.com/jakechorley/claim-router/pkg/core/ingest"
	"github.com/jakechorley/claim-router/pkg/core/model"
	"github.com/jakechorley/claim-router/pkg/core/services"
)

// PlanCmd creates the plan command
func PlanCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <claims_file>",
		Short: "Validate a CSV/XLSX claims file and show who each claim would go to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")

			candidates, err := readClaimsFile(cmd, args[0])
			if err != nil {
				return err
			}

			outcome, err := planAndPrint(cmd, app, candidates)
			if err != nil {
				return err
			}

			if out != "" {
				if err := writePlanFile(out, outcome); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Plan written to %s\n", out)
			}
			return nil
		},
	}

	cmd.Flags().StringP("out", "o", "", "Write the plan as JSON to this file")
	return cmd
}

// AssignCmd creates the assign command
func AssignCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign <claims_file>",
		Short: "Plan a claims file and commit the assignable claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			candidates, err := readClaimsFile(cmd, args[0])
			if err != nil {
				return err
			}

			outcome, err := planAndPrint(cmd, app, candidates)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "Dry run: nothing was written.")
				return nil
			}
			if len(outcome.ValidationErrors) > 0 {
				return fmt.Errorf("refusing to execute a plan that failed %d invariant checks", len(outcome.ValidationErrors))
			}
			if len(outcome.Assignable) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No assignable claims.")
				return nil
			}

			result, err := services.ExecutePlan(app.Ctx, app.Database, app.Logger, outcome.Assignable, app.Now())
			if err != nil {
				return err
			}
			printExecution(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Plan only, do not write claims")
	return cmd
}

// ExecuteCmd creates the execute command
func ExecuteCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "execute <plan_file>",
		Short: "Commit the assignable claims of a plan written by plan --out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readPlanFile(args[0])
			if err != nil {
				return err
			}

			planned, err := doc.ToPlanned()
			if err != nil {
				return err
			}

			result, err := services.ExecutePlan(app.Ctx, app.Database, app.Logger, planned, app.Now())
			if err != nil {
				return err
			}
			printExecution(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func readClaimsFile(cmd *cobra.Command, path string) ([]model.ClaimCandidate, error) {
	table, err := ingest.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	candidates, err := ingest.ParseRows(table)
	if err != nil {
		return nil, printValidationError(cmd.OutOrStdout(), err)
	}
	return candidates, nil
}

func planAndPrint(cmd *cobra.Command, app *AppContext, candidates []model.ClaimCandidate) (*allocator.PlanOutcome, error) {
	result, err := services.PlanClaims(app.Ctx, app.Database, app.Cfg, app.Logger, candidates, app.Now())
	if err != nil {
		return nil, err
	}

	app.Logger.Debug("Workload period", zap.Time("start", result.PeriodStart))
	printOutcome(cmd.OutOrStdout(), result.Outcome)
	return result.Outcome, nil
}

func writePlanFile(path string, outcome *allocator.PlanOutcome) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plan file: %w", err)
	}

	if err := services.WritePlanDocument(f, services.NewPlanDocument(outcome)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}
	return nil
}

func readPlanFile(path string) (*services.PlanDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan file: %w", err)
	}
	defer f.Close()

	return services.ReadPlanDocument(f)
}
