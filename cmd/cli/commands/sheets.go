package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/claim-router/pkg/core/services"
)

// PublishPlanCmd creates the publishPlan command
func PublishPlanCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publishPlan <plan_file>",
		Short: "Publish a plan file to a new tab of the plan spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readPlanFile(args[0])
			if err != nil {
				return err
			}

			client, err := app.SheetsClient()
			if err != nil {
				return err
			}

			tab, err := services.PublishPlan(client, app.Cfg, app.Logger, doc, app.Now())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Plan published to tab %q\n\n", tab)
			return nil
		},
	}
}

// ImportSheetCmd creates the importSheet command
func ImportSheetCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "importSheet",
		Short: "Plan the claims in the configured Google Sheet tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			execute, _ := cmd.Flags().GetBool("execute")
			publish, _ := cmd.Flags().GetBool("publish")

			client, err := app.SheetsClient()
			if err != nil {
				return err
			}

			candidates, err := services.ImportClaims(client, app.Cfg, app.Logger)
			if err != nil {
				return printValidationError(cmd.OutOrStdout(), err)
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

			if publish {
				tab, err := services.PublishPlan(client, app.Cfg, app.Logger, services.NewPlanDocument(outcome), app.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Plan published to tab %q\n", tab)
			}

			if !execute || len(outcome.Assignable) == 0 {
				return nil
			}
			if len(outcome.ValidationErrors) > 0 {
				return fmt.Errorf("refusing to execute a plan that failed %d invariant checks", len(outcome.ValidationErrors))
			}

			result, err := services.ExecutePlan(app.Ctx, app.Database, app.Logger, outcome.Assignable, app.Now())
			if err != nil {
				return err
			}
			printExecution(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringP("out", "o", "", "Write the plan as JSON to this file")
	cmd.Flags().Bool("execute", false, "Commit the assignable claims")
	cmd.Flags().Bool("publish", false, "Publish the plan to the plan spreadsheet")
	return cmd
}
