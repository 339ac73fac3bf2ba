package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/claim-router/pkg/core/services"
)

// RulesCmd creates the rules command and its subcommands
func RulesCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage assignment rules",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List rules in evaluation order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				rules, err := services.ListRules(app.Ctx, app.Database, app.Logger)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d rules:\n\n", len(rules))
				for _, r := range rules {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-36s %3d  %-6s %-16s → %s\n",
						r.ID, r.Priority, r.CriteriaType, r.CriteriaValue, r.Strategy)
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			},
		},
		ruleInputCmd("add <criteria_type> <criteria_value> <strategy>", "Add a rule", cobra.ExactArgs(3),
			func(cmd *cobra.Command, args []string, input services.RuleInput) error {
				rule, err := services.CreateRule(app.Ctx, app.Database, app.Logger, input)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Rule created: %s\n\n", rule.ID)
				return nil
			}),
		ruleInputCmd("update <rule_id> <criteria_type> <criteria_value> <strategy>", "Replace a rule", cobra.ExactArgs(4),
			func(cmd *cobra.Command, args []string, input services.RuleInput) error {
				if _, err := services.UpdateRule(app.Ctx, app.Database, app.Logger, args[0], input); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Rule updated: %s\n\n", args[0])
				return nil
			}),
		&cobra.Command{
			Use:   "delete <rule_id>",
			Short: "Delete a rule",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := services.DeleteRule(app.Ctx, app.Database, app.Logger, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Rule deleted: %s\n\n", args[0])
				return nil
			},
		},
	)

	return cmd
}

// ruleInputCmd builds add/update commands; the last three args are criteria type,
// criteria value and strategy
func ruleInputCmd(use, short string, args cobra.PositionalArgs, run func(*cobra.Command, []string, services.RuleInput) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, _ := cmd.Flags().GetInt("priority")
			n := len(args)
			return run(cmd, args, services.RuleInput{
				CriteriaType:  args[n-3],
				CriteriaValue: args[n-2],
				Strategy:      args[n-1],
				Priority:      priority,
			})
		},
	}
	cmd.Flags().IntP("priority", "p", 0, "Rule priority (lower is evaluated first)")
	return cmd
}
