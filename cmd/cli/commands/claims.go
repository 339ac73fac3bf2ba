package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/claim-router/pkg/core/services"
)

// ClaimsCmd creates the claims command and its subcommands
func ClaimsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claims",
		Short: "View and update claims",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all claims, newest claim ID first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := services.ListClaims(app.Ctx, app.Database, app.Logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d claims:\n\n", len(claims))
			for _, c := range claims {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-14s %-20s %-16s %10s  %s  %-12s %s\n",
					c.ClaimID, c.PatientName, c.Payer, c.Amount.StringFixed(2), c.DOS.Format("2006-01-02"), c.Status, c.Assignee)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	mine := &cobra.Command{
		Use:   "mine <member_id>",
		Short: "List a member's claims with their notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := services.ListMemberClaims(app.Ctx, app.Database, app.Logger, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n%d claims:\n\n", len(claims))
			for _, c := range claims {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %-14s %-20s %-16s (%s)\n", c.Status, c.ClaimID, c.PatientName, c.Payer, c.ID)
				for _, n := range c.Notes {
					fmt.Fprintf(cmd.OutOrStdout(), "      %s  %s\n", n.Timestamp.Format("2006-01-02 15:04"), n.Content)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	update := &cobra.Command{
		Use:   "update <member_id> <claim_id>",
		Short: "Change the status of a member's claim and/or add a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd services.ClaimUpdate
			if cmd.Flags().Changed("status") {
				v, _ := cmd.Flags().GetString("status")
				upd.Status = &v
			}
			if cmd.Flags().Changed("note") {
				v, _ := cmd.Flags().GetString("note")
				upd.Note = &v
			}
			if upd.Status == nil && upd.Note == nil {
				return fmt.Errorf("nothing to update: pass --status and/or --note")
			}

			if err := services.UpdateMemberClaim(app.Ctx, app.Database, app.Logger, args[0], args[1], upd, app.Now()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Claim updated.")
			return nil
		},
	}
	update.Flags().String("status", "", "New status: NEW, IN_PROGRESS, SUBMITTED, ON_HOLD or ASSIGNED")
	update.Flags().String("note", "", "Note to add")

	cmd.AddCommand(list, mine, update)
	return cmd
}
