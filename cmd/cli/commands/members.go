package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jakechorley/claim-router/pkg/core/services"
)

// MembersCmd creates the members command and its subcommands
func MembersCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage members",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all non-admin members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := services.ListMembers(app.Ctx, app.Database, app.Logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nFound %d members:\n\n", len(members))
			for _, m := range members {
				status := "active"
				if !m.IsActive {
					status = "inactive"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "- %s (%s) %s, %s, max %d/period, seniority %d, by %s [%s]\n",
					m.Name, m.ID, m.Role, status, m.MaxDailyClaims, m.Seniority, m.AssignBy, strings.Join(m.Skills, ", "))
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <name> <username>",
		Short: "Add a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			role, _ := flags.GetString("role")
			capacity, _ := flags.GetInt("max-claims")
			seniority, _ := flags.GetInt("seniority")
			assignBy, _ := flags.GetString("assign-by")
			skills, _ := flags.GetStringSlice("skills")
			inactive, _ := flags.GetBool("inactive")

			member, err := services.CreateMember(app.Ctx, app.Database, app.Logger, services.NewMember{
				Name:           args[0],
				Username:       args[1],
				Role:           role,
				IsActive:       !inactive,
				MaxDailyClaims: capacity,
				Seniority:      seniority,
				AssignBy:       assignBy,
				Skills:         skills,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Member created: %s (%s)\n\n", member.Name, member.ID)
			return nil
		},
	}
	add.Flags().String("role", "Biller", "Role: Biller, Sr. Biller or Admin")
	add.Flags().Int("max-claims", 0, "Maximum claims per workload period")
	add.Flags().Int("seniority", 0, "Seniority (higher is more senior)")
	add.Flags().String("assign-by", "payer", "Assignment preference: age, seniority or payer")
	add.Flags().StringSlice("skills", nil, "Payer skills, comma separated")
	add.Flags().Bool("inactive", false, "Create the member inactive")

	update := &cobra.Command{
		Use:   "update <member_id>",
		Short: "Update a member; only the flags given are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			update := memberUpdateFromFlags(cmd)
			member, err := services.UpdateMember(app.Ctx, app.Database, app.Logger, args[0], update)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Member updated: %s\n\n", member.Name)
			return nil
		},
	}
	update.Flags().String("role", "", "Role: Biller, Sr. Biller or Admin")
	update.Flags().Int("max-claims", 0, "Maximum claims per workload period")
	update.Flags().Int("seniority", 0, "Seniority (higher is more senior)")
	update.Flags().String("assign-by", "", "Assignment preference: age, seniority or payer")
	update.Flags().StringSlice("skills", nil, "Payer skills, comma separated (replaces existing)")
	update.Flags().Bool("active", true, "Whether the member receives claims")

	cmd.AddCommand(list, add, update)
	return cmd
}

// memberUpdateFromFlags sets only the fields whose flags were given
func memberUpdateFromFlags(cmd *cobra.Command) services.MemberUpdate {
	flags := cmd.Flags()
	var update services.MemberUpdate

	if flags.Changed("role") {
		v, _ := flags.GetString("role")
		update.Role = &v
	}
	if flags.Changed("max-claims") {
		v, _ := flags.GetInt("max-claims")
		update.MaxDailyClaims = &v
	}
	if flags.Changed("seniority") {
		v, _ := flags.GetInt("seniority")
		update.Seniority = &v
	}
	if flags.Changed("assign-by") {
		v, _ := flags.GetString("assign-by")
		update.AssignBy = &v
	}
	if flags.Changed("active") {
		v, _ := flags.GetBool("active")
		update.IsActive = &v
	}
	if flags.Changed("skills") {
		v, _ := flags.GetStringSlice("skills")
		if v == nil {
			v = []string{}
		}
		update.Skills = v
	}
	return update
}

// SkillsCmd creates the skills command and its subcommands
func SkillsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "Manage payer skills",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List skills",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				skills, err := services.ListSkills(app.Ctx, app.Database)
				if err != nil {
					return err
				}
				for _, s := range skills {
					fmt.Fprintf(cmd.OutOrStdout(), "- %s (%s)\n", s.Name, s.ID)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <name>",
			Short: "Add a skill",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				skill, err := services.CreateSkill(app.Ctx, app.Database, app.Logger, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Skill created: %s (%s)\n", skill.Name, skill.ID)
				return nil
			},
		},
	)

	return cmd
}
