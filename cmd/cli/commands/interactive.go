package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// InteractiveCmd starts a session that reuses the initialised app for many commands
func InteractiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive session (connect once, run multiple commands)",
		Long: `Start an interactive session where you can run multiple commands without reconnecting.
The session will keep running until you type 'exit' or 'quit'.

Type 'help' to see available commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Root(), os.Stdin, cmd.OutOrStdout())
		},
	}
}

func runInteractive(root *cobra.Command, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "\n🚀 Starting interactive session...")
	fmt.Fprintln(out, "Type 'help' for available commands, 'exit' or 'quit' to leave")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(out, "👋 Goodbye!")
			return nil
		case "help":
			printInteractiveHelp(out, root)
			continue
		case "interactive":
			continue
		}

		if err := runInteractiveLine(root, parts, out); err != nil {
			fmt.Fprintf(out, "❌ Error: %v\n\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}

// runInteractiveLine runs a single command's RunE directly so the app is not initialised again
func runInteractiveLine(root *cobra.Command, parts []string, out io.Writer) error {
	target, rest, err := root.Find(parts)
	if err != nil || target == root {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", parts[0])
	}
	if target.RunE == nil && target.Run == nil {
		return fmt.Errorf("%s needs a subcommand", target.CommandPath())
	}

	target.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
		flag.Value.Set(flag.DefValue)
	})
	if err := target.ParseFlags(rest); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	args := target.Flags().Args()
	if target.Args != nil {
		if err := target.Args(target, args); err != nil {
			return err
		}
	}

	target.SetOut(out)
	if target.RunE != nil {
		return target.RunE(target, args)
	}
	target.Run(target, args)
	return nil
}

func printInteractiveHelp(out io.Writer, root *cobra.Command) {
	fmt.Fprintln(out, "\nAvailable commands:")

	var lines []string
	var walk func(c *cobra.Command, prefix string)
	walk = func(c *cobra.Command, prefix string) {
		for _, sub := range c.Commands() {
			switch sub.Name() {
			case "interactive", "completion", "help":
				continue
			}
			if sub.HasSubCommands() {
				walk(sub, prefix+sub.Name()+" ")
				continue
			}
			lines = append(lines, fmt.Sprintf("  %-50s %s", prefix+sub.Use, sub.Short))
		}
	}
	walk(root, "")
	sort.Strings(lines)

	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	fmt.Fprintln(out, "\n  help                                               Show this help message")
	fmt.Fprintln(out, "  exit, quit                                         Exit the interactive session")
}
