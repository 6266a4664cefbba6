package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rtoskernel/internal/transform"
)

func inspectCmd() *cobra.Command {
	var (
		yieldAll bool
		tickRate int
	)

	cmd := &cobra.Command{
		Use:   "inspect <file.js>",
		Short: "Show what the Transformer produces from a task body, without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			mode := transform.ModeDelayOnly
			if yieldAll {
				mode = transform.ModeStatementLevel
			}
			factory, diags, err := transform.NewFactory(string(body), mode, tickRate)
			if err != nil {
				return fmt.Errorf("compile %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "generator: %v\n", factory.IsGenerator())
			fmt.Fprintf(out, "suspension points: %d\n", factory.SuspensionPoints())
			for _, d := range diags {
				fmt.Fprintf(out, "diagnostic: %s\n", d)
			}
			fmt.Fprintln(out, "---")
			fmt.Fprintln(out, factory.Program())
			return nil
		},
	}

	cmd.Flags().BoolVar(&yieldAll, "yield-all", false, "inspect under statement-level yield mode instead of delay-only")
	cmd.Flags().IntVar(&tickRate, "tick-rate", 100, "tick rate handed to the task factory (must be positive); it does not change the printed output")

	return cmd
}
