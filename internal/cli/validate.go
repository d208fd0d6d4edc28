package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and show what a run would register",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			out := cmd.OutOrStdout()

			source := flagConfig
			if source == "" {
				source = "(defaults)"
			}
			fmt.Fprintf(out, "Configuration %s is valid.\n", source)
			fmt.Fprintf(out, "  Axis order:  %s (z %s)\n", cfg.Scheduler.AxisOrder, cfg.Scheduler.ZDirection)
			fmt.Fprintf(out, "  Warmup:      %s\n", cfg.Scheduler.Warmup)
			fmt.Fprintf(out, "  Executor:    %s\n", cfg.Executor.Type)
			if cfg.Journal.Path != "" {
				fmt.Fprintf(out, "  Journal:     %s\n", cfg.Journal.Path)
			}
			if cfg.Plan != nil {
				events := cfg.Plan.Events(true)
				last, _ := events[len(events)-1].Time()
				fmt.Fprintf(out, "  Plan:        %d events over %d loops, last at t=%gs\n",
					len(events), cfg.Plan.Loops, last)
			}
			if cfg.Reactive != nil {
				tr := cfg.Reactive.Trigger
				fmt.Fprintf(out, "  Reactive:    %d x %s when %s.%s > %g\n",
					cfg.Reactive.Action.Count, cfg.Reactive.Action.Channel, tr.Channel, tr.Key, tr.Above)
			}
			return nil
		},
	}
}
