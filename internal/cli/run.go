package cli

import (
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var serve bool
	var addr string
	var idle time.Duration
	var journalPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured plan locally until the schedule is exhausted",
		Long: `Registers the configured plan and reactive actuator with a local producer,
executes every delivered event with the configured executor and prints a
summary once the schedule has been idle for --idle.

With --serve the control API is exposed while the run is in progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("journal") {
				cfg.Journal.Path = journalPath
			}
			summary, err := runSession(cmd.Context(), cfg, sessionOptions{
				serve: serve,
				addr:  cfg.Server.Addr,
				idle:  idle,
			}, logger)
			printSummary(cmd.OutOrStdout(), summary)
			return err
		},
	}

	cmd.Flags().BoolVar(&serve, "serve", false, "Expose the control API during the run")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address for --serve (overrides server.addr)")
	cmd.Flags().DurationVar(&idle, "idle", 2*time.Second, "Stop after the schedule has been idle this long (0 waits for a signal)")
	cmd.Flags().StringVar(&journalPath, "journal", "", "SQLite journal path (overrides journal.path)")

	return cmd
}
