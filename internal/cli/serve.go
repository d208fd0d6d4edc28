package cli

import (
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a session driven through the control API",
		Long: `Starts the producer, runner and control API. Actuators register events over
HTTP; the session ends on SIGINT/SIGTERM or POST /api/v1/control/stop once
every delivered event has executed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			summary, err := runSession(cmd.Context(), cfg, sessionOptions{
				serve: true,
				addr:  cfg.Server.Addr,
			}, logger)
			printSummary(cmd.OutOrStdout(), summary)
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address (overrides server.addr)")
	return cmd
}
