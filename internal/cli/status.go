package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/edaq/internal/runner"
	"github.com/me/edaq/internal/scheduler"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show producer and runner state of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(cmd.Context(), "/api/v1/status")
			if err != nil {
				return fmt.Errorf("get status: %w", err)
			}
			var data struct {
				Producer scheduler.Status `json:"producer"`
				Runner   *runner.Status   `json:"runner"`
			}
			if err := resp.decode(&data); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := data.Producer
			state := "running"
			switch {
			case p.Stopped:
				state = "stopped"
			case p.Paused:
				state = "paused"
			}
			fmt.Fprintf(out, "Producer: %s\n", state)
			fmt.Fprintf(out, "  Position:   %.3fs\n", p.Position)
			fmt.Fprintf(out, "  Pending:    %d\n", p.Pending)
			fmt.Fprintf(out, "  Delivered:  %d\n", p.Delivered)
			if p.Drained > 0 {
				fmt.Fprintf(out, "  Skipped:    %d\n", p.Drained)
			}
			fmt.Fprintf(out, "  Timepoint:  %d\n", p.DenseIndex)
			fmt.Fprintf(out, "  Actuators:  %d\n", p.Actuators)
			if r := data.Runner; r != nil {
				fmt.Fprintf(out, "Runner: %s\n", r.State)
				if r.RunID != "" {
					fmt.Fprintf(out, "  Run:        %s\n", r.RunID)
				}
				fmt.Fprintf(out, "  Executed:   %d\n", r.Executed)
				if r.Failed > 0 {
					fmt.Fprintf(out, "  Failed:     %d\n", r.Failed)
				}
			}
			return nil
		},
	}
}

// newControlCmd creates a command posting to /api/v1/control/<action>.
func newControlCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Post(cmd.Context(), "/api/v1/control/"+action, nil); err != nil {
				return fmt.Errorf("%s: %w", action, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", action)
			return nil
		},
	}
}
