package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/edaq/pkg/model"
)

func newRunsCmd() *cobra.Command {
	var state string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List journaled runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if state != "" {
				q.Set("state", state)
			}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			resp, err := client.Get(cmd.Context(), "/api/v1/runs?"+q.Encode())
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			var runs []model.RunRecord
			if err := resp.decode(&runs); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			fmt.Fprintf(out, "%-36s  %-10s  %-8s  %8s  %6s  %s\n", "ID", "STATE", "EXECUTOR", "EXECUTED", "FAILED", "STARTED")
			fmt.Fprintf(out, "%-36s  %-10s  %-8s  %8s  %6s  %s\n", "--", "-----", "--------", "--------", "------", "-------")
			for _, r := range runs {
				fmt.Fprintf(out, "%-36s  %-10s  %-8s  %8d  %6d  %s\n",
					r.ID, r.State, r.Executor, r.Executed, r.Failed, r.StartedAt.Format("2006-01-02 15:04:05"))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by state (COMPLETED, CANCELLED, FAILED, RUNNING)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")
	return cmd
}

func newExecutionsCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "executions <run_id>",
		Short: "List the executed events of a journaled run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			resp, err := client.Get(cmd.Context(), "/api/v1/runs/"+url.PathEscape(args[0])+"/executions?"+q.Encode())
			if err != nil {
				return fmt.Errorf("list executions: %w", err)
			}
			var recs []model.ExecutionRecord
			if err := resp.decode(&recs); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No executions found.")
				return nil
			}

			fmt.Fprintf(out, "%5s  %10s  %4s  %-10s  %12s  %10s\n", "SEQ", "TARGET(s)", "TP", "CHANNEL", "RUNNER(ms)", "LATE(ms)")
			for _, r := range recs {
				target, tp := "-", "-"
				if r.TargetTime != nil {
					target = strconv.FormatFloat(*r.TargetTime, 'f', 3, 64)
				}
				if r.DenseIndex != nil {
					tp = strconv.Itoa(*r.DenseIndex)
				}
				fmt.Fprintf(out, "%5d  %10s  %4s  %-10s  %12.1f  %10.1f\n",
					r.Sequence, target, tp, r.Channel, r.RunnerTimeMS, r.LatenessMS)
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(recs), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum executions to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Executions to skip")
	return cmd
}
