package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/me/edaq/internal/scheduler"
	"github.com/me/edaq/pkg/model"
)

// eventFile is the YAML document accepted by submit.
type eventFile struct {
	ActuatorID string        `yaml:"actuator_id,omitempty"`
	Channels   int           `yaml:"channels,omitempty"`
	Events     []model.Event `yaml:"events"`
}

func newSubmitCmd() *cobra.Command {
	var actuatorID string
	var register bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "submit <events.yaml>",
		Short: "Register events with a running edaq server",
		Long: `Reads a YAML file with an "events" list and registers them with the server.
With --register a new actuator is allocated first (using the file's
"channels" count) and the events are registered on its behalf.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read events file: %w", err)
			}
			var file eventFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parse events file: %w", err)
			}
			if len(file.Events) == 0 {
				return fmt.Errorf("%s: no events", args[0])
			}
			out := cmd.OutOrStdout()

			if dryRun {
				fmt.Fprintf(out, "Dry-run: %d events parsed from %s\n", len(file.Events), args[0])
				for _, ev := range file.Events {
					fmt.Fprintf(out, "  %s\n", ev.String())
				}
				fmt.Fprintln(out, "No events registered.")
				return nil
			}

			if actuatorID != "" {
				file.ActuatorID = actuatorID
			}
			if register {
				resp, err := client.Post(cmd.Context(), "/api/v1/actuators", map[string]any{"channels": file.Channels})
				if err != nil {
					return fmt.Errorf("register actuator: %w", err)
				}
				var reg scheduler.Registration
				if err := resp.decode(&reg); err != nil {
					return err
				}
				file.ActuatorID = reg.ID
				fmt.Fprintf(out, "Actuator registered: %s (channels %d-%d, reset %v)\n",
					reg.ID, reg.Channels.Start, reg.Channels.Start+reg.Channels.Size-1, reg.CanReset)
			}

			resp, err := client.Post(cmd.Context(), "/api/v1/events", map[string]any{
				"actuator_id": file.ActuatorID,
				"events":      file.Events,
			})
			if err != nil {
				return fmt.Errorf("register events: %w", err)
			}
			var result struct {
				ActuatorID string `json:"actuator_id"`
				Accepted   int    `json:"accepted"`
				Events     []struct {
					Event model.Event `json:"event"`
					Added bool        `json:"added"`
				} `json:"events"`
			}
			if err := resp.decode(&result); err != nil {
				return err
			}

			fmt.Fprintf(out, "Registered %d of %d events (actuator %s)\n",
				result.Accepted, len(result.Events), result.ActuatorID)
			for _, r := range result.Events {
				if !r.Added {
					fmt.Fprintf(out, "  skipped: %s\n", r.Event.String())
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&actuatorID, "actuator", "", "Register on behalf of an existing actuator")
	cmd.Flags().BoolVar(&register, "register", false, "Allocate a new actuator for these events")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and print the events without registering them")

	return cmd
}
