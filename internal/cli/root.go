package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/me/edaq/internal/config"
	"github.com/me/edaq/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Config
	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking EDAQ_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("EDAQ_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the edaq CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "edaq",
		Short: "edaq: timed event scheduling for acquisition runs",
		Long: `edaq orders acquisition events registered by actuators on a shared
time axis, delivers them when they are due and executes them on time.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Default()
			if flagConfig != "" {
				loaded, err := config.Load(flagConfig)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			// Flags override the file only when given explicitly.
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Log.Format = flagLogFormat
			}
			if flagDebug {
				cfg.Log.Level = "debug"
			}
			if !logging.ValidLevel(cfg.Log.Level) {
				return fmt.Errorf("unknown log level %q", cfg.Log.Level)
			}
			logger = logging.Setup(cfg.Log.Level, cfg.Log.Format)
			client = NewClient(flagServer, logger)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "edaq API URL for remote commands (or EDAQ_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newValidateCmd(),
		newSubmitCmd(),
		newStatusCmd(),
		newControlCmd("pause", "Pause deliveries and executions"),
		newControlCmd("resume", "Resume deliveries and executions"),
		newControlCmd("stop", "Stop the producer; delivered events still execute"),
		newControlCmd("cancel", "Cancel the runner after the in-flight event"),
		newRunsCmd(),
		newExecutionsCmd(),
	)

	return root
}
