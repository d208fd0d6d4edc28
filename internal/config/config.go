// Package config loads the YAML configuration for edaq.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/edaq/internal/actuator"
	"github.com/me/edaq/internal/executor"
	"github.com/me/edaq/internal/logging"
	"github.com/me/edaq/internal/observability"
	"github.com/me/edaq/internal/scheduler"
	"github.com/me/edaq/pkg/model"
)

// ErrInvalidAxisOrder is returned by Validate for a malformed axis order.
var ErrInvalidAxisOrder = errors.New("invalid axis order")

// Config is the top-level configuration file.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Hub       HubConfig       `yaml:"hub"`
	Journal   JournalConfig   `yaml:"journal"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Plan      *actuator.Plan  `yaml:"plan,omitempty"`
	Reactive  *ReactiveConfig `yaml:"reactive,omitempty"`
}

// SchedulerConfig holds the producer scheduler settings.
type SchedulerConfig struct {
	AxisOrder      string        `yaml:"axis_order"`
	ZDirection     string        `yaml:"z_direction"`
	Channels       []string      `yaml:"channels,omitempty"`
	Warmup         time.Duration `yaml:"warmup"`
	PreemptiveLead time.Duration `yaml:"preemptive_lead"`
	ResetGuard     time.Duration `yaml:"reset_guard"`
	DeliveryBuffer int           `yaml:"delivery_buffer"`
}

// ExecutorConfig selects and configures the executor.
type ExecutorConfig struct {
	Type    string                 `yaml:"type"`
	Sim     SimConfig              `yaml:"sim"`
	Command executor.CommandConfig `yaml:"command"`
}

// SimConfig sizes the simulated executor's frames.
type SimConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// HubConfig sizes the per-subscriber frame buffers.
type HubConfig struct {
	Buffer int `yaml:"buffer"`
}

// JournalConfig enables the SQLite journal when Path is set.
type JournalConfig struct {
	Path string `yaml:"path"` // ":memory:" for testing
}

// ServerConfig holds configuration for the control API server.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address (default ":8080")
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TelemetryConfig configures OTLP metric export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string        `yaml:"otlp_endpoint"`
	Interval     time.Duration `yaml:"interval"`
	Insecure     bool          `yaml:"insecure"`
}

// ReactiveConfig configures the reactive actuator and its trigger.
type ReactiveConfig struct {
	Action  actuator.ReactiveConfig `yaml:",inline"`
	Trigger TriggerConfig           `yaml:"trigger"`
}

// TriggerConfig is a threshold on one result value of one channel.
type TriggerConfig struct {
	Channel string  `yaml:"channel"`
	Key     string  `yaml:"key"`
	Above   float64 `yaml:"above"`
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Scheduler: SchedulerConfig{
			AxisOrder:      model.DefaultAxisOrder,
			ZDirection:     string(model.ZAscending),
			Warmup:         3 * time.Second,
			PreemptiveLead: 20 * time.Millisecond,
			ResetGuard:     10 * time.Millisecond,
			DeliveryBuffer: 1024,
		},
		Executor: ExecutorConfig{
			Type: executor.TypeSim,
			Sim:  SimConfig{Width: 16, Height: 16},
		},
		Hub:    HubConfig{Buffer: 64},
		Server: ServerConfig{Addr: ":8080"},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{Interval: 10 * time.Second},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the components cannot use.
func (c Config) Validate() error {
	var errs []error
	if _, err := model.ParseAxisOrder(c.Scheduler.AxisOrder); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidAxisOrder, err))
	}
	if !model.ZDirection(c.Scheduler.ZDirection).Valid() {
		errs = append(errs, fmt.Errorf("unknown z_direction %q", c.Scheduler.ZDirection))
	}
	for name, d := range map[string]time.Duration{
		"warmup":          c.Scheduler.Warmup,
		"preemptive_lead": c.Scheduler.PreemptiveLead,
		"reset_guard":     c.Scheduler.ResetGuard,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", name, d))
		}
	}
	if c.Scheduler.DeliveryBuffer < 0 {
		errs = append(errs, fmt.Errorf("delivery_buffer must not be negative"))
	}
	switch c.Executor.Type {
	case executor.TypeSim:
	case executor.TypeCommand:
		if len(c.Executor.Command.Exec) == 0 {
			errs = append(errs, fmt.Errorf("executor.command.exec is required for the command executor"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w %q", executor.ErrUnknownType, c.Executor.Type))
	}
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	if !logging.ValidFormat(c.Log.Format) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Plan != nil {
		if err := c.Plan.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Reactive != nil && c.Reactive.Action.Channel == "" {
		errs = append(errs, fmt.Errorf("reactive.channel is required"))
	}
	return errors.Join(errs...)
}

// ProducerConfig converts the file settings into a producer configuration.
// Call Validate first; an invalid axis order falls back to the default.
func (c Config) ProducerConfig() scheduler.Config {
	order, err := model.ParseAxisOrder(c.Scheduler.AxisOrder)
	if err != nil {
		order = model.AllAxes
	}
	return scheduler.Config{
		AxisOrder:      order,
		ZDirection:     model.ZDirection(c.Scheduler.ZDirection),
		Channels:       c.Scheduler.Channels,
		Warmup:         c.Scheduler.Warmup,
		PreemptiveLead: c.Scheduler.PreemptiveLead,
		ResetGuard:     c.Scheduler.ResetGuard,
		DeliveryBuffer: c.Scheduler.DeliveryBuffer,
	}
}

// ObservabilityConfig converts the file settings into a metric export configuration.
func (c Config) ObservabilityConfig() observability.Config {
	return observability.Config{
		ServiceName:  "edaq",
		OTLPEndpoint: c.Telemetry.OTLPEndpoint,
		Interval:     c.Telemetry.Interval,
		Insecure:     c.Telemetry.Insecure,
	}
}
