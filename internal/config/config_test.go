package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/me/edaq/internal/executor"
	"github.com/me/edaq/pkg/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edaq.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  axis_order: tcz
  z_direction: alternate
  channels: [DAPI, FITC]
  warmup: 500ms
log:
  level: debug
plan:
  interval: 2s
  loops: 3
  channels: [DAPI, FITC]
  z: [0, 1.5]
reactive:
  channel: Cy5
  count: 2
  skip_backlog: true
  trigger:
    channel: DAPI
    key: mean
    above: 120
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Warmup != 500*time.Millisecond {
		t.Errorf("warmup = %v", cfg.Scheduler.Warmup)
	}
	if cfg.Scheduler.PreemptiveLead != 20*time.Millisecond {
		t.Errorf("preemptive lead should keep its default, got %v", cfg.Scheduler.PreemptiveLead)
	}
	if cfg.Server.Addr != ":8080" || cfg.Log.Level != "debug" {
		t.Errorf("server/log = %+v %+v", cfg.Server, cfg.Log)
	}
	if cfg.Plan == nil || cfg.Plan.Interval != 2*time.Second || len(cfg.Plan.Z) != 2 {
		t.Errorf("plan = %+v", cfg.Plan)
	}
	if cfg.Reactive == nil || cfg.Reactive.Action.Channel != "Cy5" || !cfg.Reactive.Action.SkipBacklog || cfg.Reactive.Trigger.Above != 120 {
		t.Errorf("reactive = %+v", cfg.Reactive)
	}

	pc := cfg.ProducerConfig()
	want := []model.Axis{model.AxisTime, model.AxisChannel, model.AxisZ}
	if len(pc.AxisOrder) != len(want) {
		t.Fatalf("axis order = %v", pc.AxisOrder)
	}
	for i := range want {
		if pc.AxisOrder[i] != want[i] {
			t.Errorf("axis order = %v, want %v", pc.AxisOrder, want)
		}
	}
	if pc.ZDirection != model.ZAlternate || len(pc.Channels) != 2 {
		t.Errorf("producer config = %+v", pc)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "scheduler: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"repeated axis", func(c *Config) { c.Scheduler.AxisOrder = "ttc" }, "invalid axis order"},
		{"unknown axis", func(c *Config) { c.Scheduler.AxisOrder = "tx" }, "invalid axis order"},
		{"z direction", func(c *Config) { c.Scheduler.ZDirection = "sideways" }, "z_direction"},
		{"negative warmup", func(c *Config) { c.Scheduler.Warmup = -time.Second }, "warmup"},
		{"executor type", func(c *Config) { c.Executor.Type = "camera" }, "unknown executor type"},
		{"command without exec", func(c *Config) { c.Executor.Type = executor.TypeCommand }, "exec is required"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"reactive without channel", func(c *Config) { c.Reactive = &ReactiveConfig{} }, "reactive.channel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_AxisOrderSentinel(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.AxisOrder = ""
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidAxisOrder) {
		t.Errorf("Validate() = %v, want ErrInvalidAxisOrder", err)
	}
}
