// Package actuator holds the producers that decide what to acquire and hand
// events to the producer scheduler.
package actuator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/edaq/internal/scheduler"
	"github.com/me/edaq/pkg/model"
)

// Position is a stage position visited by a plan.
type Position struct {
	Index int    `yaml:"index" json:"index"`
	Group string `yaml:"group,omitempty" json:"group,omitempty"`
}

// Plan is a multi-dimensional time-lapse: Loops timepoints Interval apart,
// each visiting every position, channel and z plane.
type Plan struct {
	Interval  time.Duration `yaml:"interval" json:"interval"`
	Loops     int           `yaml:"loops" json:"loops"`
	Channels  []string      `yaml:"channels" json:"channels"`
	Exposure  float64       `yaml:"exposure_ms,omitempty" json:"exposure_ms,omitempty"`
	Z         []float64     `yaml:"z,omitempty" json:"z,omitempty"`
	Positions []Position    `yaml:"positions,omitempty" json:"positions,omitempty"`
}

// Validate checks the plan is executable.
func (p Plan) Validate() error {
	if p.Loops < 1 {
		return fmt.Errorf("plan: loops must be at least 1, got %d", p.Loops)
	}
	if p.Loops > 1 && p.Interval <= 0 {
		return fmt.Errorf("plan: interval must be positive for %d loops", p.Loops)
	}
	if len(p.Channels) == 0 {
		return fmt.Errorf("plan: at least one channel is required")
	}
	return nil
}

// Events expands the plan in acquisition order. When reset is true the first
// event requests a clock reset so the run starts at zero.
func (p Plan) Events(reset bool) []model.Event {
	zs := p.Z
	if len(zs) == 0 {
		zs = []float64{0}
	}
	positions := p.Positions
	if len(positions) == 0 {
		positions = []Position{{Index: 0}}
	}

	events := make([]model.Event, 0, p.Loops*len(positions)*len(p.Channels)*len(zs))
	for loop := range p.Loops {
		t := float64(loop) * p.Interval.Seconds()
		for _, pos := range positions {
			for _, c := range p.Channels {
				for _, z := range zs {
					ev := model.At(t)
					ev.Channel = model.Ptr(c)
					ev.Z = model.Ptr(z)
					ev.Position = model.Ptr(pos.Index)
					if pos.Group != "" {
						ev.Group = model.Ptr(pos.Group)
					}
					if p.Exposure > 0 {
						ev.Exposure = model.Ptr(p.Exposure)
					}
					events = append(events, ev)
				}
			}
		}
	}
	if reset && len(events) > 0 {
		events[0].ResetClock = true
	}
	return events
}

// PlanActuator registers a whole plan up front.
type PlanActuator struct {
	plan   Plan
	logger *slog.Logger
}

// NewPlanActuator creates a PlanActuator.
func NewPlanActuator(plan Plan, logger *slog.Logger) *PlanActuator {
	return &PlanActuator{plan: plan, logger: logger.With("component", "plan-actuator")}
}

// Run registers the plan with reg and returns how many events were accepted.
func (a *PlanActuator) Run(ctx context.Context, reg scheduler.Registrar) (int, error) {
	if err := a.plan.Validate(); err != nil {
		return 0, err
	}
	r := reg.RegisterActuator(len(a.plan.Channels))

	accepted := 0
	for _, ev := range a.plan.Events(r.CanReset) {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}
		if _, ok := reg.RegisterEvent(ev, r.ID); ok {
			accepted++
		}
	}
	a.logger.Info("plan registered", "actuator_id", r.ID, "events", accepted,
		"loops", a.plan.Loops, "interval", a.plan.Interval)
	return accepted, nil
}
