package actuator

import (
	"context"
	"log/slog"

	"github.com/me/edaq/internal/hub"
	"github.com/me/edaq/internal/scheduler"
	"github.com/me/edaq/pkg/model"
)

// payloadActuator marks events registered by a reactive actuator so it does
// not react to its own frames.
const payloadActuator = "actuator_id"

// Predicate decides whether a frame triggers follow-up acquisition.
type Predicate func(model.Frame) bool

// Threshold triggers on frames from channel whose result value key is
// numeric and strictly above limit. An empty channel matches every channel.
func Threshold(channel, key string, limit float64) Predicate {
	return func(f model.Frame) bool {
		if channel != "" && (f.Event.Channel == nil || *f.Event.Channel != channel) {
			return false
		}
		switch v := f.Result.Values[key].(type) {
		case float64:
			return v > limit
		case int:
			return float64(v) > limit
		}
		return false
	}
}

// ReactiveConfig configures a ReactiveActuator.
type ReactiveConfig struct {
	// Channel the follow-up events acquire.
	Channel string `yaml:"channel" json:"channel"`
	// Count of upcoming timepoints to attach follow-ups to.
	Count    int     `yaml:"count" json:"count"`
	Exposure float64 `yaml:"exposure_ms,omitempty" json:"exposure_ms,omitempty"`
	// SkipBacklog drains delivered-but-unconsumed events before registering,
	// trading completeness for staying current when the consumer lags.
	SkipBacklog bool `yaml:"skip_backlog,omitempty" json:"skip_backlog,omitempty"`
}

// ReactiveActuator listens to frames and, for every frame its predicate
// accepts, registers follow-up events on the next Count pending timepoints.
type ReactiveActuator struct {
	cfg       ReactiveConfig
	predicate Predicate
	logger    *slog.Logger
}

// NewReactiveActuator creates a ReactiveActuator.
func NewReactiveActuator(cfg ReactiveConfig, predicate Predicate, logger *slog.Logger) *ReactiveActuator {
	if cfg.Count < 1 {
		cfg.Count = 1
	}
	return &ReactiveActuator{
		cfg:       cfg,
		predicate: predicate,
		logger:    logger.With("component", "reactive-actuator"),
	}
}

// Run consumes sub until it closes or ctx ends. It returns the number of
// follow-up events accepted.
func (a *ReactiveActuator) Run(ctx context.Context, reg scheduler.Registrar, sub *hub.Subscription) (int, error) {
	r := reg.RegisterActuator(1)
	logger := a.logger.With("actuator_id", r.ID)

	accepted := 0
	for {
		select {
		case <-ctx.Done():
			return accepted, ctx.Err()
		case f, ok := <-sub.C:
			if !ok {
				logger.Info("frame stream closed", "accepted", accepted)
				return accepted, nil
			}
			if f.Event.Payload[payloadActuator] == r.ID || !a.predicate(f) {
				continue
			}
			if a.cfg.SkipBacklog {
				if skipped := reg.Drain(); len(skipped) > 0 {
					logger.Warn("skipped delivery backlog", "events", len(skipped))
				}
			}
			n := a.react(reg, r.ID, f)
			accepted += n
			logger.Debug("reacted to frame", "trigger", f.Event.String(), "registered", n)
		}
	}
}

func (a *ReactiveActuator) react(reg scheduler.Registrar, id string, trigger model.Frame) int {
	n := 0
	for i := range a.cfg.Count {
		ev := model.Event{
			Channel:     model.Ptr(a.cfg.Channel),
			AttachIndex: map[model.Axis]int{model.AxisTime: i},
			Payload: map[string]any{
				payloadActuator: id,
				"trigger":       trigger.Event.String(),
			},
		}
		if trigger.Event.Position != nil {
			ev.Position = model.Ptr(*trigger.Event.Position)
		}
		if a.cfg.Exposure > 0 {
			ev.Exposure = model.Ptr(a.cfg.Exposure)
		}
		if _, ok := reg.RegisterEvent(ev, id); ok {
			n++
		}
	}
	return n
}
