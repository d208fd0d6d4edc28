// Package observability exposes OpenTelemetry metrics for the schedulers:
// registrations, deliveries, executions and how late each execution ran
// relative to its target time.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/me/edaq"

// Metrics holds the scheduler instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registered metric.Int64Counter
	duplicates metric.Int64Counter
	delivered  metric.Int64Counter
	executed   metric.Int64Counter
	failed     metric.Int64Counter
	pending    metric.Int64UpDownCounter
	lateness   metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.registered, err = meter.Int64Counter("edaq.events.registered",
		metric.WithDescription("Events accepted into the event store")); err != nil {
		return nil, fmt.Errorf("registered counter: %w", err)
	}
	if m.duplicates, err = meter.Int64Counter("edaq.events.duplicates",
		metric.WithDescription("Registrations absorbed as duplicates")); err != nil {
		return nil, fmt.Errorf("duplicates counter: %w", err)
	}
	if m.delivered, err = meter.Int64Counter("edaq.events.delivered",
		metric.WithDescription("Events pushed to the delivery channel")); err != nil {
		return nil, fmt.Errorf("delivered counter: %w", err)
	}
	if m.executed, err = meter.Int64Counter("edaq.events.executed",
		metric.WithDescription("Events executed successfully")); err != nil {
		return nil, fmt.Errorf("executed counter: %w", err)
	}
	if m.failed, err = meter.Int64Counter("edaq.events.failed",
		metric.WithDescription("Events whose execution failed")); err != nil {
		return nil, fmt.Errorf("failed counter: %w", err)
	}
	if m.pending, err = meter.Int64UpDownCounter("edaq.events.pending",
		metric.WithDescription("Events waiting in the event store")); err != nil {
		return nil, fmt.Errorf("pending counter: %w", err)
	}
	if m.lateness, err = meter.Float64Histogram("edaq.execution.lateness",
		metric.WithDescription("Seconds between an event's target time and its execution"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("lateness histogram: %w", err)
	}
	return m, nil
}

// NewGlobalMetrics creates the instruments on the global meter provider.
func NewGlobalMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(instrumentationName))
}

func channelAttr(channel string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("channel", channel))
}

// Registered records an accepted registration.
func (m *Metrics) Registered(ctx context.Context) {
	if m == nil {
		return
	}
	m.registered.Add(ctx, 1)
	m.pending.Add(ctx, 1)
}

// Duplicate records a registration absorbed as a duplicate.
func (m *Metrics) Duplicate(ctx context.Context) {
	if m == nil {
		return
	}
	m.duplicates.Add(ctx, 1)
}

// Delivered records an event leaving the store.
func (m *Metrics) Delivered(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.delivered.Add(ctx, 1, channelAttr(channel))
	m.pending.Add(ctx, -1)
}

// Removed records pending events discarded without delivery.
func (m *Metrics) Removed(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.pending.Add(ctx, int64(-n))
}

// Executed records a successful execution and its lateness in seconds.
func (m *Metrics) Executed(ctx context.Context, channel string, lateness float64) {
	if m == nil {
		return
	}
	m.executed.Add(ctx, 1, channelAttr(channel))
	m.lateness.Record(ctx, lateness, channelAttr(channel))
}

// Failed records a failed execution.
func (m *Metrics) Failed(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, channelAttr(channel))
}
