package observability

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumInt(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation is %T, want Sum[int64]", data)
	}
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()

	m.Registered(ctx)
	m.Registered(ctx)
	m.Registered(ctx)
	m.Duplicate(ctx)
	m.Delivered(ctx, "DAPI")
	m.Removed(ctx, 1)
	m.Executed(ctx, "DAPI", 0.004)
	m.Failed(ctx, "FITC")

	got := collect(t, reader)
	checks := map[string]int64{
		"edaq.events.registered": 3,
		"edaq.events.duplicates": 1,
		"edaq.events.delivered":  1,
		"edaq.events.pending":    1,
		"edaq.events.executed":   1,
		"edaq.events.failed":     1,
	}
	for name, want := range checks {
		data, ok := got[name]
		if !ok {
			t.Errorf("metric %s not collected", name)
			continue
		}
		if v := sumInt(t, data); v != want {
			t.Errorf("%s = %d, want %d", name, v, want)
		}
	}

	h, ok := got["edaq.execution.lateness"].(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("lateness aggregation is %T", got["edaq.execution.lateness"])
	}
	if len(h.DataPoints) != 1 || h.DataPoints[0].Count != 1 {
		t.Errorf("lateness data points = %+v", h.DataPoints)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.Registered(ctx)
	m.Duplicate(ctx)
	m.Delivered(ctx, "x")
	m.Removed(ctx, 2)
	m.Executed(ctx, "x", 1)
	m.Failed(ctx, "x")
}
