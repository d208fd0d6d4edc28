package executor

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/me/edaq/pkg/model"
)

// TypeSim identifies the simulated executor.
const TypeSim = "sim"

// SimExecutor stands in for hardware. It holds each event for its exposure
// and returns a small synthetic frame whose pixel values are derived from the
// event's axis values, so repeated runs produce identical results.
type SimExecutor struct {
	logger *slog.Logger
	width  int
	height int
}

// NewSimExecutor creates a SimExecutor producing width×height 8-bit frames.
func NewSimExecutor(width, height int, logger *slog.Logger) *SimExecutor {
	if width <= 0 {
		width = 16
	}
	if height <= 0 {
		height = 16
	}
	return &SimExecutor{
		logger: logger.With("component", "sim-executor"),
		width:  width,
		height: height,
	}
}

// Type returns TypeSim.
func (e *SimExecutor) Type() string { return TypeSim }

func (e *SimExecutor) SetupSequence(_ context.Context) error {
	e.logger.Debug("sequence setup")
	return nil
}

func (e *SimExecutor) SetupEvent(_ context.Context, _ model.Event) error { return nil }

// ExecEvent waits for the exposure, honoring ctx, then synthesizes a frame.
func (e *SimExecutor) ExecEvent(ctx context.Context, ev model.Event) (model.Result, error) {
	var exposure float64
	if ev.Exposure != nil {
		exposure = *ev.Exposure
	}
	if exposure > 0 {
		timer := time.NewTimer(time.Duration(exposure * float64(time.Millisecond)))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return model.Result{}, ctx.Err()
		}
	}

	data, mean := e.synthesize(ev)
	values := map[string]any{
		"width":       e.width,
		"height":      e.height,
		"mean":        mean,
		"exposure_ms": exposure,
	}
	if ev.Channel != nil {
		values["channel"] = *ev.Channel
	}
	if ev.Z != nil {
		values["z"] = *ev.Z
	}
	e.logger.Debug("frame simulated", "event", ev.String(), "mean", mean)
	return model.Result{Data: data, Values: values}, nil
}

func (e *SimExecutor) TeardownEvent(_ context.Context, _ model.Event) error { return nil }

func (e *SimExecutor) TeardownSequence(_ context.Context) error {
	e.logger.Debug("sequence teardown")
	return nil
}

// synthesize fills a frame from a seed derived from the event's attributes.
// Timing fields are excluded so a frame depends on where, not when.
func (e *SimExecutor) synthesize(ev model.Event) ([]byte, float64) {
	h := fnv.New64a()
	for _, a := range []model.Axis{model.AxisChannel, model.AxisZ, model.AxisPosition, model.AxisGroup} {
		h.Write([]byte(a.String()))
		if v := ev.Value(a); v != nil {
			fmt.Fprint(h, v)
		}
	}
	seed := h.Sum64()

	data := make([]byte, e.width*e.height)
	var sum float64
	var buf [8]byte
	for i := range data {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		binary.LittleEndian.PutUint64(buf[:], seed)
		data[i] = buf[0]
		sum += float64(buf[0])
	}
	return data, sum / float64(len(data))
}
