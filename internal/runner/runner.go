// Package runner implements the consumer side: it drains a stream of ready
// events and executes each one at its target offset from clock zero.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/me/edaq/internal/clock"
	"github.com/me/edaq/internal/delay"
	"github.com/me/edaq/internal/executor"
	"github.com/me/edaq/internal/observability"
	"github.com/me/edaq/pkg/model"
)

// ErrAlreadyRunning is returned by Run when a run is in progress.
var ErrAlreadyRunning = errors.New("runner already running")

// Observer receives a frame after every successful execution. Observers run
// on the runner's goroutine and must not block.
type Observer func(model.Frame)

// Option configures optional Runner dependencies.
type Option func(*Runner)

// WithClock replaces the runner's clock.
func WithClock(c *clock.Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// WithMetrics records executions on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		r.observers = append(r.observers, o)
	}
}

// Status is a point-in-time snapshot of a Runner.
type Status struct {
	RunID    string         `json:"run_id,omitempty"`
	State    model.RunState `json:"state"`
	Executed int            `json:"executed"`
	Failed   int            `json:"failed"`
	Position float64        `json:"position"`
}

// Runner is the consumer scheduler. It keeps a one-item lookahead on its
// source, sleeps on a fresh delayed task until the lookahead is due and then
// executes it. The runner owns its clock and resets it when it reaches a
// reset-requesting event.
type Runner struct {
	exec      executor.Executor
	logger    *slog.Logger
	clock     *clock.Clock
	metrics   *observability.Metrics
	observers []Observer

	mu          sync.Mutex
	state       model.RunState
	runID       string
	cancelled   bool
	paused      bool
	pauseStart  time.Time
	pausedTotal time.Duration
	correction  float64
	wake        chan struct{}
	stopPull    context.CancelFunc
	executed    int
	failed      int
}

// New creates a Runner driving exec.
func New(exec executor.Executor, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		exec:   exec,
		logger: logger.With("component", "runner"),
		state:  model.RunStateIdle,
		wake:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clock == nil {
		r.clock = clock.New()
	}
	return r
}

// AddObserver registers o. Must not be called while a run is in progress.
func (r *Runner) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

// Clock returns the runner's clock.
func (r *Runner) Clock() *clock.Clock {
	return r.clock
}

// Run drains src until it ends or Cancel is called. It returns the first
// executor error; the failing event is not retried. Cancelling ctx aborts an
// in-flight execution, Cancel does not.
func (r *Runner) Run(ctx context.Context, src Source) (err error) {
	pullCtx, stopPull := context.WithCancel(ctx)
	defer stopPull()

	r.mu.Lock()
	if r.state == model.RunStateRunning || r.state == model.RunStatePaused {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.state = model.RunStateRunning
	if r.paused {
		r.state = model.RunStatePaused
	}
	r.runID = uuid.New().String()
	r.cancelled = false
	r.executed, r.failed = 0, 0
	r.stopPull = stopPull
	runID := r.runID
	r.mu.Unlock()

	logger := r.logger.With("run_id", runID)
	logger.Info("run started")

	defer func() {
		final := model.RunStateCompleted
		switch {
		case err != nil:
			final = model.RunStateFailed
		case r.isCancelled():
			final = model.RunStateCancelled
		}
		r.mu.Lock()
		r.state = final
		r.stopPull = nil
		r.mu.Unlock()
		logger.Info("run finished", "state", final, "executed", r.Status().Executed)
	}()

	if err := r.exec.SetupSequence(ctx); err != nil {
		return fmt.Errorf("setup sequence: %w", err)
	}
	defer func() {
		if terr := r.exec.TeardownSequence(context.WithoutCancel(ctx)); terr != nil {
			err = errors.Join(err, fmt.Errorf("teardown sequence: %w", terr))
		}
	}()

	for seq := 0; ; seq++ {
		ev, ok, perr := src.Next(pullCtx)
		if perr != nil {
			if r.isCancelled() {
				return nil
			}
			return fmt.Errorf("pull next event: %w", perr)
		}
		if !ok {
			logger.Debug("source exhausted")
			return nil
		}
		if !r.waitFor(pullCtx, ev) {
			if r.isCancelled() {
				logger.Info("run cancelled", "discarded", ev.String())
				return nil
			}
			return ctx.Err()
		}
		if err := r.execute(ctx, ev, runID, seq); err != nil {
			return err
		}
	}
}

// waitFor blocks until ev is due. It reports false when the run was cancelled
// or ctx ended first.
func (r *Runner) waitFor(ctx context.Context, ev model.Event) bool {
	rebased := false
	for {
		r.mu.Lock()
		if r.cancelled {
			r.mu.Unlock()
			return false
		}
		wake := r.wake
		if r.paused {
			r.mu.Unlock()
			select {
			case <-wake:
				continue
			case <-ctx.Done():
				return false
			}
		}
		if ev.ResetClock && !rebased {
			r.rebaseLocked(ev)
			rebased = true
		}
		wait := r.waitLocked(ev)
		r.mu.Unlock()

		if wait <= 0 {
			return true
		}
		fired := make(chan struct{})
		task := delay.After(wait, func() { close(fired) })
		select {
		case <-fired:
			return true
		case <-wake:
			task.Cancel()
		case <-ctx.Done():
			task.Cancel()
			return false
		}
	}
}

func (r *Runner) waitLocked(ev model.Event) time.Duration {
	t, ok := ev.Time()
	if !ok {
		return 0
	}
	secs := t - r.positionLocked()
	return max(0, time.Duration(secs*float64(time.Second)))
}

func (r *Runner) pausedLocked() time.Duration {
	total := r.pausedTotal
	if r.paused {
		total += time.Since(r.pauseStart)
	}
	return total
}

func (r *Runner) positionLocked() float64 {
	return r.clock.Elapsed() + r.correction - r.pausedLocked().Seconds()
}

// rebaseLocked resets the clock just before a reset-requesting event runs,
// placing the event exactly on the new zero.
func (r *Runner) rebaseLocked(ev model.Event) {
	correction, ok := ev.Time()
	if !ok {
		correction = r.positionLocked()
	}
	r.clock.Consume(ev)
	r.correction = correction
	r.pausedTotal = 0
	r.logger.Info("clock rebased", "correction", correction)
}

// execute brackets ExecEvent with per-event setup and teardown and notifies
// observers on success. Teardown runs even if execution failed.
func (r *Runner) execute(ctx context.Context, ev model.Event, runID string, seq int) error {
	r.mu.Lock()
	position := r.positionLocked()
	r.mu.Unlock()

	lateness := 0.0
	if t, ok := ev.Time(); ok {
		lateness = position - t
	}
	channel := ""
	if ev.Channel != nil {
		channel = *ev.Channel
	}

	res, err := r.runEvent(ctx, ev)
	if err != nil {
		r.mu.Lock()
		r.failed++
		r.mu.Unlock()
		r.metrics.Failed(ctx, channel)
		r.logger.Error("event execution failed", "event", ev.String(), "error", err)
		return fmt.Errorf("execute %s: %w", ev.String(), err)
	}

	r.mu.Lock()
	r.executed++
	r.mu.Unlock()
	r.metrics.Executed(ctx, channel, lateness)

	frame := model.Frame{
		Result: res,
		Event:  ev,
		Meta: map[string]any{
			model.MetaRunID:        runID,
			model.MetaRunnerTimeMS: position * 1000,
			model.MetaLatenessMS:   lateness * 1000,
			model.MetaSequence:     seq,
		},
	}
	for _, o := range r.observers {
		o(frame)
	}
	r.logger.Debug("event executed", "event", ev.String(), "lateness_ms", lateness*1000)
	return nil
}

func (r *Runner) runEvent(ctx context.Context, ev model.Event) (res model.Result, err error) {
	if err := r.exec.SetupEvent(ctx, ev); err != nil {
		return model.Result{}, fmt.Errorf("setup: %w", err)
	}
	defer func() {
		if terr := r.exec.TeardownEvent(context.WithoutCancel(ctx), ev); terr != nil {
			err = errors.Join(err, fmt.Errorf("teardown: %w", terr))
		}
	}()
	return r.exec.ExecEvent(ctx, ev)
}

func (r *Runner) broadcastLocked() {
	close(r.wake)
	r.wake = make(chan struct{})
}

func (r *Runner) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// Cancel stops the run after the in-flight event, discarding the rest of the
// source. It does not interrupt an executing event.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return
	}
	r.cancelled = true
	if r.stopPull != nil {
		r.stopPull()
	}
	r.broadcastLocked()
	r.logger.Info("cancel requested")
}

// Pause freezes future executions. Time spent paused shifts every later
// event by the same amount.
func (r *Runner) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused || r.state.IsTerminal() {
		return
	}
	r.paused = true
	r.pauseStart = time.Now()
	if r.state.CanTransitionTo(model.RunStatePaused) {
		r.state = model.RunStatePaused
	}
	r.broadcastLocked()
	r.logger.Info("runner paused")
}

// Resume unfreezes executions.
func (r *Runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return
	}
	r.pausedTotal += time.Since(r.pauseStart)
	r.paused = false
	if r.state == model.RunStatePaused {
		r.state = model.RunStateRunning
	}
	r.broadcastLocked()
	r.logger.Info("runner resumed", "paused_total", r.pausedTotal)
}

// Status returns a snapshot of the runner.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		RunID:    r.runID,
		State:    r.state,
		Executed: r.executed,
		Failed:   r.failed,
		Position: r.positionLocked(),
	}
}
