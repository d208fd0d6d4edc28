package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/me/edaq/internal/clock"
	"github.com/me/edaq/internal/delay"
	"github.com/me/edaq/internal/eventstore"
	"github.com/me/edaq/internal/observability"
	"github.com/me/edaq/pkg/model"
)

// Config holds producer scheduler configuration.
type Config struct {
	AxisOrder  []model.Axis
	ZDirection model.ZDirection
	Channels   []string // seeds the channel registry in this order

	// Warmup is added to explicit target times registered before the first
	// delivery, giving concurrent producers time to register overlapping work.
	Warmup time.Duration
	// PreemptiveLead delivers events slightly ahead of their due time to
	// absorb dispatch latency downstream.
	PreemptiveLead time.Duration
	// ResetGuard delays re-arming after a reset-requesting delivery so the
	// consumer can rebase first.
	ResetGuard time.Duration
	// DeliveryBuffer is the capacity of the delivery channel.
	DeliveryBuffer int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AxisOrder:      model.AllAxes,
		ZDirection:     model.ZAscending,
		Warmup:         3 * time.Second,
		PreemptiveLead: 20 * time.Millisecond,
		ResetGuard:     10 * time.Millisecond,
		DeliveryBuffer: 1024,
	}
}

// Option configures optional Producer dependencies.
type Option func(*Producer)

// WithClock replaces the producer's clock. Used in tests.
func WithClock(c *clock.Clock) Option {
	return func(p *Producer) {
		p.clock = c
	}
}

// WithMetrics records registrations and deliveries on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Producer) {
		p.metrics = m
	}
}

// Status is a point-in-time snapshot of a Producer.
type Status struct {
	Pending    int     `json:"pending"`
	Delivered  int     `json:"delivered"`
	Drained    int     `json:"drained"`
	DenseIndex int     `json:"dense_index"`
	Position   float64 `json:"position"`
	Paused     bool    `json:"paused"`
	Stopped    bool    `json:"stopped"`
	Actuators  int     `json:"actuators"`
}

// Producer turns concurrently registered events into a time-ordered delivery
// stream. It keeps exactly one pending delayed task, always aimed at the
// earliest event, and re-arms it whenever a registration changes the head or
// a delivery completes.
//
// Target times live on one schedule axis. When a reset-requesting event is
// delivered the clock is rebased and the event's target time becomes the
// correction subtracted from every later wait, so events registered before
// the reset keep their relative spacing.
type Producer struct {
	cfg     Config
	logger  *slog.Logger
	clock   *clock.Clock
	metrics *observability.Metrics

	mu          sync.Mutex
	store       *eventstore.Store
	task        *delay.Task
	guard       *delay.Task
	gen         uint64
	out         chan model.Event
	done        chan struct{}
	sending     sync.WaitGroup
	stopped     bool
	inflight    bool
	delivered   int
	drained     int
	correction  float64
	paused      bool
	pauseStart  time.Time
	pausedTotal time.Duration
	actuators   map[string]Registration
	nextChannel int
	resetOwner  string
}

// New creates a Producer. Its clock starts now.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Producer {
	if cfg.DeliveryBuffer < 0 {
		cfg.DeliveryBuffer = 0
	}
	p := &Producer{
		cfg:       cfg,
		logger:    logger.With("component", "producer"),
		out:       make(chan model.Event, cfg.DeliveryBuffer),
		done:      make(chan struct{}),
		actuators: make(map[string]Registration),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = clock.New()
	}
	p.store = eventstore.New(
		eventstore.WithAxisOrder(cfg.AxisOrder),
		eventstore.WithZDirection(cfg.ZDirection),
		eventstore.WithChannels(cfg.Channels...),
		eventstore.WithClock(positionFunc(p.positionLocked)),
	)
	return p
}

// positionFunc adapts a method to eventstore.Elapser.
type positionFunc func() float64

func (f positionFunc) Elapsed() float64 { return f() }

// Deliveries returns the delivery channel. It is closed by Stop; the close is
// the end-of-sequence sentinel.
func (p *Producer) Deliveries() <-chan model.Event {
	return p.out
}

// Clock returns the producer's clock.
func (p *Producer) Clock() *clock.Clock {
	return p.clock
}

// RegisterActuator allocates a disjoint block of nChannels channel ordinals.
// Only the first caller may request clock resets.
func (p *Producer) RegisterActuator(nChannels int) Registration {
	if nChannels < 0 {
		nChannels = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	reg := Registration{
		ID:       uuid.New().String(),
		Channels: ChannelBlock{Start: p.nextChannel, Size: nChannels},
		CanReset: p.resetOwner == "",
	}
	if reg.CanReset {
		p.resetOwner = reg.ID
	}
	p.nextChannel += nChannels
	p.actuators[reg.ID] = reg

	p.logger.Info("actuator registered", "actuator_id", reg.ID,
		"channel_start", reg.Channels.Start, "channels", nChannels, "can_reset", reg.CanReset)
	return reg
}

// RegisterEvent normalizes e and inserts it into the event store.
//
// Normalization remaps attach-index channel ordinals into the actuator's
// block, strips reset requests from actuators without permission, and before
// the first delivery shifts explicit target times by the warmup. Negative
// times and attach indices are resolved by the store. If the new event is
// now the earliest, the pending delivery is re-armed for it.
//
// Registrations after Stop and duplicates are silently absorbed.
func (p *Producer) RegisterEvent(e model.Event, actuatorID string) (model.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		p.logger.Debug("registration after stop ignored", "event", e.String())
		return e, false
	}

	ev := p.normalizeLocked(e, actuatorID)
	res := p.store.Add(ev)
	if !res.Added {
		p.metrics.Duplicate(context.Background())
		p.logger.Debug("duplicate event absorbed", "event", res.Event.String())
		return res.Event, false
	}
	p.metrics.Registered(context.Background())
	p.logger.Debug("event registered", "event", res.Event.String(), "head", res.Head, "actuator_id", actuatorID)

	if res.Head {
		p.armLocked()
	}
	return res.Event, true
}

func (p *Producer) normalizeLocked(e model.Event, actuatorID string) model.Event {
	ev := e.Clone()
	reg, known := p.actuators[actuatorID]

	if c, ok := ev.AttachIndex[model.AxisChannel]; ok && known && reg.Channels.Size > 0 {
		if c >= 0 && c < reg.Channels.Size {
			ev.AttachIndex[model.AxisChannel] = reg.Channels.Start + c
		} else {
			p.logger.Warn("channel ordinal outside actuator block", "actuator_id", actuatorID,
				"ordinal", c, "block_size", reg.Channels.Size)
		}
	}

	if ev.ResetClock && (!known || !reg.CanReset) {
		ev.ResetClock = false
		p.logger.Warn("clock reset stripped, actuator lacks permission", "actuator_id", actuatorID)
	}

	if p.delivered == 0 {
		if t, ok := ev.Time(); ok && t >= 0 {
			ev.TargetTime = model.Ptr(t + p.cfg.Warmup.Seconds())
		}
	}
	return ev
}

// armLocked cancels the outstanding delayed task and, unless the producer is
// idle, paused, stopped or mid-delivery, arms a fresh one for the head event.
func (p *Producer) armLocked() {
	p.task.Cancel()
	p.task = nil
	p.gen++

	if p.stopped || p.paused || p.inflight {
		return
	}
	head, ok := p.store.Peek()
	if !ok {
		return
	}
	wait := p.waitLocked(head)
	gen := p.gen
	p.task = delay.After(wait, func() { p.fire(gen) })
	p.logger.Debug("delivery armed", "event", head.String(), "wait", wait)
}

// waitLocked computes how long to sleep before delivering e. Events without a
// target time are due now. Reset-requesting events are not delivered early:
// the rebase must land on the nominal instant.
func (p *Producer) waitLocked(e model.Event) time.Duration {
	t, ok := e.Time()
	if !ok {
		return 0
	}
	secs := t - p.clock.Elapsed() - p.correction + p.pausedLocked().Seconds()
	wait := time.Duration(secs * float64(time.Second))
	if !e.ResetClock {
		wait -= p.cfg.PreemptiveLead
	}
	return max(0, wait)
}

func (p *Producer) pausedLocked() time.Duration {
	total := p.pausedTotal
	if p.paused {
		total += time.Since(p.pauseStart)
	}
	return total
}

// positionLocked is the current point on the schedule axis: the target time
// that would be due right now.
func (p *Producer) positionLocked() float64 {
	return p.clock.Elapsed() + p.correction - p.pausedLocked().Seconds()
}

// fire pops the head event and pushes it to the delivery channel.
func (p *Producer) fire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.stopped || p.paused {
		p.mu.Unlock()
		return
	}
	ev, ok := p.store.Pop()
	p.task = nil
	if !ok {
		p.mu.Unlock()
		return
	}
	p.inflight = true
	p.delivered++
	if ev.ResetClock {
		p.rebaseLocked(ev)
	}
	p.sending.Add(1)
	p.mu.Unlock()

	sent := p.send(ev)
	p.sending.Done()
	if sent {
		channel := ""
		if ev.Channel != nil {
			channel = *ev.Channel
		}
		p.metrics.Delivered(context.Background(), channel)
		p.logger.Debug("event delivered", "event", ev.String(), "position", p.Position())
	} else {
		p.metrics.Removed(context.Background(), 1)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if ev.ResetClock && p.cfg.ResetGuard > 0 {
		p.guard = delay.After(p.cfg.ResetGuard, p.finishDelivery)
		return
	}
	p.inflight = false
	p.armLocked()
}

func (p *Producer) finishDelivery() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.guard = nil
	if p.stopped {
		return
	}
	p.inflight = false
	p.armLocked()
}

// rebaseLocked resets the clock for a reset-requesting event. Its target time
// becomes the correction so pending events keep their offsets from it.
func (p *Producer) rebaseLocked(ev model.Event) {
	correction, ok := ev.Time()
	if !ok {
		correction = p.positionLocked()
	}
	p.clock.Reset()
	p.correction = correction
	p.pausedTotal = 0
	if p.paused {
		p.pauseStart = time.Now()
	}
	p.logger.Info("clock rebased", "correction", correction)
}

func (p *Producer) send(ev model.Event) bool {
	select {
	case p.out <- ev:
		return true
	case <-p.done:
		return false
	}
}

// Stop cancels the pending delivery, ignores further registrations and
// closes the delivery channel once any in-flight send has finished. Events
// already buffered in the channel remain readable.
func (p *Producer) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.task.Cancel()
	p.guard.Cancel()
	p.task, p.guard = nil, nil
	p.gen++
	remaining := p.store.Len()
	close(p.done)
	p.mu.Unlock()

	p.sending.Wait()
	close(p.out)
	p.metrics.Removed(context.Background(), remaining)
	p.logger.Info("producer stopped", "undelivered", remaining)
}

// Drain empties already-delivered but unconsumed events without blocking and
// returns them. Drained events count as delivered in Status; they are also
// counted in Status.Drained since no consumer will ever see them.
func (p *Producer) Drain() []model.Event {
	var drained []model.Event
	defer func() {
		if len(drained) == 0 {
			return
		}
		p.mu.Lock()
		p.drained += len(drained)
		p.mu.Unlock()
		p.logger.Info("delivery backlog drained", "events", len(drained))
	}()
	for {
		select {
		case ev, ok := <-p.out:
			if !ok {
				return drained
			}
			drained = append(drained, ev)
		default:
			return drained
		}
	}
}

// Pause freezes deliveries. Time spent paused is added to every later wait.
func (p *Producer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused || p.stopped {
		return
	}
	p.paused = true
	p.pauseStart = time.Now()
	p.task.Cancel()
	p.task = nil
	p.gen++
	p.logger.Info("producer paused")
}

// Resume unfreezes deliveries and re-arms for the head event.
func (p *Producer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.pausedTotal += time.Since(p.pauseStart)
	p.paused = false
	p.logger.Info("producer resumed", "paused_total", p.pausedTotal)
	p.armLocked()
}

// Remove discards a pending event equal to e.
func (p *Producer) Remove(e model.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	head, _ := p.store.Peek()
	if !p.store.Remove(e) {
		return false
	}
	p.metrics.Removed(context.Background(), 1)
	if p.store.Equal(head, e) {
		p.armLocked()
	}
	return true
}

// Position returns the current point on the schedule axis in seconds.
func (p *Producer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

// Values returns the discovered values of axis a.
func (p *Producer) Values(a model.Axis) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Values(a)
}

// ValueAt returns the value at ordinal i of axis a.
func (p *Producer) ValueAt(a model.Axis, i int) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.ValueAt(a, i)
}

// Peek returns the earliest pending event.
func (p *Producer) Peek() (model.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Peek()
}

// Status returns a snapshot of the producer.
func (p *Producer) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Pending:    p.store.Len(),
		Delivered:  p.delivered,
		Drained:    p.drained,
		DenseIndex: p.store.DenseIndex(),
		Position:   p.positionLocked(),
		Paused:     p.paused,
		Stopped:    p.stopped,
		Actuators:  len(p.actuators),
	}
}

var _ Registrar = (*Producer)(nil)
