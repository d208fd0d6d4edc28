// Package hub carries frames from the runner's observability hook to any
// number of subscribers over bounded channels. Publishing never blocks: a
// subscriber that falls behind loses frames rather than stalling the run.
package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/me/edaq/pkg/model"
)

// Subscription receives frames on C until it is closed.
type Subscription struct {
	C <-chan model.Frame

	name    string
	ch      chan model.Frame
	hub     *Hub
	dropped atomic.Int64
}

// Name returns the subscriber name given to Subscribe.
func (s *Subscription) Name() string { return s.name }

// Dropped returns how many frames were discarded because C was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub fans frames out to subscribers.
type Hub struct {
	buffer int
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// New creates a Hub whose subscriptions buffer up to buffer frames each.
func New(buffer int, logger *slog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		buffer: buffer,
		logger: logger.With("component", "hub"),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber. Subscribing to a closed hub returns
// a subscription whose channel is already closed.
func (h *Hub) Subscribe(name string) *Subscription {
	ch := make(chan model.Frame, h.buffer)
	s := &Subscription{C: ch, name: name, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return s
	}
	h.subs[s] = struct{}{}
	h.logger.Debug("subscribed", "subscriber", name)
	return s
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
	h.logger.Debug("unsubscribed", "subscriber", s.name, "dropped", s.Dropped())
}

// Publish offers f to every subscriber without blocking. It has the
// signature of a runner observer.
func (h *Hub) Publish(f model.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- f:
		default:
			s.dropped.Add(1)
			h.logger.Warn("subscriber full, frame dropped", "subscriber", s.name, "event", f.Event.String())
		}
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscription. Later publishes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		close(s.ch)
	}
	clear(h.subs)
}
