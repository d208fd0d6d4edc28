// Package clock provides the resettable monotonic clock both schedulers use
// to translate target times into waits.
//
// The producer and the consumer each own a Clock. They stay approximately in
// sync only because both rebase when they handle an event whose ResetClock
// flag is set.
package clock

import (
	"sync"
	"time"

	"github.com/me/edaq/pkg/model"
)

// Clock measures seconds elapsed since its origin. The origin can be moved
// to "now" at any point. Safe for concurrent use.
type Clock struct {
	mu     sync.RWMutex
	origin time.Time
	now    func() time.Time
}

// New returns a clock whose origin is the current instant.
func New() *Clock {
	return NewWithSource(time.Now)
}

// NewWithSource returns a clock reading time from now. Used in tests.
func NewWithSource(now func() time.Time) *Clock {
	return &Clock{origin: now(), now: now}
}

// Elapsed returns the seconds elapsed since the last reset.
func (c *Clock) Elapsed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().Sub(c.origin).Seconds()
}

// Origin returns the instant of the last reset.
func (c *Clock) Origin() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.origin
}

// Reset moves the origin to the current instant.
func (c *Clock) Reset() {
	c.mu.Lock()
	c.origin = c.now()
	c.mu.Unlock()
}

// Consume resets the clock iff e requests it and reports whether it did.
func (c *Clock) Consume(e model.Event) bool {
	if !e.ResetClock {
		return false
	}
	c.Reset()
	return true
}
