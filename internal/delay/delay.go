// Package delay provides a cancellable one-shot delayed task.
package delay

import (
	"sync/atomic"
	"time"
)

// Task runs a function once after a delay unless cancelled first.
type Task struct {
	timer     *time.Timer
	cancelled atomic.Bool
}

// After schedules f to run on its own goroutine after d. A non-positive d
// runs f as soon as possible.
func After(d time.Duration, f func()) *Task {
	if d < 0 {
		d = 0
	}
	t := &Task{}
	t.timer = time.AfterFunc(d, func() {
		if t.cancelled.Load() {
			return
		}
		f()
	})
	return t
}

// Cancel prevents the task from running if it has not started yet. It
// reports whether the call stopped the task. Safe to call on a nil Task and
// more than once.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	t.cancelled.Store(true)
	return t.timer.Stop()
}
