package delay

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAfter_Runs(t *testing.T) {
	done := make(chan time.Time, 1)
	start := time.Now()
	After(30*time.Millisecond, func() { done <- time.Now() })

	select {
	case at := <-done:
		if d := at.Sub(start); d < 25*time.Millisecond {
			t.Errorf("ran after %v, want >= 30ms", d)
		}
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestAfter_NegativeRunsImmediately(t *testing.T) {
	done := make(chan struct{})
	After(-time.Second, func() { close(done) })
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("task with negative delay did not run promptly")
	}
}

func TestTask_Cancel(t *testing.T) {
	var ran atomic.Bool
	task := After(50*time.Millisecond, func() { ran.Store(true) })
	if !task.Cancel() {
		t.Error("Cancel() = false for a pending task")
	}
	if task.Cancel() {
		t.Error("second Cancel() = true")
	}
	time.Sleep(100 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled task ran")
	}

	var nilTask *Task
	if nilTask.Cancel() {
		t.Error("Cancel on nil task returned true")
	}
}
