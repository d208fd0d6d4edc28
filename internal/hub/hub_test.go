package hub

import (
	"io"
	"log/slog"
	"testing"

	"github.com/me/edaq/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func frameAt(t float64) model.Frame {
	return model.Frame{Event: model.At(t)}
}

func TestHub_FanOut(t *testing.T) {
	h := New(4, testLogger())
	a := h.Subscribe("a")
	b := h.Subscribe("b")

	h.Publish(frameAt(1))

	for _, s := range []*Subscription{a, b} {
		select {
		case f := <-s.C:
			if tt, _ := f.Event.Time(); tt != 1 {
				t.Errorf("%s got t=%v", s.Name(), tt)
			}
		default:
			t.Errorf("%s received nothing", s.Name())
		}
	}
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	h := New(2, testLogger())
	s := h.Subscribe("slow")

	for i := range 5 {
		h.Publish(frameAt(float64(i)))
	}
	if got := s.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
	first := <-s.C
	if tt, _ := first.Event.Time(); tt != 0 {
		t.Errorf("oldest frame kept should be t=0, got %v", tt)
	}
}

func TestHub_CloseSubscription(t *testing.T) {
	h := New(1, testLogger())
	s := h.Subscribe("x")
	s.Close()
	s.Close()

	if _, ok := <-s.C; ok {
		t.Error("channel should be closed")
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
	h.Publish(frameAt(0)) // must not panic on a closed subscriber
}

func TestHub_Close(t *testing.T) {
	h := New(1, testLogger())
	s := h.Subscribe("x")
	h.Close()
	if _, ok := <-s.C; ok {
		t.Error("subscription should be closed by hub Close")
	}
	s.Close()

	late := h.Subscribe("late")
	if _, ok := <-late.C; ok {
		t.Error("subscribing to a closed hub should yield a closed channel")
	}
}
