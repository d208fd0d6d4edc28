package runner

import (
	"context"

	"github.com/me/edaq/pkg/model"
)

// Source is a pull-style provider of events. Next blocks until an event is
// available and returns false once the sequence has ended.
type Source interface {
	Next(ctx context.Context) (model.Event, bool, error)
}

// ChannelSource reads from a delivery channel. A closed channel is the
// end-of-sequence sentinel.
type ChannelSource <-chan model.Event

// Next implements Source.
func (c ChannelSource) Next(ctx context.Context) (model.Event, bool, error) {
	select {
	case ev, ok := <-c:
		return ev, ok, nil
	case <-ctx.Done():
		return model.Event{}, false, ctx.Err()
	}
}

// SliceSource yields a fixed list of events, then ends.
type SliceSource struct {
	events []model.Event
}

// NewSliceSource returns a Source over events.
func NewSliceSource(events ...model.Event) *SliceSource {
	return &SliceSource{events: events}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (model.Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Event{}, false, err
	}
	if len(s.events) == 0 {
		return model.Event{}, false, nil
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, true, nil
}
