package eventstore

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/me/edaq/pkg/model"
)

type fixedClock float64

func (c fixedClock) Elapsed() float64 { return float64(c) }

func ev(t float64, channel string) model.Event {
	e := model.At(t)
	if channel != "" {
		e.Channel = model.Ptr(channel)
	}
	return e
}

func popTimes(t *testing.T, s *Store) []float64 {
	t.Helper()
	var out []float64
	for {
		e, ok := s.Pop()
		if !ok {
			return out
		}
		tt, _ := e.Time()
		out = append(out, tt)
	}
}

func TestStore_PopOrderIsEarliestFirst(t *testing.T) {
	s := New()
	for _, tt := range []float64{2.0, 0.5, 1.0} {
		s.Add(model.At(tt))
	}
	got := popTimes(t, s)
	want := []float64{0.5, 1.0, 2.0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pop order = %v, want %v", got, want)
	}
}

func TestStore_NegativeTimeResolvesAgainstClock(t *testing.T) {
	s := New(WithClock(fixedClock(10.0)))
	res := s.Add(model.At(-3))
	if got, _ := res.Event.Time(); got != 13.0 {
		t.Errorf("resolved target = %v, want 13.0", got)
	}
}

func TestStore_AttachIndexChannelUsesDiscoveryOrder(t *testing.T) {
	s := New()
	s.Add(ev(0, "A"))
	s.Add(ev(1, "B"))

	res := s.Add(model.Event{TargetTime: model.Ptr(2.0), AttachIndex: map[model.Axis]int{model.AxisChannel: 0}})
	if res.Event.Channel == nil || *res.Event.Channel != "A" {
		t.Fatalf("channel = %v, want A", res.Event.Channel)
	}
	if got := s.Values(model.AxisChannel); !reflect.DeepEqual(got, []any{"A", "B"}) {
		t.Errorf("channel registry = %v", got)
	}
}

func TestStore_AttachIndexTimeAndOutOfRange(t *testing.T) {
	s := New()
	s.Add(model.At(0))
	s.Add(model.At(5))
	s.Add(model.At(10))

	res := s.Add(model.Event{Channel: model.Ptr("FITC"), AttachIndex: map[model.Axis]int{model.AxisTime: 1}})
	if got, _ := res.Event.Time(); got != 5.0 {
		t.Errorf("attach t:1 resolved to %v, want 5", got)
	}

	res = s.Add(model.Event{Channel: model.Ptr("FITC"), AttachIndex: map[model.Axis]int{model.AxisTime: 10}})
	if _, ok := res.Event.Time(); ok {
		t.Error("out-of-range ordinal should leave time unset")
	}
	if !res.Head {
		t.Error("an event without target time sorts first and must be the head")
	}

	got := popTimes(t, s)
	want := []float64{0, 0, 5, 5, 10} // the unset time pops first and reports 0
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pop order = %v, want %v", got, want)
	}
}

func TestStore_DuplicateIsDropped(t *testing.T) {
	s := New()
	first := s.Add(ev(1, "DAPI"))
	second := s.Add(ev(1, "DAPI"))
	if !first.Added || second.Added {
		t.Fatalf("Added = %v/%v, want true/false", first.Added, second.Added)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}

	withPayload := ev(1, "DAPI")
	withPayload.Payload = map[string]any{"score": 0.9}
	if s.Add(withPayload).Added {
		t.Error("payload must not make an event distinct")
	}

	reset := ev(1, "DAPI")
	reset.ResetClock = true
	if !s.Add(reset).Added {
		t.Error("differing reset flag should make the event distinct")
	}
}

func TestStore_DenseIndexPerTimepoint(t *testing.T) {
	s := New()
	s.Add(ev(0, "DAPI"))
	s.Add(ev(0, "FITC"))
	s.Add(ev(3, "DAPI"))

	var idx []int
	for {
		e, ok := s.Pop()
		if !ok {
			break
		}
		idx = append(idx, *e.DenseTimeIndex)
		if e.Index[model.AxisTime] != *e.DenseTimeIndex {
			t.Errorf("Index[t] = %d, want %d", e.Index[model.AxisTime], *e.DenseTimeIndex)
		}
	}
	if !reflect.DeepEqual(idx, []int{0, 0, 1}) {
		t.Errorf("dense indices = %v, want [0 0 1]", idx)
	}
	if len(s.Values(model.AxisTime)) != 0 {
		t.Errorf("time registry should be empty after draining, got %v", s.Values(model.AxisTime))
	}
}

func TestStore_PopStampsOrdinals(t *testing.T) {
	s := New(WithChannels("DAPI", "FITC"))
	e := ev(0, "FITC")
	e.Z = model.Ptr(2.0)
	s.Add(e)
	other := ev(0, "DAPI")
	other.Z = model.Ptr(1.0)
	s.Add(other)

	s.Pop() // DAPI first: channel ordinal 0
	got, _ := s.Pop()
	if got.Index[model.AxisChannel] != 1 {
		t.Errorf("Index[c] = %d, want 1", got.Index[model.AxisChannel])
	}
	if got.Index[model.AxisZ] != 1 {
		t.Errorf("Index[z] = %d, want 1", got.Index[model.AxisZ])
	}
}

func TestStore_RemoveDiscardsEmptyBucket(t *testing.T) {
	s := New()
	s.Add(ev(1, "DAPI"))
	s.Add(ev(2, "DAPI"))

	if !s.Remove(ev(1, "DAPI")) {
		t.Fatal("Remove returned false for a pending event")
	}
	if s.Remove(ev(1, "DAPI")) {
		t.Error("second Remove should find nothing")
	}
	if got := s.Values(model.AxisTime); !reflect.DeepEqual(got, []any{2.0}) {
		t.Errorf("time registry = %v, want [2]", got)
	}
	head, _ := s.Peek()
	if tt, _ := head.Time(); tt != 2 {
		t.Errorf("head time = %v, want 2", tt)
	}
}

func TestStore_CompareRules(t *testing.T) {
	s := New(WithChannels("Cy5", "DAPI"))

	tests := []struct {
		name string
		a, b model.Event
		want int
	}{
		{"earlier time first", model.At(1), model.At(2), -1},
		{"unset time first", model.Event{}, model.At(0), -1},
		{"channel by discovery not alphabet", ev(1, "Cy5"), ev(1, "DAPI"), -1},
		{
			"group lexicographic",
			model.Event{TargetTime: model.Ptr(1.0), Group: model.Ptr("B")},
			model.Event{TargetTime: model.Ptr(1.0), Group: model.Ptr("A")},
			1,
		},
		{
			"position before group",
			model.Event{TargetTime: model.Ptr(1.0), Position: model.Ptr(0), Group: model.Ptr("Z")},
			model.Event{TargetTime: model.Ptr(1.0), Position: model.Ptr(1), Group: model.Ptr("A")},
			-1,
		},
		{"full tie", ev(1, "DAPI"), ev(1, "DAPI"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStore_AxisOrderKeepsTimeFirst(t *testing.T) {
	s := New(WithAxisOrder([]model.Axis{model.AxisChannel, model.AxisTime}), WithChannels("A", "B"))
	s.Add(ev(2, "A"))
	s.Add(ev(1, "B"))
	got := popTimes(t, s)
	if !reflect.DeepEqual(got, []float64{1, 2}) {
		t.Errorf("pop order = %v, want [1 2]", got)
	}
}

func TestStore_ZDirection(t *testing.T) {
	zs := func(s *Store) []float64 {
		var out []float64
		for {
			e, ok := s.Pop()
			if !ok {
				return out
			}
			out = append(out, *e.Z)
		}
	}
	add := func(s *Store, channel string) {
		for _, z := range []float64{1, 0, 2} {
			e := ev(0, channel)
			e.Z = model.Ptr(z)
			s.Add(e)
		}
	}

	asc := New()
	add(asc, "A")
	if got := zs(asc); !reflect.DeepEqual(got, []float64{0, 1, 2}) {
		t.Errorf("ascending = %v", got)
	}

	desc := New(WithZDirection(model.ZDescending))
	add(desc, "A")
	if got := zs(desc); !reflect.DeepEqual(got, []float64{2, 1, 0}) {
		t.Errorf("descending = %v", got)
	}

	alt := New(WithZDirection(model.ZAlternate), WithChannels("A", "B"))
	add(alt, "A")
	add(alt, "B")
	if got := zs(alt); !reflect.DeepEqual(got, []float64{0, 1, 2, 2, 1, 0}) {
		t.Errorf("alternate = %v", got)
	}
}

func TestStore_AlternateZWithZBeforeChannel(t *testing.T) {
	s := New(
		WithAxisOrder([]model.Axis{model.AxisTime, model.AxisZ, model.AxisChannel}),
		WithZDirection(model.ZAlternate),
		WithChannels("A", "B"),
	)
	a := ev(1, "B")
	a.Z = model.Ptr(1.0)
	b := ev(1, "A")
	b.Z = model.Ptr(2.0)
	if ab, ba := s.Compare(a, b), s.Compare(b, a); ab != -ba || ab == 0 {
		t.Fatalf("Compare(a,b)=%d Compare(b,a)=%d, want opposite non-zero signs", ab, ba)
	}

	for _, c := range []string{"B", "A"} {
		for _, z := range []float64{1, 0, 2} {
			e := ev(1, c)
			e.Z = model.Ptr(z)
			s.Add(e)
		}
	}
	var got []string
	for {
		e, ok := s.Pop()
		if !ok {
			break
		}
		got = append(got, fmt.Sprintf("%s%g", *e.Channel, *e.Z))
	}
	want := []string{"A0", "A1", "A2", "B2", "B1", "B0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("pop order = %v, want %v", got, want)
	}
}

func TestStore_ResolutionIsDeterministic(t *testing.T) {
	run := func() []model.Event {
		s := New()
		s.Add(ev(0, "A"))
		s.Add(ev(4, "B"))
		s.Add(ev(2, "A"))
		var out []model.Event
		for _, ai := range []map[model.Axis]int{
			{model.AxisTime: 1, model.AxisChannel: 1},
			{model.AxisTime: 0},
			{model.AxisChannel: 0},
		} {
			out = append(out, s.Add(model.Event{AttachIndex: ai}).Event)
		}
		return out
	}
	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolution differs between identical runs:\n%v\n%v", first, second)
	}
	if tt, _ := first[0].Time(); tt != 2 || *first[0].Channel != "B" {
		t.Errorf("first resolution = %v, want t=2 c=B", first[0])
	}
}

func TestStore_SortedOrdinalsShiftWhenSmallerValueArrives(t *testing.T) {
	s := New()
	e := ev(0, "A")
	e.Z = model.Ptr(5.0)
	s.Add(e)

	res := s.Add(model.Event{TargetTime: model.Ptr(1.0), AttachIndex: map[model.Axis]int{model.AxisZ: 0}})
	if *res.Event.Z != 5.0 {
		t.Fatalf("z = %v, want 5", *res.Event.Z)
	}

	lower := ev(0, "A")
	lower.Z = model.Ptr(1.0)
	s.Add(lower)

	if v, _ := s.ValueAt(model.AxisZ, 0); v != 1.0 {
		t.Errorf("ordinal 0 now = %v, want 1", v)
	}
	// The earlier resolution stays frozen.
	pending := s.Values(model.AxisZ)
	if !reflect.DeepEqual(pending, []any{1.0, 5.0}) {
		t.Errorf("z registry = %v", pending)
	}
}
