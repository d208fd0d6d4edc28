package eventstore

import (
	"math"

	"github.com/me/edaq/pkg/model"
)

// Elapser reports the current position on the schedule, in seconds.
// Negative target times are resolved relative to it.
type Elapser interface {
	Elapsed() float64
}

// Option configures a Store.
type Option func(*Store)

// WithAxisOrder sets the active axis order. Time is always compared first so
// delivery stays earliest-first; its position in order is ignored.
func WithAxisOrder(order []model.Axis) Option {
	return func(s *Store) {
		s.order = normalizeOrder(order)
	}
}

// WithZDirection sets the z sweep policy for the run.
func WithZDirection(d model.ZDirection) Option {
	return func(s *Store) {
		if d.Valid() {
			s.zDir = d
		}
	}
}

// WithChannels seeds the channel registry, fixing the first ordinals.
func WithChannels(names ...string) Option {
	return func(s *Store) {
		for _, n := range names {
			s.registries[model.AxisChannel].add(n)
		}
	}
}

// WithClock sets the time source used to resolve negative target times.
func WithClock(c Elapser) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// AddResult describes the outcome of Store.Add.
type AddResult struct {
	// Event is the resolved event as stored (or the pending duplicate).
	Event model.Event
	// Added is false when an equal event was already pending.
	Added bool
	// Head is true when the event is now the earliest pending one.
	Head bool
}

// timeKey buckets events by target time; unset times share one bucket.
type timeKey struct {
	set bool
	t   float64
}

func keyOf(e model.Event) timeKey {
	t, ok := e.Time()
	return timeKey{set: ok, t: t}
}

// Store is the ordered, deduplicating collection of pending events.
type Store struct {
	order      []model.Axis
	zDir       model.ZDirection
	clock      Elapser
	registries map[model.Axis]*Registry
	heap       *eventHeap
	buckets    map[timeKey][]*entry
	seq        uint64
	denseIndex int
}

// New creates an empty store with the default axis order and ascending z.
func New(opts ...Option) *Store {
	s := &Store{
		order:      normalizeOrder(model.AllAxes),
		zDir:       model.ZAscending,
		registries: make(map[model.Axis]*Registry, len(model.AllAxes)),
		buckets:    make(map[timeKey][]*entry),
	}
	for _, a := range model.AllAxes {
		s.registries[a] = newRegistry(a)
	}
	s.heap = &eventHeap{less: s.less}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add resolves e and inserts it.
//
// AttachIndex ordinals are replaced by the registry values known right now;
// ordinals that point past the end of a registry are left unresolved. A
// negative target time becomes now + |t|. If an equal event is already
// pending the call is a no-op.
func (s *Store) Add(e model.Event) AddResult {
	ev := s.resolve(e)

	for _, other := range s.buckets[keyOf(ev)] {
		if s.Equal(other.event, ev) {
			return AddResult{Event: other.event, Added: false, Head: heapPeek(s.heap) == other}
		}
	}

	s.discover(ev)
	s.seq++
	en := &entry{event: ev, seq: s.seq}
	heapPush(s.heap, en)
	k := keyOf(ev)
	s.buckets[k] = append(s.buckets[k], en)

	return AddResult{Event: ev, Added: true, Head: heapPeek(s.heap) == en}
}

// Resolve returns e with attach indices and negative times resolved, without
// inserting it.
func (s *Store) Resolve(e model.Event) model.Event {
	return s.resolve(e)
}

func (s *Store) resolve(e model.Event) model.Event {
	ev := e.Clone()
	for axis, ord := range ev.AttachIndex {
		r, ok := s.registries[axis]
		if !ok {
			continue
		}
		if v, ok := r.At(ord); ok {
			ev.SetValue(axis, v)
		}
	}
	if t, ok := ev.Time(); ok && t < 0 {
		now := 0.0
		if s.clock != nil {
			now = s.clock.Elapsed()
		}
		ev.TargetTime = model.Ptr(now + math.Abs(t))
	}
	return ev
}

// discover records the event's concrete axis values in the registries.
func (s *Store) discover(ev model.Event) {
	for _, a := range model.AllAxes {
		if v := ev.Value(a); v != nil {
			s.registries[a].add(v)
		}
	}
}

// Peek returns the earliest pending event without removing it.
func (s *Store) Peek() (model.Event, bool) {
	en := heapPeek(s.heap)
	if en == nil {
		return model.Event{}, false
	}
	return en.event, true
}

// Pop removes and returns the earliest pending event, stamped with its dense
// time index and axis ordinals. The dense index advances once the last event
// sharing a target time has been popped.
func (s *Store) Pop() (model.Event, bool) {
	if s.heap.Len() == 0 {
		return model.Event{}, false
	}
	en := heapPop(s.heap)
	ev := en.event

	ev.DenseTimeIndex = model.Ptr(s.denseIndex)
	ev.Index = s.ordinals(ev)

	if s.dropFromBucket(en) {
		s.denseIndex++
	}
	return ev, true
}

// Remove deletes the pending event equal to e and reports whether one was found.
func (s *Store) Remove(e model.Event) bool {
	for _, en := range s.buckets[keyOf(e)] {
		if s.Equal(en.event, e) {
			heapRemove(s.heap, en)
			s.dropFromBucket(en)
			return true
		}
	}
	return false
}

// dropFromBucket unlinks en from its time bucket. When the bucket empties it
// is discarded together with its time registry entry, and true is returned.
func (s *Store) dropFromBucket(en *entry) bool {
	k := keyOf(en.event)
	bucket := s.buckets[k]
	for i, other := range bucket {
		if other == en {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) > 0 {
		s.buckets[k] = bucket
		return false
	}
	delete(s.buckets, k)
	if k.set {
		s.registries[model.AxisTime].remove(k.t)
	}
	return true
}

func (s *Store) ordinals(ev model.Event) map[model.Axis]int {
	idx := map[model.Axis]int{model.AxisTime: s.denseIndex}
	for _, a := range []model.Axis{model.AxisChannel, model.AxisZ, model.AxisPosition, model.AxisGroup} {
		v := ev.Value(a)
		if v == nil {
			continue
		}
		if i, ok := s.registries[a].Ordinal(v); ok {
			idx[a] = i
		}
	}
	return idx
}

// Len returns the number of pending events.
func (s *Store) Len() int { return s.heap.Len() }

// Values returns the discovered values of axis a in ordinal order. For the
// time axis these are the pending target times.
func (s *Store) Values(a model.Axis) []any {
	r, ok := s.registries[a]
	if !ok {
		return nil
	}
	return r.Values()
}

// ValueAt returns the value with ordinal i on axis a.
func (s *Store) ValueAt(a model.Axis, i int) (any, bool) {
	r, ok := s.registries[a]
	if !ok {
		return nil, false
	}
	return r.At(i)
}

// Ordinal returns the ordinal of v on axis a.
func (s *Store) Ordinal(a model.Axis, v any) (int, bool) {
	r, ok := s.registries[a]
	if !ok {
		return 0, false
	}
	return r.Ordinal(v)
}

// DenseIndex returns the dense time index the next drained timepoint gets.
func (s *Store) DenseIndex() int { return s.denseIndex }

// normalizeOrder puts time first and drops unknown or repeated axes.
func normalizeOrder(order []model.Axis) []model.Axis {
	out := []model.Axis{model.AxisTime}
	seen := map[model.Axis]bool{model.AxisTime: true}
	for _, a := range order {
		if !a.Valid() || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
