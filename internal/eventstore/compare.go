package eventstore

import (
	"cmp"
	"strings"

	"github.com/me/edaq/pkg/model"
)

// Compare orders two events under the store's rule: target time first, then
// the remaining axes in the active order. An unset value sorts before any
// concrete one. It returns 0 when every axis ties; the store breaks such ties
// by insertion order.
func (s *Store) Compare(a, b model.Event) int {
	for _, axis := range s.order {
		av, bv := a.Value(axis), b.Value(axis)
		if av == nil && bv == nil {
			continue
		}
		if av == nil {
			return -1
		}
		if bv == nil {
			return 1
		}
		if c := s.compareAxis(axis, av, bv, a, b); c != 0 {
			return c
		}
	}
	return 0
}

func (s *Store) compareAxis(axis model.Axis, av, bv any, a, b model.Event) int {
	switch axis {
	case model.AxisChannel:
		ai, _ := s.registries[model.AxisChannel].Ordinal(av)
		bi, _ := s.registries[model.AxisChannel].Ordinal(bv)
		return cmp.Compare(ai, bi)
	case model.AxisGroup:
		return strings.Compare(av.(string), bv.(string))
	case model.AxisZ:
		if s.zDir == model.ZAlternate {
			// The sweep direction belongs to a channel, so z only orders
			// events within one channel.
			if c := cmp.Compare(s.channelOrdinal(a), s.channelOrdinal(b)); c != 0 {
				return c
			}
		}
		c := cmp.Compare(av.(float64), bv.(float64))
		if s.zDescending(a) {
			c = -c
		}
		return c
	case model.AxisPosition:
		return cmp.Compare(av.(int), bv.(int))
	default:
		return cmp.Compare(av.(float64), bv.(float64))
	}
}

// zDescending reports whether z should sweep downwards for events on a's
// channel. Under ZAlternate callers compare only events sharing a channel.
func (s *Store) zDescending(a model.Event) bool {
	switch s.zDir {
	case model.ZDescending:
		return true
	case model.ZAlternate:
		return s.channelOrdinal(a)%2 == 1
	}
	return false
}

// channelOrdinal is the discovery ordinal of a's channel, or -1 when it has
// none.
func (s *Store) channelOrdinal(a model.Event) int {
	if a.Channel == nil {
		return -1
	}
	ord, ok := s.registries[model.AxisChannel].Ordinal(*a.Channel)
	if !ok {
		return -1
	}
	return ord
}

// Equal reports whether a and b would be deduplicated: the same value on
// every ordering axis and the same non-payload attributes.
func (s *Store) Equal(a, b model.Event) bool {
	for _, axis := range s.order {
		av, bv := a.Value(axis), b.Value(axis)
		if (av == nil) != (bv == nil) {
			return false
		}
		if av != nil && compareScalar(av, bv) != 0 {
			return false
		}
	}
	return a.SameAttributes(b)
}

func (s *Store) less(a, b *entry) bool {
	if c := s.Compare(a.event, b.event); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}
