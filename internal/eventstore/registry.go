package eventstore

import (
	"cmp"
	"slices"
	"sort"
	"strings"

	"github.com/me/edaq/pkg/model"
)

// Registry records the distinct values seen on one axis.
//
// Numeric axes (t, z, p) keep their values sorted, so ordinals follow the
// natural order and can shift when a smaller value is discovered later.
// Identity axes (c, g) keep discovery order; ordinals never move.
type Registry struct {
	axis   model.Axis
	sorted bool
	values []any
	index  map[any]int // identity axes only
}

func newRegistry(axis model.Axis) *Registry {
	r := &Registry{axis: axis}
	switch axis {
	case model.AxisTime, model.AxisZ, model.AxisPosition:
		r.sorted = true
	default:
		r.index = make(map[any]int)
	}
	return r
}

// Axis returns the axis this registry tracks.
func (r *Registry) Axis() model.Axis { return r.axis }

// Len returns the number of distinct values.
func (r *Registry) Len() int { return len(r.values) }

// Values returns a copy of the values in ordinal order.
func (r *Registry) Values() []any {
	return slices.Clone(r.values)
}

// At returns the value at ordinal i.
func (r *Registry) At(i int) (any, bool) {
	if i < 0 || i >= len(r.values) {
		return nil, false
	}
	return r.values[i], true
}

// Ordinal returns the position of v, if known.
func (r *Registry) Ordinal(v any) (int, bool) {
	if !r.sorted {
		i, ok := r.index[v]
		return i, ok
	}
	i := r.search(v)
	if i < len(r.values) && compareScalar(r.values[i], v) == 0 {
		return i, true
	}
	return 0, false
}

// add records v and reports whether it was new.
func (r *Registry) add(v any) bool {
	if !r.sorted {
		if _, ok := r.index[v]; ok {
			return false
		}
		r.index[v] = len(r.values)
		r.values = append(r.values, v)
		return true
	}
	i := r.search(v)
	if i < len(r.values) && compareScalar(r.values[i], v) == 0 {
		return false
	}
	r.values = slices.Insert(r.values, i, v)
	return true
}

// remove drops v. Only the time registry shrinks; it tracks pending timepoints.
func (r *Registry) remove(v any) {
	if !r.sorted {
		return
	}
	i := r.search(v)
	if i < len(r.values) && compareScalar(r.values[i], v) == 0 {
		r.values = slices.Delete(r.values, i, i+1)
	}
}

func (r *Registry) search(v any) int {
	return sort.Search(len(r.values), func(i int) bool {
		return compareScalar(r.values[i], v) >= 0
	})
}

// compareScalar orders two axis values of the same dynamic type.
func compareScalar(a, b any) int {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return cmp.Compare(x, y)
		}
	case int:
		if y, ok := b.(int); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	}
	return 0
}
