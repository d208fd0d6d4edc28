package model

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Event is a single schedulable unit of acquisition work.
//
// Axis values are pointers because an unset axis is meaningful: it sorts
// before any concrete value. TargetTime is the offset in seconds from clock
// zero; a negative value means "this many seconds after now" and is resolved
// once, at registration.
type Event struct {
	TargetTime *float64 `json:"target_time,omitempty" yaml:"target_time,omitempty"`
	Channel    *string  `json:"channel,omitempty" yaml:"channel,omitempty"`
	Z          *float64 `json:"z,omitempty" yaml:"z,omitempty"`
	Position   *int     `json:"position,omitempty" yaml:"position,omitempty"`
	Group      *string  `json:"group,omitempty" yaml:"group,omitempty"`

	// AttachIndex holds ordinal references ("the Nth known value of axis X")
	// resolved against the store registries at registration time.
	AttachIndex map[Axis]int `json:"attach_index,omitempty" yaml:"attach_index,omitempty"`

	Exposure        *float64 `json:"exposure,omitempty" yaml:"exposure,omitempty"`
	Action          string   `json:"action,omitempty" yaml:"action,omitempty"`
	KeepShutterOpen bool     `json:"keep_shutter_open,omitempty" yaml:"keep_shutter_open,omitempty"`
	ResetClock      bool     `json:"reset_clock,omitempty" yaml:"reset_clock,omitempty"`

	// Payload is feedback data carried through the scheduler untouched.
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`

	// Set by the event store on delivery.
	DenseTimeIndex *int         `json:"dense_time_index,omitempty" yaml:"-"`
	Index          map[Axis]int `json:"index,omitempty" yaml:"-"`
}

// Ptr returns a pointer to v. Handy for building events in code and tests.
func Ptr[T any](v T) *T {
	return &v
}

// At returns an event due at t seconds from clock zero.
func At(t float64) Event {
	return Event{TargetTime: Ptr(t)}
}

// Time returns the target time and whether one is set.
func (e Event) Time() (float64, bool) {
	if e.TargetTime == nil {
		return 0, false
	}
	return *e.TargetTime, true
}

// Value returns the resolved value of axis a, or nil when unset.
// The dynamic type is float64 for t and z, int for p and string for c and g.
func (e Event) Value(a Axis) any {
	switch a {
	case AxisTime:
		if e.TargetTime != nil {
			return *e.TargetTime
		}
	case AxisChannel:
		if e.Channel != nil {
			return *e.Channel
		}
	case AxisZ:
		if e.Z != nil {
			return *e.Z
		}
	case AxisPosition:
		if e.Position != nil {
			return *e.Position
		}
	case AxisGroup:
		if e.Group != nil {
			return *e.Group
		}
	}
	return nil
}

// SetValue assigns a concrete value to axis a. Values of the wrong dynamic
// type are ignored and reported as false.
func (e *Event) SetValue(a Axis, v any) bool {
	switch a {
	case AxisTime:
		f, ok := v.(float64)
		if ok {
			e.TargetTime = Ptr(f)
		}
		return ok
	case AxisChannel:
		s, ok := v.(string)
		if ok {
			e.Channel = Ptr(s)
		}
		return ok
	case AxisZ:
		f, ok := v.(float64)
		if ok {
			e.Z = Ptr(f)
		}
		return ok
	case AxisPosition:
		i, ok := v.(int)
		if ok {
			e.Position = Ptr(i)
		}
		return ok
	case AxisGroup:
		s, ok := v.(string)
		if ok {
			e.Group = Ptr(s)
		}
		return ok
	}
	return false
}

// SameAttributes reports whether the non-axis, non-payload attributes match.
func (e Event) SameAttributes(o Event) bool {
	return floatPtrEqual(e.Exposure, o.Exposure) &&
		e.Action == o.Action &&
		e.KeepShutterOpen == o.KeepShutterOpen &&
		e.ResetClock == o.ResetClock
}

// Clone returns a copy that shares no mutable state with e.
func (e Event) Clone() Event {
	c := e
	c.TargetTime = clonePtr(e.TargetTime)
	c.Channel = clonePtr(e.Channel)
	c.Z = clonePtr(e.Z)
	c.Position = clonePtr(e.Position)
	c.Group = clonePtr(e.Group)
	c.Exposure = clonePtr(e.Exposure)
	c.DenseTimeIndex = clonePtr(e.DenseTimeIndex)
	c.AttachIndex = maps.Clone(e.AttachIndex)
	c.Index = maps.Clone(e.Index)
	c.Payload = maps.Clone(e.Payload)
	return c
}

// String renders the set axes compactly, e.g. "Event(t=1.5 c=DAPI z=2)".
func (e Event) String() string {
	var parts []string
	for _, a := range AllAxes {
		if v := e.Value(a); v != nil {
			parts = append(parts, fmt.Sprintf("%s=%s", a, formatValue(v)))
		}
	}
	if e.ResetClock {
		parts = append(parts, "reset")
	}
	if e.DenseTimeIndex != nil {
		parts = append(parts, "idx="+strconv.Itoa(*e.DenseTimeIndex))
	}
	return "Event(" + strings.Join(parts, " ") + ")"
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
