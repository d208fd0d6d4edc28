package model

import (
	"fmt"
	"strings"
)

// Axis is one of the five addressable scheduling dimensions.
type Axis string

const (
	AxisTime     Axis = "t"
	AxisPosition Axis = "p"
	AxisGroup    Axis = "g"
	AxisChannel  Axis = "c"
	AxisZ        Axis = "z"
)

// AllAxes lists every axis in the default ordering.
var AllAxes = []Axis{AxisTime, AxisPosition, AxisGroup, AxisChannel, AxisZ}

// DefaultAxisOrder is time, position-index, position-group, channel, z.
const DefaultAxisOrder = "tpgcz"

// String returns the single-letter axis name.
func (a Axis) String() string {
	return string(a)
}

// Valid reports whether a is one of the five known axes.
func (a Axis) Valid() bool {
	switch a {
	case AxisTime, AxisPosition, AxisGroup, AxisChannel, AxisZ:
		return true
	}
	return false
}

// ParseAxisOrder converts a compact order string such as "tpgcz" into axes.
// Every letter must be a known axis and may appear at most once.
func ParseAxisOrder(s string) ([]Axis, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("axis order is empty")
	}
	seen := make(map[Axis]bool, len(s))
	order := make([]Axis, 0, len(s))
	for _, r := range s {
		a := Axis(string(r))
		if !a.Valid() {
			return nil, fmt.Errorf("unknown axis %q in order %q", string(r), s)
		}
		if seen[a] {
			return nil, fmt.Errorf("axis %q repeated in order %q", string(r), s)
		}
		seen[a] = true
		order = append(order, a)
	}
	return order, nil
}

// ZDirection controls how z positions are ordered within a timepoint.
type ZDirection string

const (
	ZAscending  ZDirection = "ascending"
	ZDescending ZDirection = "descending"
	// ZAlternate sweeps ascending on even channel ordinals and descending on
	// odd ones so consecutive stacks go back and forth.
	ZAlternate ZDirection = "alternate"
)

// Valid reports whether d is a known z direction.
func (d ZDirection) Valid() bool {
	switch d {
	case ZAscending, ZDescending, ZAlternate:
		return true
	}
	return false
}
