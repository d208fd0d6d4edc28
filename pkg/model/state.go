package model

import (
	"fmt"
	"strings"
)

// RunState represents the lifecycle state of a consumer run.
type RunState string

const (
	RunStateIdle      RunState = "IDLE"
	RunStateRunning   RunState = "RUNNING"
	RunStatePaused    RunState = "PAUSED"
	RunStateCompleted RunState = "COMPLETED"
	RunStateCancelled RunState = "CANCELLED"
	RunStateFailed    RunState = "FAILED"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// ParseRunState parses a run state name, ignoring case.
func ParseRunState(s string) (RunState, error) {
	st := RunState(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case RunStateIdle, RunStateRunning, RunStatePaused,
		RunStateCompleted, RunStateCancelled, RunStateFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown run state %q", s)
}

// IsTerminal returns true if the run is in a final state.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateCancelled, RunStateFailed:
		return true
	}
	return false
}

// ValidRunTransitions defines the allowed state transitions for runs.
var ValidRunTransitions = map[RunState][]RunState{
	RunStateIdle:    {RunStateRunning},
	RunStateRunning: {RunStatePaused, RunStateCompleted, RunStateCancelled, RunStateFailed},
	RunStatePaused:  {RunStateRunning, RunStateCancelled},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s RunState) CanTransitionTo(next RunState) bool {
	for _, allowed := range ValidRunTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
