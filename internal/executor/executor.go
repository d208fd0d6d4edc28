// Package executor defines the contract the consumer scheduler drives for
// every event, plus the built-in backends.
package executor

import (
	"context"

	"github.com/me/edaq/pkg/model"
)

// Executor performs events against hardware or a stand-in for it.
//
// A run brackets all calls with SetupSequence and TeardownSequence. Each
// event gets SetupEvent, ExecEvent and TeardownEvent; TeardownEvent runs even
// when ExecEvent failed. Executors never retry on their caller's behalf.
type Executor interface {
	// Type returns the executor type identifier.
	Type() string

	SetupSequence(ctx context.Context) error
	SetupEvent(ctx context.Context, ev model.Event) error

	// ExecEvent performs the event and returns what it produced.
	ExecEvent(ctx context.Context, ev model.Event) (model.Result, error)

	TeardownEvent(ctx context.Context, ev model.Event) error
	TeardownSequence(ctx context.Context) error
}
