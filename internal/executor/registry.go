package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrUnknownType is returned by Registry.Get for unregistered executor types.
var ErrUnknownType = errors.New("unknown executor type")

// Registry maps executor type identifiers to their implementations.
// Registration happens at startup before concurrent access, so no mutex is needed.
type Registry struct {
	executors map[string]Executor
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		executors: make(map[string]Executor),
		logger:    logger.With("component", "executor-registry"),
	}
}

// Register adds an Executor to the registry, keyed by its Type().
func (r *Registry) Register(exec Executor) {
	t := exec.Type()
	r.executors[t] = exec
	r.logger.Info("executor registered", "type", t)
}

// Get returns the Executor for the given type.
func (r *Registry) Get(t string) (Executor, error) {
	exec, ok := r.executors[t]
	if !ok {
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownType, t, r.Types())
	}
	return exec, nil
}

// Types lists the registered type identifiers in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
