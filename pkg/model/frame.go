package model

// Metadata keys attached to every emitted frame.
const (
	MetaRunID        = "run_id"
	MetaRunnerTimeMS = "runner_time_ms"
	MetaLatenessMS   = "lateness_ms"
	MetaSequence     = "sequence"
)

// Result is what an executor produced for one event. The scheduler never
// interprets it.
type Result struct {
	Data   []byte         `json:"-"`
	Values map[string]any `json:"values,omitempty"`
}

// Frame is the observability notification emitted after every successful
// execution: the result, the event that produced it and run metadata.
type Frame struct {
	Result Result         `json:"result"`
	Event  Event          `json:"event"`
	Meta   map[string]any `json:"meta"`
}
