package model

import "time"

// RunRecord is the journal entry for one consumer run.
type RunRecord struct {
	ID         string     `json:"id"`
	State      RunState   `json:"state"`
	Executor   string     `json:"executor"`
	Executed   int        `json:"executed"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ExecutionRecord is the journal entry for one executed event.
type ExecutionRecord struct {
	RunID        string         `json:"run_id"`
	Sequence     int            `json:"sequence"`
	Channel      string         `json:"channel,omitempty"`
	TargetTime   *float64       `json:"target_time,omitempty"`
	DenseIndex   *int           `json:"dense_index,omitempty"`
	RunnerTimeMS float64        `json:"runner_time_ms"`
	LatenessMS   float64        `json:"lateness_ms"`
	Event        Event          `json:"event"`
	Values       map[string]any `json:"values,omitempty"`
	ExecutedAt   time.Time      `json:"executed_at"`
}

// ExecutionFromFrame builds a journal entry from an emitted frame.
func ExecutionFromFrame(f Frame, at time.Time) ExecutionRecord {
	rec := ExecutionRecord{
		Event:      f.Event,
		TargetTime: f.Event.TargetTime,
		DenseIndex: f.Event.DenseTimeIndex,
		Values:     f.Result.Values,
		ExecutedAt: at,
	}
	if f.Event.Channel != nil {
		rec.Channel = *f.Event.Channel
	}
	rec.RunID, _ = f.Meta[MetaRunID].(string)
	rec.Sequence, _ = f.Meta[MetaSequence].(int)
	rec.RunnerTimeMS, _ = f.Meta[MetaRunnerTimeMS].(float64)
	rec.LatenessMS, _ = f.Meta[MetaLatenessMS].(float64)
	return rec
}
