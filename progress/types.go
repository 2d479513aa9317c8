package progress

import (
	"time"
)

// Reporter is the interface for outputting progress events.
//
// Reporters receive Events produced by Observe and format or forward them:
//   - reporter.ProgressBarReporter: in-place terminal progress bars
//   - reporter.TextReporter: human-readable lines with timestamps
//   - reporter.JSONReporter: newline-delimited JSON
//   - reporter.LogReporter: structured logging through logr
//   - reporter.ChannelReporter: a Go channel for programmatic use
//   - reporter.PrometheusReporter: gauges and counters
//   - NoopReporter: discards events
//
// Implementations must be safe for concurrent use, since operations running
// in parallel may share a reporter. Report is called on the goroutine that
// moved the sink and should not block; wrap slow reporters with
// dispatch.Dispatcher.
type Reporter interface {
	// Report outputs a progress event.
	Report(event Event)
}

// Event is a progress notification in reporter form.
//
// A started event is emitted before the first progress event of an
// operation, followed by progress events and finally exactly one complete
// or error event.
type Event struct {
	// Timestamp is when the event occurred. If not set by the caller,
	// reporters will populate it automatically.
	Timestamp time.Time `json:"timestamp"`

	// Stage is the lifecycle position of the operation.
	Stage Stage `json:"stage"`

	// Operation is the name of the unit of work (a URL, a file name).
	Operation string `json:"operation,omitempty"`

	// ContextID correlates all events of one logical call.
	ContextID string `json:"contextId,omitempty"`

	// Current is the amount of work done so far.
	Current int64 `json:"current,omitempty"`

	// Total is the amount of work expected.
	Total int64 `json:"total,omitempty"`

	// Percent is the completion percentage (0-100), truncated.
	Percent int `json:"percent,omitempty"`

	// Error is the text of Err, kept for serialized output.
	Error string `json:"error,omitempty"`

	// Err is the failure of an error event.
	Err error `json:"-"`
}

// Stage represents the lifecycle position of an operation.
type Stage string

const (
	// StageStarted is emitted once, before the first progress event.
	StageStarted Stage = "started"

	// StageProgress carries an accepted progress value.
	StageProgress Stage = "progress"

	// StageComplete indicates the operation finished successfully.
	StageComplete Stage = "complete"

	// StageError indicates the operation failed. No further events follow.
	StageError Stage = "error"
)

// Terminal reports whether no further events follow s.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}
