package reporter

import (
	"errors"

	"github.com/go-logr/logr"
	"github.com/konveyor/awty/progress"
)

// Event IDs attached to every log line as "event_id".
const (
	EventIDStarted  = 13001
	EventIDProgress = 13002
	EventIDEnded    = 13003
	EventIDError    = 13004
)

// LogReporter writes progress events as structured log lines through a
// logr.Logger.
//
// Progress lines are logged at the configured verbosity, started and ended
// lines one level above it. Failures are always logged with log.Error,
// carrying the operation name and correlation ID.
type LogReporter struct {
	log       logr.Logger
	verbosity int
}

// LogReporterOption configures a LogReporter.
type LogReporterOption func(*LogReporter)

// WithVerbosity sets the V-level of progress lines. The default is 0.
func WithVerbosity(v int) LogReporterOption {
	return func(l *LogReporter) {
		if v >= 0 {
			l.verbosity = v
		}
	}
}

// NewLogReporter creates a LogReporter writing to log.
func NewLogReporter(log logr.Logger, opts ...LogReporterOption) *LogReporter {
	l := &LogReporter{log: log}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Report implements progress.Reporter.
func (l *LogReporter) Report(event progress.Event) {
	normalize(&event)
	log := l.log.WithValues("operation", event.Operation, "context_id", event.ContextID)

	switch event.Stage {
	case progress.StageStarted:
		log.V(l.verbosity+1).Info("progress started", "event_id", EventIDStarted, "total", event.Total)
	case progress.StageProgress:
		log.V(l.verbosity).Info("progress",
			"event_id", EventIDProgress,
			"percent", event.Percent,
			"current", event.Current,
			"total", event.Total,
		)
	case progress.StageComplete:
		log.V(l.verbosity+1).Info("progress ended", "event_id", EventIDEnded)
	case progress.StageError:
		err := event.Err
		if err == nil {
			err = errors.New(event.Error)
		}
		log.Error(err, "progress failed", "event_id", EventIDError)
	}
}
