package progress

// NoopReporter is a no-op implementation of Reporter that discards all events.
//
// It is the default reporter when progress output is not configured, so
// callers never need to check for a nil Reporter.
type NoopReporter struct{}

// NewNoopReporter creates a new no-op progress reporter.
func NewNoopReporter() *NoopReporter {
	return &NoopReporter{}
}

// Report discards the event without any action.
func (n *NoopReporter) Report(event Event) {
	// Intentionally empty - no-op implementation
}
