package reporter

import (
	"fmt"
	"io"
	"sync"

	"github.com/konveyor/awty/progress"
)

// TextReporter writes progress events as human-readable text with timestamps.
//
// TextReporter formats events into timestamped text lines suitable for log
// files or terminals that do not handle carriage returns. Each stage has its
// own formatting style.
//
// The reporter is thread-safe and uses a mutex to ensure proper output ordering
// when multiple goroutines report progress concurrently.
//
// Example output:
//
//	[17:06:14] report.pdf: started (total 2048)
//	[17:06:14] report.pdf: 1024/2048 (50%)
//	[17:06:15] report.pdf: 2048/2048 (100%)
//	[17:06:15] report.pdf: complete
type TextReporter struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewTextReporter creates a new text progress reporter that writes to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{
		writer: w,
	}
}

// Report writes a progress event as human-readable text.
//
// The output format varies by stage:
//   - StageStarted: "[HH:MM:SS] <operation>: started (total N)"
//   - StageProgress: "[HH:MM:SS] <operation>: X/Y (Z%)"
//   - StageComplete: "[HH:MM:SS] <operation>: complete"
//   - StageError: "[HH:MM:SS] <operation>: error: <message>"
//
// If the event's Timestamp is zero, it will be set to the current time.
// This method is safe for concurrent use.
func (t *TextReporter) Report(event progress.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Normalize event (set timestamp, calculate percent)
	normalize(&event)

	ts := event.Timestamp.Format("15:04:05")
	name := title(event, 80)
	var output string

	switch event.Stage {
	case progress.StageStarted:
		if event.Total > 0 {
			output = fmt.Sprintf("[%s] %s: started (total %d)\n", ts, name, event.Total)
		} else {
			output = fmt.Sprintf("[%s] %s: started\n", ts, name)
		}
	case progress.StageProgress:
		if event.Total > 0 {
			output = fmt.Sprintf("[%s] %s: %d/%d (%d%%)\n", ts, name, event.Current, event.Total, event.Percent)
		}
	case progress.StageComplete:
		output = fmt.Sprintf("[%s] %s: complete\n", ts, name)
	case progress.StageError:
		output = fmt.Sprintf("[%s] %s: error: %s\n", ts, name, event.Error)
	}

	if output != "" {
		t.writer.Write([]byte(output))
	}
}
