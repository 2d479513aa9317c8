package reporter

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/konveyor/awty/progress"
)

// ProgressBarReporter writes progress as a visual progress bar with real-time updates.
//
// ProgressBarReporter provides an interactive terminal experience by displaying
// a dynamic progress bar that updates in-place. It shows:
//   - The operation name (a URL or file name)
//   - Percentage completion
//   - Visual bar with filled (█) and empty (░) segments
//   - Current/total counts, optionally as byte sizes
//
// When an operation completes, its bar is replaced by a "Complete." line. When
// it fails, the error is printed on its own line, marked ERROR, and the
// operation is not drawn again.
//
// IMPORTANT: This reporter is designed for TTY (terminal) output where carriage
// returns work. For non-TTY output (pipes, files, CI/CD logs), use TextReporter
// or JSONReporter instead.
//
// The reporter is thread-safe and uses a mutex to ensure the progress bar
// updates atomically without corruption.
//
// Example output:
//
//	Starting https://example.com/5MB.zip
//	https://example.com/5MB.zip  45% |███████████░░░░░░░░░░░░░░| 2.2 MiB/5.0 MiB
//	https://example.com/5MB.zip: Complete.
type ProgressBarReporter struct {
	writer      io.Writer
	mu          sync.Mutex
	barWidth    int
	byteUnits   bool
	lastLineLen int

	// failed holds the most recently failed operations, oldest first in
	// failedOrder, so late events for them are not drawn.
	failed      map[string]bool
	failedOrder []string
}

// maxRecentFailures bounds the failed operations remembered by a
// ProgressBarReporter. A channel sends nothing after its error, so only
// events already in flight need suppressing.
const maxRecentFailures = 128

// ProgressBarOption configures a ProgressBarReporter.
type ProgressBarOption func(*ProgressBarReporter)

// WithByteUnits renders current/total as byte sizes (KiB, MiB, ...).
func WithByteUnits() ProgressBarOption {
	return func(p *ProgressBarReporter) {
		p.byteUnits = true
	}
}

// NewProgressBarReporter creates a new progress bar reporter that writes to w.
//
// The writer should typically be os.Stderr for terminal output. The progress bar
// will dynamically update in place using carriage returns (\r).
//
// The visual bar width is fixed at 25 characters for consistent formatting.
func NewProgressBarReporter(w io.Writer, opts ...ProgressBarOption) *ProgressBarReporter {
	p := &ProgressBarReporter{
		writer:   w,
		barWidth: 25, // Width of the visual bar
		failed:   map[string]bool{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Report processes a progress event and updates the progress bar.
//
// The output format varies by stage:
//   - StageStarted: "Starting <operation>\n" (static line)
//   - StageProgress: "<operation> XX% |█████░░░| X/Y" (updates in-place)
//   - StageComplete: "<operation>: Complete.\n" (static line)
//   - StageError: "<operation>: ERROR: <error>\n" (static line)
//
// This method is safe for concurrent use.
func (p *ProgressBarReporter) Report(event progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Normalize event (set timestamp, calculate percent)
	normalize(&event)
	key := operationKey(event)

	switch event.Stage {
	case progress.StageStarted:
		p.forgetFailure(key)
		p.clearLine()
		fmt.Fprintf(p.writer, "Starting %s\n", title(event, 60))

	case progress.StageProgress:
		if p.failed[key] || event.Total <= 0 {
			return
		}
		p.updateProgressBar(event)

	case progress.StageComplete:
		if p.failed[key] {
			return
		}
		p.clearLine()
		fmt.Fprintf(p.writer, "%s: Complete.\n", title(event, 60))

	case progress.StageError:
		p.rememberFailure(key)
		p.clearLine()
		fmt.Fprintf(p.writer, "%s: ERROR: %s\n", title(event, 60), event.Error)
	}
}

func (p *ProgressBarReporter) rememberFailure(key string) {
	if p.failed[key] {
		return
	}
	p.failed[key] = true
	p.failedOrder = append(p.failedOrder, key)
	if len(p.failedOrder) > maxRecentFailures {
		delete(p.failed, p.failedOrder[0])
		p.failedOrder = p.failedOrder[1:]
	}
}

func (p *ProgressBarReporter) forgetFailure(key string) {
	if !p.failed[key] {
		return
	}
	delete(p.failed, key)
	p.failedOrder = slices.DeleteFunc(p.failedOrder, func(k string) bool { return k == key })
}

// updateProgressBar renders and updates the visual progress bar.
//
// This method handles the in-place update logic:
//  1. Clear the previous line by overwriting with spaces
//  2. Render the new progress bar string
//  3. Write without newline (so next update overwrites)
//  4. Add newline when reaching 100%
func (p *ProgressBarReporter) updateProgressBar(event progress.Event) {
	barString := p.buildProgressBar(event)

	p.clearLine()

	// Write the new progress bar (without newline - will update in place)
	fmt.Fprint(p.writer, barString)
	p.lastLineLen = utf8.RuneCountInString(barString)

	// If we've completed (100%), add a newline
	if event.Current >= event.Total {
		fmt.Fprint(p.writer, "\n")
		p.lastLineLen = 0
	}
}

// buildProgressBar constructs the progress bar string.
//
// Returns a string like: "archive.zip  42% |██████████░░░░░░░░░░░░░░░| 99/235"
func (p *ProgressBarReporter) buildProgressBar(event progress.Event) string {
	// Calculate filled portion of the bar
	filledWidth := p.barWidth * event.Percent / 100
	if filledWidth > p.barWidth {
		filledWidth = p.barWidth
	}
	emptyWidth := p.barWidth - filledWidth

	// Build the visual bar
	filledBar := strings.Repeat("█", filledWidth)
	emptyBar := strings.Repeat("░", emptyWidth)
	visualBar := fmt.Sprintf("|%s%s|", filledBar, emptyBar)

	percentStr := fmt.Sprintf("%3d%%", event.Percent)
	var countStr string
	if p.byteUnits {
		countStr = fmt.Sprintf("%s/%s", formatBytes(event.Current), formatBytes(event.Total))
	} else {
		countStr = fmt.Sprintf("%d/%d", event.Current, event.Total)
	}

	return fmt.Sprintf("%s %s %s %s", title(event, 50), percentStr, visualBar, countStr)
}

// clearLine clears the current progress bar line if one is displayed.
//
// This is called before printing static messages to ensure the progress bar
// doesn't leave artifacts on the terminal.
func (p *ProgressBarReporter) clearLine() {
	if p.lastLineLen > 0 {
		// Move to beginning, clear with spaces, move back
		fmt.Fprint(p.writer, "\r")
		fmt.Fprint(p.writer, strings.Repeat(" ", p.lastLineLen))
		fmt.Fprint(p.writer, "\r")
		p.lastLineLen = 0
	}
}
