package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/konveyor/awty/progress"
)

// JSONReporter writes progress events as newline-delimited JSON (NDJSON).
//
// JSONReporter serializes each event to a single JSON line, creating a stream
// of structured data suitable for machine consumption: log aggregation,
// external monitoring tools or CI pipelines that parse progress.
//
// The reporter is thread-safe and uses a mutex to ensure each JSON line is
// written atomically without interleaving.
//
// Example output:
//
//	{"timestamp":"2024-10-29T17:06:14Z","stage":"started","operation":"report.pdf","contextId":"5f0c...","total":2048}
//	{"timestamp":"2024-10-29T17:06:14Z","stage":"progress","operation":"report.pdf","contextId":"5f0c...","current":1024,"total":2048,"percent":50}
//	{"timestamp":"2024-10-29T17:06:15Z","stage":"error","operation":"report.pdf","contextId":"5f0c...","error":"unexpected EOF"}
type JSONReporter struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONReporter creates a new JSON progress reporter that writes to w.
//
// The writer can be os.Stdout, os.Stderr, a file, or any io.Writer.
// Each progress event will be written as a single JSON line (NDJSON format).
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{
		writer: w,
	}
}

// Report writes a progress event as a JSON line.
//
// If the event's Timestamp is zero, it will be set to the current time before
// marshaling. The Percent and Error fields are filled in when missing.
//
// Errors during JSON marshaling or writing are silently ignored so that a
// broken output never interrupts the transfer being reported.
//
// This method is safe for concurrent use.
func (j *JSONReporter) Report(event progress.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	// Normalize event (set timestamp, calculate percent)
	normalize(&event)

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintln(j.writer, string(data))
}
