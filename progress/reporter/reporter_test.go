package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/konveyor/awty/progress"
)

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewJSONReporter(&buf)

	event := progress.Event{
		Stage:     progress.StageProgress,
		Operation: "archive.zip",
		ContextID: "ctx-1",
		Current:   10,
		Total:     45,
	}

	reporter.Report(event)

	// Parse the JSON output
	var decoded progress.Event
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 {
		t.Fatal("Expected at least one line of output")
	}
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}

	// Verify fields
	if decoded.Stage != progress.StageProgress {
		t.Errorf("Expected stage %s, got %s", progress.StageProgress, decoded.Stage)
	}
	if decoded.Current != 10 {
		t.Errorf("Expected current 10, got %d", decoded.Current)
	}
	if decoded.Total != 45 {
		t.Errorf("Expected total 45, got %d", decoded.Total)
	}
	if decoded.Percent != 22 {
		t.Errorf("Expected percent 22 (truncated), got %d", decoded.Percent)
	}
	if decoded.Operation != "archive.zip" || decoded.ContextID != "ctx-1" {
		t.Errorf("Expected operation and context id to round trip, got %q %q", decoded.Operation, decoded.ContextID)
	}
	if decoded.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestJSONReporterError(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewJSONReporter(&buf)

	reporter.Report(progress.Event{
		Stage:     progress.StageError,
		Operation: "upload",
		Err:       errors.New("connection reset"),
	})

	var decoded map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if decoded["error"] != "connection reset" {
		t.Errorf("Expected error text in output, got %v", decoded["error"])
	}
	if decoded["stage"] != "error" {
		t.Errorf("Expected stage error, got %v", decoded["stage"])
	}
}

func TestJSONReporterMultipleEvents(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewJSONReporter(&buf)

	// Report multiple events
	for i := 0; i < 3; i++ {
		reporter.Report(progress.Event{
			Stage:   progress.StageProgress,
			Current: int64(i + 1),
			Total:   3,
		})
	}

	// Each event should be on a separate line
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Errorf("Expected 3 JSON lines, got %d", len(lines))
	}

	// Verify each line is valid JSON
	for i, line := range lines {
		var event progress.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Errorf("Line %d is not valid JSON: %v", i, err)
		}
	}
}

func TestTextReporterStages(t *testing.T) {
	tests := []struct {
		name          string
		event         progress.Event
		shouldContain []string
	}{
		{
			name: "started",
			event: progress.Event{
				Stage:     progress.StageStarted,
				Operation: "report.pdf",
				Total:     2048,
			},
			shouldContain: []string{"report.pdf", "started", "2048"},
		},
		{
			name: "progress",
			event: progress.Event{
				Stage:     progress.StageProgress,
				Operation: "report.pdf",
				Current:   1024,
				Total:     2048,
			},
			shouldContain: []string{"1024/2048", "(50%)"},
		},
		{
			name: "complete",
			event: progress.Event{
				Stage:     progress.StageComplete,
				Operation: "report.pdf",
			},
			shouldContain: []string{"report.pdf: complete"},
		},
		{
			name: "error",
			event: progress.Event{
				Stage:     progress.StageError,
				Operation: "report.pdf",
				Err:       errors.New("unexpected EOF"),
			},
			shouldContain: []string{"report.pdf: error: unexpected EOF"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reporter := NewTextReporter(&buf)
			reporter.Report(tt.event)

			output := buf.String()
			for _, expected := range tt.shouldContain {
				if !strings.Contains(output, expected) {
					t.Errorf("Expected '%s' in output, got: %s", expected, output)
				}
			}
		})
	}
}

func TestTextReporterTimestamp(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewTextReporter(&buf)

	ts := time.Date(2024, 10, 29, 17, 6, 14, 0, time.UTC)
	reporter.Report(progress.Event{Stage: progress.StageComplete, Operation: "x", Timestamp: ts})

	if !strings.HasPrefix(buf.String(), "[17:06:14]") {
		t.Errorf("Expected timestamp prefix, got: %s", buf.String())
	}
}

func TestChannelReporter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reporter := NewChannelReporter(ctx)

	event := progress.Event{
		Stage:   progress.StageProgress,
		Current: 10,
		Total:   45,
	}

	reporter.Report(event)

	select {
	case received := <-reporter.Events():
		if received.Stage != progress.StageProgress {
			t.Errorf("Expected stage %s, got %s", progress.StageProgress, received.Stage)
		}
		if received.Current != 10 {
			t.Errorf("Expected current 10, got %d", received.Current)
		}
		if received.Percent != 22 {
			t.Errorf("Expected percent to be normalized to 22, got %d", received.Percent)
		}
		if received.Timestamp.IsZero() {
			t.Error("Expected timestamp to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}
}

func TestChannelReporterContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reporter := NewChannelReporter(ctx)

	cancel()

	select {
	case _, ok := <-reporter.Events():
		if ok {
			t.Error("Expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for channel close")
	}

	// Reporting after close should not panic
	reporter.Report(progress.Event{Stage: progress.StageProgress})
	reporter.Report(progress.Event{Stage: progress.StageComplete})
}

func TestChannelReporterRaceCondition(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reporter := NewChannelReporter(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reporter.Report(progress.Event{
					Stage:   progress.StageProgress,
					Current: int64(j),
					Total:   100,
				})
			}
		}(i)
	}

	// Drain concurrently and cancel mid-flight
	go func() {
		for range reporter.Events() {
		}
	}()
	time.Sleep(time.Millisecond)
	cancel()
	wg.Wait()
}

func TestChannelReporterDroppedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reporter := NewChannelReporter(ctx, WithBufferSize(10))

	// Don't consume events, so channel buffer fills up
	for i := 0; i < 15; i++ {
		reporter.Report(progress.Event{
			Stage:   progress.StageProgress,
			Current: int64(i),
			Total:   15,
		})
	}

	if dropped := reporter.DroppedEvents(); dropped != 5 {
		t.Errorf("Expected 5 dropped events, got %d", dropped)
	}
}

func TestChannelReporterTerminalEventsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reporter := NewChannelReporter(ctx, WithBufferSize(1))

	reporter.Report(progress.Event{Stage: progress.StageProgress, Current: 1, Total: 2})

	done := make(chan struct{})
	go func() {
		reporter.Report(progress.Event{Stage: progress.StageComplete})
		close(done)
	}()

	first := <-reporter.Events()
	if first.Stage != progress.StageProgress {
		t.Fatalf("Expected progress event first, got %s", first.Stage)
	}
	select {
	case second := <-reporter.Events():
		if second.Stage != progress.StageComplete {
			t.Errorf("Expected complete event, got %s", second.Stage)
		}
	case <-time.After(time.Second):
		t.Fatal("Complete event was dropped")
	}
	<-done

	if dropped := reporter.DroppedEvents(); dropped != 0 {
		t.Errorf("Expected no dropped events, got %d", dropped)
	}
}

func TestChannelReporterWithLogger(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create a test logger that captures log calls
	loggedDrops := 0
	testLogger := testLogr{
		logFunc: func(level int, msg string, keysAndValues ...interface{}) {
			if msg == "progress event dropped due to slow consumer" {
				loggedDrops++
			}
		},
	}

	reporter := NewChannelReporter(ctx, WithLogger(logr.New(testLogger)))

	// The buffer is 100, so send 120 events to ensure some are dropped
	for i := 0; i < 120; i++ {
		reporter.Report(progress.Event{
			Stage:     progress.StageProgress,
			Operation: "test-op",
			Current:   int64(i),
			Total:     120,
		})
	}

	dropped := reporter.DroppedEvents()
	if dropped == 0 {
		t.Error("Expected some events to be dropped")
	}

	if loggedDrops != int(dropped) {
		t.Errorf("Expected %d logged drops, got %d", dropped, loggedDrops)
	}
}

// testLogr is a simple test implementation of logr.LogSink
type testLogr struct {
	logFunc   func(level int, msg string, keysAndValues ...interface{})
	errorFunc func(err error, msg string, keysAndValues ...interface{})
	values    []interface{}
}

func (t testLogr) Init(info logr.RuntimeInfo) {}

func (t testLogr) Enabled(level int) bool {
	return true
}

func (t testLogr) Info(level int, msg string, keysAndValues ...interface{}) {
	if t.logFunc != nil {
		t.logFunc(level, msg, append(append([]interface{}{}, t.values...), keysAndValues...)...)
	}
}

func (t testLogr) Error(err error, msg string, keysAndValues ...interface{}) {
	if t.errorFunc != nil {
		t.errorFunc(err, msg, append(append([]interface{}{}, t.values...), keysAndValues...)...)
	}
}

func (t testLogr) WithValues(keysAndValues ...interface{}) logr.LogSink {
	t.values = append(append([]interface{}{}, t.values...), keysAndValues...)
	return t
}

func (t testLogr) WithName(name string) logr.LogSink {
	return t
}

func TestProgressBarReporter(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressBarReporter(&buf)

	reporter.Report(progress.Event{
		Stage:     progress.StageProgress,
		Operation: "archive.zip",
		Current:   10,
		Total:     45,
	})

	output := buf.String()

	if !strings.Contains(output, "archive.zip") {
		t.Errorf("Expected operation name in output, got: %s", output)
	}
	if !strings.Contains(output, "22%") {
		t.Errorf("Expected percentage in output, got: %s", output)
	}
	if !strings.Contains(output, "10/45") {
		t.Errorf("Expected '10/45' in output, got: %s", output)
	}
	if !strings.Contains(output, "█") || !strings.Contains(output, "░") {
		t.Errorf("Expected progress bar characters in output, got: %s", output)
	}
	if strings.HasSuffix(output, "\n") {
		t.Errorf("Expected in-place bar without newline, got: %q", output)
	}
}

func TestProgressBarReporterProgressPercentages(t *testing.T) {
	tests := []struct {
		name            string
		current         int64
		total           int64
		expectedPercent string
		expectedFilled  int
	}{
		{name: "0 percent", current: 0, total: 100, expectedPercent: "  0%", expectedFilled: 0},
		{name: "50 percent", current: 50, total: 100, expectedPercent: " 50%", expectedFilled: 12},
		{name: "99 percent", current: 99, total: 100, expectedPercent: " 99%", expectedFilled: 24},
		{name: "100 percent", current: 100, total: 100, expectedPercent: "100%", expectedFilled: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reporter := NewProgressBarReporter(&buf)
			reporter.Report(progress.Event{
				Stage:     progress.StageProgress,
				Operation: "op",
				Current:   tt.current,
				Total:     tt.total,
			})

			output := buf.String()
			if !strings.Contains(output, tt.expectedPercent) {
				t.Errorf("Expected '%s' in output, got: %s", tt.expectedPercent, output)
			}
			if filled := strings.Count(output, "█"); filled != tt.expectedFilled {
				t.Errorf("Expected %d filled segments, got %d", tt.expectedFilled, filled)
			}
			if tt.current >= tt.total && !strings.HasSuffix(output, "\n") {
				t.Errorf("Expected newline at 100%%, got: %q", output)
			}
		})
	}
}

func TestProgressBarReporterLifecycle(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressBarReporter(&buf)

	base := progress.Event{Operation: "https://example.com/5MB.zip", ContextID: "a"}
	for _, stage := range []progress.Stage{progress.StageStarted, progress.StageProgress, progress.StageComplete} {
		e := base
		e.Stage = stage
		e.Current, e.Total = 40, 100
		reporter.Report(e)
	}

	output := buf.String()
	if !strings.Contains(output, "Starting https://example.com/5MB.zip\n") {
		t.Errorf("Expected starting line, got: %q", output)
	}
	if !strings.Contains(output, " 40%") {
		t.Errorf("Expected progress bar, got: %q", output)
	}
	if !strings.HasSuffix(output, "https://example.com/5MB.zip: Complete.\n") {
		t.Errorf("Expected completion line at the end, got: %q", output)
	}
}

func TestProgressBarReporterErrorStopsUpdates(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressBarReporter(&buf)

	reporter.Report(progress.Event{Stage: progress.StageProgress, Operation: "upload", ContextID: "a", Current: 30, Total: 100})
	reporter.Report(progress.Event{Stage: progress.StageError, Operation: "upload", ContextID: "a", Err: errors.New("disk full")})
	buf.Reset()

	reporter.Report(progress.Event{Stage: progress.StageProgress, Operation: "upload", ContextID: "a", Current: 60, Total: 100})
	reporter.Report(progress.Event{Stage: progress.StageComplete, Operation: "upload", ContextID: "a"})
	if buf.Len() != 0 {
		t.Errorf("Expected no output for a failed operation, got: %q", buf.String())
	}

	// other operations are unaffected
	reporter.Report(progress.Event{Stage: progress.StageProgress, Operation: "upload", ContextID: "b", Current: 60, Total: 100})
	if !strings.Contains(buf.String(), " 60%") {
		t.Errorf("Expected progress for another operation, got: %q", buf.String())
	}
}

func TestProgressBarReporterErrorLine(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressBarReporter(&buf)

	reporter.Report(progress.Event{Stage: progress.StageProgress, Operation: "upload", Current: 30, Total: 100})
	reporter.Report(progress.Event{Stage: progress.StageError, Operation: "upload", Err: errors.New("disk full")})

	output := buf.String()
	if !strings.HasSuffix(output, "upload: ERROR: disk full\n") {
		t.Errorf("Expected error line, got: %q", output)
	}
	// the bar is cleared before the error line is printed
	if !strings.Contains(output, "\r") {
		t.Errorf("Expected bar to be cleared, got: %q", output)
	}
}

func TestProgressBarReporterByteUnits(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressBarReporter(&buf, WithByteUnits())

	reporter.Report(progress.Event{
		Stage:     progress.StageProgress,
		Operation: "image.iso",
		Current:   1536,
		Total:     5 * 1024 * 1024,
	})

	if !strings.Contains(buf.String(), "1.5 KiB/5.0 MiB") {
		t.Errorf("Expected byte units in output, got: %s", buf.String())
	}
}

func TestProgressBarReporterNameTruncation(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressBarReporter(&buf)

	longName := strings.Repeat("a", 100)
	reporter.Report(progress.Event{
		Stage:     progress.StageProgress,
		Operation: longName,
		Current:   5,
		Total:     10,
	})

	output := buf.String()
	if strings.Contains(output, longName) {
		t.Error("Expected long operation name to be truncated")
	}
	if !strings.Contains(output, "...") {
		t.Errorf("Expected ellipsis in truncated name, got: %s", output)
	}
}

func TestProgressBarReporterConcurrency(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressBarReporter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				reporter.Report(progress.Event{
					Stage:     progress.StageProgress,
					Operation: fmt.Sprintf("op-%d", id),
					Current:   int64(j),
					Total:     10,
				})
			}
		}(i)
	}
	wg.Wait()

	if buf.Len() == 0 {
		t.Error("Expected output from concurrent reports")
	}
}

func TestLogReporter(t *testing.T) {
	type entry struct {
		level int
		msg   string
		kv    []interface{}
	}
	var (
		infos  []entry
		errs   []error
		errKVs []interface{}
	)
	sink := testLogr{
		logFunc: func(level int, msg string, kv ...interface{}) {
			infos = append(infos, entry{level: level, msg: msg, kv: kv})
		},
		errorFunc: func(err error, msg string, kv ...interface{}) {
			errs = append(errs, err)
			errKVs = kv
		},
	}
	reporter := NewLogReporter(logr.New(sink), WithVerbosity(1))

	failure := errors.New("timeout")
	base := progress.Event{Operation: "upload", ContextID: "ctx-9"}
	for _, e := range []progress.Event{
		{Stage: progress.StageStarted, Total: 10},
		{Stage: progress.StageProgress, Current: 5, Total: 10},
		{Stage: progress.StageComplete},
		{Stage: progress.StageError, Err: failure},
	} {
		e.Operation, e.ContextID = base.Operation, base.ContextID
		reporter.Report(e)
	}

	if len(infos) != 3 {
		t.Fatalf("Expected 3 info lines, got %d", len(infos))
	}
	wantLevels := []int{2, 1, 2}
	wantMsgs := []string{"progress started", "progress", "progress ended"}
	for i, e := range infos {
		if e.level != wantLevels[i] || e.msg != wantMsgs[i] {
			t.Errorf("Line %d: expected V(%d) %q, got V(%d) %q", i, wantLevels[i], wantMsgs[i], e.level, e.msg)
		}
	}
	if !containsKV(infos[1].kv, "percent", 50) {
		t.Errorf("Expected percent 50 in %v", infos[1].kv)
	}

	if len(errs) != 1 || !errors.Is(errs[0], failure) {
		t.Fatalf("Expected the failure to be logged at error level, got %v", errs)
	}
	if !containsKV(errKVs, "operation", "upload") || !containsKV(errKVs, "context_id", "ctx-9") {
		t.Errorf("Expected operation context on error line, got %v", errKVs)
	}
	if !containsKV(errKVs, "event_id", EventIDError) {
		t.Errorf("Expected error event id, got %v", errKVs)
	}
}

func containsKV(kv []interface{}, key string, value interface{}) bool {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i] == key && kv[i+1] == value {
			return true
		}
	}
	return false
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:                      "0 B",
		1023:                   "1023 B",
		1024:                   "1.0 KiB",
		1536:                   "1.5 KiB",
		5 * 1024 * 1024:        "5.0 MiB",
		3 * 1024 * 1024 * 1024: "3.0 GiB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestReporters_UnknownStageWritesNothing(t *testing.T) {
	event := progress.Event{Stage: "custom", Operation: "report.pdf"}

	var text bytes.Buffer
	NewTextReporter(&text).Report(event)
	if text.Len() != 0 {
		t.Errorf("Expected no text output for unknown stage, got: %q", text.String())
	}

	var bar bytes.Buffer
	NewProgressBarReporter(&bar).Report(event)
	if bar.Len() != 0 {
		t.Errorf("Expected no progress bar output for unknown stage, got: %q", bar.String())
	}
}

func TestProgressBarReporterForgetsOldFailures(t *testing.T) {
	reporter := NewProgressBarReporter(io.Discard)

	for i := 0; i < 10*maxRecentFailures; i++ {
		reporter.Report(progress.Event{
			Stage:     progress.StageError,
			Operation: "https://example.com/file.bin",
			ContextID: fmt.Sprintf("ctx-%d", i),
			Err:       errors.New("connection reset"),
		})
	}
	if len(reporter.failed) != maxRecentFailures || len(reporter.failedOrder) != maxRecentFailures {
		t.Fatalf("Expected %d remembered failures, got map %d and order %d",
			maxRecentFailures, len(reporter.failed), len(reporter.failedOrder))
	}

	// the newest failure is still suppressed, the oldest is forgotten
	if !reporter.failed[fmt.Sprintf("ctx-%d/https://example.com/file.bin", 10*maxRecentFailures-1)] {
		t.Errorf("Expected the most recent failure to be remembered")
	}
	if reporter.failed["ctx-0/https://example.com/file.bin"] {
		t.Errorf("Expected the oldest failure to be forgotten")
	}

	// a restarted operation is removed from both structures
	reporter.Report(progress.Event{Stage: progress.StageStarted, Operation: "https://example.com/file.bin", ContextID: fmt.Sprintf("ctx-%d", 10*maxRecentFailures-1)})
	if len(reporter.failed) != maxRecentFailures-1 || len(reporter.failedOrder) != maxRecentFailures-1 {
		t.Errorf("Expected restart to forget the failure, got map %d and order %d", len(reporter.failed), len(reporter.failedOrder))
	}
}
