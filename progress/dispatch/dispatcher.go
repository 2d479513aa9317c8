// Package dispatch moves progress events off the goroutine that produces
// them.
//
// Observers attached to a progress.Channel run synchronously on the
// goroutine that moved the sink, which is usually the one doing I/O. A
// Dispatcher is itself a progress.Reporter that hands each event to a
// per-reporter worker goroutine, so slow reporters (terminals, files,
// remote sinks) never stall the transfer.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/konveyor/awty/progress"
)

// DefaultBufferSize is the per-reporter queue length.
const DefaultBufferSize = 100

// Dispatcher fans events out to reporters asynchronously.
//
// Architecture:
//   - Report places the event on every reporter's buffered channel
//   - Each reporter runs in its own goroutine and drains its channel in order
//   - Progress events are dropped when a reporter's buffer is full
//   - Complete and error events wait for buffer space, so they are never lost
//
// Lifecycle:
//  1. Create with New() and options (WithContext, WithReporters, ...)
//  2. Attach it like any reporter, for example with Operation.Report
//  3. Close stops intake and waits until every queued event was reported
//
// Cancelling the context stops the workers without draining.
//
// Thread Safety:
// Dispatcher is safe for concurrent use. Per reporter, events arrive in the
// order Report was called.
type Dispatcher struct {
	ctx        context.Context
	reporters  []progress.Reporter
	channels   []chan progress.Event
	bufferSize int
	log        logr.Logger

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

// Option configures a Dispatcher during creation.
type Option func(d *Dispatcher)

// WithContext sets the context controlling the worker goroutines.
//
// When the context is cancelled, workers stop and queued events are
// discarded.
func WithContext(ctx context.Context) Option {
	return func(d *Dispatcher) {
		d.ctx = ctx
	}
}

// WithReporters adds one or more reporters.
//
// Example:
//
//	dispatch.New(
//	    dispatch.WithReporters(
//	        reporter.NewProgressBarReporter(os.Stderr),
//	        reporter.NewJSONReporter(logFile),
//	    ),
//	)
func WithReporters(reporters ...progress.Reporter) Option {
	return func(d *Dispatcher) {
		d.reporters = append(d.reporters, reporters...)
	}
}

// WithBufferSize sets the per-reporter queue length.
func WithBufferSize(size int) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.bufferSize = size
		}
	}
}

// WithLogger sets the logger used to report dropped events at V(1).
func WithLogger(log logr.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// New creates a Dispatcher and starts one worker per reporter.
//
// If no reporters are specified, a NoopReporter is used so that an
// unconfigured dispatcher costs nothing beyond the channel send.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		bufferSize: DefaultBufferSize,
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.ctx == nil {
		d.ctx = context.Background()
	}

	if len(d.reporters) == 0 {
		// No reporters, will create a no-op reporter
		d.reporters = append(d.reporters, progress.NewNoopReporter())
	}

	for _, reporter := range d.reporters {
		ch := make(chan progress.Event, d.bufferSize)
		d.channels = append(d.channels, ch)
		d.wg.Add(1)
		go d.reporterWorker(reporter, ch)
	}

	return d
}

// Report queues event for every reporter. It implements progress.Reporter.
//
// Events reported after Close are ignored.
func (d *Dispatcher) Report(event progress.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	for i, ch := range d.channels {
		if event.Stage.Terminal() {
			select {
			case ch <- event:
			case <-d.ctx.Done():
			}
			continue
		}
		select {
		case ch <- event:
		default:
			dropped := d.dropped.Add(1)
			d.log.V(1).Info("progress event dropped due to slow reporter",
				"reporter", i,
				"stage", event.Stage,
				"operation", event.Operation,
				"total_dropped", dropped,
			)
		}
	}
}

// DroppedEvents returns how many progress events were dropped because a
// reporter's buffer was full.
func (d *Dispatcher) DroppedEvents() uint64 {
	return d.dropped.Load()
}

// Close stops accepting events and waits for the workers to report
// everything already queued, or for ctx to be done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.channels {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reporterWorker runs in a goroutine, forwarding events to a reporter.
//
// Each reporter has its own worker goroutine and buffered channel to prevent
// slow reporters from blocking each other. The worker stops when its channel
// is closed and drained, or when the context is cancelled.
func (d *Dispatcher) reporterWorker(reporter progress.Reporter, events chan progress.Event) {
	defer d.wg.Done()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			reporter.Report(event)
		case <-d.ctx.Done():
			return
		}
	}
}
