package reporter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/konveyor/awty/progress"
)

// ChannelReporter sends progress events to a Go channel for programmatic consumption.
//
// ChannelReporter provides a bridge between progress operations and Go code
// that wants to consume events itself, such as custom UIs, monitoring loops
// or tests.
//
// Progress events use a non-blocking send, so a slow consumer never stalls
// the transfer being reported. If the consumer can't keep up, progress events
// are dropped and counted (available via DroppedEvents()). Complete and error
// events are never dropped: they wait for buffer space until the context is
// cancelled, since a consumer that misses them would wait forever.
//
// The channel closes when the context is cancelled.
//
// Thread Safety:
// This reporter is safe for concurrent use. Multiple goroutines can call Report()
// simultaneously without coordination.
//
// Example:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	rep := reporter.NewChannelReporter(ctx)
//	op.Report(rep)
//
//	go func() {
//	    for event := range rep.Events() {
//	        fmt.Printf("%s: %d%%\n", event.Operation, event.Percent)
//	    }
//	}()
type ChannelReporter struct {
	ctx           context.Context
	events        chan progress.Event
	bufferSize    int
	mu            sync.RWMutex
	closed        bool
	droppedEvents atomic.Uint64
	log           logr.Logger
}

// ChannelReporterOption is a function that configures a ChannelReporter.
type ChannelReporterOption func(*ChannelReporter)

// WithLogger sets a logger for the ChannelReporter to log dropped events.
//
// When the channel buffer fills up (consumer too slow), progress events are
// dropped. With a logger configured, each drop is logged at V(1) level with
// details about the event and cumulative drop count.
func WithLogger(log logr.Logger) ChannelReporterOption {
	return func(r *ChannelReporter) {
		r.log = log
	}
}

// WithBufferSize sets the capacity of the event channel. The default is 100.
func WithBufferSize(size int) ChannelReporterOption {
	return func(r *ChannelReporter) {
		if size > 0 {
			r.bufferSize = size
		}
	}
}

// NewChannelReporter creates a new channel-based progress reporter.
//
// The reporter automatically closes its channel when the provided context is
// cancelled. This ensures proper cleanup and allows consumers to detect
// completion by ranging over the Events() channel.
func NewChannelReporter(ctx context.Context, opts ...ChannelReporterOption) *ChannelReporter {
	r := &ChannelReporter{
		ctx:        ctx,
		bufferSize: 100,
		log:        logr.Discard(), // Default to discard logger
	}

	// Apply options
	for _, opt := range opts {
		opt(r)
	}
	r.events = make(chan progress.Event, r.bufferSize)

	// Monitor context and close when cancelled
	go func() {
		<-ctx.Done()
		r.mu.Lock()
		close(r.events)
		r.closed = true
		r.mu.Unlock()
	}()

	return r
}

// Report sends a progress event to the channel.
//
// If the reporter has been closed (context cancelled), this method returns
// immediately without panicking, ensuring safe concurrent usage during shutdown.
//
// This method is safe for concurrent use.
func (c *ChannelReporter) Report(event progress.Event) {
	// Normalize event (set timestamp, calculate percent)
	normalize(&event)

	// Hold read lock during the entire send operation to prevent the
	// context watcher from closing the channel while we're sending
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return
	}

	if event.Stage.Terminal() {
		select {
		case c.events <- event:
		case <-c.ctx.Done():
		}
		return
	}

	// Non-blocking send
	select {
	case c.events <- event:
		// Event sent successfully
	default:
		// Channel is full, skip this event to avoid blocking the transfer
		dropped := c.droppedEvents.Add(1)
		c.log.V(1).Info("progress event dropped due to slow consumer",
			"stage", event.Stage,
			"operation", event.Operation,
			"context_id", event.ContextID,
			"total_dropped", dropped,
		)
	}
}

// Events returns the read-only channel for receiving progress events.
//
// Consumers should range over this channel to process events. The channel
// will be closed when the context provided to NewChannelReporter is cancelled,
// allowing the range loop to exit cleanly.
func (c *ChannelReporter) Events() <-chan progress.Event {
	return c.events
}

// DroppedEvents returns the number of progress events that were dropped due
// to the channel buffer being full.
//
// A non-zero value indicates that the consumer isn't keeping up with event
// production. Consider a coarser strategy (a larger chunk size or a
// Throttled strategy) or a larger buffer.
func (c *ChannelReporter) DroppedEvents() uint64 {
	return c.droppedEvents.Load()
}
