package progress

import (
	"fmt"
	"sync"
	"time"
)

// Strategy decides whether a raw (current, total) pair is worth a
// notification. It returns the decision together with the percentage for
// the pair.
//
// Implementations with memory must make the decide-and-update step atomic:
// two concurrent callers must never both be told to notify for the same
// percentage. A strategy instance belongs to one operation.
type Strategy interface {
	Decide(current, total int64) (bool, int)
}

// ChunkedPercentage notifies when the percentage moved by at least a fixed
// number of points since the last notification. Reaching 100 is always
// reported, once, even when the final step is smaller than the chunk.
type ChunkedPercentage struct {
	chunk int

	mu   sync.Mutex
	last int
}

// NewChunkedPercentage creates a chunked strategy. chunk must be at least 1.
func NewChunkedPercentage(chunk int) (*ChunkedPercentage, error) {
	if chunk < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunk)
	}
	return &ChunkedPercentage{chunk: chunk}, nil
}

// ChunkSize returns the minimum percentage delta between notifications.
func (c *ChunkedPercentage) ChunkSize() int {
	return c.chunk
}

// Decide implements Strategy.
func (c *ChunkedPercentage) Decide(current, total int64) (bool, int) {
	percent := PercentComplete(current, total)

	c.mu.Lock()
	defer c.mu.Unlock()

	if percent == c.last {
		return false, percent
	}
	delta := percent - c.last
	if delta < 0 {
		delta = -delta
	}
	if delta < c.chunk && percent != 100 {
		return false, percent
	}
	c.last = percent
	return true, percent
}

// Reset forgets the last reported percentage.
func (c *ChunkedPercentage) Reset() {
	c.mu.Lock()
	c.last = 0
	c.mu.Unlock()
}

// Never is the strategy that never notifies.
type Never struct{}

// Decide implements Strategy.
func (Never) Decide(current, total int64) (bool, int) {
	return false, PercentComplete(current, total)
}

// Throttled notifies on percentage changes at most once per interval.
// The first change and reaching 100 are reported regardless of timing, and
// an unchanged percentage is never reported twice in a row.
//
// It suits sources that update very frequently but where every percent
// point still matters once enough time has passed.
type Throttled struct {
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	last     int
	lastTime time.Time
	reported bool
}

// ThrottledOption configures a Throttled strategy.
type ThrottledOption func(*Throttled)

// WithInterval sets the minimum time between notifications.
// The default is 500ms.
func WithInterval(interval time.Duration) ThrottledOption {
	return func(t *Throttled) {
		t.interval = interval
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) ThrottledOption {
	return func(t *Throttled) {
		t.now = now
	}
}

// NewThrottled creates a throttled strategy.
func NewThrottled(opts ...ThrottledOption) *Throttled {
	t := &Throttled{
		interval: 500 * time.Millisecond,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Decide implements Strategy.
func (t *Throttled) Decide(current, total int64) (bool, int) {
	percent := PercentComplete(current, total)

	t.mu.Lock()
	defer t.mu.Unlock()

	if percent == t.last {
		return false, percent
	}
	now := t.now()
	isFirst := !t.reported
	isLast := percent == 100
	intervalElapsed := now.Sub(t.lastTime) >= t.interval
	if !isFirst && !isLast && !intervalElapsed {
		return false, percent
	}
	t.last = percent
	t.lastTime = now
	t.reported = true
	return true, percent
}

// Reset clears the throttling state.
func (t *Throttled) Reset() {
	t.mu.Lock()
	t.last = 0
	t.lastTime = time.Time{}
	t.reported = false
	t.mu.Unlock()
}
