package progress

import (
	"fmt"
	"math"
	"sync/atomic"
)

// DefaultTotal is the total used by NewDefaultSink.
const DefaultTotal = 100

// Sink is the mutable progress counter for a single operation.
//
// Current and Total live in one immutable state swapped atomically, so
// parallel workers can report without serializing on a lock. Every mutation
// bumps a sequence number together with the value and publishes the
// resulting pair synchronously on the calling goroutine; there is no
// batching at this level, throttling is the Strategy's job. The sequence
// lets a Channel discard pairs that reach it after a newer one.
//
// For int32 sinks the counter saturates at the int32 bounds instead of
// wrapping around.
//
// A Sink must not be shared between unrelated operations.
type Sink[T Number] struct {
	state   atomic.Pointer[sinkState]
	publish func(Raw[T])
}

type sinkState struct {
	current int64
	total   int64
	seq     uint64
}

// SinkOption configures a Sink during creation.
type SinkOption[T Number] func(*Sink[T])

// WithInitialValue starts the sink at v instead of 0.
func WithInitialValue[T Number](v T) SinkOption[T] {
	return func(s *Sink[T]) {
		st := *s.state.Load()
		st.current = int64(v)
		s.state.Store(&st)
	}
}

// WithPublisher sets the function every mutation is published to.
// Channel.Publish is the usual target.
func WithPublisher[T Number](publish func(Raw[T])) SinkOption[T] {
	return func(s *Sink[T]) {
		s.publish = publish
	}
}

// NewSink creates a sink counting towards total. It fails with
// ErrInvalidTotal when total is smaller than 1.
func NewSink[T Number](total T, opts ...SinkOption[T]) (*Sink[T], error) {
	if total < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTotal, total)
	}
	s := &Sink[T]{}
	s.state.Store(&sinkState{total: int64(total)})
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewDefaultSink creates a sink with a total of DefaultTotal.
func NewDefaultSink[T Number](opts ...SinkOption[T]) *Sink[T] {
	s, _ := NewSink(T(DefaultTotal), opts...)
	return s
}

// Current returns the current value.
func (s *Sink[T]) Current() T {
	return T(s.state.Load().current)
}

// Total returns the current total.
func (s *Sink[T]) Total() T {
	return T(s.state.Load().total)
}

// Snapshot returns a consistent (current, total) pair.
func (s *Sink[T]) Snapshot() Raw[T] {
	return toRaw[T](s.state.Load())
}

// Add increases current by amount, publishes and returns the new current.
func (s *Sink[T]) Add(amount T) T {
	st := s.update(func(st *sinkState) {
		st.current = saturate[T](st.current + int64(amount))
	})
	return T(st.current)
}

// Subtract decreases current by amount, publishes and returns the new current.
func (s *Sink[T]) Subtract(amount T) T {
	st := s.update(func(st *sinkState) {
		st.current = saturate[T](st.current - int64(amount))
	})
	return T(st.current)
}

// Set overwrites current. Use it when absolute progress is computed
// elsewhere rather than accumulated from deltas.
func (s *Sink[T]) Set(current T) {
	s.update(func(st *sinkState) {
		st.current = int64(current)
	})
}

// Reset sets current back to 0 and publishes the change.
func (s *Sink[T]) Reset() {
	s.Set(0)
}

// SetTotal changes the total, for example when more work is discovered
// mid-operation. A total smaller than 1 fails with ErrInvalidTotal and
// leaves the sink untouched; otherwise the new total is published together
// with the current value.
func (s *Sink[T]) SetTotal(total T) error {
	if total < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidTotal, total)
	}
	s.update(func(st *sinkState) {
		st.total = int64(total)
	})
	return nil
}

// update applies mutate to a copy of the state, installs it with the next
// sequence number and publishes it.
func (s *Sink[T]) update(mutate func(*sinkState)) sinkState {
	for {
		old := s.state.Load()
		next := *old
		mutate(&next)
		next.seq = old.seq + 1
		if s.state.CompareAndSwap(old, &next) {
			if s.publish != nil {
				s.publish(toRaw[T](&next))
			}
			return next
		}
	}
}

func toRaw[T Number](st *sinkState) Raw[T] {
	return Raw[T]{Current: T(st.current), Total: T(st.total), Seq: st.seq}
}

// saturate clamps v to the range of T. Only int32 can overflow, the state
// itself is an int64.
func saturate[T Number](v int64) int64 {
	if int64(T(v)) == v {
		return v
	}
	if v > 0 {
		return math.MaxInt32
	}
	return math.MinInt32
}
