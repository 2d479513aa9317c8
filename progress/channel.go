package progress

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// Observer receives the notifications of one Channel.
//
// After OnComplete or OnError no further calls are made. Callbacks run on
// the goroutine that published the update and should return quickly.
type Observer[T Number] interface {
	OnNext(Value[T])
	OnComplete()
	OnError(error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs[T Number] struct {
	Next     func(Value[T])
	Complete func()
	Error    func(error)
}

func (o ObserverFuncs[T]) OnNext(v Value[T]) {
	if o.Next != nil {
		o.Next(v)
	}
}

func (o ObserverFuncs[T]) OnComplete() {
	if o.Complete != nil {
		o.Complete()
	}
}

func (o ObserverFuncs[T]) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

// Subscription is the handle returned by Channel.Subscribe.
type Subscription struct {
	active atomic.Bool
	remove func()
}

// Close stops delivery to the observer. It takes effect immediately, even
// for a notification that is already being delivered to other observers.
// Closing twice is a no-op.
func (s *Subscription) Close() {
	if s.active.CompareAndSwap(true, false) {
		s.remove()
	}
}

// Active reports whether the observer can still receive notifications.
func (s *Subscription) Active() bool {
	return s.active.Load()
}

type subscriber[T Number] struct {
	observer Observer[T]
	sub      *Subscription
}

type deliveryKind int

const (
	deliverNext deliveryKind = iota
	deliverComplete
	deliverError
)

type delivery[T Number] struct {
	kind        deliveryKind
	value       Value[T]
	err         error
	subscribers []*subscriber[T]
}

// Channel connects one Sink and its Strategy to any number of observers.
//
// Each published raw pair is run through the strategy; accepted values are
// delivered to the observers registered at that moment, in registration
// order. Late subscribers see no history. CompleteAll and ErrorAll
// terminate the channel: every observer gets the terminal signal once, the
// subscriber list is cleared and later publishes are dropped.
//
// Publish never waits on another goroutine's delivery. Accepted
// notifications are queued in acceptance order and the goroutine that
// finds the queue idle drains it, so every observer sees the same sequence
// in the same order. A callback may publish to, subscribe to or terminate
// its own channel; the resulting notifications are delivered after the
// callback returns.
type Channel[T Number] struct {
	strategy Strategy
	log      logr.Logger

	mu          sync.Mutex
	subscribers []*subscriber[T]
	queue       []delivery[T]
	draining    bool
	closed      bool
	terminalErr error
	lastSeq     uint64
}

// NewChannel creates a channel that filters updates with strategy.
// A nil strategy never notifies.
func NewChannel[T Number](strategy Strategy, opts ...Option) *Channel[T] {
	o := buildOptions(opts)
	if strategy == nil {
		strategy = Never{}
	}
	return &Channel[T]{
		strategy: strategy,
		log:      o.log,
	}
}

// Subscribe registers observer for future notifications.
//
// Subscribing to a channel that already terminated delivers only the
// terminal signal.
func (c *Channel[T]) Subscribe(observer Observer[T]) *Subscription {
	s := &subscriber[T]{observer: observer, sub: &Subscription{}}
	s.sub.active.Store(true)
	s.sub.remove = func() { c.unsubscribe(s) }

	c.mu.Lock()
	if c.closed {
		d := delivery[T]{kind: deliverComplete, subscribers: []*subscriber[T]{s}}
		if c.terminalErr != nil {
			d.kind = deliverError
			d.err = c.terminalErr
		}
		c.enqueueLocked(d)
		return s.sub
	}
	c.subscribers = append(c.subscribers, s)
	c.mu.Unlock()
	return s.sub
}

// SubscribeFunc is Subscribe for plain callbacks. Any of them may be nil.
func (c *Channel[T]) SubscribeFunc(onNext func(Value[T]), onComplete func(), onError func(error)) *Subscription {
	return c.Subscribe(ObserverFuncs[T]{Next: onNext, Complete: onComplete, Error: onError})
}

func (c *Channel[T]) unsubscribe(s *subscriber[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = slices.DeleteFunc(c.subscribers, func(x *subscriber[T]) bool {
		return x == s
	})
}

// Publish runs raw through the strategy and notifies observers when it is
// accepted. It implements the publishing side of a Sink.
//
// Pairs that arrive after a pair with a larger Seq are stale and dropped,
// so concurrent mutations of one sink never move the reported percentage
// backwards. A non-positive total cannot produce a percentage; it
// terminates the channel through ErrorAll with an error wrapping
// ErrZeroTotal.
func (c *Channel[T]) Publish(raw Raw[T]) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.V(2).Info("progress update after channel terminated", "current", raw.Current, "total", raw.Total)
		return
	}
	if raw.Seq != 0 {
		if raw.Seq <= c.lastSeq {
			c.mu.Unlock()
			return
		}
		c.lastSeq = raw.Seq
	}
	if raw.Total <= 0 {
		c.mu.Unlock()
		c.ErrorAll(fmt.Errorf("%w: current %d, total %d", ErrZeroTotal, raw.Current, raw.Total))
		return
	}
	notify, percent := c.strategy.Decide(int64(raw.Current), int64(raw.Total))
	if !notify {
		c.mu.Unlock()
		return
	}
	c.enqueueLocked(delivery[T]{
		kind: deliverNext,
		value: Value[T]{
			PercentComplete: percent,
			Current:         raw.Current,
			Total:           raw.Total,
		},
		subscribers: slices.Clone(c.subscribers),
	})
}

// CompleteAll signals completion to every observer and clears the
// subscriber list. Only the first terminal call has any effect.
func (c *Channel[T]) CompleteAll() {
	c.terminate(nil)
}

// ErrorAll signals err to every observer and clears the subscriber list.
// Only the first terminal call has any effect.
func (c *Channel[T]) ErrorAll(err error) {
	if err == nil {
		err = fmt.Errorf("progress: operation failed")
	}
	c.terminate(err)
}

func (c *Channel[T]) terminate(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.terminalErr = err
	subscribers := c.subscribers
	c.subscribers = nil

	d := delivery[T]{kind: deliverComplete, subscribers: subscribers}
	if err != nil {
		d.kind = deliverError
		d.err = err
		c.log.V(1).Info("progress channel terminated with error", "error", err.Error(), "subscribers", len(subscribers))
	}
	c.enqueueLocked(d)
}

// Done reports whether the channel has terminated.
func (c *Channel[T]) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Err returns the error the channel terminated with, if any.
func (c *Channel[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminalErr
}

// Len returns the number of registered observers.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}

// enqueueLocked must be called with c.mu held; it releases it.
func (c *Channel[T]) enqueueLocked(d delivery[T]) {
	c.queue = append(c.queue, d)
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()
	c.drain()
}

func (c *Channel[T]) drain() {
	finished := false
	defer func() {
		if !finished {
			// an observer panicked, let the next publisher take over
			c.mu.Lock()
			c.draining = false
			c.mu.Unlock()
		}
	}()
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			c.queue = nil
			c.mu.Unlock()
			finished = true
			return
		}
		d := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()
		c.deliver(d)
	}
}

func (c *Channel[T]) deliver(d delivery[T]) {
	for _, s := range d.subscribers {
		switch d.kind {
		case deliverNext:
			if s.sub.Active() {
				s.observer.OnNext(d.value)
			}
		case deliverComplete:
			if s.sub.active.Swap(false) {
				s.observer.OnComplete()
			}
		case deliverError:
			if s.sub.active.Swap(false) {
				s.observer.OnError(d.err)
			}
		}
	}
}
