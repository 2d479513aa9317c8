package progress

import (
	"sync/atomic"
	"time"
)

type reportingObserver[T Number] struct {
	reporter  Reporter
	operation string
	contextID string
	started   atomic.Bool
}

// Observe returns an Observer that turns channel notifications into Events
// for r. The started event is emitted lazily, right before the first
// progress event.
func Observe[T Number](r Reporter, operation, contextID string) Observer[T] {
	if r == nil {
		r = NewNoopReporter()
	}
	return &reportingObserver[T]{
		reporter:  r,
		operation: operation,
		contextID: contextID,
	}
}

func (o *reportingObserver[T]) event(stage Stage) Event {
	return Event{
		Timestamp: time.Now(),
		Stage:     stage,
		Operation: o.operation,
		ContextID: o.contextID,
	}
}

func (o *reportingObserver[T]) OnNext(v Value[T]) {
	if o.started.CompareAndSwap(false, true) {
		e := o.event(StageStarted)
		e.Total = int64(v.Total)
		o.reporter.Report(e)
	}
	e := o.event(StageProgress)
	e.Current = int64(v.Current)
	e.Total = int64(v.Total)
	e.Percent = v.PercentComplete
	o.reporter.Report(e)
}

func (o *reportingObserver[T]) OnComplete() {
	o.reporter.Report(o.event(StageComplete))
}

func (o *reportingObserver[T]) OnError(err error) {
	e := o.event(StageError)
	e.Err = err
	if err != nil {
		e.Error = err.Error()
	}
	o.reporter.Report(e)
}
