package tracing

import (
	"context"
	"errors"
	"sync"

	"github.com/konveyor/awty/progress"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanReporter records each progress operation as a span. Progress events
// become span events; the span ends with the operation, carrying the error
// when it failed.
type SpanReporter struct {
	ctx context.Context

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewSpanReporter creates a SpanReporter whose spans are children of the
// span in ctx, if any. Spans come from the provider installed by
// InitTracerProvider.
func NewSpanReporter(ctx context.Context) *SpanReporter {
	return &SpanReporter{
		ctx:   ctx,
		spans: map[string]trace.Span{},
	}
}

// Report implements progress.Reporter.
func (s *SpanReporter) Report(event progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := event.ContextID + "/" + event.Operation
	span, ok := s.spans[key]
	if !ok {
		if event.Stage.Terminal() && event.Stage != progress.StageError {
			return
		}
		_, span = StartNewSpan(s.ctx, "progress "+event.Operation,
			attribute.String("progress.operation", event.Operation),
			attribute.String("progress.context_id", event.ContextID),
		)
		s.spans[key] = span
	}

	switch event.Stage {
	case progress.StageStarted:
		span.SetAttributes(attribute.Int64("progress.total", event.Total))
	case progress.StageProgress:
		span.AddEvent("progress", trace.WithAttributes(
			attribute.Int("progress.percent", event.Percent),
			attribute.Int64("progress.current", event.Current),
			attribute.Int64("progress.total", event.Total),
		))
	case progress.StageComplete:
		span.SetStatus(codes.Ok, "")
		span.End()
		delete(s.spans, key)
	case progress.StageError:
		err := event.Err
		if err == nil {
			err = errors.New(event.Error)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		delete(s.spans, key)
	}
}
