// Package tracing exports awty operations as OpenTelemetry spans.
package tracing

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/konveyor/awty/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName = "awty"
	tracerName  = "github.com/konveyor/awty/tracing"

	attrChunkSize      = attribute.Key("awty.chunk_size")
	attrProgressFormat = attribute.Key("awty.progress_format")
)

func newJaegerExporter(endpoint string) (tracesdk.SpanExporter, error) {
	exp, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)),
	)
	if err != nil {
		return nil, err
	}
	return exp, nil
}

// newResource describes this process: the service, its version and the
// progress settings the spans were recorded with.
func newResource(cfg *config.Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(config.Version),
		attrChunkSize.Int(cfg.ChunkSize),
		attrProgressFormat.String(cfg.ProgressFormat),
	)
}

// InitTracerProvider installs a global tracer provider built from cfg.
// Spans are exported to cfg.JaegerEndpoint when cfg.EnableJaeger is set and
// dropped otherwise.
func InitTracerProvider(log logr.Logger, cfg *config.Config) (*tracesdk.TracerProvider, error) {
	tracerOptions := []tracesdk.TracerProviderOption{
		tracesdk.WithSampler(tracesdk.AlwaysSample()),
		tracesdk.WithResource(newResource(cfg)),
	}
	if cfg.EnableJaeger {
		exp, err := newJaegerExporter(cfg.JaegerEndpoint)
		if err != nil {
			log.Error(err, "failed to create jaeger exporter", "endpoint", cfg.JaegerEndpoint)
			return nil, err
		}
		tracerOptions = append(tracerOptions,
			tracesdk.WithBatcher(exp))
	}

	tp := tracesdk.NewTracerProvider(tracerOptions...)
	otel.SetTracerProvider(tp)

	return tp, nil
}

func Shutdown(ctx context.Context, log logr.Logger, tp *tracesdk.TracerProvider) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		log.Error(err, "error shutting down tracer provider")
	}
}

// StartNewSpan starts a span from the global tracer provider. Every awty
// span, including those of SpanReporter, goes through it.
func StartNewSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
