package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	logrusr "github.com/bombsimon/logrusr/v3"
	"github.com/go-logr/logr"
	"github.com/konveyor/awty/config"
	"github.com/konveyor/awty/progress"
	"github.com/konveyor/awty/progress/dispatch"
	"github.com/konveyor/awty/progress/reporter"
	"github.com/konveyor/awty/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// runtime holds everything a command needs to report progress. close
// flushes the reporters and stops the optional tracing and metrics.
type runtime struct {
	ctx        context.Context
	log        logr.Logger
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	span       trace.Span

	closers []func(context.Context)
}

func newRuntime(ctx context.Context, cfg *config.Config, command string, attrs ...attribute.KeyValue) (*runtime, error) {
	logrusLog := logrus.New()
	logrusLog.SetOutput(os.Stderr)
	logrusLog.SetFormatter(&logrus.TextFormatter{})
	// Adding 5 here to move logs to info level
	// setting verbose 1 -> V(2) logs show up
	logrusLog.SetLevel(logrus.Level(cfg.Verbose + 5))
	log := logrusr.New(logrusLog)

	rt := &runtime{ctx: ctx, log: log, cfg: cfg}

	tp, err := tracing.InitTracerProvider(log, cfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func(ctx context.Context) { tracing.Shutdown(ctx, log, tp) })
	rt.ctx, rt.span = tracing.StartNewSpan(ctx, command, attrs...)

	out, err := progressWriter(cfg.ProgressOutput)
	if err != nil {
		rt.close()
		return nil, err
	}
	if c, ok := out.(io.Closer); ok && out != os.Stderr && out != os.Stdout {
		rt.closers = append(rt.closers, func(context.Context) { c.Close() })
	}

	reporters := []progress.Reporter{createProgressReporter(cfg, out, log)}
	if cfg.EnableJaeger {
		reporters = append(reporters, tracing.NewSpanReporter(rt.ctx))
	}
	if cfg.MetricsAddress != "" {
		metrics, err := startMetricsServer(cfg.MetricsAddress, log)
		if err != nil {
			rt.close()
			return nil, err
		}
		reporters = append(reporters, metrics.reporter)
		rt.closers = append(rt.closers, metrics.shutdown)
	}

	rt.dispatcher = dispatch.New(
		dispatch.WithContext(rt.ctx),
		dispatch.WithReporters(reporters...),
		dispatch.WithBufferSize(cfg.BufferSize),
		dispatch.WithLogger(log),
	)
	return rt, nil
}

// strategy returns a fresh strategy per operation; chunked strategies
// remember the last notified percentage.
func (rt *runtime) strategy() progress.Strategy {
	s, err := progress.NewChunkedPercentage(rt.cfg.ChunkSize)
	if err != nil {
		// config validation keeps the chunk size in range
		panic(err)
	}
	return s
}

func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if rt.dispatcher != nil {
		if err := rt.dispatcher.Close(ctx); err != nil {
			rt.log.Error(err, "flushing progress reporters")
		}
		if dropped := rt.dispatcher.DroppedEvents(); dropped > 0 {
			rt.log.V(1).Info("progress events dropped", "count", dropped)
		}
	}
	if rt.span != nil {
		rt.span.End()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i](ctx)
	}
}

func progressWriter(output string) (io.Writer, error) {
	switch output {
	case config.OutputStderr:
		return os.Stderr, nil
	case config.OutputStdout:
		return os.Stdout, nil
	default:
		file, err := os.Create(output)
		if err != nil {
			return nil, fmt.Errorf("failed to create progress output file %s: %w", output, err)
		}
		return file, nil
	}
}

// createProgressReporter creates a progress reporter based on the configured format
func createProgressReporter(cfg *config.Config, w io.Writer, log logr.Logger) progress.Reporter {
	switch cfg.ProgressFormat {
	case config.FormatJSON:
		return reporter.NewJSONReporter(w)
	case config.FormatText:
		return reporter.NewTextReporter(w)
	case config.FormatLog:
		return reporter.NewLogReporter(log.WithName("progress"))
	default:
		return reporter.NewProgressBarReporter(w, reporter.WithByteUnits())
	}
}

type metricsServer struct {
	reporter *reporter.PrometheusReporter
	shutdown func(context.Context)
}

func startMetricsServer(addr string, log logr.Logger) (*metricsServer, error) {
	reg := prometheus.NewRegistry()
	rep, err := reporter.NewPrometheusReporter(reg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "metrics server stopped", "address", addr)
		}
	}()
	log.V(1).Info("serving metrics", "address", addr)

	return &metricsServer{
		reporter: rep,
		shutdown: func(ctx context.Context) {
			if err := server.Shutdown(ctx); err != nil {
				log.Error(err, "shutting down metrics server")
			}
		},
	}, nil
}
