package reporter

import (
	"fmt"
	"sync"

	"github.com/konveyor/awty/progress"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusReporter exports progress as Prometheus metrics.
//
// Counters track operations started and finished (by result). Gauges expose
// the percentage and byte count of running operations; their series are
// removed when the operation finishes, so the label set stays bounded by the
// number of concurrent operations.
type PrometheusReporter struct {
	started   prometheus.Counter
	finished  *prometheus.CounterVec
	running   prometheus.Gauge
	processed prometheus.Counter
	percent   *prometheus.GaugeVec
	current   *prometheus.GaugeVec

	tracker *operationTracker
}

// NewPrometheusReporter registers the collectors against reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewPrometheusReporter(reg prometheus.Registerer) (*PrometheusReporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &PrometheusReporter{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "awty_operations_started_total",
			Help: "Total operations that reported progress.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "awty_operations_finished_total",
			Help: "Total operations finished partitioned by result.",
		}, []string{"result"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "awty_operations_running",
			Help: "Current number of operations reporting progress.",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "awty_processed_units_total",
			Help: "Units (usually bytes) processed across all operations.",
		}),
		percent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "awty_operation_percent",
			Help: "Last reported completion percentage per running operation.",
		}, []string{"operation", "context_id"}),
		current: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "awty_operation_current",
			Help: "Last reported current value per running operation.",
		}, []string{"operation", "context_id"}),
		tracker: newOperationTracker(),
	}
	for _, collector := range []prometheus.Collector{
		p.started,
		p.finished,
		p.running,
		p.processed,
		p.percent,
		p.current,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return p, nil
}

// Report implements progress.Reporter. It is safe for concurrent use.
func (p *PrometheusReporter) Report(event progress.Event) {
	normalize(&event)
	key := operationKey(event)

	switch event.Stage {
	case progress.StageStarted:
		p.started.Inc()
		if p.tracker.start(key) {
			p.running.Inc()
		}
	case progress.StageProgress:
		if delta := p.tracker.advance(key, event.Current); delta > 0 {
			p.processed.Add(float64(delta))
		}
		p.percent.WithLabelValues(event.Operation, event.ContextID).Set(float64(event.Percent))
		p.current.WithLabelValues(event.Operation, event.ContextID).Set(float64(event.Current))
	case progress.StageComplete, progress.StageError:
		result := "success"
		if event.Stage == progress.StageError {
			result = "error"
		}
		p.finished.WithLabelValues(result).Inc()
		if p.tracker.complete(key) {
			p.running.Dec()
		}
		p.percent.DeleteLabelValues(event.Operation, event.ContextID)
		p.current.DeleteLabelValues(event.Operation, event.ContextID)
	}
}

type operationTracker struct {
	mu      sync.Mutex
	running map[string]int64
}

func newOperationTracker() *operationTracker {
	return &operationTracker{running: make(map[string]int64)}
}

func (t *operationTracker) start(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[key]; ok {
		return false
	}
	t.running[key] = 0
	return true
}

// advance records current for key and returns how far it moved forward.
func (t *operationTracker) advance(key string, current int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.running[key]
	if !ok {
		return 0
	}
	t.running[key] = current
	return current - last
}

func (t *operationTracker) complete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[key]; !ok {
		return false
	}
	delete(t.running, key)
	return true
}
