// Package metrics provides Prometheus metrics for the market data pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage attempt statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Manager owns every pipeline metric and the registry they live on.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	runs           *prometheus.CounterVec
	stageAttempts  *prometheus.CounterVec
	stageRetries   *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	datasetsFailed *prometheus.CounterVec
	rowsCleaned    prometheus.Counter
	rowsDropped    *prometheus.CounterVec
}

// NewManager creates a metrics manager on its own registry unless one is supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "market",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Pipeline runs by final status (completed, partial, failed, rejected)",
	}, []string{"outcome"})

	m.stageAttempts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_attempts_total",
		Help:      "Stage invocations per dataset by stage and status",
	}, []string{"stage", "status"})

	m.stageRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_retries_total",
		Help:      "Automatic stage retries by stage",
	}, []string{"stage"})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_duration_seconds",
		Help:      "Duration of a single stage invocation in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})

	m.datasetsFailed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "datasets_failed_total",
		Help:      "Datasets marked failed by stage and error kind",
	}, []string{"stage", "kind"})

	m.rowsCleaned = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_cleaned_total",
		Help:      "Rows emitted by the cleaner",
	})

	m.rowsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_dropped_total",
		Help:      "Rows dropped during cleaning or analysis by reason",
	}, []string{"reason"})
}

// RecordRun counts a finished run.
func (m *Manager) RecordRun(outcome string) {
	m.runs.WithLabelValues(outcome).Inc()
}

// RecordStage counts one stage invocation and observes its duration.
func (m *Manager) RecordStage(stage string, success bool, d time.Duration) {
	status := StatusSuccess
	if !success {
		status = StatusFailure
	}
	m.stageAttempts.WithLabelValues(stage, status).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRetry counts one automatic retry of a stage.
func (m *Manager) RecordRetry(stage string) {
	m.stageRetries.WithLabelValues(stage).Inc()
}

// RecordDatasetFailed counts a dataset that reached the failed state.
func (m *Manager) RecordDatasetFailed(stage, kind string) {
	m.datasetsFailed.WithLabelValues(stage, kind).Inc()
}

// RecordRowsCleaned adds n emitted rows.
func (m *Manager) RecordRowsCleaned(n int) {
	if n > 0 {
		m.rowsCleaned.Add(float64(n))
	}
}

// RecordRowsDropped adds n dropped rows for reason.
func (m *Manager) RecordRowsDropped(reason string, n int) {
	if n > 0 {
		m.rowsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
