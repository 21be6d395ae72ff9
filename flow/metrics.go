package flow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects execution metrics for production
// monitoring of workflow threads.
//
// Metrics exposed (all namespaced "tripflow"):
//
//  1. steps_total (counter): node executions by node and outcome.
//     Labels: node_id, status (success/error/timeout/suspended).
//
//  2. step_latency_ms (histogram): node execution duration.
//     Labels: node_id, status. Buckets 1ms to 10s.
//
//  3. suspends_total (counter): interrupts raised, by node.
//
//  4. resumes_total (counter): human decisions delivered, by node.
//
//  5. checkpoint_append_latency_ms (histogram): store append duration.
//     Labels: status (ok/error).
//
//  6. runs_inflight (gauge): Run/Resume invocations currently executing.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewPrometheusMetrics(registry)
//	engine := flow.New(reducer, st, emitter, flow.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// All methods are safe for concurrent use.
type PrometheusMetrics struct {
	steps             *prometheus.CounterVec
	stepLatency       *prometheus.HistogramVec
	suspends          *prometheus.CounterVec
	resumes           *prometheus.CounterVec
	checkpointLatency *prometheus.HistogramVec
	runsInflight      prometheus.Gauge

	registry prometheus.Registerer

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all workflow metrics with
// the provided registry (prometheus.DefaultRegisterer when nil).
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{
		registry: registry,
		enabled:  true,
	}

	pm.steps = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripflow",
		Name:      "steps_total",
		Help:      "Node executions by node and outcome",
	}, []string{"node_id", "status"})

	pm.stepLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tripflow",
		Name:      "step_latency_ms",
		Help:      "Node execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
	}, []string{"node_id", "status"})

	pm.suspends = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripflow",
		Name:      "suspends_total",
		Help:      "Interrupts raised awaiting a human decision, by node",
	}, []string{"node_id"})

	pm.resumes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripflow",
		Name:      "resumes_total",
		Help:      "Human decisions delivered to suspended threads, by node",
	}, []string{"node_id"})

	pm.checkpointLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tripflow",
		Name:      "checkpoint_append_latency_ms",
		Help:      "Checkpoint append duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000},
	}, []string{"status"})

	pm.runsInflight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "tripflow",
		Name:      "runs_inflight",
		Help:      "Run and Resume invocations currently executing",
	})

	return pm
}

// RecordStep records one node execution with its duration and outcome
// (one of "success", "error", "timeout", "suspended").
func (pm *PrometheusMetrics) RecordStep(nodeID string, latency time.Duration, status string) {
	if !pm.isEnabled() {
		return
	}

	latencyMs := float64(latency.Milliseconds())
	pm.steps.WithLabelValues(nodeID, status).Inc()
	pm.stepLatency.WithLabelValues(nodeID, status).Observe(latencyMs)
}

// RecordSuspend counts an interrupt raised by the given node.
func (pm *PrometheusMetrics) RecordSuspend(nodeID string) {
	if !pm.isEnabled() {
		return
	}

	pm.suspends.WithLabelValues(nodeID).Inc()
}

// RecordResume counts a human decision delivered to the given node.
func (pm *PrometheusMetrics) RecordResume(nodeID string) {
	if !pm.isEnabled() {
		return
	}

	pm.resumes.WithLabelValues(nodeID).Inc()
}

// RecordCheckpointAppend records one store append with its duration and
// outcome ("ok", "conflict", or "error").
func (pm *PrometheusMetrics) RecordCheckpointAppend(latency time.Duration, status string) {
	if !pm.isEnabled() {
		return
	}

	pm.checkpointLatency.WithLabelValues(status).Observe(float64(latency.Milliseconds()))
}

// RunStarted increments the in-flight gauge. Pair with RunFinished.
func (pm *PrometheusMetrics) RunStarted() {
	if !pm.isEnabled() {
		return
	}

	pm.runsInflight.Inc()
}

// RunFinished decrements the in-flight gauge.
func (pm *PrometheusMetrics) RunFinished() {
	if !pm.isEnabled() {
		return
	}

	pm.runsInflight.Dec()
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}
