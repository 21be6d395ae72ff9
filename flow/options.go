package flow

import "time"

// Options configures engine execution limits and instrumentation.
type Options struct {
	// MaxSteps caps node executions per Run/Resume invocation to stop
	// runaway loops (an approval cycle that never converges, a miswired
	// edge). When exceeded the invocation fails with code
	// STEP_LIMIT_EXCEEDED and the thread stays at its last checkpoint.
	//
	// Default: 25.
	MaxSteps int

	// StepTimeout bounds a single node execution. A node that blocks
	// past the deadline fails the step with code STEP_TIMEOUT.
	//
	// Default: 60s. Zero disables the per-step deadline.
	StepTimeout time.Duration

	// Metrics, when non-nil, receives execution observations.
	Metrics *PrometheusMetrics
}

const (
	defaultMaxSteps    = 25
	defaultStepTimeout = 60 * time.Second
)

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine := flow.New(reducer, st, emitter,
//	    flow.WithMaxSteps(50),
//	    flow.WithStepTimeout(30*time.Second),
//	)
type Option func(*Options)

// WithMaxSteps caps node executions per invocation.
//
// Size it to graph depth times the expected number of approval cycles;
// the default of 25 covers the three-category travel flow with several
// rejection loops to spare.
func WithMaxSteps(n int) Option {
	return func(o *Options) {
		o.MaxSteps = n
	}
}

// WithStepTimeout bounds each node execution. Pass 0 to disable.
func WithStepTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.StepTimeout = d
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewPrometheusMetrics(registry)
//	engine := flow.New(reducer, st, emitter, flow.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(o *Options) {
		o.Metrics = metrics
	}
}
