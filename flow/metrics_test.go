package flow

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/voyago/tripflow/flow/store"
)

func TestPrometheusMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("records steps and checkpoints for a run", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewPrometheusMetrics(registry)

		st := store.NewMemStore[testState]()
		e := New(testReduce, st, nil, WithMetrics(metrics)).
			Add("a", logNode("a")).
			Add("b", stopNode("b")).
			StartAt("a").
			Connect("a", "b", nil)

		if _, err := e.Run(ctx, "t1", testState{}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if got := testutil.ToFloat64(metrics.steps.WithLabelValues("a", "success")); got != 1 {
			t.Errorf("expected 1 successful step for a, got %v", got)
		}
		if got := testutil.ToFloat64(metrics.steps.WithLabelValues("b", "success")); got != 1 {
			t.Errorf("expected 1 successful step for b, got %v", got)
		}
		if got := testutil.ToFloat64(metrics.runsInflight); got != 0 {
			t.Errorf("expected in-flight gauge back to 0, got %v", got)
		}
	})

	t.Run("records suspend and resume", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewPrometheusMetrics(registry)

		st := store.NewMemStore[testState]()
		e := New(testReduce, st, nil, WithMetrics(metrics)).
			Add("gate", NodeFunc[testState](func(ctx context.Context, s testState, inv Invocation) NodeResult[testState] {
				if _, ok := inv.Resume(); ok {
					return NodeResult[testState]{Route: Stop()}
				}
				return Suspend[testState]("ok?")
			})).
			StartAt("gate")

		if _, err := e.Run(ctx, "t1", testState{}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if _, err := e.Resume(ctx, "t1", "approve"); err != nil {
			t.Fatalf("Resume failed: %v", err)
		}

		if got := testutil.ToFloat64(metrics.suspends.WithLabelValues("gate")); got != 1 {
			t.Errorf("expected 1 suspend, got %v", got)
		}
		if got := testutil.ToFloat64(metrics.resumes.WithLabelValues("gate")); got != 1 {
			t.Errorf("expected 1 resume, got %v", got)
		}
		if got := testutil.ToFloat64(metrics.steps.WithLabelValues("gate", "suspended")); got != 1 {
			t.Errorf("expected 1 suspended step, got %v", got)
		}
	})

	t.Run("disable stops recording", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewPrometheusMetrics(registry)
		metrics.Disable()

		metrics.RecordSuspend("gate")
		if got := testutil.ToFloat64(metrics.suspends.WithLabelValues("gate")); got != 0 {
			t.Errorf("expected no recording while disabled, got %v", got)
		}

		metrics.Enable()
		metrics.RecordSuspend("gate")
		if got := testutil.ToFloat64(metrics.suspends.WithLabelValues("gate")); got != 1 {
			t.Errorf("expected recording after enable, got %v", got)
		}
	})
}
