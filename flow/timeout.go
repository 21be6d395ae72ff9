package flow

import (
	"context"
	"time"
)

// runNodeWithTimeout executes a node under the per-step deadline.
//
// The node runs in its own goroutine with a derived context. If the
// deadline (or the parent context) fires first, the result is a
// STEP_TIMEOUT NodeResult and the goroutine's eventual return value is
// discarded. A node that ignores ctx cancellation leaks its goroutine
// until it finishes on its own; nodes doing I/O must honor ctx.
func runNodeWithTimeout[S any](ctx context.Context, nodeID string, node Node[S], state S, inv Invocation, timeout time.Duration) NodeResult[S] {
	if timeout <= 0 {
		return node.Run(ctx, state, inv)
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan NodeResult[S], 1)
	go func() {
		done <- node.Run(stepCtx, state, inv)
	}()

	select {
	case res := <-done:
		return res
	case <-stepCtx.Done():
		return NodeResult[S]{Err: &EngineError{
			Message: "node " + nodeID + " exceeded step timeout " + timeout.String(),
			Code:    ErrCodeStepTimeout,
			Cause:   stepCtx.Err(),
		}}
	}
}
