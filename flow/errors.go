package flow

import "errors"

// EngineError is a structured error from engine execution.
//
// Code is machine-readable for programmatic handling; Message describes
// the failure for humans. Cause, when set, is reachable via errors.As
// and errors.Is through Unwrap.
type EngineError struct {
	// Message is the human-readable description.
	Message string

	// Code is a machine-readable error code (see Err* constants).
	Code string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Engine error codes.
const (
	// ErrCodeStepLimit indicates the run exceeded Options.MaxSteps.
	ErrCodeStepLimit = "STEP_LIMIT_EXCEEDED"

	// ErrCodeStepTimeout indicates a single node exceeded Options.StepTimeout.
	ErrCodeStepTimeout = "STEP_TIMEOUT"

	// ErrCodeUnknownNode indicates a route named a node not in the graph.
	ErrCodeUnknownNode = "UNKNOWN_NODE"

	// ErrCodeNoRoute indicates a node completed without a dynamic route
	// and no static edge matched the state.
	ErrCodeNoRoute = "NO_ROUTE"

	// ErrCodeInvalidGraph indicates the graph is not runnable (no entry
	// point, entry node missing).
	ErrCodeInvalidGraph = "INVALID_GRAPH"

	// ErrCodeNodeFailed indicates a node returned an error.
	ErrCodeNodeFailed = "NODE_FAILED"

	// ErrCodeCheckpointFailed indicates the store rejected an append.
	// The thread did not advance; the step can be retried.
	ErrCodeCheckpointFailed = "CHECKPOINT_FAILED"

	// ErrCodeConflict indicates another invocation advanced the thread
	// concurrently, so this invocation's append did not land. The error
	// wraps store.ErrSequenceConflict. Reload the latest checkpoint
	// before retrying.
	ErrCodeConflict = "CONCURRENT_UPDATE"
)

// Sentinel errors for control-flow conditions callers branch on.
var (
	// ErrInterruptPending is returned by Run when the thread is suspended
	// awaiting a human decision. Callers must use Resume instead.
	ErrInterruptPending = errors.New("thread has a pending interrupt, use Resume")

	// ErrNoPendingInterrupt is returned by Resume when the thread has no
	// interrupt outstanding. The decision is not consumed and nothing is
	// persisted.
	ErrNoPendingInterrupt = errors.New("thread has no pending interrupt")

	// ErrStepLimitExceeded is the cause of STEP_LIMIT_EXCEEDED engine
	// errors, usable with errors.Is.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)
