// Package store provides checkpoint persistence for tripflow threads.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a thread has no checkpoints.
var ErrNotFound = errors.New("not found")

// ErrUnavailable indicates the backing store could not be reached.
// The engine surfaces it to the caller as retryable: the run did not
// advance and the same input can be submitted again.
var ErrUnavailable = errors.New("storage unavailable")

// ErrSequenceConflict is returned by AppendCheckpoint when the thread's
// latest sequence no longer matches the caller's expected sequence:
// another writer advanced the thread between read and append. Nothing
// was persisted. Callers reload the latest checkpoint before retrying.
var ErrSequenceConflict = errors.New("checkpoint sequence conflict")

// Interrupt is a persisted request for external (human) input.
//
// It is attached to the checkpoint written when a node suspends. The
// payload is node-defined and opaque to the store; it is what gets shown
// to a human for a decision. At most one interrupt is pending per thread.
type Interrupt struct {
	// NodeID names the node that suspended and will be re-entered on resume.
	NodeID string `json:"node_id"`

	// Payload is the node-defined decision request (must be JSON-serializable).
	Payload any `json:"payload"`

	// CreatedAt records when the node suspended.
	CreatedAt time.Time `json:"created_at"`
}

// Checkpoint is an immutable snapshot of a thread's state.
//
// Sequence numbers are strictly increasing per thread, assigned by the
// store on append. The latest checkpoint is always the one with the
// highest sequence number. Interrupt is non-nil iff NextNodes names the
// node awaiting resume.
type Checkpoint[S any] struct {
	// ThreadID identifies the conversation/workflow instance.
	ThreadID string `json:"thread_id"`

	// Seq is the per-thread sequence number, starting at 1.
	Seq int `json:"seq"`

	// State is the accumulated workflow state at this point.
	State S `json:"state"`

	// NextNodes names the node(s) to run next. Empty means the run
	// terminated; a single entry equal to Interrupt.NodeID means the
	// thread is suspended awaiting a decision.
	NextNodes []string `json:"next_nodes"`

	// Interrupt is the pending decision request, if any.
	Interrupt *Interrupt `json:"interrupt,omitempty"`

	// CreatedAt is the append time.
	CreatedAt time.Time `json:"created_at"`
}

// Suspended reports whether this checkpoint left the thread awaiting a
// human decision.
func (c Checkpoint[S]) Suspended() bool {
	return c.Interrupt != nil
}

// Terminated reports whether the run reached its end at this checkpoint.
func (c Checkpoint[S]) Terminated() bool {
	return len(c.NextNodes) == 0
}

// Store persists the ordered checkpoint log for each thread.
//
// Guarantees required of every implementation:
//   - AppendCheckpoint is conditional: it lands only when the thread's
//     latest sequence equals expectedSeq, so two writers racing on the
//     same thread cannot both append. The loser gets ErrSequenceConflict.
//   - Readers always observe fully written checkpoints, never partial ones.
//   - Connectivity failures are reported wrapping ErrUnavailable so the
//     engine can surface them as retryable without advancing the run.
//
// Type parameter S is the state type to persist (must be JSON-serializable).
type Store[S any] interface {
	// AppendCheckpoint appends a snapshot to the thread's log if the
	// latest sequence equals expectedSeq (0 for a new thread) and returns
	// the assigned sequence number, expectedSeq + 1. A mismatch returns
	// an error wrapping ErrSequenceConflict and persists nothing.
	AppendCheckpoint(ctx context.Context, threadID string, expectedSeq int, state S, nextNodes []string, interrupt *Interrupt) (int, error)

	// LatestCheckpoint returns the checkpoint with the highest sequence
	// number for the thread, or ErrNotFound for an unknown thread.
	LatestCheckpoint(ctx context.Context, threadID string) (Checkpoint[S], error)

	// ListCheckpoints returns the thread's full log, newest first.
	// Returns ErrNotFound for an unknown thread.
	ListCheckpoints(ctx context.Context, threadID string) ([]Checkpoint[S], error)
}
