package flow

import (
	"context"
	"errors"
	"time"

	"github.com/voyago/tripflow/flow/emit"
	"github.com/voyago/tripflow/flow/store"
)

// Reducer merges a node's delta into the accumulated state.
//
// Must be pure and deterministic: no I/O, no randomness, no reading of
// the clock. The engine calls it after every node execution, including
// before a suspend checkpoint is written, so partial deltas must merge
// cleanly.
type Reducer[S any] func(prev, delta S) S

// Outcome status values.
type OutcomeStatus string

const (
	// StatusTerminated means the run reached an END marker. The thread's
	// latest checkpoint has no next nodes; a later Run starts a fresh
	// pass over the graph on top of the final state.
	StatusTerminated OutcomeStatus = "terminated"

	// StatusSuspended means a node raised an interrupt. The interrupt is
	// persisted with the state delta in one checkpoint; the thread waits
	// for Resume.
	StatusSuspended OutcomeStatus = "suspended"
)

// Outcome is the result of a completed Run or Resume invocation.
type Outcome[S any] struct {
	// ThreadID is the thread that was executed.
	ThreadID string

	// Seq is the sequence of the last checkpoint written.
	Seq int

	// Status is StatusTerminated or StatusSuspended.
	Status OutcomeStatus

	// State is the accumulated state at the last checkpoint.
	State S

	// Interrupt is the pending decision request when Status is
	// StatusSuspended, nil otherwise.
	Interrupt *store.Interrupt
}

// Suspended reports whether the invocation ended awaiting a decision.
func (o Outcome[S]) Suspended() bool {
	return o.Status == StatusSuspended
}

// Engine executes a graph of nodes over durable per-thread state.
//
// Construction is not safe for concurrent use; build the graph fully
// (Add, Connect, StartAt), then share the engine. Run and Resume are
// safe to call concurrently: distinct threads proceed independently,
// and two invocations racing on the same thread are serialized by the
// store's conditional append, so at most one of them advances the
// checkpoint log. The engine itself
// holds no thread state between invocations: everything needed to
// continue a thread lives in the store's checkpoint log, so a process
// restart (or a different process sharing the store) picks up exactly
// where the last checkpoint left off.
//
// Type parameter S is the workflow state. It must round-trip through
// encoding/json unchanged, since stores serialize it.
type Engine[S any] struct {
	nodes   map[string]Node[S]
	edges   []Edge[S]
	entry   string
	reducer Reducer[S]
	store   store.Store[S]
	emitter emit.Emitter
	opts    Options
}

// New creates an engine with the given reducer, checkpoint store, and
// event emitter (NullEmitter when nil).
func New[S any](reducer Reducer[S], st store.Store[S], emitter emit.Emitter, options ...Option) *Engine[S] {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}

	opts := Options{
		MaxSteps:    defaultMaxSteps,
		StepTimeout: defaultStepTimeout,
	}
	for _, opt := range options {
		opt(&opts)
	}

	return &Engine[S]{
		nodes:   make(map[string]Node[S]),
		reducer: reducer,
		store:   st,
		emitter: emitter,
		opts:    opts,
	}
}

// Add registers a node under the given ID, replacing any previous node
// with that ID. Returns the engine for chaining.
func (e *Engine[S]) Add(id string, node Node[S]) *Engine[S] {
	e.nodes[id] = node
	return e
}

// Connect adds a static edge from one node to another. A nil predicate
// makes the edge unconditional. Edges are evaluated in insertion order;
// the first match wins. Returns the engine for chaining.
func (e *Engine[S]) Connect(from, to string, when Predicate[S]) *Engine[S] {
	e.edges = append(e.edges, Edge[S]{From: from, To: to, When: when})
	return e
}

// StartAt sets the entry node for new threads. Returns the engine for
// chaining.
func (e *Engine[S]) StartAt(id string) *Engine[S] {
	e.entry = id
	return e
}

// Run executes the thread until it terminates or suspends.
//
// For a new thread (or one whose last run terminated) execution starts
// at the entry node with input merged into the accumulated state via
// the reducer. For a thread with persisted next nodes and no pending
// interrupt, execution continues from where the last checkpoint left
// off, which is how a crashed or storage-failed invocation is retried.
// On such a continuation the input is not merged: the original input is
// already part of the persisted state, and merging again would
// duplicate it.
//
// Run refuses a suspended thread with ErrInterruptPending: a pending
// decision must be answered through Resume, not overwritten.
//
// Errors leave the thread at its last checkpoint. A CHECKPOINT_FAILED
// error wrapping store.ErrUnavailable is retryable: the step that could
// not be persisted re-executes on the next Run.
func (e *Engine[S]) Run(ctx context.Context, threadID string, input S, opts ...RunOption) (Outcome[S], error) {
	var zero Outcome[S]

	if err := e.validate(); err != nil {
		return zero, err
	}

	inv := Invocation{ThreadID: threadID}
	for _, opt := range opts {
		opt(&inv)
	}

	var state S
	frontier := []string{e.entry}
	continuing := false

	latest, err := e.store.LatestCheckpoint(ctx, threadID)
	switch {
	case err == nil:
		if latest.Suspended() {
			return zero, ErrInterruptPending
		}
		state = latest.State
		inv.Seq = latest.Seq
		if !latest.Terminated() {
			frontier = latest.NextNodes
			continuing = true
		}
	case errors.Is(err, store.ErrNotFound):
		// Fresh thread.
	default:
		return zero, &EngineError{
			Message: "loading latest checkpoint for thread " + threadID,
			Code:    ErrCodeCheckpointFailed,
			Cause:   err,
		}
	}

	if !continuing {
		state = e.reducer(state, input)
	}

	e.emit(threadID, inv.Seq, "", "run_start", nil)
	return e.drive(ctx, threadID, state, frontier, inv)
}

// Resume delivers a human decision to a suspended thread and continues
// execution.
//
// When no interrupt is pending, Resume returns ErrNoPendingInterrupt
// and persists nothing. Otherwise it first appends a checkpoint that
// clears the interrupt, then re-enters the suspending node with the
// decision available via Invocation.Resume. The clearing append is
// conditional on the suspended checkpoint still being the latest, so
// of two racing Resumes exactly one delivers its decision; the loser
// gets ErrNoPendingInterrupt, the same as a repeated Resume or one
// arriving after the re-entered node failed.
func (e *Engine[S]) Resume(ctx context.Context, threadID string, decision string, opts ...RunOption) (Outcome[S], error) {
	var zero Outcome[S]

	if err := e.validate(); err != nil {
		return zero, err
	}

	inv := Invocation{ThreadID: threadID}
	for _, opt := range opts {
		opt(&inv)
	}

	latest, err := e.store.LatestCheckpoint(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return zero, ErrNoPendingInterrupt
		}
		return zero, &EngineError{
			Message: "loading latest checkpoint for thread " + threadID,
			Code:    ErrCodeCheckpointFailed,
			Cause:   err,
		}
	}
	if !latest.Suspended() {
		return zero, ErrNoPendingInterrupt
	}

	nodeID := latest.Interrupt.NodeID

	seq, err := e.appendCheckpoint(ctx, threadID, latest.Seq, latest.State, latest.NextNodes, nil)
	if err != nil {
		if errors.Is(err, store.ErrSequenceConflict) {
			// A concurrent Resume cleared the interrupt first.
			return zero, ErrNoPendingInterrupt
		}
		return zero, err
	}

	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordResume(nodeID)
	}
	e.emit(threadID, seq, nodeID, "resumed", map[string]interface{}{
		"decision": decision,
	})

	inv.Seq = seq
	inv.resume = &decision
	return e.drive(ctx, threadID, latest.State, latest.NextNodes, inv)
}

// drive is the step loop shared by Run and Resume. inv.resume, when
// set, is delivered to the first node only.
func (e *Engine[S]) drive(ctx context.Context, threadID string, state S, frontier []string, inv Invocation) (Outcome[S], error) {
	var zero Outcome[S]

	if e.opts.Metrics != nil {
		e.opts.Metrics.RunStarted()
		defer e.opts.Metrics.RunFinished()
	}

	for steps := 0; ; steps++ {
		if len(frontier) == 0 {
			e.emit(threadID, inv.Seq, "", "run_terminated", nil)
			return Outcome[S]{
				ThreadID: threadID,
				Seq:      inv.Seq,
				Status:   StatusTerminated,
				State:    state,
			}, nil
		}

		if steps >= e.opts.MaxSteps {
			return zero, &EngineError{
				Message: "thread " + threadID + " exceeded step limit",
				Code:    ErrCodeStepLimit,
				Cause:   ErrStepLimitExceeded,
			}
		}

		nodeID := frontier[0]
		node, ok := e.nodes[nodeID]
		if !ok {
			return zero, &EngineError{
				Message: "node " + nodeID + " is not registered",
				Code:    ErrCodeUnknownNode,
			}
		}

		start := time.Now()
		res := runNodeWithTimeout(ctx, nodeID, node, state, inv, e.opts.StepTimeout)
		latency := time.Since(start)

		// The resume decision is consumed by exactly one execution.
		inv.resume = nil

		if res.Err != nil {
			status := "error"
			var engErr *EngineError
			if errors.As(res.Err, &engErr) && engErr.Code == ErrCodeStepTimeout {
				status = "timeout"
			}
			if e.opts.Metrics != nil {
				e.opts.Metrics.RecordStep(nodeID, latency, status)
			}
			e.emit(threadID, inv.Seq, nodeID, "node_error", map[string]interface{}{
				"error": res.Err.Error(),
			})
			if engErr != nil {
				return zero, engErr
			}
			return zero, &EngineError{
				Message: "node " + nodeID + " failed: " + res.Err.Error(),
				Code:    ErrCodeNodeFailed,
				Cause:   res.Err,
			}
		}

		state = e.reducer(state, res.Delta)

		if res.Interrupt != nil {
			intr := &store.Interrupt{
				NodeID:    nodeID,
				Payload:   res.Interrupt.Payload,
				CreatedAt: time.Now().UTC(),
			}
			seq, err := e.appendCheckpoint(ctx, threadID, inv.Seq, state, []string{nodeID}, intr)
			if err != nil {
				return zero, err
			}

			if e.opts.Metrics != nil {
				e.opts.Metrics.RecordStep(nodeID, latency, "suspended")
				e.opts.Metrics.RecordSuspend(nodeID)
			}
			e.emit(threadID, seq, nodeID, "suspended", nil)

			return Outcome[S]{
				ThreadID:  threadID,
				Seq:       seq,
				Status:    StatusSuspended,
				State:     state,
				Interrupt: intr,
			}, nil
		}

		next, err := e.route(nodeID, res.Route, state)
		if err != nil {
			return zero, err
		}

		seq, err := e.appendCheckpoint(ctx, threadID, inv.Seq, state, next, nil)
		if err != nil {
			return zero, err
		}

		if e.opts.Metrics != nil {
			e.opts.Metrics.RecordStep(nodeID, latency, "success")
		}
		e.emit(threadID, seq, nodeID, "node_complete", map[string]interface{}{
			"latency_ms": latency.Milliseconds(),
		})

		inv.Seq = seq
		frontier = next
	}
}

// route resolves the next frontier after a node completes. A dynamic
// route wins over static edges; with neither, the graph is miswired.
func (e *Engine[S]) route(nodeID string, dynamic Next, state S) ([]string, error) {
	if dynamic.Terminal {
		return nil, nil
	}
	if dynamic.To != "" {
		if _, ok := e.nodes[dynamic.To]; !ok {
			return nil, &EngineError{
				Message: "node " + nodeID + " routed to unregistered node " + dynamic.To,
				Code:    ErrCodeUnknownNode,
			}
		}
		return []string{dynamic.To}, nil
	}

	for _, edge := range e.edges {
		if edge.From != nodeID {
			continue
		}
		if edge.When == nil || edge.When(state) {
			if _, ok := e.nodes[edge.To]; !ok {
				return nil, &EngineError{
					Message: "edge from " + nodeID + " targets unregistered node " + edge.To,
					Code:    ErrCodeUnknownNode,
				}
			}
			return []string{edge.To}, nil
		}
	}

	return nil, &EngineError{
		Message: "node " + nodeID + " has no route: no dynamic route and no matching edge",
		Code:    ErrCodeNoRoute,
	}
}

// appendCheckpoint persists one checkpoint conditionally on the thread
// still being at expectedSeq, recording latency and wrapping failures so
// callers can retry without the thread advancing.
func (e *Engine[S]) appendCheckpoint(ctx context.Context, threadID string, expectedSeq int, state S, nextNodes []string, intr *store.Interrupt) (int, error) {
	start := time.Now()
	seq, err := e.store.AppendCheckpoint(ctx, threadID, expectedSeq, state, nextNodes, intr)
	latency := time.Since(start)

	if err != nil {
		if errors.Is(err, store.ErrSequenceConflict) {
			if e.opts.Metrics != nil {
				e.opts.Metrics.RecordCheckpointAppend(latency, "conflict")
			}
			return 0, &EngineError{
				Message: "thread " + threadID + " advanced concurrently",
				Code:    ErrCodeConflict,
				Cause:   err,
			}
		}
		if e.opts.Metrics != nil {
			e.opts.Metrics.RecordCheckpointAppend(latency, "error")
		}
		return 0, &EngineError{
			Message: "appending checkpoint for thread " + threadID,
			Code:    ErrCodeCheckpointFailed,
			Cause:   err,
		}
	}

	if e.opts.Metrics != nil {
		e.opts.Metrics.RecordCheckpointAppend(latency, "ok")
	}
	return seq, nil
}

func (e *Engine[S]) validate() error {
	if e.entry == "" {
		return &EngineError{
			Message: "no entry node: call StartAt before Run",
			Code:    ErrCodeInvalidGraph,
		}
	}
	if _, ok := e.nodes[e.entry]; !ok {
		return &EngineError{
			Message: "entry node " + e.entry + " is not registered",
			Code:    ErrCodeInvalidGraph,
		}
	}
	return nil
}

func (e *Engine[S]) emit(threadID string, seq int, nodeID, msg string, meta map[string]interface{}) {
	e.emitter.Emit(emit.Event{
		ThreadID: threadID,
		Seq:      seq,
		NodeID:   nodeID,
		Msg:      msg,
		Meta:     meta,
	})
}
