// Package flow provides the durable workflow engine underneath the
// tripflow travel assistant: a graph of nodes with checkpointed state,
// suspend/resume for human approval, and per-thread sequential execution.
package flow

// Edge is a static connection between two nodes.
//
// Edges define the default control flow declared at graph construction.
// They can be unconditional (When = nil) or conditional (When != nil,
// traversed only when the predicate holds). A node's explicit
// NodeResult.Route always wins over edges.
//
// Type parameter S is the state type used for predicate evaluation.
type Edge[S any] struct {
	// From is the source node ID.
	From string

	// To is the destination node ID.
	To string

	// When, if non-nil, gates traversal on the current state.
	When Predicate[S]
}

// Predicate evaluates state to decide whether an edge is traversed.
//
// Predicates should be pure: deterministic and side-effect free.
// Typical forms: s.FlightDecision == "approved", len(s.Messages) > 0.
//
// Type parameter S is the state type to evaluate.
type Predicate[S any] func(state S) bool
