package flow

import "context"

// Node is a processing unit in the workflow graph.
//
// A node receives the accumulated state plus the per-invocation
// Invocation data, performs its work, and returns a NodeResult. Nodes
// hold no state of their own between invocations; all continuity lives
// in S and the checkpoint log.
//
// A node re-executes from its beginning when a thread resumes, so any
// work done before a suspend point must be safe to repeat.
//
// Type parameter S is the state type shared across the workflow.
type Node[S any] interface {
	// Run executes the node's logic.
	Run(ctx context.Context, state S, inv Invocation) NodeResult[S]
}

// NodeResult is the output of one node execution.
//
// Exactly one of the following shapes is meaningful:
//   - Continue: Delta set, Route = Goto(next) or edge fallback
//   - Suspend: Interrupt set (Delta, if set, is persisted in the same
//     checkpoint so resume sees the mutation)
//   - Terminate: Delta set, Route = Stop()
//   - Failure: Err set; nothing is persisted
type NodeResult[S any] struct {
	// Delta is the partial state update, merged via the engine reducer.
	Delta S

	// Route selects the next hop. Leave zero to fall back to static edges.
	Route Next

	// Interrupt, when non-nil, suspends the thread awaiting a human
	// decision. The run ends for this invocation; a later Resume
	// re-enters this node with the decision available on Invocation.
	Interrupt *InterruptRequest

	// Err halts the run without persisting a checkpoint.
	Err error
}

// InterruptRequest asks the engine to suspend the thread.
type InterruptRequest struct {
	// Payload is the node-defined decision request shown to a human.
	// Must be JSON-serializable.
	Payload any
}

// Next selects the next step after a node completes.
//
// Dynamic routing (a non-zero Next) takes precedence over static edges;
// approval nodes use it to branch on a decision unknown at graph
// construction time.
type Next struct {
	// To names the next node. Mutually exclusive with Terminal.
	To string

	// Terminal stops the run and clears the thread's next nodes.
	Terminal bool
}

// Stop returns a Next that terminates the run.
func Stop() Next {
	return Next{Terminal: true}
}

// Goto returns a Next that routes to the named node.
func Goto(nodeID string) Next {
	return Next{To: nodeID}
}

// Suspend returns a NodeResult that pauses the thread with the given
// decision payload. The zero Delta carries no state change; use
// SuspendWith to persist a mutation together with the interrupt.
func Suspend[S any](payload any) NodeResult[S] {
	return NodeResult[S]{Interrupt: &InterruptRequest{Payload: payload}}
}

// SuspendWith is Suspend with a state patch persisted in the same
// checkpoint as the interrupt, so resume observes the mutation.
func SuspendWith[S any](delta S, payload any) NodeResult[S] {
	return NodeResult[S]{Delta: delta, Interrupt: &InterruptRequest{Payload: payload}}
}

// NodeFunc adapts a plain function to the Node interface.
type NodeFunc[S any] func(ctx context.Context, state S, inv Invocation) NodeResult[S]

// Run implements Node.
func (f NodeFunc[S]) Run(ctx context.Context, state S, inv Invocation) NodeResult[S] {
	return f(ctx, state, inv)
}

// NodeError is a structured error from node execution.
type NodeError struct {
	// Message is the human-readable description.
	Message string

	// Code is a machine-readable error code.
	Code string

	// NodeID identifies the node that produced this error.
	NodeID string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
