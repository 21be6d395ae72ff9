package emit

// Event is one observability record from thread execution.
//
// The engine emits events at run boundaries (run_start, suspended,
// resumed, run_terminated) and after every node completion, plus error
// events with details in Meta.
type Event struct {
	// ThreadID identifies the conversation/workflow instance.
	ThreadID string

	// Seq is the checkpoint sequence number the event relates to.
	// Zero for events emitted before the first checkpoint.
	Seq int

	// NodeID names the node involved. Empty for run-level events.
	NodeID string

	// Msg is a short machine-friendly event name, e.g. "node_complete".
	Msg string

	// Meta carries additional structured data. Common keys:
	//   - "duration_ms": node execution duration
	//   - "error": error details
	//   - "decision": the resume decision delivered to a node
	//   - "payload": an interrupt payload summary
	Meta map[string]interface{}
}
