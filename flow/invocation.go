package flow

// RunContext is the read-only request context supplied fresh on every
// engine invocation. It is never persisted in checkpoints; callers pass
// it again on each Run or Resume so stale identity can never leak from
// an old checkpoint into a new request.
type RunContext struct {
	// UserID identifies the requesting user.
	UserID string

	// ItineraryID scopes itinerary mutations for this thread.
	ItineraryID string

	// UserInfo is free-form profile text (home city, preferences) that
	// prompt-building nodes may fold into model calls.
	UserInfo string
}

// Invocation carries per-execution data into a node: which thread is
// running, the request context, and the human decision when the node is
// re-entered after a suspend.
//
// The zero Invocation is valid for nodes that ignore all of it.
type Invocation struct {
	// ThreadID is the conversation thread being executed.
	ThreadID string

	// Seq is the sequence number of the checkpoint the node is
	// executing on top of (0 for a brand new thread).
	Seq int

	// Run is the caller-supplied request context.
	Run RunContext

	// resume holds the human decision on the first step after Resume.
	// Nil on every other step. Unexported so only the engine sets it.
	resume *string
}

// Resume returns the human decision delivered to this invocation and
// whether one is present. It reports true only on the single node
// execution that directly follows an Engine.Resume call; the decision
// is consumed by that execution and does not reappear.
func (inv Invocation) Resume() (string, bool) {
	if inv.resume == nil {
		return "", false
	}
	return *inv.resume, true
}

// RunOption customizes a single Run or Resume invocation.
type RunOption func(*Invocation)

// WithRunContext attaches the request context to this invocation.
// Nodes read it via Invocation.Run.
func WithRunContext(rc RunContext) RunOption {
	return func(inv *Invocation) {
		inv.Run = rc
	}
}
