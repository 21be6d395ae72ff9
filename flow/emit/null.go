package emit

// NullEmitter implements Emitter by discarding all events.
//
// Use it when observability output is not wanted, e.g. in benchmarks or
// quiet test runs. Safe for concurrent use, zero overhead.
type NullEmitter struct{}

// NewNullEmitter creates an emitter that drops everything.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}
