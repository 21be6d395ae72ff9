// Package emit provides pluggable observability for tripflow execution.
package emit

// Emitter receives observability events from thread execution.
//
// Emitters enable pluggable backends: structured logs, OpenTelemetry
// traces, or nothing at all. Implementations should be:
//   - Non-blocking: never slow down the step loop
//   - Thread-safe: threads run concurrently and share one emitter
//   - Resilient: a failing backend must not fail the run
type Emitter interface {
	// Emit sends one event to the configured backend.
	//
	// Emit must not panic; backend errors are handled internally.
	Emit(event Event)
}
