// Package tool defines the executable tool interface the itinerary
// specialist exposes to its chat/tool loop.
package tool

import "context"

// Tool is an executable action an LLM can invoke.
//
// Implementations should validate input parameters, respect context
// cancellation, and return structured output. Mutating tools must be
// safe against re-invocation: the itinerary tools carry server-side
// idempotency keys so a repeated call cannot double-apply.
//
// Example implementation:
//
//	type EchoTool struct{}
//
//	func (EchoTool) Name() string { return "echo" }
//
//	func (EchoTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
//	    text, _ := input["text"].(string)
//	    return map[string]interface{}{"text": text}, nil
//	}
type Tool interface {
	// Name returns the unique identifier for this tool. It must match
	// the ToolSpec name offered to the LLM. Lowercase with underscores.
	Name() string

	// Call executes the tool. input holds the call arguments shaped by
	// the tool's schema; it may be nil for parameterless tools.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// Func adapts a named function to the Tool interface.
//
// Example:
//
//	t := tool.NewFunc("current_date", func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
//	    return map[string]interface{}{"date": time.Now().Format("2006-01-02")}, nil
//	})
type Func struct {
	name string
	fn   func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// NewFunc creates a Tool from a name and a function.
func NewFunc(name string, fn func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)) *Func {
	return &Func{name: name, fn: fn}
}

// Name implements Tool.
func (f *Func) Name() string {
	return f.name
}

// Call implements Tool.
func (f *Func) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return f.fn(ctx, input)
}
