// Package model provides LLM integration adapters.
package model

import "context"

// ChatModel is the interface specialists use to talk to an LLM
// provider.
//
// It abstracts the differences between providers (OpenAI, Anthropic,
// Google) behind a single chat call. Implementations convert the
// standard Message format to the provider wire format, parse responses
// back to ChatOut, and respect context cancellation and timeouts.
//
// Example:
//
//	m := openai.NewChatModel(apiKey, "gpt-4o")
//	out, err := m.Chat(ctx, []model.Message{
//	    {Role: model.RoleSystem, Content: "You are a flight search assistant."},
//	    {Role: model.RoleUser, Content: "Flights from Seattle to Tokyo in May"},
//	}, nil)
type ChatModel interface {
	// Chat sends the conversation to the LLM and returns its response.
	// tools, when non-empty, are offered to the model for invocation;
	// the response may then contain ToolCalls instead of (or alongside)
	// text.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is a single entry in an LLM conversation.
//
// Typical structure: an optional system message first, then alternating
// user and assistant messages. Tool results go back to the model as
// RoleTool messages carrying the originating call's ID.
type Message struct {
	// Role identifies the sender. Use the Role* constants.
	Role string

	// Content is the message text. May be empty for assistant messages
	// that only carry tool calls.
	Content string

	// ToolCalls holds the calls an assistant message requested, so the
	// provider adapters can replay the exchange on the next turn of a
	// tool loop.
	ToolCalls []ToolCall

	// ToolCallID links a RoleTool result to the assistant call it
	// answers. Empty for other roles.
	ToolCallID string
}

// Standard role constants, aligned with major provider conventions.
const (
	// RoleSystem sets context or instructions; appears first.
	RoleSystem = "system"

	// RoleUser is input from the human user.
	RoleUser = "user"

	// RoleAssistant is a response generated by the LLM.
	RoleAssistant = "assistant"

	// RoleTool is a tool execution result fed back to the LLM.
	RoleTool = "tool"
)

// ToolSpec describes a tool the LLM may call. Schema follows JSON
// Schema and describes the expected input parameters.
type ToolSpec struct {
	// Name uniquely identifies the tool (alphanumeric + underscores).
	Name string

	// Description tells the LLM what the tool does and when to use it.
	Description string

	// Schema is the JSON Schema for the tool input. Optional for tools
	// with no parameters.
	Schema map[string]interface{}
}

// ChatOut is the output of one chat completion: generated text, tool
// invocation requests, or both.
type ChatOut struct {
	// Text is the generated response. May be empty when the model only
	// wants to call tools.
	Text string

	// ToolCalls are the tools the model wants invoked. Empty for a
	// direct text response.
	ToolCalls []ToolCall
}

// ToolCall is a request from the LLM to invoke a named tool. Execute
// the tool with Input and send the result back as a RoleTool message
// with ToolCallID set to ID.
type ToolCall struct {
	// ID is the provider-assigned call identifier, echoed back with the
	// result. May be empty for providers that do not assign IDs.
	ID string

	// Name matches a ToolSpec.Name from the offered tools.
	Name string

	// Input holds the call arguments, shaped by the tool's Schema.
	Input map[string]interface{}
}
