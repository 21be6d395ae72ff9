// Package travel is the conversational trip-planning workflow: a graph
// of agent and approval nodes over durable TripState, with delegation
// to category specialists and itinerary mutations behind the planner.
package travel

// Message is one entry of the conversation transcript persisted in
// TripState.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TripState is the accumulated workflow state for one thread.
//
// Merge policy (implemented by Reduce): Messages and Feedback append;
// every other field replaces when the delta carries a non-empty value.
type TripState struct {
	// Messages is the conversation transcript, append-only.
	Messages []Message `json:"messages"`

	// UserInfo is free-form traveler profile text.
	UserInfo string `json:"userInfo,omitempty"`

	// LLMOutput is the most recent specialist result text.
	LLMOutput string `json:"llmOutput,omitempty"`

	// FlightDecision, HotelDecision, and ActivityDecision record the
	// human approval outcome per category: "approved" or "rejected".
	FlightDecision   string `json:"flightDecision,omitempty"`
	HotelDecision    string `json:"hotelDecision,omitempty"`
	ActivityDecision string `json:"activityDecision,omitempty"`

	// Feedback accumulates rejection feedback text, append-only.
	Feedback []string `json:"feedback,omitempty"`
}

// Reduce merges a node's delta into the accumulated state. It is the
// flow.Reducer for the travel graph: pure, deterministic, and safe to
// call with a zero delta.
func Reduce(prev, delta TripState) TripState {
	out := prev

	out.Messages = append(out.Messages, delta.Messages...)
	out.Feedback = append(out.Feedback, delta.Feedback...)

	if delta.UserInfo != "" {
		out.UserInfo = delta.UserInfo
	}
	if delta.LLMOutput != "" {
		out.LLMOutput = delta.LLMOutput
	}
	if delta.FlightDecision != "" {
		out.FlightDecision = delta.FlightDecision
	}
	if delta.HotelDecision != "" {
		out.HotelDecision = delta.HotelDecision
	}
	if delta.ActivityDecision != "" {
		out.ActivityDecision = delta.ActivityDecision
	}

	return out
}

// lastUserMessage returns the content of the most recent user message,
// or "" when there is none.
func lastUserMessage(state TripState) string {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == RoleUser {
			return state.Messages[i].Content
		}
	}
	return ""
}
