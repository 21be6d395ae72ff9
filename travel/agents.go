package travel

import (
	"context"
	"errors"
	"strings"

	"github.com/voyago/tripflow/flow"
)

// userInfoNode loads the traveler profile into state at the start of a
// pass over the graph. The profile arrives through the request context;
// an empty profile leaves the persisted value untouched.
func userInfoNode() flow.NodeFunc[TripState] {
	return func(ctx context.Context, state TripState, inv flow.Invocation) flow.NodeResult[TripState] {
		return flow.NodeResult[TripState]{
			Delta: TripState{UserInfo: inv.Run.UserInfo},
		}
	}
}

// searchAgentNode builds a category agent: it assembles a request from
// the transcript and delegates to the named specialist through the
// dispatcher's current turn session.
//
// A duplicate invocation within the turn (the node re-executed after a
// resume, or a storage retry re-running the step) is recovered locally:
// the prior result is used and the specialist is not called again.
func searchAgentNode(d *Dispatcher, specialist string) flow.NodeFunc[TripState] {
	return func(ctx context.Context, state TripState, inv flow.Invocation) flow.NodeResult[TripState] {
		request := buildRequest(state)

		session := d.Turn(inv.ThreadID)
		result, err := session.Invoke(ctx, specialist, request)
		if err != nil && !errors.Is(err, ErrDuplicateInvocation) {
			return flow.NodeResult[TripState]{Err: err}
		}

		return flow.NodeResult[TripState]{
			Delta: TripState{
				LLMOutput: result.Text,
				Messages:  []Message{{Role: RoleAssistant, Content: result.Text}},
			},
		}
	}
}

// buildRequest folds the latest user message and accumulated rejection
// feedback into one specialist request.
func buildRequest(state TripState) string {
	var sb strings.Builder
	sb.WriteString(lastUserMessage(state))

	if len(state.Feedback) > 0 {
		sb.WriteString("\nEarlier suggestions were rejected with this feedback:")
		for _, fb := range state.Feedback {
			sb.WriteString("\n- ")
			sb.WriteString(fb)
		}
	}

	return sb.String()
}
