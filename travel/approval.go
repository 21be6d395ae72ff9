package travel

import (
	"context"

	"github.com/voyago/tripflow/flow"
)

// DecisionApprove is the decision value that takes the approved path.
// Any other decision is treated as rejection feedback.
const DecisionApprove = "approve"

// approvalPayload is the interrupt payload an approval node raises. The
// transcript rides along so a reviewing UI can show what is being
// approved.
type approvalPayload struct {
	Question string    `json:"question"`
	Messages []Message `json:"messages"`
}

// approvalNode builds a human approval gate.
//
// First execution: suspend with the question. Re-entry after resume:
// read the decision and branch. "approve" records the decision via
// record and routes to approveTo; anything else is rejection feedback,
// recorded and appended to the transcript so the retrying agent sees
// it, then routed to rejectTo.
//
// The same pattern gates all three categories; only the question, the
// decision field, and the two targets differ.
func approvalNode(question string, record func(*TripState, string), approveTo, rejectTo string) flow.NodeFunc[TripState] {
	return func(ctx context.Context, state TripState, inv flow.Invocation) flow.NodeResult[TripState] {
		decision, ok := inv.Resume()
		if !ok {
			return flow.Suspend[TripState](approvalPayload{
				Question: question,
				Messages: state.Messages,
			})
		}

		var delta TripState
		if decision == DecisionApprove {
			record(&delta, "approved")
			return flow.NodeResult[TripState]{Delta: delta, Route: flow.Goto(approveTo)}
		}

		record(&delta, "rejected")
		delta.Messages = []Message{{Role: RoleUser, Content: decision}}
		delta.Feedback = []string{decision}
		return flow.NodeResult[TripState]{Delta: delta, Route: flow.Goto(rejectTo)}
	}
}

// passNode is a no-op marker node; routing happens via its static edge.
func passNode() flow.NodeFunc[TripState] {
	return func(ctx context.Context, state TripState, inv flow.Invocation) flow.NodeResult[TripState] {
		return flow.NodeResult[TripState]{}
	}
}

// endNode terminates the run.
func endNode() flow.NodeFunc[TripState] {
	return func(ctx context.Context, state TripState, inv flow.Invocation) flow.NodeResult[TripState] {
		return flow.NodeResult[TripState]{Route: flow.Stop()}
	}
}
