package travel

import (
	"github.com/voyago/tripflow/flow"
	"github.com/voyago/tripflow/flow/emit"
	"github.com/voyago/tripflow/flow/store"
)

// Node IDs of the travel graph.
const (
	NodeUserInfo = "user_info"

	NodeFlightAgent   = "flight_agent"
	NodeHotelAgent    = "hotel_agent"
	NodeActivityAgent = "activity_agent"

	NodeApproveFlights    = "human_approve_flights"
	NodeApproveHotels     = "human_approve_hotels"
	NodeApproveActivities = "human_approve_activities"

	NodeApprovedFlights    = "approved_path_flights"
	NodeRejectedFlights    = "rejected_path_flights"
	NodeApprovedHotels     = "approved_path_hotels"
	NodeRejectedHotels     = "rejected_path_hotels"
	NodeApprovedActivities = "approved_path_activities"
	NodeRejectedActivities = "rejected_path_activities"
)

// NewEngine builds the travel-planning workflow engine.
//
// The graph runs flights, hotels, and activities in sequence, each
// gated by a human approval node. Approval routes forward to the next
// category; rejection loops back to the same agent with the feedback on
// the transcript. The final approval terminates the run.
//
//	user_info -> flight_agent -> human_approve_flights
//	  approve -> approved_path_flights -> hotel_agent -> ...
//	  reject  -> rejected_path_flights -> flight_agent
//	...
//	human_approve_activities -> approved_path_activities -> END
func NewEngine(st store.Store[TripState], emitter emit.Emitter, d *Dispatcher, opts ...flow.Option) *flow.Engine[TripState] {
	e := flow.New(Reduce, st, emitter, opts...)

	e.Add(NodeUserInfo, userInfoNode())

	e.Add(NodeFlightAgent, searchAgentNode(d, SpecialistFlights))
	e.Add(NodeHotelAgent, searchAgentNode(d, SpecialistHotels))
	e.Add(NodeActivityAgent, searchAgentNode(d, SpecialistActivity))

	e.Add(NodeApproveFlights, approvalNode(
		"Approve flight results?",
		func(d *TripState, v string) { d.FlightDecision = v },
		NodeApprovedFlights, NodeRejectedFlights,
	))
	e.Add(NodeApproveHotels, approvalNode(
		"Approve hotel results?",
		func(d *TripState, v string) { d.HotelDecision = v },
		NodeApprovedHotels, NodeRejectedHotels,
	))
	e.Add(NodeApproveActivities, approvalNode(
		"Approve activity results?",
		func(d *TripState, v string) { d.ActivityDecision = v },
		NodeApprovedActivities, NodeRejectedActivities,
	))

	e.Add(NodeApprovedFlights, passNode())
	e.Add(NodeRejectedFlights, passNode())
	e.Add(NodeApprovedHotels, passNode())
	e.Add(NodeRejectedHotels, passNode())
	e.Add(NodeApprovedActivities, endNode())
	e.Add(NodeRejectedActivities, passNode())

	e.StartAt(NodeUserInfo)

	e.Connect(NodeUserInfo, NodeFlightAgent, nil)

	e.Connect(NodeFlightAgent, NodeApproveFlights, nil)
	e.Connect(NodeApprovedFlights, NodeHotelAgent, nil)
	e.Connect(NodeRejectedFlights, NodeFlightAgent, nil)

	e.Connect(NodeHotelAgent, NodeApproveHotels, nil)
	e.Connect(NodeApprovedHotels, NodeActivityAgent, nil)
	e.Connect(NodeRejectedHotels, NodeHotelAgent, nil)

	e.Connect(NodeActivityAgent, NodeApproveActivities, nil)
	e.Connect(NodeRejectedActivities, NodeActivityAgent, nil)

	return e
}
