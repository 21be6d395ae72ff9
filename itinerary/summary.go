package itinerary

import (
	"fmt"
	"strings"
)

// Summarize renders a compact text summary of the itinerary, suitable
// for feeding back into an LLM transcript or showing to a user.
func Summarize(it Itinerary) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Itinerary %q (%s), %s to %s, status %s.\n",
		it.Title, it.Destination, it.StartDate, it.EndDate, it.Status)
	if it.Budget > 0 {
		fmt.Fprintf(&sb, "Budget: %.2f %s.\n", it.Budget, it.Currency)
	}

	if len(it.Flights) > 0 {
		sb.WriteString("Flights:\n")
		for _, f := range it.Flights {
			fmt.Fprintf(&sb, "  - %s %s: %s (%s) -> %s (%s)\n",
				f.Airline, f.FlightNumber,
				f.Departure.Airport, f.Departure.Time,
				f.Arrival.Airport, f.Arrival.Time)
		}
	}
	if len(it.Accommodations) > 0 {
		sb.WriteString("Accommodations:\n")
		for _, a := range it.Accommodations {
			fmt.Fprintf(&sb, "  - %s (%s), %s to %s", a.Name, a.Type, a.CheckIn, a.CheckOut)
			if a.Address != "" {
				fmt.Fprintf(&sb, ", %s", a.Address)
			}
			sb.WriteString("\n")
		}
	}
	if len(it.Activities) > 0 {
		sb.WriteString("Activities:\n")
		for _, a := range it.Activities {
			fmt.Fprintf(&sb, "  - %s", a.Name)
			if a.Date != "" {
				fmt.Fprintf(&sb, " on %s", a.Date)
			}
			if a.Address != "" {
				fmt.Fprintf(&sb, " at %s", a.Address)
			}
			sb.WriteString("\n")
		}
	}
	if len(it.Restaurants) > 0 {
		sb.WriteString("Restaurants:\n")
		for _, r := range it.Restaurants {
			fmt.Fprintf(&sb, "  - %s", r.Name)
			if r.Date != "" {
				fmt.Fprintf(&sb, " on %s", r.Date)
			}
			if r.Time != "" {
				fmt.Fprintf(&sb, " at %s", r.Time)
			}
			sb.WriteString("\n")
		}
	}
	if it.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", it.Notes)
	}

	return sb.String()
}
