// Package itinerary holds the trip aggregate: the persisted record of
// flights, accommodations, activities, and restaurants for one trip,
// protected against lost updates by an optimistic concurrency token.
package itinerary

import (
	"time"

	"github.com/voyago/tripflow/geocode"
)

// Status is the lifecycle state of an itinerary.
type Status string

// Itinerary lifecycle states.
const (
	StatusPlanning  Status = "planning"
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// FlightLeg is one endpoint of a flight.
type FlightLeg struct {
	Airport  string                    `json:"airport"`
	Time     string                    `json:"time"`
	Location *geocode.VerifiedLocation `json:"verifiedLocation,omitempty"`
}

// Flight is a flight entry on an itinerary.
type Flight struct {
	Airline      string    `json:"airline"`
	FlightNumber string    `json:"flightNumber"`
	Departure    FlightLeg `json:"departure"`
	Arrival      FlightLeg `json:"arrival"`
	Seat         string    `json:"seat,omitempty"`
	Confirmation string    `json:"confirmation,omitempty"`
	Cost         float64   `json:"cost,omitempty"`
}

// Accommodation is a lodging entry on an itinerary.
type Accommodation struct {
	Name         string                    `json:"name"`
	Type         string                    `json:"type"`
	CheckIn      string                    `json:"checkIn"`
	CheckOut     string                    `json:"checkOut"`
	Address      string                    `json:"address,omitempty"`
	Confirmation string                    `json:"confirmation,omitempty"`
	Cost         float64                   `json:"cost,omitempty"`
	Location     *geocode.VerifiedLocation `json:"verifiedLocation,omitempty"`
}

// Activity is an activity entry on an itinerary.
type Activity struct {
	Name                string                    `json:"name"`
	Description         string                    `json:"description,omitempty"`
	Date                string                    `json:"date,omitempty"`
	Time                string                    `json:"time,omitempty"`
	Address             string                    `json:"address,omitempty"`
	Cost                float64                   `json:"cost,omitempty"`
	BookingConfirmation string                    `json:"bookingConfirmation,omitempty"`
	Location            *geocode.VerifiedLocation `json:"verifiedLocation,omitempty"`
}

// Restaurant is a dining reservation entry on an itinerary.
type Restaurant struct {
	Name                    string                    `json:"name"`
	Cuisine                 string                    `json:"cuisine,omitempty"`
	Date                    string                    `json:"date,omitempty"`
	Time                    string                    `json:"time,omitempty"`
	Address                 string                    `json:"address,omitempty"`
	ReservationConfirmation string                    `json:"reservationConfirmation,omitempty"`
	Cost                    float64                   `json:"cost,omitempty"`
	Location                *geocode.VerifiedLocation `json:"verifiedLocation,omitempty"`
}

// Itinerary is the trip aggregate.
//
// Token is the opaque concurrency token: every successful Update
// rotates it, and an Update carrying a stale token fails with
// ErrConflict instead of silently overwriting a concurrent change.
type Itinerary struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	ProfileID   string `json:"profileId,omitempty"`
	Title       string `json:"title"`
	Destination string `json:"destination"`

	// StartDate and EndDate bound the trip, YYYY-MM-DD.
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`

	Status   Status  `json:"status"`
	Budget   float64 `json:"budget,omitempty"`
	Currency string  `json:"currency,omitempty"`

	Flights        []Flight        `json:"flights"`
	Activities     []Activity      `json:"activities"`
	Accommodations []Accommodation `json:"accommodations"`
	Restaurants    []Restaurant    `json:"restaurants"`

	Notes string `json:"notes,omitempty"`

	Token     string    `json:"concurrencyToken"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
