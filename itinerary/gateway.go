package itinerary

import (
	"context"
	"errors"
)

// Sentinel errors returned by Gateway implementations.
var (
	// ErrNotFound means no itinerary exists for the (userID, id) pair.
	ErrNotFound = errors.New("itinerary not found")

	// ErrConflict means the expected concurrency token is stale: the
	// aggregate changed since the caller read it. Recover by re-reading
	// and retrying the modification.
	ErrConflict = errors.New("itinerary concurrency conflict")

	// ErrUnavailable means the backing store could not be reached. The
	// aggregate is unchanged; the operation can be retried.
	ErrUnavailable = errors.New("itinerary store unavailable")
)

// Patch is a partial itinerary update. Only non-nil fields are applied;
// list fields replace the whole list (callers do read-modify-write, so
// the list they send already includes prior entries).
type Patch struct {
	Title       *string
	Destination *string
	StartDate   *string
	EndDate     *string
	Status      *Status
	Budget      *float64
	Currency    *string
	Notes       *string
	ProfileID   *string

	Flights        *[]Flight
	Activities     *[]Activity
	Accommodations *[]Accommodation
	Restaurants    *[]Restaurant
}

// apply copies the set fields of the patch onto the itinerary.
func (p Patch) apply(it *Itinerary) {
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Destination != nil {
		it.Destination = *p.Destination
	}
	if p.StartDate != nil {
		it.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		it.EndDate = *p.EndDate
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	if p.Budget != nil {
		it.Budget = *p.Budget
	}
	if p.Currency != nil {
		it.Currency = *p.Currency
	}
	if p.Notes != nil {
		it.Notes = *p.Notes
	}
	if p.ProfileID != nil {
		it.ProfileID = *p.ProfileID
	}
	if p.Flights != nil {
		it.Flights = *p.Flights
	}
	if p.Activities != nil {
		it.Activities = *p.Activities
	}
	if p.Accommodations != nil {
		it.Accommodations = *p.Accommodations
	}
	if p.Restaurants != nil {
		it.Restaurants = *p.Restaurants
	}
}

// Gateway is the persistence boundary for the itinerary aggregate.
//
// The gateway performs no domain validation; date windows and field
// rules belong to the Planner. Its single job is storage plus the
// optimistic concurrency protocol: Update applies a patch only when
// expectedToken matches the stored token, and every successful Update
// rotates the token and bumps UpdatedAt.
type Gateway interface {
	// Create stores a new itinerary and returns it with its ID, token,
	// and timestamps populated.
	Create(ctx context.Context, it Itinerary) (Itinerary, error)

	// Get returns the itinerary or ErrNotFound.
	Get(ctx context.Context, userID, id string) (Itinerary, error)

	// Update applies the patch when expectedToken matches the stored
	// token, returning the updated itinerary with a fresh token.
	// Returns ErrConflict on token mismatch, ErrNotFound, or
	// ErrUnavailable.
	Update(ctx context.Context, userID, id string, patch Patch, expectedToken string) (Itinerary, error)
}
