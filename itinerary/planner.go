package itinerary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/voyago/tripflow/geocode"
)

// Planner errors.
var (
	// ErrMutationFailed means a mutation lost the optimistic-concurrency
	// race on every retry. The itinerary holds some other writer's
	// changes; the caller should re-read before trying again.
	ErrMutationFailed = errors.New("itinerary mutation failed after retries")

	// ErrDateOutOfRange means an item's date falls outside the parent
	// itinerary's date window.
	ErrDateOutOfRange = errors.New("item date outside itinerary date range")

	// ErrInvalidDates means a date failed to parse or a start date does
	// not precede its end date.
	ErrInvalidDates = errors.New("invalid dates")
)

// conflictRetries bounds the read-modify-write loop on ErrConflict.
const conflictRetries = 3

// AppliedMarker is appended to every successful mutation message. The
// specialist surfaces it unchanged so the coordinating layer knows the
// write landed and must not be reissued.
const AppliedMarker = "do not call this tool again."

const dateLayout = "2006-01-02"

// MutationResult is the outcome of a Planner mutation.
type MutationResult struct {
	// Itinerary is the aggregate after the mutation.
	Itinerary Itinerary

	// Message is the human-readable confirmation, ending with the
	// applied marker.
	Message string

	// Replayed is true when the result was served from the idempotency
	// cache instead of performing the write again.
	Replayed bool
}

// Planner composes itinerary mutations as get, modify in memory, update
// with the token from the get. A Conflict means another writer landed
// first; the whole cycle retries with fresh data up to conflictRetries
// times, then fails with ErrMutationFailed.
//
// Two guards make mutations safe to retry from above:
//   - Location verification degrades: when the geocoder is unavailable
//     the caller-supplied address text is stored as-is, never blocking
//     the write.
//   - Idempotency keys: a repeated request with a key already applied
//     returns the prior result with Replayed set, without a second
//     write.
//
// Safe for concurrent use.
type Planner struct {
	gateway  Gateway
	verifier geocode.Verifier

	mu      sync.Mutex
	applied map[string]MutationResult
}

// NewPlanner creates a Planner. verifier may be nil, in which case all
// locations stay unverified.
func NewPlanner(gateway Gateway, verifier geocode.Verifier) *Planner {
	return &Planner{
		gateway:  gateway,
		verifier: verifier,
		applied:  make(map[string]MutationResult),
	}
}

// AddFlightRequest describes a flight to append.
type AddFlightRequest struct {
	// IdempotencyKey dedupes retries of the same logical request.
	// Empty disables deduplication for this call.
	IdempotencyKey string

	UserID      string
	ItineraryID string

	Airline          string
	FlightNumber     string
	DepartureAirport string

	// DepartureTime and ArrivalTime are ISO 8601 timestamps.
	DepartureTime  string
	ArrivalAirport string
	ArrivalTime    string

	Seat         string
	Confirmation string
	Cost         float64
}

// AddFlight appends a flight. Both airport locations are verified best
// effort. Leg dates must fall inside the itinerary window.
func (p *Planner) AddFlight(ctx context.Context, req AddFlightRequest) (MutationResult, error) {
	if res, ok := p.replay(req.IdempotencyKey); ok {
		return res, nil
	}

	return p.mutate(ctx, req.IdempotencyKey, req.UserID, req.ItineraryID,
		func(ctx context.Context, it *Itinerary) (string, error) {
			for _, ts := range []string{req.DepartureTime, req.ArrivalTime} {
				if err := checkDateInWindow(datePart(ts), *it); err != nil {
					return "", err
				}
			}

			flight := Flight{
				Airline:      req.Airline,
				FlightNumber: req.FlightNumber,
				Departure:    FlightLeg{Airport: req.DepartureAirport, Time: req.DepartureTime},
				Arrival:      FlightLeg{Airport: req.ArrivalAirport, Time: req.ArrivalTime},
				Seat:         req.Seat,
				Confirmation: req.Confirmation,
				Cost:         req.Cost,
			}
			flight.Departure.Location = p.verify(ctx, req.DepartureAirport+" airport", "", "")
			flight.Arrival.Location = p.verify(ctx, req.ArrivalAirport+" airport", "", "")

			it.Flights = append(it.Flights, flight)
			return fmt.Sprintf("Added flight %s %s to itinerary %q.",
				req.Airline, req.FlightNumber, it.Title), nil
		})
}

// AddAccommodationRequest describes lodging to append.
type AddAccommodationRequest struct {
	IdempotencyKey string

	UserID      string
	ItineraryID string

	Name string
	Type string

	// CheckIn and CheckOut are YYYY-MM-DD.
	CheckIn  string
	CheckOut string

	City         string
	Country      string
	Address      string
	Confirmation string
	Cost         float64
}

// AddAccommodation appends lodging. The location is verified best
// effort; the verified address replaces the caller's text when found.
func (p *Planner) AddAccommodation(ctx context.Context, req AddAccommodationRequest) (MutationResult, error) {
	if res, ok := p.replay(req.IdempotencyKey); ok {
		return res, nil
	}

	return p.mutate(ctx, req.IdempotencyKey, req.UserID, req.ItineraryID,
		func(ctx context.Context, it *Itinerary) (string, error) {
			for _, d := range []string{req.CheckIn, req.CheckOut} {
				if err := checkDateInWindow(d, *it); err != nil {
					return "", err
				}
			}

			acc := Accommodation{
				Name:         req.Name,
				Type:         req.Type,
				CheckIn:      req.CheckIn,
				CheckOut:     req.CheckOut,
				Address:      req.Address,
				Confirmation: req.Confirmation,
				Cost:         req.Cost,
			}
			if loc := p.verify(ctx, req.Name, req.City, req.Country); loc != nil {
				acc.Location = loc
				if loc.Address != "" {
					acc.Address = loc.Address
				}
			}

			it.Accommodations = append(it.Accommodations, acc)
			return fmt.Sprintf("Added accommodation %q to itinerary %q.", req.Name, it.Title), nil
		})
}

// AddActivityRequest describes an activity to append.
type AddActivityRequest struct {
	IdempotencyKey string

	UserID      string
	ItineraryID string

	Name        string
	Description string

	// Date is YYYY-MM-DD, optional.
	Date string
	Time string

	City                string
	Country             string
	Address             string
	Cost                float64
	BookingConfirmation string
}

// AddActivity appends an activity.
func (p *Planner) AddActivity(ctx context.Context, req AddActivityRequest) (MutationResult, error) {
	if res, ok := p.replay(req.IdempotencyKey); ok {
		return res, nil
	}

	return p.mutate(ctx, req.IdempotencyKey, req.UserID, req.ItineraryID,
		func(ctx context.Context, it *Itinerary) (string, error) {
			if err := checkDateInWindow(req.Date, *it); err != nil {
				return "", err
			}

			act := Activity{
				Name:                req.Name,
				Description:         req.Description,
				Date:                req.Date,
				Time:                req.Time,
				Address:             req.Address,
				Cost:                req.Cost,
				BookingConfirmation: req.BookingConfirmation,
			}
			if loc := p.verify(ctx, req.Name, req.City, req.Country); loc != nil {
				act.Location = loc
				if loc.Address != "" {
					act.Address = loc.Address
				}
			}

			it.Activities = append(it.Activities, act)
			return fmt.Sprintf("Added activity %q to itinerary %q.", req.Name, it.Title), nil
		})
}

// AddRestaurantRequest describes a dining reservation to append.
type AddRestaurantRequest struct {
	IdempotencyKey string

	UserID      string
	ItineraryID string

	Name    string
	Cuisine string

	// Date is YYYY-MM-DD, optional.
	Date string
	Time string

	City                    string
	Country                 string
	Address                 string
	ReservationConfirmation string
	Cost                    float64
}

// AddRestaurant appends a dining reservation.
func (p *Planner) AddRestaurant(ctx context.Context, req AddRestaurantRequest) (MutationResult, error) {
	if res, ok := p.replay(req.IdempotencyKey); ok {
		return res, nil
	}

	return p.mutate(ctx, req.IdempotencyKey, req.UserID, req.ItineraryID,
		func(ctx context.Context, it *Itinerary) (string, error) {
			if err := checkDateInWindow(req.Date, *it); err != nil {
				return "", err
			}

			rest := Restaurant{
				Name:                    req.Name,
				Cuisine:                 req.Cuisine,
				Date:                    req.Date,
				Time:                    req.Time,
				Address:                 req.Address,
				ReservationConfirmation: req.ReservationConfirmation,
				Cost:                    req.Cost,
			}
			if loc := p.verify(ctx, req.Name, req.City, req.Country); loc != nil {
				rest.Location = loc
				if loc.Address != "" {
					rest.Address = loc.Address
				}
			}

			it.Restaurants = append(it.Restaurants, rest)
			return fmt.Sprintf("Added restaurant %q to itinerary %q.", req.Name, it.Title), nil
		})
}

// UpdateDetailsRequest carries top-level field updates. Nil fields are
// left unchanged.
type UpdateDetailsRequest struct {
	IdempotencyKey string

	UserID      string
	ItineraryID string

	Title       *string
	Destination *string
	StartDate   *string
	EndDate     *string
	Status      *Status
	Budget      *float64
	Currency    *string
	Notes       *string
}

// UpdateDetails updates the itinerary's top-level fields. When either
// trip date changes, the resulting window must parse and start must
// precede end.
func (p *Planner) UpdateDetails(ctx context.Context, req UpdateDetailsRequest) (MutationResult, error) {
	if res, ok := p.replay(req.IdempotencyKey); ok {
		return res, nil
	}

	return p.mutate(ctx, req.IdempotencyKey, req.UserID, req.ItineraryID,
		func(ctx context.Context, it *Itinerary) (string, error) {
			if req.StartDate != nil || req.EndDate != nil {
				startStr := it.StartDate
				if req.StartDate != nil {
					startStr = *req.StartDate
				}
				endStr := it.EndDate
				if req.EndDate != nil {
					endStr = *req.EndDate
				}
				start, err := time.Parse(dateLayout, startStr)
				if err != nil {
					return "", fmt.Errorf("start date %q: %w", startStr, ErrInvalidDates)
				}
				end, err := time.Parse(dateLayout, endStr)
				if err != nil {
					return "", fmt.Errorf("end date %q: %w", endStr, ErrInvalidDates)
				}
				if !start.Before(end) {
					return "", fmt.Errorf("start date must be before end date: %w", ErrInvalidDates)
				}
			}

			Patch{
				Title:       req.Title,
				Destination: req.Destination,
				StartDate:   req.StartDate,
				EndDate:     req.EndDate,
				Status:      req.Status,
				Budget:      req.Budget,
				Currency:    req.Currency,
				Notes:       req.Notes,
			}.apply(it)

			return fmt.Sprintf("Updated itinerary %q.", it.Title), nil
		})
}

// Get returns the itinerary.
func (p *Planner) Get(ctx context.Context, userID, itineraryID string) (Itinerary, error) {
	return p.gateway.Get(ctx, userID, itineraryID)
}

// mutate runs one read-modify-write cycle with bounded Conflict
// retries. modify edits the itinerary in place and returns the
// confirmation message; any error from modify aborts without a write.
func (p *Planner) mutate(ctx context.Context, idempotencyKey, userID, itineraryID string,
	modify func(ctx context.Context, it *Itinerary) (string, error)) (MutationResult, error) {

	var zero MutationResult

	for attempt := 0; attempt < conflictRetries; attempt++ {
		current, err := p.gateway.Get(ctx, userID, itineraryID)
		if err != nil {
			return zero, err
		}
		token := current.Token

		msg, err := modify(ctx, &current)
		if err != nil {
			return zero, err
		}

		updated, err := p.gateway.Update(ctx, userID, itineraryID, Patch{
			Title:          &current.Title,
			Destination:    &current.Destination,
			StartDate:      &current.StartDate,
			EndDate:        &current.EndDate,
			Status:         &current.Status,
			Budget:         &current.Budget,
			Currency:       &current.Currency,
			Notes:          &current.Notes,
			Flights:        &current.Flights,
			Activities:     &current.Activities,
			Accommodations: &current.Accommodations,
			Restaurants:    &current.Restaurants,
		}, token)
		if errors.Is(err, ErrConflict) {
			// Another writer landed first; re-read and redo the edit.
			continue
		}
		if err != nil {
			return zero, err
		}

		res := MutationResult{
			Itinerary: updated,
			Message:   msg + " " + AppliedMarker,
		}
		p.remember(idempotencyKey, res)
		return res, nil
	}

	return zero, fmt.Errorf("itinerary %s: %w", itineraryID, ErrMutationFailed)
}

// verify is the degrade-never-block wrapper around the geocoder.
func (p *Planner) verify(ctx context.Context, name, city, country string) *geocode.VerifiedLocation {
	if p.verifier == nil || name == "" {
		return nil
	}
	loc, err := p.verifier.Verify(ctx, name, city, country)
	if err != nil {
		return nil
	}
	return &loc
}

func (p *Planner) replay(key string) (MutationResult, bool) {
	if key == "" {
		return MutationResult{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	res, ok := p.applied[key]
	if !ok {
		return MutationResult{}, false
	}
	res.Replayed = true
	return res, true
}

func (p *Planner) remember(key string, res MutationResult) {
	if key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied[key] = res
}

// checkDateInWindow verifies date (YYYY-MM-DD, empty allowed) falls
// inside the itinerary's window, inclusive. An unparsable window is
// skipped rather than blocking the mutation.
func checkDateInWindow(date string, it Itinerary) error {
	if date == "" {
		return nil
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return fmt.Errorf("date %q: %w", date, ErrInvalidDates)
	}
	start, err := time.Parse(dateLayout, it.StartDate)
	if err != nil {
		return nil
	}
	end, err := time.Parse(dateLayout, it.EndDate)
	if err != nil {
		return nil
	}
	if d.Before(start) || d.After(end) {
		return fmt.Errorf("date %s outside window %s..%s: %w",
			date, it.StartDate, it.EndDate, ErrDateOutOfRange)
	}
	return nil
}

// datePart extracts the YYYY-MM-DD prefix of an ISO 8601 timestamp.
func datePart(ts string) string {
	if len(ts) < len(dateLayout) {
		return ""
	}
	if idx := strings.IndexByte(ts, 'T'); idx == len(dateLayout) {
		return ts[:idx]
	}
	if len(ts) == len(dateLayout) {
		return ts
	}
	return ts[:len(dateLayout)]
}
