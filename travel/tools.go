package travel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"

	"github.com/voyago/tripflow/itinerary"
	"github.com/voyago/tripflow/model"
	"github.com/voyago/tripflow/tool"
)

// itineraryTools builds the tool set the itinerary specialist offers to
// its model, bound to one planner and one request scope. Every mutating
// tool derives a server-side idempotency key from its own input, so a
// repeated call within or across retries replays the first outcome
// instead of double-appending.
func itineraryTools(p *itinerary.Planner, scope Scope) []tool.Tool {
	return []tool.Tool{
		tool.NewFunc("get_itinerary", func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			it, err := p.Get(ctx, scope.UserID, scope.ItineraryID)
			if err != nil {
				return toolError(err), nil
			}
			return map[string]interface{}{
				"status":    "success",
				"message":   "Retrieved itinerary " + it.Title + ".",
				"itinerary": itinerary.Summarize(it),
			}, nil
		}),

		tool.NewFunc("update_itinerary", func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			req := itinerary.UpdateDetailsRequest{
				IdempotencyKey: idempotencyKey("update_itinerary", scope, input),
				UserID:         scope.UserID,
				ItineraryID:    scope.ItineraryID,
				Title:          optString(input, "title"),
				Destination:    optString(input, "destination"),
				StartDate:      optString(input, "start_date"),
				EndDate:        optString(input, "end_date"),
				Budget:         optFloat(input, "budget"),
				Currency:       optString(input, "currency"),
				Notes:          optString(input, "notes"),
			}
			if s := optString(input, "status"); s != nil {
				status := itinerary.Status(*s)
				req.Status = &status
			}
			return toolMutation(p.UpdateDetails(ctx, req))
		}),

		tool.NewFunc("add_flight_to_itinerary", func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			req := itinerary.AddFlightRequest{
				IdempotencyKey:   idempotencyKey("add_flight_to_itinerary", scope, input),
				UserID:           scope.UserID,
				ItineraryID:      scope.ItineraryID,
				Airline:          str(input, "airline"),
				FlightNumber:     str(input, "flight_number"),
				DepartureAirport: str(input, "departure_airport"),
				DepartureTime:    str(input, "departure_time"),
				ArrivalAirport:   str(input, "arrival_airport"),
				ArrivalTime:      str(input, "arrival_time"),
				Seat:             str(input, "seat"),
				Confirmation:     str(input, "confirmation"),
				Cost:             num(input, "cost"),
			}
			return toolMutation(p.AddFlight(ctx, req))
		}),

		tool.NewFunc("add_accommodation_to_itinerary", func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			req := itinerary.AddAccommodationRequest{
				IdempotencyKey: idempotencyKey("add_accommodation_to_itinerary", scope, input),
				UserID:         scope.UserID,
				ItineraryID:    scope.ItineraryID,
				Name:           str(input, "name"),
				Type:           str(input, "accommodation_type"),
				CheckIn:        str(input, "check_in"),
				CheckOut:       str(input, "check_out"),
				City:           str(input, "city"),
				Country:        str(input, "country"),
				Address:        str(input, "address"),
				Confirmation:   str(input, "confirmation"),
				Cost:           num(input, "cost"),
			}
			return toolMutation(p.AddAccommodation(ctx, req))
		}),

		tool.NewFunc("add_activity_to_itinerary", func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			req := itinerary.AddActivityRequest{
				IdempotencyKey:      idempotencyKey("add_activity_to_itinerary", scope, input),
				UserID:              scope.UserID,
				ItineraryID:         scope.ItineraryID,
				Name:                str(input, "name"),
				Description:         str(input, "description"),
				Date:                str(input, "date"),
				Time:                str(input, "time"),
				City:                str(input, "city"),
				Country:             str(input, "country"),
				Address:             str(input, "location"),
				Cost:                num(input, "cost"),
				BookingConfirmation: str(input, "booking_confirmation"),
			}
			return toolMutation(p.AddActivity(ctx, req))
		}),

		tool.NewFunc("add_restaurant_to_itinerary", func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			req := itinerary.AddRestaurantRequest{
				IdempotencyKey:          idempotencyKey("add_restaurant_to_itinerary", scope, input),
				UserID:                  scope.UserID,
				ItineraryID:             scope.ItineraryID,
				Name:                    str(input, "name"),
				Cuisine:                 str(input, "cuisine"),
				Date:                    str(input, "date"),
				Time:                    str(input, "time"),
				City:                    str(input, "city"),
				Country:                 str(input, "country"),
				Address:                 str(input, "address"),
				ReservationConfirmation: str(input, "reservation_confirmation"),
				Cost:                    num(input, "cost"),
			}
			return toolMutation(p.AddRestaurant(ctx, req))
		}),
	}
}

// itineraryToolSpecs describes the itinerary tools to the model.
func itineraryToolSpecs() []model.ToolSpec {
	return []model.ToolSpec{
		{
			Name:        "get_itinerary",
			Description: "Get the user's current itinerary with all flights, accommodations, activities, and restaurants.",
		},
		{
			Name:        "update_itinerary",
			Description: "Update top-level itinerary fields. Only provided fields change.",
			Schema: objectSchema(map[string]interface{}{
				"title":       stringProp("New title"),
				"destination": stringProp("New destination"),
				"start_date":  stringProp("New start date (YYYY-MM-DD)"),
				"end_date":    stringProp("New end date (YYYY-MM-DD)"),
				"status":      stringProp("New status: planning, booked, completed, or cancelled"),
				"budget":      numberProp("New budget amount"),
				"currency":    stringProp("New currency code"),
				"notes":       stringProp("Updated notes"),
			}),
		},
		{
			Name:        "add_flight_to_itinerary",
			Description: "Add a flight to the itinerary. Airport locations are verified automatically.",
			Schema: objectSchema(map[string]interface{}{
				"airline":           stringProp("Airline name"),
				"flight_number":     stringProp("Flight number"),
				"departure_airport": stringProp("Departure airport code, e.g. JFK"),
				"departure_time":    stringProp("Departure time (ISO format)"),
				"arrival_airport":   stringProp("Arrival airport code, e.g. NRT"),
				"arrival_time":      stringProp("Arrival time (ISO format)"),
				"seat":              stringProp("Seat number"),
				"confirmation":      stringProp("Confirmation number"),
				"cost":              numberProp("Flight cost"),
			}, "airline", "flight_number", "departure_airport", "departure_time", "arrival_airport", "arrival_time"),
		},
		{
			Name:        "add_accommodation_to_itinerary",
			Description: "Add lodging to the itinerary. The location is verified automatically.",
			Schema: objectSchema(map[string]interface{}{
				"name":               stringProp("Accommodation name"),
				"accommodation_type": stringProp("Type: hotel, airbnb, resort, etc."),
				"check_in":           stringProp("Check-in date (YYYY-MM-DD)"),
				"check_out":          stringProp("Check-out date (YYYY-MM-DD)"),
				"city":               stringProp("City"),
				"country":            stringProp("Country"),
				"address":            stringProp("Address, used as-is if verification is unavailable"),
				"confirmation":       stringProp("Booking confirmation"),
				"cost":               numberProp("Total cost"),
			}, "name", "accommodation_type", "check_in", "check_out", "city"),
		},
		{
			Name:        "add_activity_to_itinerary",
			Description: "Add an activity to the itinerary. The location is verified automatically.",
			Schema: objectSchema(map[string]interface{}{
				"name":                 stringProp("Activity name"),
				"description":          stringProp("Activity description"),
				"date":                 stringProp("Activity date (YYYY-MM-DD)"),
				"time":                 stringProp("Activity time"),
				"city":                 stringProp("City"),
				"country":              stringProp("Country"),
				"location":             stringProp("Location text, used as-is if verification is unavailable"),
				"cost":                 numberProp("Activity cost"),
				"booking_confirmation": stringProp("Booking confirmation"),
			}, "name", "city"),
		},
		{
			Name:        "add_restaurant_to_itinerary",
			Description: "Add a restaurant reservation to the itinerary. The location is verified automatically.",
			Schema: objectSchema(map[string]interface{}{
				"name":                     stringProp("Restaurant name"),
				"cuisine":                  stringProp("Cuisine type"),
				"date":                     stringProp("Reservation date (YYYY-MM-DD)"),
				"time":                     stringProp("Reservation time"),
				"city":                     stringProp("City"),
				"country":                  stringProp("Country"),
				"address":                  stringProp("Address, used as-is if verification is unavailable"),
				"reservation_confirmation": stringProp("Confirmation number"),
				"cost":                     numberProp("Estimated cost"),
			}, "name", "city"),
		},
	}
}

// toolMutation shapes a planner result or error into a tool response.
// Planner errors become structured error responses rather than Go
// errors, so the model can read them and adjust.
func toolMutation(res itinerary.MutationResult, err error) (map[string]interface{}, error) {
	if err != nil {
		return toolError(err), nil
	}
	out := map[string]interface{}{
		"status":  "success",
		"message": res.Message,
		"applied": true,
	}
	if res.Replayed {
		out["replayed"] = true
	}
	return out, nil
}

func toolError(err error) map[string]interface{} {
	errType := "database_error"
	switch {
	case errors.Is(err, itinerary.ErrNotFound):
		errType = "not_found"
	case errors.Is(err, itinerary.ErrDateOutOfRange), errors.Is(err, itinerary.ErrInvalidDates):
		errType = "validation_error"
	case errors.Is(err, itinerary.ErrMutationFailed):
		errType = "conflict"
	}
	return map[string]interface{}{
		"status":     "error",
		"error_type": errType,
		"message":    err.Error(),
	}
}

// idempotencyKey hashes the tool name, scope, and canonicalized input
// so the same logical mutation always maps to the same key.
func idempotencyKey(toolName string, scope Scope, input map[string]interface{}) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write([]byte(scope.UserID))
	h.Write([]byte{0})
	h.Write([]byte(scope.ItineraryID))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		v, _ := json.Marshal(input[k])
		h.Write(v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func str(input map[string]interface{}, key string) string {
	s, _ := input[key].(string)
	return s
}

func num(input map[string]interface{}, key string) float64 {
	f, _ := input[key].(float64)
	return f
}

func optString(input map[string]interface{}, key string) *string {
	if s, ok := input[key].(string); ok && s != "" {
		return &s
	}
	return nil
}

func optFloat(input map[string]interface{}, key string) *float64 {
	if f, ok := input[key].(float64); ok {
		return &f
	}
	return nil
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func numberProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}
