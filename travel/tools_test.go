package travel

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/voyago/tripflow/itinerary"
)

func TestIdempotencyKey(t *testing.T) {
	scope := Scope{UserID: "u1", ItineraryID: "i1"}

	t.Run("same logical input maps to the same key", func(t *testing.T) {
		a := idempotencyKey("add_flight_to_itinerary", scope, map[string]interface{}{
			"airline": "ANA", "flight_number": "NH106", "cost": 980.0,
		})
		b := idempotencyKey("add_flight_to_itinerary", scope, map[string]interface{}{
			"cost": 980.0, "airline": "ANA", "flight_number": "NH106",
		})
		if a != b {
			t.Error("key must be independent of map iteration order")
		}
	})

	t.Run("key varies with every identity component", func(t *testing.T) {
		base := idempotencyKey("add_flight_to_itinerary", scope, map[string]interface{}{"airline": "ANA"})

		variants := []string{
			idempotencyKey("add_activity_to_itinerary", scope, map[string]interface{}{"airline": "ANA"}),
			idempotencyKey("add_flight_to_itinerary", Scope{UserID: "u2", ItineraryID: "i1"}, map[string]interface{}{"airline": "ANA"}),
			idempotencyKey("add_flight_to_itinerary", Scope{UserID: "u1", ItineraryID: "i2"}, map[string]interface{}{"airline": "ANA"}),
			idempotencyKey("add_flight_to_itinerary", scope, map[string]interface{}{"airline": "JAL"}),
		}
		for i, v := range variants {
			if v == base {
				t.Errorf("variant %d collided with the base key", i)
			}
		}
	})
}

func TestToolMutationShaping(t *testing.T) {
	t.Run("success carries the applied flag", func(t *testing.T) {
		out, err := toolMutation(itinerary.MutationResult{Message: "Added. " + itinerary.AppliedMarker}, nil)
		if err != nil {
			t.Fatalf("toolMutation failed: %v", err)
		}
		if out["status"] != "success" || out["applied"] != true {
			t.Errorf("unexpected success shape: %v", out)
		}
		if _, ok := out["replayed"]; ok {
			t.Error("replayed must be absent on first application")
		}
	})

	t.Run("replay is marked", func(t *testing.T) {
		out, _ := toolMutation(itinerary.MutationResult{Message: "m", Replayed: true}, nil)
		if out["replayed"] != true {
			t.Errorf("expected replayed flag, got %v", out)
		}
	})

	t.Run("errors map to structured responses", func(t *testing.T) {
		tests := []struct {
			err  error
			want string
		}{
			{itinerary.ErrNotFound, "not_found"},
			{fmt.Errorf("wrapped: %w", itinerary.ErrDateOutOfRange), "validation_error"},
			{itinerary.ErrInvalidDates, "validation_error"},
			{itinerary.ErrMutationFailed, "conflict"},
			{errors.New("disk on fire"), "database_error"},
		}
		for _, tt := range tests {
			out, err := toolMutation(itinerary.MutationResult{}, tt.err)
			if err != nil {
				t.Fatalf("planner error must become a response, got Go error %v", err)
			}
			if out["status"] != "error" || out["error_type"] != tt.want {
				t.Errorf("error %v: expected type %q, got %v", tt.err, tt.want, out)
			}
		}
	})
}

func TestItineraryToolsEndToEnd(t *testing.T) {
	ctx := context.Background()

	newScope := func(t *testing.T) (*itinerary.Planner, Scope) {
		t.Helper()
		g := itinerary.NewMemGateway()
		it, err := g.Create(ctx, itinerary.Itinerary{
			UserID:      "u1",
			Title:       "Tokyo spring trip",
			Destination: "Tokyo, Japan",
			StartDate:   "2026-04-01",
			EndDate:     "2026-04-10",
			Status:      itinerary.StatusPlanning,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		return itinerary.NewPlanner(g, nil), Scope{UserID: it.UserID, ItineraryID: it.ID}
	}

	findTool := func(t *testing.T, p *itinerary.Planner, scope Scope, name string) func(context.Context, map[string]interface{}) (map[string]interface{}, error) {
		t.Helper()
		for _, tl := range itineraryTools(p, scope) {
			if tl.Name() == name {
				return tl.Call
			}
		}
		t.Fatalf("tool %s not found", name)
		return nil
	}

	t.Run("repeated add replays instead of double-appending", func(t *testing.T) {
		p, scope := newScope(t)
		add := findTool(t, p, scope, "add_activity_to_itinerary")

		input := map[string]interface{}{
			"name": "Senso-ji temple visit",
			"city": "Tokyo",
			"date": "2026-04-03",
		}

		first, err := add(ctx, input)
		if err != nil {
			t.Fatalf("first call failed: %v", err)
		}
		if first["applied"] != true {
			t.Fatalf("expected applied, got %v", first)
		}

		second, err := add(ctx, input)
		if err != nil {
			t.Fatalf("second call failed: %v", err)
		}
		if second["replayed"] != true {
			t.Errorf("expected replay, got %v", second)
		}

		it, err := p.Get(ctx, scope.UserID, scope.ItineraryID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if len(it.Activities) != 1 {
			t.Errorf("expected one activity, got %d", len(it.Activities))
		}
	})

	t.Run("out of range date surfaces as a validation response", func(t *testing.T) {
		p, scope := newScope(t)
		add := findTool(t, p, scope, "add_restaurant_to_itinerary")

		out, err := add(ctx, map[string]interface{}{
			"name": "Sukiyabashi",
			"city": "Tokyo",
			"date": "2026-06-01",
		})
		if err != nil {
			t.Fatalf("expected structured response, got Go error %v", err)
		}
		if out["error_type"] != "validation_error" {
			t.Errorf("expected validation_error, got %v", out)
		}
	})

	t.Run("get returns a summary", func(t *testing.T) {
		p, scope := newScope(t)
		get := findTool(t, p, scope, "get_itinerary")

		out, err := get(ctx, nil)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if out["status"] != "success" {
			t.Fatalf("expected success, got %v", out)
		}
		if _, ok := out["itinerary"].(string); !ok {
			t.Errorf("expected summary string, got %T", out["itinerary"])
		}
	})

	t.Run("update changes top-level fields", func(t *testing.T) {
		p, scope := newScope(t)
		update := findTool(t, p, scope, "update_itinerary")

		out, err := update(ctx, map[string]interface{}{
			"title":  "Tokyo and Kyoto",
			"status": "booked",
			"budget": 4500.0,
		})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if out["applied"] != true {
			t.Fatalf("expected applied, got %v", out)
		}

		it, err := p.Get(ctx, scope.UserID, scope.ItineraryID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if it.Title != "Tokyo and Kyoto" || it.Status != itinerary.StatusBooked || it.Budget != 4500 {
			t.Errorf("update did not land: %+v", it)
		}
	})
}
