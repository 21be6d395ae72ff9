package travel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voyago/tripflow/itinerary"
	"github.com/voyago/tripflow/model"
	"github.com/voyago/tripflow/tool"
)

// Specialist registry names.
const (
	SpecialistFlights   = "find_flights"
	SpecialistHotels    = "find_hotels"
	SpecialistActivity  = "find_activities"
	SpecialistItinerary = "itinerary_operations"
)

// Category prompts for the search specialists.
const (
	flightsPrompt = "You are a flight search assistant. Given a natural language " +
		"request, propose concrete flight options: airline, flight number, " +
		"departure and arrival airports and times, and approximate cost. " +
		"Present a short list the user can approve or reject."

	hotelsPrompt = "You are a hotel search assistant. Given a natural language " +
		"request, propose concrete accommodation options: name, type, location, " +
		"check-in and check-out dates, and approximate nightly cost. " +
		"Present a short list the user can approve or reject."

	activitiesPrompt = "You are an activity search assistant. Given a natural " +
		"language request, propose activities and attractions for the " +
		"destination: name, short description, suggested date or time, and " +
		"approximate cost. Present a short list the user can approve or reject."
)

// SearchSpecialist wraps a chat model with a category prompt. Search is
// read-only: no itinerary mutation, so Applied is always false.
type SearchSpecialist struct {
	chat   model.ChatModel
	prompt string
}

// NewSearchSpecialist creates a specialist with the given system
// prompt.
func NewSearchSpecialist(chat model.ChatModel, prompt string) *SearchSpecialist {
	return &SearchSpecialist{chat: chat, prompt: prompt}
}

// NewFlightSpecialist creates the flight search specialist.
func NewFlightSpecialist(chat model.ChatModel) *SearchSpecialist {
	return NewSearchSpecialist(chat, flightsPrompt)
}

// NewHotelSpecialist creates the hotel search specialist.
func NewHotelSpecialist(chat model.ChatModel) *SearchSpecialist {
	return NewSearchSpecialist(chat, hotelsPrompt)
}

// NewActivitySpecialist creates the activity search specialist.
func NewActivitySpecialist(chat model.ChatModel) *SearchSpecialist {
	return NewSearchSpecialist(chat, activitiesPrompt)
}

// Invoke implements Specialist.
func (s *SearchSpecialist) Invoke(ctx context.Context, scope Scope, request string) (Result, error) {
	messages := []model.Message{
		{Role: model.RoleSystem, Content: s.prompt},
	}
	if scope.UserInfo != "" {
		messages = append(messages, model.Message{
			Role:    model.RoleSystem,
			Content: "Traveler profile: " + scope.UserInfo,
		})
	}
	messages = append(messages, model.Message{Role: model.RoleUser, Content: request})

	out, err := s.chat.Chat(ctx, messages, nil)
	if err != nil {
		return Result{}, fmt.Errorf("specialist call failed: %w", err)
	}

	return Result{Status: "success", Text: out.Text}, nil
}

const itineraryPrompt = "You are an itinerary management assistant. Use the " +
	"provided tools to retrieve and update the user's itinerary. Call each " +
	"mutating tool at most once per request; when a tool reports success, " +
	"do not call it again. Finish with a short confirmation of what was done."

// maxToolTurns bounds the itinerary specialist's chat/tool loop.
const maxToolTurns = 6

// ItinerarySpecialist runs a bounded chat/tool loop over the itinerary
// tools. Every mutation carries a server-side idempotency key, so even
// a model that ignores the do-not-reapply instruction cannot
// double-apply a write.
type ItinerarySpecialist struct {
	chat    model.ChatModel
	planner *itinerary.Planner
}

// NewItinerarySpecialist creates the itinerary operations specialist.
func NewItinerarySpecialist(chat model.ChatModel, planner *itinerary.Planner) *ItinerarySpecialist {
	return &ItinerarySpecialist{chat: chat, planner: planner}
}

// Invoke implements Specialist.
//
// The result of any mutating tool is surfaced with its applied marker
// unchanged: when a mutation landed but the model's closing text
// dropped the marker, the mutation message is appended to the result
// text.
func (s *ItinerarySpecialist) Invoke(ctx context.Context, scope Scope, request string) (Result, error) {
	if scope.UserID == "" || scope.ItineraryID == "" {
		return Result{}, fmt.Errorf("itinerary operations need a user and itinerary id")
	}

	tools := itineraryTools(s.planner, scope)
	byName := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	specs := itineraryToolSpecs()

	messages := []model.Message{
		{Role: model.RoleSystem, Content: itineraryPrompt},
		{Role: model.RoleUser, Content: request},
	}

	applied := false
	var lastMutation string

	for turn := 0; turn < maxToolTurns; turn++ {
		out, err := s.chat.Chat(ctx, messages, specs)
		if err != nil {
			return Result{}, fmt.Errorf("specialist call failed: %w", err)
		}

		if len(out.ToolCalls) == 0 {
			text := out.Text
			if applied && !strings.Contains(text, itinerary.AppliedMarker) {
				text = strings.TrimSpace(text + "\n" + lastMutation)
			}
			return Result{Status: "success", Text: text, Applied: applied}, nil
		}

		messages = append(messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   out.Text,
			ToolCalls: out.ToolCalls,
		})

		for _, call := range out.ToolCalls {
			t, ok := byName[call.Name]
			if !ok {
				messages = append(messages, model.Message{
					Role:       model.RoleTool,
					ToolCallID: call.ID,
					Content:    fmt.Sprintf(`{"status":"error","message":"unknown tool %s"}`, call.Name),
				})
				continue
			}

			result, err := t.Call(ctx, call.Input)
			if err != nil {
				return Result{}, fmt.Errorf("tool %s: %w", call.Name, err)
			}

			if isApplied(result) {
				applied = true
				if msg, ok := result["message"].(string); ok {
					lastMutation = msg
				}
			}

			payload, err := json.Marshal(result)
			if err != nil {
				return Result{}, fmt.Errorf("encoding tool result: %w", err)
			}
			messages = append(messages, model.Message{
				Role:       model.RoleTool,
				ToolCallID: call.ID,
				Content:    string(payload),
			})
		}
	}

	// Tool budget exhausted with calls still pending. Mutations that
	// already landed stay landed; report what we know.
	text := "Itinerary operation ran out of tool budget."
	if applied {
		text += " " + lastMutation
	}
	return Result{Status: "success", Text: text, Applied: applied}, nil
}

func isApplied(result map[string]interface{}) bool {
	a, _ := result["applied"].(bool)
	return a
}
