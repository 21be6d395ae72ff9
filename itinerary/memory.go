package itinerary

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemGateway is an in-memory Gateway for tests and demos.
//
// Itineraries are deep-copied through JSON on every read and write so
// callers can never mutate stored records in place. Safe for concurrent
// use; the token check and the write happen under one lock, so two
// racing Updates with the same token cannot both succeed.
type MemGateway struct {
	mu    sync.Mutex
	items map[string]Itinerary
}

// NewMemGateway creates an empty in-memory gateway.
func NewMemGateway() *MemGateway {
	return &MemGateway{
		items: make(map[string]Itinerary),
	}
}

// Create implements Gateway. A missing ID is filled with a uuid.
func (g *MemGateway) Create(ctx context.Context, it Itinerary) (Itinerary, error) {
	if err := ctx.Err(); err != nil {
		return Itinerary{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	it.Token = uuid.NewString()
	it.CreatedAt = now
	it.UpdatedAt = now

	stored, err := copyItinerary(it)
	if err != nil {
		return Itinerary{}, err
	}
	g.items[key(it.UserID, it.ID)] = stored

	return it, nil
}

// Get implements Gateway.
func (g *MemGateway) Get(ctx context.Context, userID, id string) (Itinerary, error) {
	if err := ctx.Err(); err != nil {
		return Itinerary{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	stored, ok := g.items[key(userID, id)]
	if !ok {
		return Itinerary{}, fmt.Errorf("itinerary %s for user %s: %w", id, userID, ErrNotFound)
	}

	return copyItinerary(stored)
}

// Update implements Gateway.
func (g *MemGateway) Update(ctx context.Context, userID, id string, patch Patch, expectedToken string) (Itinerary, error) {
	if err := ctx.Err(); err != nil {
		return Itinerary{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	stored, ok := g.items[key(userID, id)]
	if !ok {
		return Itinerary{}, fmt.Errorf("itinerary %s for user %s: %w", id, userID, ErrNotFound)
	}
	if stored.Token != expectedToken {
		return Itinerary{}, fmt.Errorf("itinerary %s: token %s is stale: %w", id, expectedToken, ErrConflict)
	}

	updated, err := copyItinerary(stored)
	if err != nil {
		return Itinerary{}, err
	}
	patch.apply(&updated)
	updated.Token = uuid.NewString()
	updated.UpdatedAt = time.Now().UTC()

	persisted, err := copyItinerary(updated)
	if err != nil {
		return Itinerary{}, err
	}
	g.items[key(userID, id)] = persisted

	return updated, nil
}

func key(userID, id string) string {
	return userID + "/" + id
}

// copyItinerary deep-copies through JSON, the same round trip the
// durable gateways perform.
func copyItinerary(it Itinerary) (Itinerary, error) {
	data, err := json.Marshal(it)
	if err != nil {
		return Itinerary{}, fmt.Errorf("copying itinerary: %w", err)
	}
	var out Itinerary
	if err := json.Unmarshal(data, &out); err != nil {
		return Itinerary{}, fmt.Errorf("copying itinerary: %w", err)
	}
	return out, nil
}
