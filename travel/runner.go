package travel

import (
	"context"
	"errors"

	"github.com/voyago/tripflow/flow"
	"github.com/voyago/tripflow/flow/store"
)

// Request is one inbound user turn.
type Request struct {
	// ThreadID identifies the conversation thread.
	ThreadID string

	// UserID and ItineraryID scope itinerary operations. Optional for
	// threads that never touch the itinerary.
	UserID      string
	ItineraryID string

	// Text is the user's message, or the decision when the thread is
	// suspended ("approve" or free-text rejection feedback).
	Text string
}

// ProfileFunc loads the traveler profile text for a user. Optional.
type ProfileFunc func(ctx context.Context, userID string) (string, error)

// Runner is the inbound boundary: it routes each user turn to Resume
// when the thread has a pending interrupt and to Run otherwise, opening
// a fresh dispatcher turn either way.
type Runner struct {
	engine     *flow.Engine[TripState]
	store      store.Store[TripState]
	dispatcher *Dispatcher
	profile    ProfileFunc
}

// NewRunner creates a Runner. profile may be nil.
func NewRunner(engine *flow.Engine[TripState], st store.Store[TripState], d *Dispatcher, profile ProfileFunc) *Runner {
	return &Runner{
		engine:     engine,
		store:      st,
		dispatcher: d,
		profile:    profile,
	}
}

// Handle processes one user turn.
//
// Suspended thread: Text is the decision, delivered through Resume.
// Otherwise: Text is appended to the transcript and the run starts (or
// continues) from the latest checkpoint.
func (r *Runner) Handle(ctx context.Context, req Request) (flow.Outcome[TripState], error) {
	var zero flow.Outcome[TripState]

	userInfo := ""
	if r.profile != nil && req.UserID != "" {
		info, err := r.profile(ctx, req.UserID)
		if err != nil {
			return zero, err
		}
		userInfo = info
	}

	rc := flow.RunContext{
		UserID:      req.UserID,
		ItineraryID: req.ItineraryID,
		UserInfo:    userInfo,
	}
	r.dispatcher.BeginTurn(req.ThreadID, Scope{
		UserID:      req.UserID,
		ItineraryID: req.ItineraryID,
		UserInfo:    userInfo,
	})
	defer r.dispatcher.EndTurn(req.ThreadID)

	pending, err := r.pending(ctx, req.ThreadID)
	if err != nil {
		return zero, err
	}

	if pending {
		return r.engine.Resume(ctx, req.ThreadID, req.Text, flow.WithRunContext(rc))
	}

	input := TripState{
		Messages: []Message{{Role: RoleUser, Content: req.Text}},
	}
	return r.engine.Run(ctx, req.ThreadID, input, flow.WithRunContext(rc))
}

// Pending reports whether the thread is suspended and, if so, returns
// the pending interrupt.
func (r *Runner) Pending(ctx context.Context, threadID string) (*store.Interrupt, error) {
	latest, err := r.store.LatestCheckpoint(ctx, threadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return latest.Interrupt, nil
}

func (r *Runner) pending(ctx context.Context, threadID string) (bool, error) {
	intr, err := r.Pending(ctx, threadID)
	if err != nil {
		return false, err
	}
	return intr != nil, nil
}
