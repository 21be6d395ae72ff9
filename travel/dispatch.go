package travel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateInvocation is returned by Session.Invoke when the same
// specialist has already been invoked with the same request within this
// turn. The prior Result is returned alongside it, so callers recover
// locally instead of re-calling the specialist.
var ErrDuplicateInvocation = errors.New("specialist already invoked with this request this turn")

// ErrUnknownSpecialist is returned when no specialist is registered
// under the requested name.
var ErrUnknownSpecialist = errors.New("unknown specialist")

// Result is the outcome of one specialist invocation.
type Result struct {
	// Status is "success" or "error" at the specialist boundary.
	Status string `json:"status"`

	// Text is the specialist's result text, surfaced to the transcript.
	Text string `json:"text"`

	// Applied is true when the invocation mutated the itinerary
	// aggregate. The text then carries the applied marker unchanged.
	Applied bool `json:"applied"`
}

// Scope is the per-turn request identity a specialist may need.
type Scope struct {
	UserID      string
	ItineraryID string
	UserInfo    string
}

// Specialist is one category worker (flight search, hotel search,
// itinerary operations) invocable by the coordinating nodes.
type Specialist interface {
	Invoke(ctx context.Context, scope Scope, request string) (Result, error)
}

// Dispatcher is the delegation layer: a registry of specialists plus
// per-thread turn sessions enforcing at-most-once invocation.
//
// Registration happens at wiring time and is not synchronized against
// invocation; turns are managed per thread and safe for concurrent use
// across threads.
type Dispatcher struct {
	mu          sync.RWMutex
	specialists map[string]Specialist
	turns       map[string]*Session
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		specialists: make(map[string]Specialist),
		turns:       make(map[string]*Session),
	}
}

// Register adds a specialist under name, replacing any previous one.
func (d *Dispatcher) Register(name string, s Specialist) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.specialists[name] = s
}

// BeginTurn opens a fresh invocation session for the thread, dropping
// any record of the previous turn. The at-most-once window is exactly
// one turn: the same request to the same specialist is legal again on
// the next user message.
func (d *Dispatcher) BeginTurn(threadID string, scope Scope) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	session := &Session{
		dispatcher: d,
		scope:      scope,
		invoked:    make(map[string]Result),
	}
	d.turns[threadID] = session
	return session
}

// EndTurn releases the thread's session. The at-most-once record only
// matters within the turn, so callers drop it once the turn finishes;
// otherwise a long-lived process accumulates one session per thread it
// has ever served.
func (d *Dispatcher) EndTurn(threadID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.turns, threadID)
}

// Turn returns the thread's current session, creating an empty one if
// BeginTurn was never called (direct engine use in tests).
func (d *Dispatcher) Turn(threadID string) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	if session, ok := d.turns[threadID]; ok {
		return session
	}
	session := &Session{
		dispatcher: d,
		invoked:    make(map[string]Result),
	}
	d.turns[threadID] = session
	return session
}

func (d *Dispatcher) lookup(name string) (Specialist, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.specialists[name]
	return s, ok
}

// Session is one turn's invocation log for a single thread.
type Session struct {
	dispatcher *Dispatcher
	scope      Scope

	mu      sync.Mutex
	invoked map[string]Result
}

// Scope returns the request identity this turn was opened with.
func (s *Session) Scope() Scope {
	return s.scope
}

// Invoke calls the named specialist at most once per distinct request
// within this turn.
//
// A repeat of an already-successful (specialist, request) pair returns
// the prior Result together with ErrDuplicateInvocation; the specialist
// is not called again. Specialist errors propagate verbatim and are not
// recorded, so a later retry with the same request is allowed.
func (s *Session) Invoke(ctx context.Context, name, request string) (Result, error) {
	key := fingerprint(name, request)

	s.mu.Lock()
	if prior, ok := s.invoked[key]; ok {
		s.mu.Unlock()
		return prior, ErrDuplicateInvocation
	}
	s.mu.Unlock()

	specialist, ok := s.dispatcher.lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownSpecialist, name)
	}

	result, err := specialist.Invoke(ctx, s.scope, request)
	if err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	s.invoked[key] = result
	s.mu.Unlock()

	return result, nil
}

func fingerprint(name, request string) string {
	sum := sha256.Sum256([]byte(request))
	return name + ":" + hex.EncodeToString(sum[:])
}
