package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store[S].
//
// Designed for tests, development, and single-process deployments where
// durability across restarts is not required. Checkpoints are deep-copied
// through JSON on both append and read, so callers can keep mutating
// their state value without corrupting history.
//
// MemStore is safe for concurrent use; a single mutex serializes appends,
// and the expected-sequence check inside the critical section provides
// the conditional append the Store contract requires.
type MemStore[S any] struct {
	mu      sync.RWMutex
	threads map[string][]Checkpoint[S]
}

// NewMemStore creates an empty in-memory checkpoint store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		threads: make(map[string][]Checkpoint[S]),
	}
}

// AppendCheckpoint implements Store.
func (m *MemStore[S]) AppendCheckpoint(_ context.Context, threadID string, expectedSeq int, state S, nextNodes []string, interrupt *Interrupt) (int, error) {
	copied, err := deepCopyState(state)
	if err != nil {
		return 0, fmt.Errorf("copy state: %w", err)
	}
	intr, err := copyInterrupt(interrupt)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.threads[threadID]
	latest := 0
	if len(log) > 0 {
		latest = log[len(log)-1].Seq
	}
	if latest != expectedSeq {
		return 0, fmt.Errorf("thread %s at seq %d, expected %d: %w",
			threadID, latest, expectedSeq, ErrSequenceConflict)
	}

	cp := Checkpoint[S]{
		ThreadID:  threadID,
		Seq:       expectedSeq + 1,
		State:     copied,
		NextNodes: append([]string(nil), nextNodes...),
		Interrupt: intr,
		CreatedAt: time.Now().UTC(),
	}

	m.threads[threadID] = append(log, cp)
	return cp.Seq, nil
}

// LatestCheckpoint implements Store.
func (m *MemStore[S]) LatestCheckpoint(_ context.Context, threadID string) (Checkpoint[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, ok := m.threads[threadID]
	if !ok || len(log) == 0 {
		var zero Checkpoint[S]
		return zero, ErrNotFound
	}

	return copyCheckpoint(log[len(log)-1])
}

// ListCheckpoints implements Store. Results are newest first.
func (m *MemStore[S]) ListCheckpoints(_ context.Context, threadID string) ([]Checkpoint[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, ok := m.threads[threadID]
	if !ok || len(log) == 0 {
		return nil, ErrNotFound
	}

	out := make([]Checkpoint[S], 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		cp, err := copyCheckpoint(log[i])
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// deepCopyState isolates a state value via JSON round-trip. Works for any
// JSON-serializable type; unexported fields and channels are not carried.
func deepCopyState[S any](state S) (S, error) {
	var zero S
	data, err := json.Marshal(state)
	if err != nil {
		return zero, err
	}
	var copied S
	if err := json.Unmarshal(data, &copied); err != nil {
		return zero, err
	}
	return copied, nil
}

func copyCheckpoint[S any](cp Checkpoint[S]) (Checkpoint[S], error) {
	copied, err := deepCopyState(cp.State)
	if err != nil {
		var zero Checkpoint[S]
		return zero, fmt.Errorf("copy state: %w", err)
	}
	intr, err := copyInterrupt(cp.Interrupt)
	if err != nil {
		var zero Checkpoint[S]
		return zero, err
	}
	out := cp
	out.State = copied
	out.NextNodes = append([]string(nil), cp.NextNodes...)
	out.Interrupt = intr
	return out, nil
}

// copyInterrupt isolates an interrupt, including its opaque payload,
// via JSON round-trip. A struct payload comes back as a map, matching
// what the durable backends return.
func copyInterrupt(intr *Interrupt) (*Interrupt, error) {
	if intr == nil {
		return nil, nil
	}
	out := *intr
	if intr.Payload != nil {
		payload, err := deepCopyState(intr.Payload)
		if err != nil {
			return nil, fmt.Errorf("copy interrupt payload: %w", err)
		}
		out.Payload = payload
	}
	return &out, nil
}
