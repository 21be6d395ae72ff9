package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

type tripState struct {
	Messages []string `json:"messages"`
	Decision string   `json:"decision"`
}

// runStoreContract exercises the Store guarantees against any backend.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store[tripState]) {
	ctx := context.Background()

	t.Run("unknown thread", func(t *testing.T) {
		st := newStore(t)

		if _, err := st.LatestCheckpoint(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("LatestCheckpoint: expected ErrNotFound, got %v", err)
		}
		if _, err := st.ListCheckpoints(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("ListCheckpoints: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("sequence numbers start at 1 and increment", func(t *testing.T) {
		st := newStore(t)

		for want := 1; want <= 3; want++ {
			seq, err := st.AppendCheckpoint(ctx, "t1", want-1, tripState{}, []string{"next"}, nil)
			if err != nil {
				t.Fatalf("AppendCheckpoint failed: %v", err)
			}
			if seq != want {
				t.Errorf("expected seq %d, got %d", want, seq)
			}
		}

		// Threads are independent.
		seq, err := st.AppendCheckpoint(ctx, "t2", 0, tripState{}, nil, nil)
		if err != nil {
			t.Fatalf("AppendCheckpoint failed: %v", err)
		}
		if seq != 1 {
			t.Errorf("expected fresh thread to start at 1, got %d", seq)
		}
	})

	t.Run("latest returns the highest sequence", func(t *testing.T) {
		st := newStore(t)

		if _, err := st.AppendCheckpoint(ctx, "t1", 0, tripState{Decision: "old"}, []string{"a"}, nil); err != nil {
			t.Fatalf("AppendCheckpoint failed: %v", err)
		}
		if _, err := st.AppendCheckpoint(ctx, "t1", 1, tripState{Decision: "new"}, []string{"b"}, nil); err != nil {
			t.Fatalf("AppendCheckpoint failed: %v", err)
		}

		latest, err := st.LatestCheckpoint(ctx, "t1")
		if err != nil {
			t.Fatalf("LatestCheckpoint failed: %v", err)
		}
		if latest.Seq != 2 || latest.State.Decision != "new" {
			t.Errorf("expected seq 2 decision=new, got seq %d decision=%q", latest.Seq, latest.State.Decision)
		}
		if len(latest.NextNodes) != 1 || latest.NextNodes[0] != "b" {
			t.Errorf("expected next nodes [b], got %v", latest.NextNodes)
		}
	})

	t.Run("list is newest first", func(t *testing.T) {
		st := newStore(t)

		for i := 0; i < 3; i++ {
			if _, err := st.AppendCheckpoint(ctx, "t1", i, tripState{}, []string{"n"}, nil); err != nil {
				t.Fatalf("AppendCheckpoint failed: %v", err)
			}
		}

		log, err := st.ListCheckpoints(ctx, "t1")
		if err != nil {
			t.Fatalf("ListCheckpoints failed: %v", err)
		}
		if len(log) != 3 {
			t.Fatalf("expected 3 checkpoints, got %d", len(log))
		}
		for i, cp := range log {
			if want := 3 - i; cp.Seq != want {
				t.Errorf("log[%d]: expected seq %d, got %d", i, want, cp.Seq)
			}
		}
	})

	t.Run("interrupt round-trips", func(t *testing.T) {
		st := newStore(t)

		intr := &Interrupt{
			NodeID:  "human_approve_flights",
			Payload: map[string]interface{}{"question": "Approve flight results?"},
		}
		if _, err := st.AppendCheckpoint(ctx, "t1", 0, tripState{}, []string{"human_approve_flights"}, intr); err != nil {
			t.Fatalf("AppendCheckpoint failed: %v", err)
		}

		latest, err := st.LatestCheckpoint(ctx, "t1")
		if err != nil {
			t.Fatalf("LatestCheckpoint failed: %v", err)
		}
		if !latest.Suspended() {
			t.Fatal("expected suspended checkpoint")
		}
		if latest.Interrupt.NodeID != "human_approve_flights" {
			t.Errorf("expected interrupt node id preserved, got %q", latest.Interrupt.NodeID)
		}
		if latest.Terminated() {
			t.Error("suspended checkpoint must not read as terminated")
		}

		// Clearing checkpoint.
		if _, err := st.AppendCheckpoint(ctx, "t1", 1, tripState{}, []string{"human_approve_flights"}, nil); err != nil {
			t.Fatalf("AppendCheckpoint failed: %v", err)
		}
		latest, err = st.LatestCheckpoint(ctx, "t1")
		if err != nil {
			t.Fatalf("LatestCheckpoint failed: %v", err)
		}
		if latest.Suspended() {
			t.Error("expected interrupt cleared")
		}
	})

	t.Run("terminated checkpoint", func(t *testing.T) {
		st := newStore(t)

		if _, err := st.AppendCheckpoint(ctx, "t1", 0, tripState{}, nil, nil); err != nil {
			t.Fatalf("AppendCheckpoint failed: %v", err)
		}
		latest, err := st.LatestCheckpoint(ctx, "t1")
		if err != nil {
			t.Fatalf("LatestCheckpoint failed: %v", err)
		}
		if !latest.Terminated() {
			t.Errorf("expected terminated, got next nodes %v", latest.NextNodes)
		}
	})

	t.Run("stale append is rejected", func(t *testing.T) {
		st := newStore(t)

		if _, err := st.AppendCheckpoint(ctx, "t1", 0, tripState{Decision: "first"}, []string{"a"}, nil); err != nil {
			t.Fatalf("AppendCheckpoint failed: %v", err)
		}

		// A writer still holding the pre-append view must not land.
		if _, err := st.AppendCheckpoint(ctx, "t1", 0, tripState{Decision: "stale"}, []string{"b"}, nil); !errors.Is(err, ErrSequenceConflict) {
			t.Fatalf("expected ErrSequenceConflict for a stale append, got %v", err)
		}
		// Nor may a writer skip ahead of the log.
		if _, err := st.AppendCheckpoint(ctx, "t1", 5, tripState{}, nil, nil); !errors.Is(err, ErrSequenceConflict) {
			t.Fatalf("expected ErrSequenceConflict for a future sequence, got %v", err)
		}

		latest, err := st.LatestCheckpoint(ctx, "t1")
		if err != nil {
			t.Fatalf("LatestCheckpoint failed: %v", err)
		}
		if latest.Seq != 1 || latest.State.Decision != "first" {
			t.Errorf("rejected appends must not land, got seq %d decision %q", latest.Seq, latest.State.Decision)
		}
	})

	t.Run("concurrent appends admit exactly one writer", func(t *testing.T) {
		st := newStore(t)

		const writers = 10
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			landed    int
			conflicts int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := st.AppendCheckpoint(ctx, "t1", 0, tripState{}, []string{"n"}, nil)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					landed++
				case errors.Is(err, ErrSequenceConflict):
					conflicts++
				default:
					t.Errorf("AppendCheckpoint failed: %v", err)
				}
			}()
		}
		wg.Wait()

		if landed != 1 || conflicts != writers-1 {
			t.Fatalf("expected 1 append and %d conflicts, got %d and %d", writers-1, landed, conflicts)
		}
		latest, err := st.LatestCheckpoint(ctx, "t1")
		if err != nil {
			t.Fatalf("LatestCheckpoint failed: %v", err)
		}
		if latest.Seq != 1 {
			t.Errorf("expected the log to hold exactly the winner, got seq %d", latest.Seq)
		}
	})
}

func TestMemStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store[tripState] {
		return NewMemStore[tripState]()
	})

	t.Run("checkpoints are isolated from caller mutation", func(t *testing.T) {
		ctx := context.Background()
		st := NewMemStore[tripState]()

		state := tripState{Messages: []string{"hello"}}
		if _, err := st.AppendCheckpoint(ctx, "t1", 0, state, nil, nil); err != nil {
			t.Fatalf("AppendCheckpoint failed: %v", err)
		}
		state.Messages[0] = "mutated"

		latest, err := st.LatestCheckpoint(ctx, "t1")
		if err != nil {
			t.Fatalf("LatestCheckpoint failed: %v", err)
		}
		if latest.State.Messages[0] != "hello" {
			t.Errorf("caller mutation leaked into the store: %v", latest.State.Messages)
		}
	})

	t.Run("interrupt payload is isolated from caller mutation", func(t *testing.T) {
		ctx := context.Background()
		st := NewMemStore[tripState]()

		payload := map[string]interface{}{"question": "Approve flight results?"}
		intr := &Interrupt{NodeID: "human_approve_flights", Payload: payload}
		if _, err := st.AppendCheckpoint(ctx, "t1", 0, tripState{}, []string{"human_approve_flights"}, intr); err != nil {
			t.Fatalf("AppendCheckpoint failed: %v", err)
		}

		// Scribbling on the payload that was appended must not rewrite history.
		payload["question"] = "mutated after append"

		latest, err := st.LatestCheckpoint(ctx, "t1")
		if err != nil {
			t.Fatalf("LatestCheckpoint failed: %v", err)
		}
		got, ok := latest.Interrupt.Payload.(map[string]interface{})
		if !ok {
			t.Fatalf("unexpected payload type %T", latest.Interrupt.Payload)
		}
		if got["question"] != "Approve flight results?" {
			t.Errorf("append-side mutation leaked into the store: %v", got)
		}

		// Nor may mutating a read-back payload.
		got["question"] = "mutated after read"
		again, err := st.LatestCheckpoint(ctx, "t1")
		if err != nil {
			t.Fatalf("LatestCheckpoint failed: %v", err)
		}
		if again.Interrupt.Payload.(map[string]interface{})["question"] != "Approve flight results?" {
			t.Errorf("read-side mutation leaked into the store: %v", again.Interrupt.Payload)
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store[tripState] {
		st, err := NewSQLiteStore[tripState](filepath.Join(t.TempDir(), "checkpoints.db"))
		if err != nil {
			t.Fatalf("NewSQLiteStore failed: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return st
	})

	t.Run("survives reopen", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "checkpoints.db")

		st, err := NewSQLiteStore[tripState](path)
		if err != nil {
			t.Fatalf("NewSQLiteStore failed: %v", err)
		}
		if _, err := st.AppendCheckpoint(ctx, "t1", 0, tripState{Decision: "approved"}, []string{"hotel_agent"}, nil); err != nil {
			t.Fatalf("AppendCheckpoint failed: %v", err)
		}
		if err := st.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		reopened, err := NewSQLiteStore[tripState](path)
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		defer func() { _ = reopened.Close() }()

		latest, err := reopened.LatestCheckpoint(ctx, "t1")
		if err != nil {
			t.Fatalf("LatestCheckpoint failed: %v", err)
		}
		if latest.Seq != 1 || latest.State.Decision != "approved" {
			t.Errorf("expected persisted checkpoint back, got %+v", latest)
		}
	})

	t.Run("closed store is unavailable", func(t *testing.T) {
		ctx := context.Background()
		st, err := NewSQLiteStore[tripState](filepath.Join(t.TempDir(), "checkpoints.db"))
		if err != nil {
			t.Fatalf("NewSQLiteStore failed: %v", err)
		}
		if err := st.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		if _, err := st.AppendCheckpoint(ctx, "t1", 0, tripState{}, nil, nil); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable after close, got %v", err)
		}
	})
}
