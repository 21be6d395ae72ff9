package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store[S].
//
// It keeps each thread's checkpoint log in a single-file database.
// Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments that must survive restarts
//   - Prototyping before migrating to MySQL
//
// The store uses WAL mode so readers are never blocked by the writer,
// and checks the expected sequence inside the append transaction. A
// UNIQUE(thread_id, seq) constraint backstops the check: if two
// processes race on the same thread, the loser's insert fails and is
// reported as a sequence conflict, never as a second append.
//
// Type parameter S is the state type to persist (must be JSON-serializable).
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens (or creates) the checkpoint database at path.
//
// Use ":memory:" for an in-memory database in tests. The schema is
// created on first use.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLiteStore[S]{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS thread_checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			state TEXT NOT NULL,
			next_nodes TEXT NOT NULL,
			interrupt TEXT,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(thread_id, seq)
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON thread_checkpoints(thread_id, seq)")
	return err
}

// AppendCheckpoint implements Store.
func (s *SQLiteStore[S]) AppendCheckpoint(ctx context.Context, threadID string, expectedSeq int, state S, nextNodes []string, interrupt *Interrupt) (int, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("marshal state: %w", err)
	}
	nextJSON, err := json.Marshal(nextNodes)
	if err != nil {
		return 0, fmt.Errorf("marshal next nodes: %w", err)
	}
	var interruptJSON sql.NullString
	if interrupt != nil {
		data, err := json.Marshal(interrupt)
		if err != nil {
			return 0, fmt.Errorf("marshal interrupt: %w", err)
		}
		interruptJSON = sql.NullString{String: string(data), Valid: true}
	}

	seq, err := s.tryAppend(ctx, threadID, expectedSeq, string(stateJSON), string(nextJSON), interruptJSON)
	if err != nil {
		if errors.Is(err, ErrSequenceConflict) {
			return 0, err
		}
		// A racing writer that slipped past the in-transaction check
		// hits the UNIQUE key; the thread advanced, so it is the same
		// condition.
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%v: %w", err, ErrSequenceConflict)
		}
		return 0, classify(err)
	}
	return seq, nil
}

func (s *SQLiteStore[S]) tryAppend(ctx context.Context, threadID string, expectedSeq int, stateJSON, nextJSON string, interruptJSON sql.NullString) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var latest int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM thread_checkpoints WHERE thread_id = ?",
		threadID).Scan(&latest)
	if err != nil {
		return 0, err
	}
	if latest != expectedSeq {
		return 0, fmt.Errorf("thread %s at seq %d, expected %d: %w",
			threadID, latest, expectedSeq, ErrSequenceConflict)
	}

	seq := expectedSeq + 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO thread_checkpoints (thread_id, seq, state, next_nodes, interrupt, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, threadID, seq, stateJSON, nextJSON, interruptJSON, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return seq, nil
}

// LatestCheckpoint implements Store.
func (s *SQLiteStore[S]) LatestCheckpoint(ctx context.Context, threadID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]
	if err := s.ensureOpen(); err != nil {
		return zero, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT seq, state, next_nodes, interrupt, created_at
		FROM thread_checkpoints
		WHERE thread_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, threadID)

	cp, err := scanCheckpoint[S](threadID, row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, classify(err)
	}
	return cp, nil
}

// ListCheckpoints implements Store. Results are newest first.
func (s *SQLiteStore[S]) ListCheckpoints(ctx context.Context, threadID string) ([]Checkpoint[S], error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, state, next_nodes, interrupt, created_at
		FROM thread_checkpoints
		WHERE thread_id = ?
		ORDER BY seq DESC
	`, threadID)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = rows.Close() }()

	var out []Checkpoint[S]
	for rows.Next() {
		cp, err := scanCheckpoint[S](threadID, rows.Scan)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Close closes the database. Double-close is a no-op.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore[S]) Ping(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore[S]) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *SQLiteStore[S]) ensureOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed: %w", ErrUnavailable)
	}
	return nil
}

// scanCheckpoint decodes one checkpoint row. The scan argument abstracts
// over sql.Row and sql.Rows.
func scanCheckpoint[S any](threadID string, scan func(dest ...any) error) (Checkpoint[S], error) {
	var (
		zero          Checkpoint[S]
		stateJSON     string
		nextJSON      string
		interruptJSON sql.NullString
		createdAtStr  string
		cp            Checkpoint[S]
	)

	if err := scan(&cp.Seq, &stateJSON, &nextJSON, &interruptJSON, &createdAtStr); err != nil {
		return zero, err
	}
	cp.ThreadID = threadID

	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return zero, fmt.Errorf("unmarshal state: %w", err)
	}
	if err := json.Unmarshal([]byte(nextJSON), &cp.NextNodes); err != nil {
		return zero, fmt.Errorf("unmarshal next nodes: %w", err)
	}
	if interruptJSON.Valid {
		var intr Interrupt
		if err := json.Unmarshal([]byte(interruptJSON.String), &intr); err != nil {
			return zero, fmt.Errorf("unmarshal interrupt: %w", err)
		}
		cp.Interrupt = &intr
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return zero, fmt.Errorf("parse created_at: %w", err)
	}
	cp.CreatedAt = createdAt
	return cp, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

// classify maps low-level driver failures to ErrUnavailable so the engine
// can report them as retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"database is locked", "unable to open", "i/o", "connection"} {
		if strings.Contains(msg, pattern) {
			return fmt.Errorf("%v: %w", err, ErrUnavailable)
		}
	}
	return err
}
