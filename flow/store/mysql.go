package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store[S].
//
// Designed for shared deployments: multiple processes can serve threads
// against the same database. Suspended threads survive restarts, which is
// the normal case for this workload (a pending approval can sit for days).
//
// Per-thread append atomicity comes from the UNIQUE(thread_id, seq) key:
// the expected sequence is checked and the row inserted in one
// transaction, and a duplicate-key failure (two workers racing on the
// same thread) is reported as a sequence conflict, never as a second
// append.
//
// Security: never hardcode credentials in the DSN; read it from the
// environment.
//
// Type parameter S is the state type to persist (must be JSON-serializable).
type MySQLStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore opens a MySQL-backed checkpoint store.
//
// DSN format: user:password@tcp(host:3306)/dbname?parseTime=true
//
// The store configures connection pooling, verifies connectivity, and
// creates the schema if missing.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %v: %w", err, ErrUnavailable)
	}

	s := &MySQLStore[S]{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *MySQLStore[S]) createTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS thread_checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			thread_id VARCHAR(255) NOT NULL,
			seq INT NOT NULL,
			state JSON NOT NULL,
			next_nodes JSON NOT NULL,
			` + "`interrupt`" + ` JSON NULL,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_thread (thread_id),
			UNIQUE KEY unique_thread_seq (thread_id, seq)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// AppendCheckpoint implements Store.
func (s *MySQLStore[S]) AppendCheckpoint(ctx context.Context, threadID string, expectedSeq int, state S, nextNodes []string, interrupt *Interrupt) (int, error) {
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
		// A racing worker that slipped past the in-transaction check
		// hits the UNIQUE key; the thread advanced, so it is the same
		// condition.
		if isDuplicateKey(err) {
			return 0, fmt.Errorf("%v: %w", err, ErrSequenceConflict)
		}
		return 0, classifyMySQL(err)
	}
	return seq, nil
}

func (s *MySQLStore[S]) tryAppend(ctx context.Context, threadID string, expectedSeq int, stateJSON, nextJSON string, interruptJSON sql.NullString) (int, error) {
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
		INSERT INTO thread_checkpoints (thread_id, seq, state, next_nodes, `+"`interrupt`"+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, threadID, seq, stateJSON, nextJSON, interruptJSON, time.Now().UTC().Format("2006-01-02 15:04:05.000000"))
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return seq, nil
}

// LatestCheckpoint implements Store.
func (s *MySQLStore[S]) LatestCheckpoint(ctx context.Context, threadID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]
	if err := s.ensureOpen(); err != nil {
		return zero, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT seq, state, next_nodes, `+"`interrupt`"+`, created_at
		FROM thread_checkpoints
		WHERE thread_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, threadID)

	cp, err := scanMySQLCheckpoint[S](threadID, row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, classifyMySQL(err)
	}
	return cp, nil
}

// ListCheckpoints implements Store. Results are newest first.
func (s *MySQLStore[S]) ListCheckpoints(ctx context.Context, threadID string) ([]Checkpoint[S], error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, state, next_nodes, `+"`interrupt`"+`, created_at
		FROM thread_checkpoints
		WHERE thread_id = ?
		ORDER BY seq DESC
	`, threadID)
	if err != nil {
		return nil, classifyMySQL(err)
	}
	defer func() { _ = rows.Close() }()

	var out []Checkpoint[S]
	for rows.Next() {
		cp, err := scanMySQLCheckpoint[S](threadID, rows.Scan)
		if err != nil {
			return nil, classifyMySQL(err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyMySQL(err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Close closes the database. Double-close is a no-op.
func (s *MySQLStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *MySQLStore[S]) Ping(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%v: %w", err, ErrUnavailable)
	}
	return nil
}

func (s *MySQLStore[S]) ensureOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed: %w", ErrUnavailable)
	}
	return nil
}

func scanMySQLCheckpoint[S any](threadID string, scan func(dest ...any) error) (Checkpoint[S], error) {
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
	createdAt, err := time.Parse("2006-01-02 15:04:05.000000", createdAtStr)
	if err != nil {
		// Tolerate drivers configured with parseTime-style formats.
		createdAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return zero, fmt.Errorf("parse created_at: %w", err)
		}
	}
	cp.CreatedAt = createdAt
	return cp, nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062 // ER_DUP_ENTRY
	}
	return false
}

// classifyMySQL maps connectivity failures to ErrUnavailable.
func classifyMySQL(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn) {
		return fmt.Errorf("%v: %w", err, ErrUnavailable)
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1040, 1042, 1043, 1053, 2002, 2003, 2006, 2013:
			return fmt.Errorf("%v: %w", err, ErrUnavailable)
		}
	}
	return err
}
