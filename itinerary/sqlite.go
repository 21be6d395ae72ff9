package itinerary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteGateway is a SQLite implementation of Gateway.
//
// Each itinerary is stored as one JSON document keyed by (user_id, id),
// with the concurrency token in its own column so the optimistic check
// happens in SQL: the UPDATE's WHERE clause matches both key and token,
// and zero affected rows distinguishes Conflict from NotFound. WAL mode
// keeps readers unblocked by the writer.
type SQLiteGateway struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteGateway opens (or creates) the itinerary database at path.
// Use ":memory:" for tests.
func NewSQLiteGateway(path string) (*SQLiteGateway, error) {
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
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	g := &SQLiteGateway{db: db}
	if err := g.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return g, nil
}

func (g *SQLiteGateway) createTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS itineraries (
			user_id TEXT NOT NULL,
			id TEXT NOT NULL,
			doc TEXT NOT NULL,
			token TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, id)
		)
	`
	_, err := g.db.ExecContext(ctx, schema)
	return err
}

// Create implements Gateway. A missing ID is filled with a uuid.
func (g *SQLiteGateway) Create(ctx context.Context, it Itinerary) (Itinerary, error) {
	if err := g.ensureOpen(); err != nil {
		return Itinerary{}, err
	}

	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	it.Token = uuid.NewString()
	it.CreatedAt = now
	it.UpdatedAt = now

	doc, err := json.Marshal(it)
	if err != nil {
		return Itinerary{}, fmt.Errorf("marshal itinerary: %w", err)
	}

	_, err = g.db.ExecContext(ctx, `
		INSERT INTO itineraries (user_id, id, doc, token, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, it.UserID, it.ID, string(doc), it.Token, now.Format(time.RFC3339Nano))
	if err != nil {
		return Itinerary{}, classifyGateway(err)
	}

	return it, nil
}

// Get implements Gateway.
func (g *SQLiteGateway) Get(ctx context.Context, userID, id string) (Itinerary, error) {
	if err := g.ensureOpen(); err != nil {
		return Itinerary{}, err
	}

	var doc string
	err := g.db.QueryRowContext(ctx,
		"SELECT doc FROM itineraries WHERE user_id = ? AND id = ?",
		userID, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Itinerary{}, fmt.Errorf("itinerary %s for user %s: %w", id, userID, ErrNotFound)
	}
	if err != nil {
		return Itinerary{}, classifyGateway(err)
	}

	var it Itinerary
	if err := json.Unmarshal([]byte(doc), &it); err != nil {
		return Itinerary{}, fmt.Errorf("unmarshal itinerary: %w", err)
	}
	return it, nil
}

// Update implements Gateway. The token check and the write are one SQL
// statement, so two racing updates with the same token cannot both
// succeed.
func (g *SQLiteGateway) Update(ctx context.Context, userID, id string, patch Patch, expectedToken string) (Itinerary, error) {
	if err := g.ensureOpen(); err != nil {
		return Itinerary{}, err
	}

	current, err := g.Get(ctx, userID, id)
	if err != nil {
		return Itinerary{}, err
	}
	if current.Token != expectedToken {
		return Itinerary{}, fmt.Errorf("itinerary %s: token %s is stale: %w", id, expectedToken, ErrConflict)
	}

	patch.apply(&current)
	current.Token = uuid.NewString()
	current.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(current)
	if err != nil {
		return Itinerary{}, fmt.Errorf("marshal itinerary: %w", err)
	}

	res, err := g.db.ExecContext(ctx, `
		UPDATE itineraries
		SET doc = ?, token = ?, updated_at = ?
		WHERE user_id = ? AND id = ? AND token = ?
	`, string(doc), current.Token, current.UpdatedAt.Format(time.RFC3339Nano),
		userID, id, expectedToken)
	if err != nil {
		return Itinerary{}, classifyGateway(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return Itinerary{}, classifyGateway(err)
	}
	if affected == 0 {
		// The row existed moments ago with the expected token, so a
		// concurrent update must have rotated it.
		return Itinerary{}, fmt.Errorf("itinerary %s: token %s is stale: %w", id, expectedToken, ErrConflict)
	}

	return current, nil
}

// Close closes the database. Double-close is a no-op.
func (g *SQLiteGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.db.Close()
}

func (g *SQLiteGateway) ensureOpen() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return fmt.Errorf("gateway is closed: %w", ErrUnavailable)
	}
	return nil
}

// classifyGateway maps low-level driver failures to ErrUnavailable so
// callers can treat them as retryable.
func classifyGateway(err error) error {
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
