// Package outbox implements the durable local store owned by the
// sync engine: an append log of pending operations awaiting remote
// application, and the single snapshot record that lets a restarted
// client come up with its last known state before the first refresh.
//
// The store is a SQLite file in WAL mode.  Every enqueue commits
// before returning, so queued mutations survive restarts; an
// operation leaves the log only when it was applied remotely or the
// caller explicitly discards the queue.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// Store is the SQLite-backed offline queue and snapshot store.
type Store struct {
	db *sql.DB
}

// Open creates or opens the outbox database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("outbox: create directory: %w", err)
		}
	}
	// WAL keeps readers unblocked during enqueue; the busy timeout
	// covers drain and enqueue briefly contending for the write lock.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("outbox: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("outbox: connect: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; the engine serializes access anyway
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS pending_operations (
		id              TEXT PRIMARY KEY,
		kind            TEXT NOT NULL,
		collection      TEXT NOT NULL,
		payload         BLOB NOT NULL,
		enqueued_at     TIMESTAMP NOT NULL,
		attempts        INTEGER NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS snapshot (
		id        TEXT PRIMARY KEY,
		body      BLOB NOT NULL,
		last_sync TIMESTAMP NOT NULL
	);`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("outbox: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Enqueue persists a pending operation.  The operation is on disk
// when Enqueue returns; a crash immediately after loses nothing.
func (s *Store) Enqueue(ctx context.Context, op model.PendingOperation) error {
	if op.NextAttemptAt.IsZero() {
		op.NextAttemptAt = op.EnqueuedAt
	}
	const q = `INSERT INTO pending_operations
	           (id, kind, collection, payload, enqueued_at, attempts, next_attempt_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		op.ID, op.Kind, op.Collection, []byte(op.Payload),
		op.EnqueuedAt.UTC(), op.Attempts, op.NextAttemptAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("outbox: enqueue %s: %w", op.ID, err)
	}
	return nil
}

// List returns all pending operations in enqueue order.  Mostly for
// inspection and tests; Drain is the operational path.
func (s *Store) List(ctx context.Context) ([]model.PendingOperation, error) {
	const q = `SELECT id, kind, collection, payload, enqueued_at, attempts, next_attempt_at
	           FROM pending_operations ORDER BY enqueued_at, rowid`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PendingOperation, 0)
	for rows.Next() {
		var op model.PendingOperation
		var payload []byte
		if err := rows.Scan(&op.ID, &op.Kind, &op.Collection, &payload,
			&op.EnqueuedAt, &op.Attempts, &op.NextAttemptAt); err != nil {
			return nil, err
		}
		op.Payload = json.RawMessage(payload)
		out = append(out, op)
	}
	return out, rows.Err()
}

// Len returns the number of queued operations.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_operations`).Scan(&n)
	return n, err
}

// Clear discards the whole queue.  This is the only terminal
// operation besides successful remote application.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations`)
	return err
}

func (s *Store) remove(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE id = ?`, id)
	return err
}

func (s *Store) recordFailure(ctx context.Context, id string, attempts int, next time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_operations SET attempts = ?, next_attempt_at = ? WHERE id = ?`,
		attempts, next.UTC(), id)
	return err
}

// snapshotBody is the serialized form of the snapshot record.
type snapshotBody struct {
	Reservations []model.Reservation `json:"reservations"`
	Requests     []model.Request     `json:"requests"`
	SpecialDates []model.SpecialDate `json:"special_dates"`
}

// SaveSnapshot persists the last known authoritative state under the
// fixed id "main", replacing any previous snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, reservations []model.Reservation, requests []model.Request, specials []model.SpecialDate, lastSync time.Time) error {
	body, err := json.Marshal(snapshotBody{
		Reservations: reservations,
		Requests:     requests,
		SpecialDates: specials,
	})
	if err != nil {
		return fmt.Errorf("outbox: marshal snapshot: %w", err)
	}
	const q = `INSERT INTO snapshot (id, body, last_sync) VALUES ('main', ?, ?)
	           ON CONFLICT(id) DO UPDATE SET body = excluded.body, last_sync = excluded.last_sync`
	if _, err := s.db.ExecContext(ctx, q, body, lastSync.UTC()); err != nil {
		return fmt.Errorf("outbox: save snapshot: %w", err)
	}
	return nil
}

// ErrNoSnapshot is returned by LoadSnapshot when no snapshot was ever
// saved (first run).
var ErrNoSnapshot = errors.New("outbox: no snapshot")

// LoadSnapshot returns the stored state and its last sync timestamp.
func (s *Store) LoadSnapshot(ctx context.Context) ([]model.Reservation, []model.Request, []model.SpecialDate, time.Time, error) {
	var raw []byte
	var lastSync time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT body, last_sync FROM snapshot WHERE id = 'main'`).Scan(&raw, &lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, nil, nil, time.Time{}, err
	}
	var body snapshotBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, nil, nil, time.Time{}, fmt.Errorf("outbox: decode snapshot: %w", err)
	}
	return body.Reservations, body.Requests, body.SpecialDates, lastSync.UTC(), nil
}
