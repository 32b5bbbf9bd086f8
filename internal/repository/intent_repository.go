package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// IntentRepo persists promotion intents, the saga records written
// around the two-step approve promotion.  An intent is open until
// Complete marks it done; the sweep lists open intents older than a
// grace period and finishes whatever step is missing.
type IntentRepo struct {
	db *sql.DB
}

// NewIntentRepo returns a new IntentRepo bound to the given database.
func NewIntentRepo(db *sql.DB) *IntentRepo { return &IntentRepo{db: db} }

// Begin writes an open intent carrying a snapshot of the request
// about to be promoted and returns the intent id.  The request_id
// column has a unique index over open intents, so two concurrent
// approvals of the same request collide here instead of both
// promoting.
func (r *IntentRepo) Begin(ctx context.Context, req model.Request) (uint64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}
	const q = `INSERT INTO promotion_intents (request_id, request_body, state, created_at)
	           VALUES (?, ?, 'OPEN', ?)`
	result, err := r.db.ExecContext(ctx, q, req.ID, body, time.Now().UTC())
	if err != nil {
		return 0, translateMySQL(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// SetReservation records the id of the reservation the intent
// inserted.  Called between the two promotion steps so the sweep
// knows the insert already happened.
func (r *IntentRepo) SetReservation(ctx context.Context, intentID, reservationID uint64) error {
	const q = `UPDATE promotion_intents SET reservation_id = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q, reservationID, intentID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Complete marks an intent done.
func (r *IntentRepo) Complete(ctx context.Context, intentID uint64) error {
	const q = `UPDATE promotion_intents SET state = 'DONE', completed_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q, time.Now().UTC(), intentID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// ListOpen returns intents still open after the given grace period.
// Fresh intents are excluded so the sweep does not race an approval
// that is simply still in flight.
func (r *IntentRepo) ListOpen(ctx context.Context, olderThan time.Duration) ([]model.PromotionIntent, error) {
	const q = `SELECT id, request_id, request_body, COALESCE(reservation_id, 0), created_at
	           FROM promotion_intents
	           WHERE state = 'OPEN' AND created_at <= ?
	           ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.PromotionIntent, 0)
	for rows.Next() {
		var it model.PromotionIntent
		var body []byte
		if err := rows.Scan(&it.ID, &it.RequestID, &body, &it.ReservationID, &it.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &it.Request); err != nil {
			return nil, err
		}
		it.CreatedAt = it.CreatedAt.UTC()
		out = append(out, it)
	}
	return out, rows.Err()
}
