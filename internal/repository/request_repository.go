package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// RequestRepo provides CRUD and filtered queries for the reservation
// request collection.  Requests carry a dedupe_key column with a
// unique index; two logically identical requests submitted inside the
// same dedup window hash to the same key, so the second insert is
// rejected by the datastore even when both passed the pre-check.
type RequestRepo struct {
	db *sql.DB
}

// NewRequestRepo returns a new RequestRepo bound to the given database.
func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{db: db} }

const requestCols = `id, tracking_token, date, pool, kind, slots, requester_name,
       requester_phone, requester_email, category, paid, amount_cents, note, status,
       created_at, session_id`

func scanRequest(row interface{ Scan(...any) error }) (model.Request, error) {
	var r model.Request
	var slotsRaw sql.NullString
	var paid int
	err := row.Scan(
		&r.ID, &r.TrackingToken, &r.Date, &r.Partition, &r.Kind, &slotsRaw,
		&r.Requester.Name, &r.Requester.Phone, &r.Requester.Email,
		&r.Category, &paid, &r.AmountCents, &r.Note, &r.Status,
		&r.CreatedAt, &r.SessionID,
	)
	if err != nil {
		return model.Request{}, err
	}
	r.Paid = paid != 0
	if slotsRaw.Valid && slotsRaw.String != "" {
		if err := json.Unmarshal([]byte(slotsRaw.String), &r.Slots); err != nil {
			return model.Request{}, err
		}
	}
	r.Date = r.Date.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

// Create inserts a request and populates the generated ID.  The
// dedupeKey is stored alongside; a unique-index violation surfaces as
// ErrDuplicateEntry for the deduplicator to resolve.
func (r *RequestRepo) Create(ctx context.Context, req *model.Request, dedupeKey string) error {
	slots, err := marshalSlots(req.Slots)
	if err != nil {
		return err
	}
	const q = `INSERT INTO requests
	           (tracking_token, date, pool, kind, slots, requester_name, requester_phone,
	            requester_email, category, paid, amount_cents, note, status, created_at,
	            session_id, dedupe_key)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		req.TrackingToken, req.Date.UTC(), req.Partition, req.Kind, slots,
		req.Requester.Name, req.Requester.Phone, req.Requester.Email,
		req.Category, boolToInt(req.Paid), req.AmountCents, req.Note,
		req.Status, req.CreatedAt.UTC(), req.SessionID, dedupeKey,
	)
	if err != nil {
		return translateMySQL(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = uint64(id)
	return nil
}

// GetByID returns a single request or ErrNotFound.
func (r *RequestRepo) GetByID(ctx context.Context, id uint64) (model.Request, error) {
	const q = `SELECT ` + requestCols + ` FROM requests WHERE id = ?`
	req, err := scanRequest(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Request{}, ErrNotFound
	}
	return req, err
}

// GetByDedupeKey returns the request carrying the given dedupe key.
// Used after a lost create race to fetch the winning record.
func (r *RequestRepo) GetByDedupeKey(ctx context.Context, key string) (model.Request, error) {
	const q = `SELECT ` + requestCols + ` FROM requests WHERE dedupe_key = ?`
	req, err := scanRequest(r.db.QueryRowContext(ctx, q, key))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Request{}, ErrNotFound
	}
	return req, err
}

// Update rewrites the mutable columns of a request.
func (r *RequestRepo) Update(ctx context.Context, req model.Request) error {
	slots, err := marshalSlots(req.Slots)
	if err != nil {
		return err
	}
	const q = `UPDATE requests SET
	           date = ?, pool = ?, kind = ?, slots = ?,
	           requester_name = ?, requester_phone = ?, requester_email = ?,
	           category = ?, paid = ?, amount_cents = ?, note = ?, status = ?
	           WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q,
		req.Date.UTC(), req.Partition, req.Kind, slots,
		req.Requester.Name, req.Requester.Phone, req.Requester.Email,
		req.Category, boolToInt(req.Paid), req.AmountCents, req.Note, req.Status,
		req.ID,
	)
	if err != nil {
		return translateMySQL(err)
	}
	return requireRow(result)
}

// TransitionStatus atomically moves a request from one status to
// another.  The WHERE clause guards the transition: when zero rows
// are affected the request either does not exist or is no longer in
// the from status, and the current row is fetched to produce the
// precise sentinel (ErrAlreadyApproved, ErrAlreadyRejected,
// ErrNotFound).
func (r *RequestRepo) TransitionStatus(ctx context.Context, id uint64, from, to model.RequestStatus) error {
	const q = `UPDATE requests SET status = ? WHERE id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch current.Status {
	case model.RequestApproved, model.RequestConfirmed:
		return ErrAlreadyApproved
	case model.RequestRejected:
		return ErrAlreadyRejected
	default:
		return ErrNotFound
	}
}

// Delete removes a request row.
func (r *RequestRepo) Delete(ctx context.Context, id uint64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// DeleteTx is Delete within an existing transaction.
func (r *RequestRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// ListAll returns every request ordered chronologically.  Used by the
// full refresh path.
func (r *RequestRepo) ListAll(ctx context.Context) ([]model.Request, error) {
	const q = `SELECT ` + requestCols + ` FROM requests ORDER BY date, created_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// FindCandidates returns requests that could be duplicates of a new
// submission: same requester identity (email or name), same date and
// partition, status pending or approved, created after the probe's
// Since bound.  The finer exact-duplicate checks (allocation kind,
// category, slot overlap, tighter window) run in the deduplicator.
func (r *RequestRepo) FindCandidates(ctx context.Context, probe model.DuplicateProbe) ([]model.Request, error) {
	const q = `SELECT ` + requestCols + ` FROM requests
	           WHERE (requester_email = ? OR requester_name = ?)
	             AND date = ? AND pool = ?
	             AND status IN (?, ?)
	             AND created_at >= ?
	           ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q,
		probe.Email, probe.Name, probe.Date.UTC(), probe.Partition,
		model.RequestPending, model.RequestApproved, probe.Since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// CountPending returns the number of requests with status PENDING.
// The count aggregator uses it for its from-scratch recomputation.
func (r *RequestRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE status = ?`, model.RequestPending).Scan(&n)
	return n, err
}
