package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// ReservationRepo provides CRUD operations for the reservations
// collection.  Reservations are the confirmed/authoritative records;
// rows are only created via approval-promotion or direct creation by
// a privileged actor.  All timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// The partition column is named pool because PARTITION is a reserved
// word in MySQL.
const reservationCols = `id, date, pool, kind, slots, requester_name, requester_phone,
       requester_email, category, paid, amount_cents, note, status, created_at, session_id`

// scanReservation reads one reservation row.  The slots column holds
// a JSON array and may be NULL for full-range allocations.
func scanReservation(row interface{ Scan(...any) error }) (model.Reservation, error) {
	var r model.Reservation
	var slotsRaw sql.NullString
	var paid int
	err := row.Scan(
		&r.ID, &r.Date, &r.Partition, &r.Kind, &slotsRaw,
		&r.Requester.Name, &r.Requester.Phone, &r.Requester.Email,
		&r.Category, &paid, &r.AmountCents, &r.Note, &r.Status,
		&r.CreatedAt, &r.SessionID,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	r.Paid = paid != 0
	if slotsRaw.Valid && slotsRaw.String != "" {
		if err := json.Unmarshal([]byte(slotsRaw.String), &r.Slots); err != nil {
			return model.Reservation{}, err
		}
	}
	r.Date = r.Date.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

// marshalSlots encodes a slot set for storage; nil maps to NULL.
func marshalSlots(slots []int) (any, error) {
	if slots == nil {
		return nil, nil
	}
	b, err := json.Marshal(slots)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Create inserts a reservation and populates the generated ID on the
// provided record.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	return r.createExec(ctx, r.db, res)
}

// CreateTx is Create within the scope of an existing transaction.
// The caller must commit or roll back.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	return r.createExec(ctx, tx, res)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *ReservationRepo) createExec(ctx context.Context, db execer, res *model.Reservation) error {
	slots, err := marshalSlots(res.Slots)
	if err != nil {
		return err
	}
	const q = `INSERT INTO reservations
	           (date, pool, kind, slots, requester_name, requester_phone, requester_email,
	            category, paid, amount_cents, note, status, created_at, session_id)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, q,
		res.Date.UTC(), res.Partition, res.Kind, slots,
		res.Requester.Name, res.Requester.Phone, res.Requester.Email,
		res.Category, boolToInt(res.Paid), res.AmountCents, res.Note,
		res.Status, res.CreatedAt.UTC(), res.SessionID,
	)
	if err != nil {
		return translateMySQL(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetByID returns a single reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// Update rewrites all mutable columns of a reservation.  It returns
// ErrNotFound when no row with the given id exists.
func (r *ReservationRepo) Update(ctx context.Context, res model.Reservation) error {
	slots, err := marshalSlots(res.Slots)
	if err != nil {
		return err
	}
	const q = `UPDATE reservations SET
	           date = ?, pool = ?, kind = ?, slots = ?,
	           requester_name = ?, requester_phone = ?, requester_email = ?,
	           category = ?, paid = ?, amount_cents = ?, note = ?, status = ?, session_id = ?
	           WHERE id = ?`
	result, err := r.db.ExecContext(ctx, q,
		res.Date.UTC(), res.Partition, res.Kind, slots,
		res.Requester.Name, res.Requester.Phone, res.Requester.Email,
		res.Category, boolToInt(res.Paid), res.AmountCents, res.Note, res.Status,
		res.SessionID, res.ID,
	)
	if err != nil {
		return translateMySQL(err)
	}
	return requireRow(result)
}

// Delete removes a reservation.  Deleting an absent row returns
// ErrNotFound so callers can distinguish replayed deletes.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// ListAll returns every reservation ordered chronologically.  Used by
// the full refresh path of the sync engine.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations ORDER BY date, created_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// ListByDateRange returns reservations within [from, to] for one
// partition, ordered chronologically.
func (r *ReservationRepo) ListByDateRange(ctx context.Context, partition model.Partition, from, to time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations
	           WHERE pool = ? AND date BETWEEN ? AND ?
	           ORDER BY date, created_at`
	rows, err := r.db.QueryContext(ctx, q, partition, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// boolToInt stores Go booleans in TINYINT columns.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireRow converts a zero-rows-affected result into ErrNotFound.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// translateMySQL maps driver-level unique constraint violations
// (error 1062) onto ErrDuplicateEntry.
func translateMySQL(err error) error {
	var my *mysql.MySQLError
	if errors.As(err, &my) && my.Number == 1062 {
		return ErrDuplicateEntry
	}
	return err
}
