package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// SpecialDateRepo provides access to the calendar-override
// collection.  The collection is small and low traffic, so reads
// always load it wholesale.
type SpecialDateRepo struct {
	db *sql.DB
}

// NewSpecialDateRepo returns a new SpecialDateRepo bound to the given database.
func NewSpecialDateRepo(db *sql.DB) *SpecialDateRepo { return &SpecialDateRepo{db: db} }

const specialDateCols = `id, date, label, closed, open_slot, close_slot, created_at`

func scanSpecialDate(row interface{ Scan(...any) error }) (model.SpecialDate, error) {
	var s model.SpecialDate
	var closed int
	err := row.Scan(&s.ID, &s.Date, &s.Label, &closed, &s.OpenSlot, &s.CloseSlot, &s.CreatedAt)
	if err != nil {
		return model.SpecialDate{}, err
	}
	s.Closed = closed != 0
	s.Date = s.Date.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

// ListAll returns every special date ordered by date.
func (r *SpecialDateRepo) ListAll(ctx context.Context) ([]model.SpecialDate, error) {
	const q = `SELECT ` + specialDateCols + ` FROM special_dates ORDER BY date`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.SpecialDate, 0)
	for rows.Next() {
		s, err := scanSpecialDate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID returns one special date or ErrNotFound.
func (r *SpecialDateRepo) GetByID(ctx context.Context, id uint64) (model.SpecialDate, error) {
	const q = `SELECT ` + specialDateCols + ` FROM special_dates WHERE id = ?`
	s, err := scanSpecialDate(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SpecialDate{}, ErrNotFound
	}
	return s, err
}
