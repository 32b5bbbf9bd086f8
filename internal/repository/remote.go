package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// RemoteStore bundles the collection repositories into the single
// remote-datastore surface the sync engine depends on.  The engine
// only sees this adapter (through its Remote interface), never the
// individual repositories, so tests can substitute an in-memory fake.
type RemoteStore struct {
	Reservations *ReservationRepo
	Requests     *RequestRepo
	SpecialDates *SpecialDateRepo
	Intents      *IntentRepo
}

// NewRemoteStore wires the repositories over one database handle.
func NewRemoteStore(db *sql.DB) *RemoteStore {
	return &RemoteStore{
		Reservations: NewReservationRepo(db),
		Requests:     NewRequestRepo(db),
		SpecialDates: NewSpecialDateRepo(db),
		Intents:      NewIntentRepo(db),
	}
}

// FetchAll loads the three collections wholesale for a full refresh.
func (s *RemoteStore) FetchAll(ctx context.Context) ([]model.Reservation, []model.Request, []model.SpecialDate, error) {
	reservations, err := s.Reservations.ListAll(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	requests, err := s.Requests.ListAll(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	specials, err := s.SpecialDates.ListAll(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return reservations, requests, specials, nil
}

func (s *RemoteStore) CreateReservation(ctx context.Context, res *model.Reservation) error {
	return s.Reservations.Create(ctx, res)
}

func (s *RemoteStore) GetReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	return s.Reservations.GetByID(ctx, id)
}

func (s *RemoteStore) UpdateReservation(ctx context.Context, res model.Reservation) error {
	return s.Reservations.Update(ctx, res)
}

func (s *RemoteStore) DeleteReservation(ctx context.Context, id uint64) error {
	return s.Reservations.Delete(ctx, id)
}

func (s *RemoteStore) CreateRequest(ctx context.Context, req *model.Request, dedupeKey string) error {
	return s.Requests.Create(ctx, req, dedupeKey)
}

func (s *RemoteStore) GetRequest(ctx context.Context, id uint64) (model.Request, error) {
	return s.Requests.GetByID(ctx, id)
}

func (s *RemoteStore) GetRequestByDedupeKey(ctx context.Context, key string) (model.Request, error) {
	return s.Requests.GetByDedupeKey(ctx, key)
}

func (s *RemoteStore) UpdateRequest(ctx context.Context, req model.Request) error {
	return s.Requests.Update(ctx, req)
}

func (s *RemoteStore) DeleteRequest(ctx context.Context, id uint64) error {
	return s.Requests.Delete(ctx, id)
}

func (s *RemoteStore) TransitionRequest(ctx context.Context, id uint64, from, to model.RequestStatus) error {
	return s.Requests.TransitionStatus(ctx, id, from, to)
}

func (s *RemoteStore) FindCandidates(ctx context.Context, probe model.DuplicateProbe) ([]model.Request, error) {
	return s.Requests.FindCandidates(ctx, probe)
}

func (s *RemoteStore) CountPendingRequests(ctx context.Context) (int, error) {
	return s.Requests.CountPending(ctx)
}

func (s *RemoteStore) BeginPromotion(ctx context.Context, req model.Request) (uint64, error) {
	return s.Intents.Begin(ctx, req)
}

func (s *RemoteStore) SetPromotionReservation(ctx context.Context, intentID, reservationID uint64) error {
	return s.Intents.SetReservation(ctx, intentID, reservationID)
}

func (s *RemoteStore) CompletePromotion(ctx context.Context, intentID uint64) error {
	return s.Intents.Complete(ctx, intentID)
}

func (s *RemoteStore) OpenPromotions(ctx context.Context, olderThan time.Duration) ([]model.PromotionIntent, error) {
	return s.Intents.ListOpen(ctx, olderThan)
}
