package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/venue-reservation-sync/internal/feed"
	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// errDropEvent marks notifications that fail validation.  They are
// logged and dropped at the ingestion boundary; nothing malformed
// ever reaches the reconciler.
var errDropEvent = errors.New("drop change notification")

// Ingestor normalizes raw change notifications into typed change
// events and screens them before they reach the reconciler:
// malformed events are dropped, duplicate insert deliveries are
// skipped against the current state, and request status transitions
// are rerouted to removals (a transitioned request now lives, or is
// about to live, in the reservation collection).
type Ingestor struct {
	state *State
}

// NewIngestor returns an Ingestor validating against the given state.
func NewIngestor(state *State) *Ingestor {
	return &Ingestor{state: state}
}

// Normalize converts a wire notification into a validated ChangeEvent.
// The boolean is false when the event must be dropped; the reason has
// already been logged.  Normalize never panics on malformed input.
func (in *Ingestor) Normalize(n feed.Notification) (model.ChangeEvent, bool) {
	ev := model.ChangeEvent{
		Collection: model.Collection(n.Collection),
		Kind:       model.EventKind(n.Kind),
		ReceivedAt: time.Now().UTC(),
	}
	switch ev.Kind {
	case model.EventInsert, model.EventUpdate, model.EventDelete:
	default:
		log.Printf("sync: drop notification with unknown kind %q", n.Kind)
		return model.ChangeEvent{}, false
	}

	var err error
	switch ev.Collection {
	case model.CollectionReservations:
		err = in.normalizeReservation(&ev, n)
	case model.CollectionRequests:
		err = in.normalizeRequest(&ev, n)
	case model.CollectionSpecialDates:
		err = in.normalizeSpecialDate(&ev, n)
	default:
		log.Printf("sync: drop notification for unknown collection %q", n.Collection)
		return model.ChangeEvent{}, false
	}
	if err != nil {
		if !errors.Is(err, errDropEvent) {
			log.Printf("sync: drop %s/%s notification: %v", n.Collection, n.Kind, err)
		}
		return model.ChangeEvent{}, false
	}
	return ev, true
}

func (in *Ingestor) normalizeReservation(ev *model.ChangeEvent, n feed.Notification) error {
	if n.Old != nil {
		old, err := decodeReservation(n.Old)
		if err != nil {
			return err
		}
		ev.OldReservation = &old
	}
	if n.New != nil {
		rec, err := decodeReservation(n.New)
		if err != nil {
			return err
		}
		ev.NewReservation = &rec
	}
	switch ev.Kind {
	case model.EventInsert, model.EventUpdate:
		// Required key fields: id and partition.  Reject rather than
		// hand the reconciler a record it cannot place.
		rec := ev.NewReservation
		if rec == nil || rec.ID == 0 || !rec.Partition.Valid() {
			log.Printf("sync: drop reservation %s missing id or partition", ev.Kind)
			return errDropEvent
		}
		// Duplicate delivery guard: skip an insert whose id is
		// already present in the target partition.
		if ev.Kind == model.EventInsert && in.state.HasReservation(rec.Partition, rec.ID) {
			return errDropEvent
		}
	case model.EventDelete:
		if ev.EntityID() == 0 {
			log.Printf("sync: drop reservation delete without id")
			return errDropEvent
		}
	}
	return nil
}

func (in *Ingestor) normalizeRequest(ev *model.ChangeEvent, n feed.Notification) error {
	if n.Old != nil {
		old, err := decodeRequest(n.Old)
		if err != nil {
			return err
		}
		ev.OldRequest = &old
	}
	if n.New != nil {
		rec, err := decodeRequest(n.New)
		if err != nil {
			return err
		}
		ev.NewRequest = &rec
	}
	switch ev.Kind {
	case model.EventInsert:
		rec := ev.NewRequest
		if rec == nil || rec.ID == 0 || !rec.Partition.Valid() {
			log.Printf("sync: drop request insert missing id or partition")
			return errDropEvent
		}
		if in.state.HasRequest(rec.Partition, rec.ID) {
			return errDropEvent
		}
	case model.EventUpdate:
		rec := ev.NewRequest
		if rec == nil || rec.ID == 0 || !rec.Partition.Valid() {
			log.Printf("sync: drop request update missing id or partition")
			return errDropEvent
		}
		// A pending request moving to approved or rejected is a
		// status transition, not an in-place edit: the entity is
		// leaving the request collection (approval promotes it into
		// the reservations), so route it to removal.
		if isStatusTransition(ev.OldRequest, rec) {
			ev.Kind = model.EventDelete
		}
	case model.EventDelete:
		if ev.EntityID() == 0 {
			log.Printf("sync: drop request delete without id")
			return errDropEvent
		}
	}
	return nil
}

func (in *Ingestor) normalizeSpecialDate(ev *model.ChangeEvent, n feed.Notification) error {
	if n.Old != nil {
		var old model.SpecialDate
		if err := json.Unmarshal(n.Old, &old); err != nil {
			return fmt.Errorf("decode special date: %w", err)
		}
		ev.OldSpecial = &old
	}
	if n.New != nil {
		var rec model.SpecialDate
		if err := json.Unmarshal(n.New, &rec); err != nil {
			return fmt.Errorf("decode special date: %w", err)
		}
		ev.NewSpecial = &rec
	}
	if ev.EntityID() == 0 {
		log.Printf("sync: drop special date %s without id", ev.Kind)
		return errDropEvent
	}
	return nil
}

// isStatusTransition reports whether an update moves a request out of
// pending into approved or rejected.  When the old copy is absent the
// new status alone decides, because a transitioned record must not be
// re-inserted either way.
func isStatusTransition(old, new_ *model.Request) bool {
	if old != nil && old.Status != model.RequestPending {
		return false
	}
	return new_.Status == model.RequestApproved || new_.Status == model.RequestRejected
}

func decodeReservation(raw json.RawMessage) (model.Reservation, error) {
	var r model.Reservation
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.Reservation{}, fmt.Errorf("decode reservation: %w", err)
	}
	return r, nil
}

func decodeRequest(raw json.RawMessage) (model.Request, error) {
	var r model.Request
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.Request{}, fmt.Errorf("decode request: %w", err)
	}
	return r, nil
}
