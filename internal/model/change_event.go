package model

import "time"

// Collection names the three remote collections the change feed
// covers.
type Collection string

const (
	CollectionReservations Collection = "reservations"
	CollectionRequests     Collection = "requests"
	CollectionSpecialDates Collection = "special_dates"
)

// EventKind is the mutation kind carried by a change notification.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// ChangeEvent is a normalized remote change notification.  Exactly
// one pair of old/new fields is populated, matching Collection.
// Events are transient: they are applied to the in-memory state and
// never persisted.
type ChangeEvent struct {
	Collection Collection
	Kind       EventKind
	ReceivedAt time.Time

	OldReservation *Reservation
	NewReservation *Reservation
	OldRequest     *Request
	NewRequest     *Request
	OldSpecial     *SpecialDate
	NewSpecial     *SpecialDate
}

// EntityID returns the id of the record the event refers to,
// preferring the new copy and falling back to the old one for
// deletes.
func (e ChangeEvent) EntityID() uint64 {
	switch e.Collection {
	case CollectionReservations:
		if e.NewReservation != nil {
			return e.NewReservation.ID
		}
		if e.OldReservation != nil {
			return e.OldReservation.ID
		}
	case CollectionRequests:
		if e.NewRequest != nil {
			return e.NewRequest.ID
		}
		if e.OldRequest != nil {
			return e.OldRequest.ID
		}
	case CollectionSpecialDates:
		if e.NewSpecial != nil {
			return e.NewSpecial.ID
		}
		if e.OldSpecial != nil {
			return e.OldSpecial.ID
		}
	}
	return 0
}
