package model

import "time"

// SpecialDate is a calendar override for a single day: a closure or a
// deviation from the regular opening range.  The collection is low
// traffic; the reconciler replaces entries wholesale on change.
type SpecialDate struct {
	ID        uint64    `json:"id"`
	Date      time.Time `json:"date"`
	Label     string    `json:"label"`
	Closed    bool      `json:"closed"`
	OpenSlot  int       `json:"open_slot"`  // first bookable slot when not closed
	CloseSlot int       `json:"close_slot"` // last bookable slot when not closed
	CreatedAt time.Time `json:"created_at"`
}
