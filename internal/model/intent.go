package model

import "time"

// PromotionIntent is the durable record written before a request is
// promoted into a reservation.  The promotion is two non-transactional
// remote mutations (insert reservation, delete request); the intent
// makes a mid-operation crash recoverable: a periodic sweep finds
// open intents and completes or compensates them.
//
// ReservationID is zero until the reservation insert succeeded.
type PromotionIntent struct {
	ID            uint64    `json:"id"`
	RequestID     uint64    `json:"request_id"`
	Request       Request   `json:"request"`
	ReservationID uint64    `json:"reservation_id"`
	CreatedAt     time.Time `json:"created_at"`
}
