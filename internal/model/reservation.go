package model

import "time"

// Partition identifies one of the two independent resource pools
// managed by the service.  Every reservation and request belongs to
// exactly one partition; the in-memory state keeps one ordered
// collection per partition.
type Partition string

const (
	PartitionA Partition = "A" // first resource pool
	PartitionB Partition = "B" // second resource pool
)

// Valid reports whether p is one of the two known partitions.
func (p Partition) Valid() bool { return p == PartitionA || p == PartitionB }

// AllocationKind describes how a reservation occupies its resource on
// the booked date: either the whole available range for the day, or a
// discrete set of slots.
type AllocationKind string

const (
	AllocationFullRange AllocationKind = "FULL_RANGE" // whole-day allocation
	AllocationSlots     AllocationKind = "SLOTS"      // discrete slot set
)

// ReservationStatus is the state of a confirmed/authoritative
// reservation record.  A reservation starts APPROVED (created by a
// privileged actor or promoted from a request) and becomes CONFIRMED
// when its payment status is set to paid.
type ReservationStatus string

const (
	ReservationApproved  ReservationStatus = "APPROVED"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
)

// Requester identifies the person a reservation was made for.  The
// deduplicator matches candidates on Email or Name.
type Requester struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// Reservation is the confirmed, authoritative booking record.
//
// Fields:
//  ID          – server-assigned unique identifier.
//  Date        – booked calendar day (UTC midnight).
//  Partition   – resource pool the booking belongs to.
//  Kind        – full-range or discrete-slot allocation.
//  Slots       – slot indices when Kind is AllocationSlots; nil otherwise.
//  Requester   – who the booking is for.
//  Category    – free-form category label.
//  Paid        – payment status.
//  AmountCents – payment amount in cents.
//  Note        – free-text note.
//  Status      – APPROVED or CONFIRMED.
//  CreatedAt   – creation timestamp (UTC).
//  SessionID   – identifier of the client session that created it.
type Reservation struct {
	ID          uint64            `json:"id"`
	Date        time.Time         `json:"date"`
	Partition   Partition         `json:"partition"`
	Kind        AllocationKind    `json:"kind"`
	Slots       []int             `json:"slots,omitempty"`
	Requester   Requester         `json:"requester"`
	Category    string            `json:"category"`
	Paid        bool              `json:"paid"`
	AmountCents uint32            `json:"amount_cents"`
	Note        string            `json:"note"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	SessionID   string            `json:"session_id"`
}

// Clone returns a deep copy of the reservation.  Snapshots handed out
// to concurrent readers must never alias mutable slices.
func (r Reservation) Clone() Reservation {
	out := r
	if r.Slots != nil {
		out.Slots = append([]int(nil), r.Slots...)
	}
	return out
}

// SlotsOverlap reports whether two slot sets share at least one slot.
// A full-range allocation overlaps everything on the same day.
func SlotsOverlap(aKind AllocationKind, a []int, bKind AllocationKind, b []int) bool {
	if aKind == AllocationFullRange || bKind == AllocationFullRange {
		return true
	}
	seen := make(map[int]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; ok {
			return true
		}
	}
	return false
}
