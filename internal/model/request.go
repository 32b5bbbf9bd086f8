package model

import "time"

// RequestStatus is the state of a reservation request.  Transitions
// are monotonic: PENDING may move to APPROVED or REJECTED; APPROVED
// moves to CONFIRMED via the payment-paid marker; REJECTED and
// CONFIRMED are terminal.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestConfirmed RequestStatus = "CONFIRMED"
)

// Terminal reports whether no further transition is allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestConfirmed
}

// Request is a reservation proposal awaiting a privileged decision.
// It carries the same booking shape as Reservation plus a
// human-readable tracking token handed back to the submitter.  On
// approval the request is promoted into a Reservation and removed
// from the request collection; the two collections are disjoint by
// invariant.
type Request struct {
	ID            uint64         `json:"id"`
	TrackingToken string         `json:"tracking_token"`
	Date          time.Time      `json:"date"`
	Partition     Partition      `json:"partition"`
	Kind          AllocationKind `json:"kind"`
	Slots         []int          `json:"slots,omitempty"`
	Requester     Requester      `json:"requester"`
	Category      string         `json:"category"`
	Paid          bool           `json:"paid"`
	AmountCents   uint32         `json:"amount_cents"`
	Note          string         `json:"note"`
	Status        RequestStatus  `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	SessionID     string         `json:"session_id"`
}

// DuplicateProbe parametrizes the remote query for duplicate
// candidates of a new submission: identity matched by Email OR Name,
// exact date and partition, status pending or approved, created at or
// after Since.
type DuplicateProbe struct {
	Name      string
	Email     string
	Date      time.Time
	Partition Partition
	Since     time.Time
}

// Clone returns a deep copy of the request.
func (r Request) Clone() Request {
	out := r
	if r.Slots != nil {
		out.Slots = append([]int(nil), r.Slots...)
	}
	return out
}

// ToReservation builds the reservation a request is promoted into on
// approval.  The server assigns a fresh reservation ID; everything
// else carries over and the status starts as APPROVED.
func (r Request) ToReservation() Reservation {
	return Reservation{
		Date:        r.Date,
		Partition:   r.Partition,
		Kind:        r.Kind,
		Slots:       append([]int(nil), r.Slots...),
		Requester:   r.Requester,
		Category:    r.Category,
		Paid:        r.Paid,
		AmountCents: r.AmountCents,
		Note:        r.Note,
		Status:      ReservationApproved,
		CreatedAt:   r.CreatedAt,
		SessionID:   r.SessionID,
	}
}
