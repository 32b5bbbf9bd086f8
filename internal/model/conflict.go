package model

// ResolutionStrategy is the policy used to merge divergent local and
// remote copies of the same entity.
type ResolutionStrategy string

const (
	// ResolveRemoteWins takes the remote copy wholesale.  Default.
	ResolveRemoteWins ResolutionStrategy = "remote_wins"
	// ResolveLocalWins takes the local copy wholesale.
	ResolveLocalWins ResolutionStrategy = "local_wins"
	// ResolveMerge takes the remote copy but keeps the local note
	// when the remote note is empty.
	ResolveMerge ResolutionStrategy = "merge"
	// ResolveManual produces no resolved copy; the caller decides.
	ResolveManual ResolutionStrategy = "manual"
)

// ConflictRecord reports a disagreement between the local and remote
// copy of a reservation.  ConflictingFields is ordered and drawn from
// the fixed comparison set {status, paymentStatus, paymentAmount,
// creationTimestamp}.  Resolved is nil for the manual strategy.
type ConflictRecord struct {
	EntityID          uint64             `json:"entity_id"`
	Local             Reservation        `json:"local"`
	Remote            Reservation        `json:"remote"`
	ConflictingFields []string           `json:"conflicting_fields"`
	Strategy          ResolutionStrategy `json:"strategy,omitempty"`
	Resolved          *Reservation       `json:"resolved,omitempty"`
}
