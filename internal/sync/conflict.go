package sync

import (
	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// conflictFields are the fields compared when a local and a remote
// copy of the same reservation disagree.  The set is deliberately
// small: these are the fields both sides mutate independently, so
// they are the only ones a resolution strategy has to arbitrate.
var conflictFields = []string{
	"status",
	"paymentStatus",
	"paymentAmount",
	"creationTimestamp",
}

// DetectConflict compares a local and a remote copy of the same
// reservation and returns a record of the disagreement, or nil when
// the copies agree on every arbitrated field.
func DetectConflict(local, remote model.Reservation) *model.ConflictRecord {
	var diff []string
	for _, f := range conflictFields {
		if !fieldEqual(f, local, remote) {
			diff = append(diff, f)
		}
	}
	if len(diff) == 0 {
		return nil
	}
	return &model.ConflictRecord{
		EntityID:          local.ID,
		Local:             local.Clone(),
		Remote:            remote.Clone(),
		ConflictingFields: diff,
		Strategy:          model.ResolveRemoteWins,
	}
}

func fieldEqual(field string, a, b model.Reservation) bool {
	switch field {
	case "status":
		return a.Status == b.Status
	case "paymentStatus":
		return a.Paid == b.Paid
	case "paymentAmount":
		return a.AmountCents == b.AmountCents
	case "creationTimestamp":
		return a.CreatedAt.Equal(b.CreatedAt)
	}
	return true
}

// overlayEdit re-applies a caller's deliberate edits on top of a
// resolved base.  An arbitrated field the caller left untouched takes
// the resolved value; one the caller changed keeps the caller's
// value, since that change is the point of the update.  Fields
// outside the arbitrated set stay as edited.
func overlayEdit(base, edited, resolved model.Reservation) model.Reservation {
	out := edited.Clone()
	if edited.Status == base.Status {
		out.Status = resolved.Status
	}
	if edited.Paid == base.Paid {
		out.Paid = resolved.Paid
	}
	if edited.AmountCents == base.AmountCents {
		out.AmountCents = resolved.AmountCents
	}
	if edited.CreatedAt.Equal(base.CreatedAt) {
		out.CreatedAt = resolved.CreatedAt
	}
	return out
}

// Resolve applies a resolution strategy to a conflict and returns the
// winning reservation.  For manual strategy the second return is
// false: the conflict stays open until an operator picks a side.
// Resolve is pure: it never touches shared state, so the same
// conflict always resolves the same way.
func Resolve(c model.ConflictRecord, strategy model.ResolutionStrategy) (model.Reservation, bool) {
	switch strategy {
	case model.ResolveLocalWins:
		return c.Local.Clone(), true
	case model.ResolveMerge:
		return merge(c), true
	case model.ResolveManual:
		return model.Reservation{}, false
	default:
		// remote_wins is the default for unknown strategies too:
		// the remote datastore is the source of truth.
		return c.Remote.Clone(), true
	}
}

// merge resolves in the remote copy's favor with one exception: a
// note typed on this side survives when the remote copy carries none.
// Everything else, arbitrated fields included, comes from the remote.
func merge(c model.ConflictRecord) model.Reservation {
	out := c.Remote.Clone()
	if out.Note == "" {
		out.Note = c.Local.Note
	}
	return out
}
