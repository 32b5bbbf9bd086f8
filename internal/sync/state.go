// Package sync implements the synchronization and conflict-resolution
// engine: change-event ingestion, serialized reconciliation of the
// in-memory state, offline mutation replay, duplicate-request
// suppression and local/remote conflict resolution.
package sync

import (
	"sort"
	stdsync "sync"
	"time"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// tombstoneTTL is how long a deleted id is remembered.  A delete
// arriving before its own insert (out-of-order delivery) must
// suppress that insert when it shows up; entries older than the TTL
// are swept because reordering windows are short.
const tombstoneTTL = 5 * time.Minute

// Snapshot is one immutable view of the authoritative state: two
// ordered collections per entity kind (one per partition) plus the
// special-date overrides and the derived pending count.  Snapshots
// are never mutated after publication; concurrent readers can hold
// one across a reconcile without observing torn state.
type Snapshot struct {
	ReservationsA []model.Reservation
	ReservationsB []model.Reservation
	RequestsA     []model.Request
	RequestsB     []model.Request
	SpecialDates  []model.SpecialDate

	PendingCount int
	LastSync     time.Time
}

// ReservationsFor returns the reservation collection of a partition.
func (s *Snapshot) ReservationsFor(p model.Partition) []model.Reservation {
	if p == model.PartitionB {
		return s.ReservationsB
	}
	return s.ReservationsA
}

// RequestsFor returns the request collection of a partition.
func (s *Snapshot) RequestsFor(p model.Partition) []model.Request {
	if p == model.PartitionB {
		return s.RequestsB
	}
	return s.RequestsA
}

// ReservationByID finds a reservation in either partition.
func (s *Snapshot) ReservationByID(id uint64) (model.Reservation, bool) {
	for _, coll := range [][]model.Reservation{s.ReservationsA, s.ReservationsB} {
		for _, r := range coll {
			if r.ID == id {
				return r.Clone(), true
			}
		}
	}
	return model.Reservation{}, false
}

// State is the reconciler: it owns the current snapshot and applies
// validated change events to it.  Every apply builds a fresh snapshot
// via remove-then-insert (record indexes are never assigned in place)
// and swaps the pointer under the lock.
type State struct {
	mu   stdsync.RWMutex
	snap *Snapshot

	// tombstones remembers recently deleted ids per collection so a
	// late insert for an already-deleted entity is dropped.
	tombstones map[model.Collection]map[uint64]time.Time
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		snap: &Snapshot{
			ReservationsA: []model.Reservation{},
			ReservationsB: []model.Reservation{},
			RequestsA:     []model.Request{},
			RequestsB:     []model.Request{},
			SpecialDates:  []model.SpecialDate{},
		},
		tombstones: map[model.Collection]map[uint64]time.Time{
			model.CollectionReservations: {},
			model.CollectionRequests:     {},
			model.CollectionSpecialDates: {},
		},
	}
}

// Snapshot returns the current immutable snapshot.
func (s *State) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// HasReservation reports whether the id exists in the given
// partition's reservation collection.
func (s *State) HasReservation(p model.Partition, id uint64) bool {
	snap := s.Snapshot()
	for _, r := range snap.ReservationsFor(p) {
		if r.ID == id {
			return true
		}
	}
	return false
}

// HasRequest reports whether the id exists in the given partition's
// request collection.
func (s *State) HasRequest(p model.Partition, id uint64) bool {
	snap := s.Snapshot()
	for _, r := range snap.RequestsFor(p) {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Deleted reports whether a delete for the id was seen recently.
func (s *State) Deleted(c model.Collection, id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	when, ok := s.tombstones[c][id]
	return ok && time.Since(when) < tombstoneTTL
}

// Replace swaps in a wholly new state, e.g. after a full refresh from
// the remote datastore.  Collections are cloned and sorted; the
// caller's slices are not retained.
func (s *State) Replace(reservations []model.Reservation, requests []model.Request, specials []model.SpecialDate, lastSync time.Time) {
	next := &Snapshot{
		ReservationsA: []model.Reservation{},
		ReservationsB: []model.Reservation{},
		RequestsA:     []model.Request{},
		RequestsB:     []model.Request{},
		SpecialDates:  append([]model.SpecialDate{}, specials...),
		LastSync:      lastSync,
	}
	for _, r := range reservations {
		if r.Partition == model.PartitionB {
			next.ReservationsB = append(next.ReservationsB, r.Clone())
		} else {
			next.ReservationsA = append(next.ReservationsA, r.Clone())
		}
	}
	for _, r := range requests {
		if r.Partition == model.PartitionB {
			next.RequestsB = append(next.RequestsB, r.Clone())
		} else {
			next.RequestsA = append(next.RequestsA, r.Clone())
		}
	}
	finalize(next)
	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()
}

// Apply reconciles a batch of validated change events into a fresh
// snapshot.  Inserts and updates are applied remove-then-insert;
// deletes sweep the id out of every partition of both entity
// collections, because the delivered partition tag (or even the
// collection) may be stale.  The new snapshot is sorted and published
// atomically.
func (s *State) Apply(events []model.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneSnapshot(s.snap)
	now := time.Now()
	s.sweepTombstones(now)

	for _, ev := range events {
		switch ev.Collection {
		case model.CollectionReservations:
			s.applyReservation(next, ev, now)
		case model.CollectionRequests:
			s.applyRequest(next, ev, now)
		case model.CollectionSpecialDates:
			s.applySpecialDate(next, ev, now)
		}
	}
	finalize(next)
	s.snap = next
}

func (s *State) applyReservation(next *Snapshot, ev model.ChangeEvent, now time.Time) {
	switch ev.Kind {
	case model.EventInsert, model.EventUpdate:
		rec := ev.NewReservation
		if rec == nil {
			return
		}
		if s.tombstoned(model.CollectionReservations, rec.ID, now) {
			return
		}
		removeReservationEverywhere(next, rec.ID)
		appendReservation(next, rec.Clone())
	case model.EventDelete:
		id := ev.EntityID()
		s.tombstones[model.CollectionReservations][id] = now
		removeReservationEverywhere(next, id)
		removeRequestEverywhere(next, id)
	}
}

func (s *State) applyRequest(next *Snapshot, ev model.ChangeEvent, now time.Time) {
	switch ev.Kind {
	case model.EventInsert, model.EventUpdate:
		rec := ev.NewRequest
		if rec == nil {
			return
		}
		if s.tombstoned(model.CollectionRequests, rec.ID, now) {
			return
		}
		removeRequestEverywhere(next, rec.ID)
		appendRequest(next, rec.Clone())
	case model.EventDelete:
		id := ev.EntityID()
		s.tombstones[model.CollectionRequests][id] = now
		removeRequestEverywhere(next, id)
		removeReservationEverywhere(next, id)
	}
}

func (s *State) applySpecialDate(next *Snapshot, ev model.ChangeEvent, now time.Time) {
	switch ev.Kind {
	case model.EventInsert, model.EventUpdate:
		rec := ev.NewSpecial
		if rec == nil {
			return
		}
		if s.tombstoned(model.CollectionSpecialDates, rec.ID, now) {
			return
		}
		out := next.SpecialDates[:0:0]
		for _, sd := range next.SpecialDates {
			if sd.ID != rec.ID {
				out = append(out, sd)
			}
		}
		next.SpecialDates = append(out, *rec)
	case model.EventDelete:
		id := ev.EntityID()
		s.tombstones[model.CollectionSpecialDates][id] = now
		out := next.SpecialDates[:0:0]
		for _, sd := range next.SpecialDates {
			if sd.ID != id {
				out = append(out, sd)
			}
		}
		next.SpecialDates = out
	}
}

func (s *State) tombstoned(c model.Collection, id uint64, now time.Time) bool {
	when, ok := s.tombstones[c][id]
	return ok && now.Sub(when) < tombstoneTTL
}

func (s *State) sweepTombstones(now time.Time) {
	for _, byID := range s.tombstones {
		for id, when := range byID {
			if now.Sub(when) >= tombstoneTTL {
				delete(byID, id)
			}
		}
	}
}

// cloneSnapshot copies the snapshot so the previous one stays valid
// for readers holding it.
func cloneSnapshot(snap *Snapshot) *Snapshot {
	next := &Snapshot{
		ReservationsA: append([]model.Reservation{}, snap.ReservationsA...),
		ReservationsB: append([]model.Reservation{}, snap.ReservationsB...),
		RequestsA:     append([]model.Request{}, snap.RequestsA...),
		RequestsB:     append([]model.Request{}, snap.RequestsB...),
		SpecialDates:  append([]model.SpecialDate{}, snap.SpecialDates...),
		LastSync:      snap.LastSync,
	}
	return next
}

func appendReservation(next *Snapshot, r model.Reservation) {
	if r.Partition == model.PartitionB {
		next.ReservationsB = append(next.ReservationsB, r)
	} else {
		next.ReservationsA = append(next.ReservationsA, r)
	}
}

func appendRequest(next *Snapshot, r model.Request) {
	if r.Partition == model.PartitionB {
		next.RequestsB = append(next.RequestsB, r)
	} else {
		next.RequestsA = append(next.RequestsA, r)
	}
}

func removeReservationEverywhere(next *Snapshot, id uint64) {
	next.ReservationsA = filterReservations(next.ReservationsA, id)
	next.ReservationsB = filterReservations(next.ReservationsB, id)
}

func removeRequestEverywhere(next *Snapshot, id uint64) {
	next.RequestsA = filterRequests(next.RequestsA, id)
	next.RequestsB = filterRequests(next.RequestsB, id)
}

func filterReservations(in []model.Reservation, id uint64) []model.Reservation {
	out := in[:0:0]
	for _, r := range in {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func filterRequests(in []model.Request, id uint64) []model.Request {
	out := in[:0:0]
	for _, r := range in {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// finalize sorts every collection by (date, creationTimestamp)
// ascending and recomputes the pending count.  Consumers rely on the
// chronological order (duplicate-slot checks scan ordered bookings),
// so it is restored after every apply, and recomputing the count from
// the collections on the same pass keeps the aggregate self-healing.
func finalize(next *Snapshot) {
	sortReservations(next.ReservationsA)
	sortReservations(next.ReservationsB)
	sortRequests(next.RequestsA)
	sortRequests(next.RequestsB)
	sort.Slice(next.SpecialDates, func(i, j int) bool {
		return next.SpecialDates[i].Date.Before(next.SpecialDates[j].Date)
	})
	next.PendingCount = countPending(next)
}

func sortReservations(rs []model.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].Date.Equal(rs[j].Date) {
			return rs[i].Date.Before(rs[j].Date)
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}

func sortRequests(rs []model.Request) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].Date.Equal(rs[j].Date) {
			return rs[i].Date.Before(rs[j].Date)
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}

func countPending(snap *Snapshot) int {
	n := 0
	for _, r := range snap.RequestsA {
		if r.Status == model.RequestPending {
			n++
		}
	}
	for _, r := range snap.RequestsB {
		if r.Status == model.RequestPending {
			n++
		}
	}
	return n
}
