package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func res(id uint64, p model.Partition, date string, created time.Time) model.Reservation {
	return model.Reservation{
		ID:        id,
		Date:      day(date),
		Partition: p,
		Kind:      model.AllocationFullRange,
		Requester: model.Requester{Name: "n", Email: "n@example.com"},
		Status:    model.ReservationApproved,
		CreatedAt: created,
	}
}

func req(id uint64, p model.Partition, date string, created time.Time) model.Request {
	return model.Request{
		ID:        id,
		Date:      day(date),
		Partition: p,
		Kind:      model.AllocationFullRange,
		Requester: model.Requester{Name: "n", Email: "n@example.com"},
		Status:    model.RequestPending,
		CreatedAt: created,
	}
}

func insertRes(r model.Reservation) model.ChangeEvent {
	return model.ChangeEvent{Collection: model.CollectionReservations, Kind: model.EventInsert, NewReservation: &r}
}

func deleteRes(id uint64) model.ChangeEvent {
	return model.ChangeEvent{Collection: model.CollectionReservations, Kind: model.EventDelete, OldReservation: &model.Reservation{ID: id}}
}

func insertReq(r model.Request) model.ChangeEvent {
	return model.ChangeEvent{Collection: model.CollectionRequests, Kind: model.EventInsert, NewRequest: &r}
}

func TestApplyKeepsPartitionsOrdered(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s.Apply([]model.ChangeEvent{
		insertRes(res(3, model.PartitionA, "2026-03-05", base.Add(2*time.Minute))),
		insertRes(res(1, model.PartitionA, "2026-03-04", base)),
		insertRes(res(2, model.PartitionA, "2026-03-05", base.Add(time.Minute))),
		insertRes(res(4, model.PartitionB, "2026-03-01", base)),
	})

	a := s.Snapshot().ReservationsFor(model.PartitionA)
	require.Len(t, a, 3)
	assert.Equal(t, uint64(1), a[0].ID) // earliest date first
	assert.Equal(t, uint64(2), a[1].ID) // same date ordered by creation
	assert.Equal(t, uint64(3), a[2].ID)

	b := s.Snapshot().ReservationsFor(model.PartitionB)
	require.Len(t, b, 1)
	assert.Equal(t, uint64(4), b[0].ID)
}

func TestApplyUpdateMovesBetweenPartitions(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Apply([]model.ChangeEvent{insertRes(res(7, model.PartitionA, "2026-03-05", base))})

	moved := res(7, model.PartitionB, "2026-03-05", base)
	s.Apply([]model.ChangeEvent{{
		Collection:     model.CollectionReservations,
		Kind:           model.EventUpdate,
		NewReservation: &moved,
	}})

	assert.Empty(t, s.Snapshot().ReservationsFor(model.PartitionA))
	require.Len(t, s.Snapshot().ReservationsFor(model.PartitionB), 1)
}

func TestApplyNeverDuplicatesAnID(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := res(5, model.PartitionA, "2026-03-05", base)
	s.Apply([]model.ChangeEvent{insertRes(r), insertRes(r)})
	s.Apply([]model.ChangeEvent{insertRes(r)})

	assert.Len(t, s.Snapshot().ReservationsFor(model.PartitionA), 1)
}

func TestReservationByIDSearchesBothPartitions(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Apply([]model.ChangeEvent{
		insertRes(res(1, model.PartitionA, "2026-03-05", base)),
		insertRes(res(2, model.PartitionB, "2026-03-06", base)),
	})

	snap := s.Snapshot()
	got, ok := snap.ReservationByID(2)
	require.True(t, ok)
	assert.Equal(t, model.PartitionB, got.Partition)
	_, ok = snap.ReservationByID(3)
	assert.False(t, ok)
}

func TestDeleteSweepsEverywhere(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	// Same id present as a reservation in B and a request in A:
	// pathological, but exactly what a stale partition tag produces.
	s.Apply([]model.ChangeEvent{
		insertRes(res(9, model.PartitionB, "2026-03-05", base)),
		insertReq(req(9, model.PartitionA, "2026-03-05", base)),
	})
	s.Apply([]model.ChangeEvent{deleteRes(9)})

	snap := s.Snapshot()
	assert.Empty(t, snap.ReservationsFor(model.PartitionA))
	assert.Empty(t, snap.ReservationsFor(model.PartitionB))
	assert.Empty(t, snap.RequestsFor(model.PartitionA))
	assert.Empty(t, snap.RequestsFor(model.PartitionB))
}

func TestDeleteBeforeInsertLeavesNoRecord(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Reordered delivery: the delete of id 11 arrives before its
	// insert.  The tombstone must suppress the late insert.
	s.Apply([]model.ChangeEvent{deleteRes(11)})
	s.Apply([]model.ChangeEvent{insertRes(res(11, model.PartitionA, "2026-03-05", base))})

	assert.Empty(t, s.Snapshot().ReservationsFor(model.PartitionA))
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Apply([]model.ChangeEvent{insertRes(res(1, model.PartitionA, "2026-03-05", base))})

	before := s.Snapshot()
	s.Apply([]model.ChangeEvent{deleteRes(1)})

	// The earlier snapshot still shows the record; only new
	// snapshots reflect the delete.
	assert.Len(t, before.ReservationsFor(model.PartitionA), 1)
	assert.Empty(t, s.Snapshot().ReservationsFor(model.PartitionA))
}

func TestPendingCountTracksRequests(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Apply([]model.ChangeEvent{
		insertReq(req(1, model.PartitionA, "2026-03-05", base)),
		insertReq(req(2, model.PartitionB, "2026-03-06", base)),
	})
	assert.Equal(t, 2, s.Snapshot().PendingCount)

	s.Apply([]model.ChangeEvent{{
		Collection: model.CollectionRequests,
		Kind:       model.EventDelete,
		OldRequest: &model.Request{ID: 2},
	}})
	assert.Equal(t, 1, s.Snapshot().PendingCount)
}

func TestReplaceRebuildsFromScratch(t *testing.T) {
	s := NewState()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Apply([]model.ChangeEvent{insertRes(res(1, model.PartitionA, "2026-03-05", base))})

	s.Replace(
		[]model.Reservation{res(2, model.PartitionB, "2026-03-06", base)},
		[]model.Request{req(3, model.PartitionA, "2026-03-07", base)},
		[]model.SpecialDate{{ID: 1, Date: day("2026-03-08"), Closed: true}},
		base,
	)

	snap := s.Snapshot()
	assert.Empty(t, snap.ReservationsFor(model.PartitionA))
	assert.Len(t, snap.ReservationsFor(model.PartitionB), 1)
	assert.Len(t, snap.RequestsFor(model.PartitionA), 1)
	assert.Len(t, snap.SpecialDates, 1)
	assert.Equal(t, 1, snap.PendingCount)
	assert.Equal(t, base, snap.LastSync)
}
