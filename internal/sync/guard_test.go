package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not reached in time")
}

func TestGuardAppliesSubmittedBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := NewState()
	g := NewGuard(ctx, state, 0)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, g.Submit(ctx, []model.ChangeEvent{
		insertRes(res(1, model.PartitionA, "2026-03-05", base)),
	}))
	waitFor(t, func() bool {
		return len(state.Snapshot().ReservationsFor(model.PartitionA)) == 1
	})
}

func TestGuardCoalescesBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := NewState()
	g := NewGuard(ctx, state, 20*time.Millisecond)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := uint64(1); i <= 20; i++ {
		require.NoError(t, g.Submit(ctx, []model.ChangeEvent{
			insertRes(res(i, model.PartitionA, "2026-03-05", base.Add(time.Duration(i)*time.Second))),
		}))
	}
	waitFor(t, func() bool {
		return len(state.Snapshot().ReservationsFor(model.PartitionA)) == 20
	})
}

func TestGuardKeepsRunningPastBadBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := NewState()
	g := NewGuard(ctx, state, 0)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// A payload-less event cannot happen through the ingestor, but a
	// poisoned batch must not wedge the loop either way.
	require.NoError(t, g.Submit(ctx, []model.ChangeEvent{
		{Collection: model.CollectionReservations, Kind: model.EventInsert},
	}))
	require.NoError(t, g.Submit(ctx, []model.ChangeEvent{
		insertRes(res(2, model.PartitionA, "2026-03-06", base)),
	}))
	waitFor(t, func() bool {
		return len(state.Snapshot().ReservationsFor(model.PartitionA)) == 1
	})
}

func TestGuardReplaceGoesThroughTheLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := NewState()
	g := NewGuard(ctx, state, 0)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, g.Replace(ctx,
		[]model.Reservation{res(1, model.PartitionB, "2026-03-05", base)},
		nil, nil, base))
	waitFor(t, func() bool {
		return len(state.Snapshot().ReservationsFor(model.PartitionB)) == 1
	})
}

func TestGuardStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGuard(ctx, NewState(), 0)
	cancel()

	select {
	case <-g.Done():
	case <-time.After(2 * time.Second):
		assert.Fail(t, "guard did not stop on context cancel")
	}
}
