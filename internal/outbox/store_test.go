package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "outbox.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func op(id string, kind model.MutationKind, at time.Time) model.PendingOperation {
	return model.PendingOperation{
		ID:         id,
		Kind:       kind,
		Collection: model.CollectionReservations,
		Payload:    json.RawMessage(`{"id":1}`),
		EnqueuedAt: at,
	}
}

func TestEnqueueListFIFO(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Enqueue(ctx, op(id, model.MutationCreate, base.Add(time.Duration(i)*time.Second))))
	}
	ops, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, "a", ops[0].ID)
	assert.Equal(t, "b", ops[1].ID)
	assert.Equal(t, "c", ops[2].ID)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.db")
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Enqueue(ctx, op("persisted", model.MutationDelete, base)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	ops, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "persisted", ops[0].ID)
	assert.Equal(t, model.MutationDelete, ops[0].Kind)
}

func TestDrainAppliesInOrderAndRemoves(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Enqueue(ctx, op(fmt.Sprintf("op-%d", i), model.MutationCreate, base.Add(time.Duration(i)*time.Second))))
	}

	var order []string
	res, err := s.Drain(ctx, BackoffPolicy{Base: time.Millisecond, Max: time.Millisecond},
		func(ctx context.Context, o model.PendingOperation) error {
			order = append(order, o.ID)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"op-0", "op-1", "op-2"}, order)
	assert.Equal(t, DrainResult{Applied: 3}, res)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDrainKeepsFailedOperations(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Enqueue(ctx, op("bad", model.MutationCreate, base)))
	require.NoError(t, s.Enqueue(ctx, op("good", model.MutationCreate, base.Add(time.Second))))

	boom := errors.New("remote down")
	res, err := s.Drain(ctx, BackoffPolicy{Base: time.Hour, Max: time.Hour},
		func(ctx context.Context, o model.PendingOperation) error {
			if o.ID == "bad" {
				return boom
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied, "failure at the head must not starve the rest")
	assert.Equal(t, 1, res.Failed)

	// The failed operation is retained with its retry pushed out, so
	// an immediate second drain skips it.
	res, err = s.Drain(ctx, BackoffPolicy{Base: time.Hour, Max: time.Hour},
		func(ctx context.Context, o model.PendingOperation) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Skipped: 1}, res)

	ops, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "bad", ops[0].ID)
	assert.Equal(t, 1, ops[0].Attempts)
}

func TestClearEmptiesTheQueue(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, op("x", model.MutationCreate, time.Now().UTC())))
	require.NoError(t, s.Clear(ctx))
	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Max: time.Minute}
	for attempt := 1; attempt <= 12; attempt++ {
		d := p.Delay(attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Minute, "attempt %d exceeds the cap", attempt)
	}
	// Zero-valued policy still produces sane delays.
	d := BackoffPolicy{}.Delay(3)
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, 2*time.Minute)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, _, _, _, err := s.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	reservations := []model.Reservation{{ID: 1, Partition: model.PartitionA, Date: base, Kind: model.AllocationFullRange}}
	requests := []model.Request{{ID: 2, Partition: model.PartitionB, Date: base, Status: model.RequestPending}}
	specials := []model.SpecialDate{{ID: 3, Date: base, Closed: true}}

	require.NoError(t, s.SaveSnapshot(ctx, reservations, requests, specials, base))

	gotRes, gotReq, gotSpec, lastSync, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, reservations, gotRes)
	assert.Equal(t, requests, gotReq)
	assert.Equal(t, specials, gotSpec)
	assert.True(t, lastSync.Equal(base))

	// A later save overwrites, it never accumulates.
	require.NoError(t, s.SaveSnapshot(ctx, nil, requests, nil, base.Add(time.Hour)))
	gotRes, _, _, lastSync, err = s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, gotRes)
	assert.True(t, lastSync.Equal(base.Add(time.Hour)))
}
