package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

func TestAggregatorCountsFromSnapshot(t *testing.T) {
	state := NewState()
	a := NewAggregator(state, nil)
	assert.Equal(t, 0, a.Count())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	approved := req(3, model.PartitionA, "2026-03-05", base)
	approved.Status = model.RequestApproved
	state.Apply([]model.ChangeEvent{
		insertReq(req(1, model.PartitionA, "2026-03-05", base)),
		insertReq(req(2, model.PartitionB, "2026-03-06", base)),
		insertReq(approved),
	})
	assert.Equal(t, 2, a.Count(), "only pending requests count")
}

func TestAggregatorSyncAndHealWithoutMirror(t *testing.T) {
	state := NewState()
	a := NewAggregator(state, nil)

	// With no cache configured these must be safe no-ops.
	a.Sync(context.Background())
	a.Heal(context.Background())
	assert.Equal(t, 0, a.Count())
}
