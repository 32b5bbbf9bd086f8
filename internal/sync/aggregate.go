package sync

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingCountKey is the cache key the pending-request badge count is
// mirrored under, so other processes can read it without holding a
// snapshot.
const pendingCountKey = "sync:pending_count"

// Aggregator maintains the pending-request count.  The figure shown
// to callers is always recomputed from the current snapshot rather
// than adjusted incrementally, so it cannot drift from the truth; the
// Redis mirror is refreshed whenever the local figure changes and on
// a periodic heal tick in case the cache was flushed underneath us.
type Aggregator struct {
	state *State
	cache *redis.Client // nil disables mirroring
	last  atomic.Int64
}

// NewAggregator builds an aggregator over the given state.  cache may
// be nil, in which case only the in-process count is served.
func NewAggregator(state *State, cache *redis.Client) *Aggregator {
	a := &Aggregator{state: state, cache: cache}
	a.last.Store(-1)
	return a
}

// Count returns the current pending-request count from the snapshot.
func (a *Aggregator) Count() int {
	return a.state.Snapshot().PendingCount
}

// Sync recomputes the count and pushes it to the mirror when it
// changed since the last push.  Call it after every applied batch.
func (a *Aggregator) Sync(ctx context.Context) {
	n := int64(a.Count())
	if a.last.Swap(n) == n {
		return
	}
	a.mirror(ctx, n)
}

// Heal force-writes the current count to the mirror regardless of the
// last pushed value.  Run on a timer to repair external cache loss.
func (a *Aggregator) Heal(ctx context.Context) {
	n := int64(a.Count())
	a.last.Store(n)
	a.mirror(ctx, n)
}

func (a *Aggregator) mirror(ctx context.Context, n int64) {
	if a.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.cache.Set(ctx, pendingCountKey, n, 0).Err(); err != nil {
		log.Printf("sync: pending count mirror write failed: %v", err)
	}
}
