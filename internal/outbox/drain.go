package outbox

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// BackoffPolicy controls how failed operations are rescheduled.  The
// delay grows exponentially with the attempt count, is capped at Max
// and carries full jitter so a burst of queued operations does not
// retry in lockstep.  Operations are retried indefinitely: the policy
// spaces attempts out, it never drops one.
type BackoffPolicy struct {
	Base time.Duration // delay after the first failure
	Max  time.Duration // upper bound on any delay
}

// Delay returns the wait before the given attempt (1-based) is
// retried.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		p.Base = time.Second
	}
	if p.Max <= 0 {
		p.Max = 2 * time.Minute
	}
	d := p.Base
	for i := 1; i < attempt && d < p.Max; i++ {
		d *= 2
	}
	if d > p.Max {
		d = p.Max
	}
	// Full jitter: anywhere in (0, d].
	return time.Duration(rand.Int63n(int64(d))) + 1
}

// Applier attempts one pending operation against the remote
// datastore.  It must be idempotent: a drain may re-attempt an
// operation whose earlier attempt succeeded remotely but whose
// acknowledgement was lost.
type Applier func(ctx context.Context, op model.PendingOperation) error

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Applied int // operations applied remotely and removed
	Skipped int // operations not yet due for retry
	Failed  int // operations that failed and were rescheduled
}

// Drain walks the queue in enqueue order (FIFO) and attempts every
// operation that is due.  Successful operations are removed; failed
// ones stay queued with their next attempt pushed out by the backoff
// policy.  The pass keeps going after individual failures so one
// poisoned operation at the head cannot starve the queue forever,
// but relative order of attempts is always enqueue order.
func (s *Store) Drain(ctx context.Context, policy BackoffPolicy, apply Applier) (DrainResult, error) {
	var res DrainResult
	ops, err := s.List(ctx)
	if err != nil {
		return res, err
	}
	now := time.Now().UTC()
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if op.NextAttemptAt.After(now) {
			res.Skipped++
			continue
		}
		if err := apply(ctx, op); err != nil {
			attempts := op.Attempts + 1
			next := now.Add(policy.Delay(attempts))
			log.Printf("outbox: apply %s %s/%s failed (attempt %d, next %s): %v",
				op.ID, op.Collection, op.Kind, attempts, next.Format(time.RFC3339), err)
			if uerr := s.recordFailure(ctx, op.ID, attempts, next); uerr != nil {
				return res, uerr
			}
			res.Failed++
			continue
		}
		if err := s.remove(ctx, op.ID); err != nil {
			return res, err
		}
		res.Applied++
	}
	return res, nil
}
