package sync

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
)

// Guard serializes all state mutations through a single goroutine.
// Events arriving while a batch is being applied are queued, not
// dropped, so a burst of feed deliveries can never interleave with a
// refresh.  After each applied batch the guard waits out a short
// cooldown and coalesces everything that arrived in the meantime into
// the next batch.
type Guard struct {
	events   chan []model.ChangeEvent
	replace  chan replaceMsg
	cooldown time.Duration
	state    *State
	done     chan struct{}
}

type replaceMsg struct {
	reservations []model.Reservation
	requests     []model.Request
	specials     []model.SpecialDate
	lastSync     time.Time
}

// NewGuard starts the guard loop over the given state.  Stop it by
// cancelling the context.
func NewGuard(ctx context.Context, state *State, cooldown time.Duration) *Guard {
	g := &Guard{
		events:   make(chan []model.ChangeEvent, 64),
		replace:  make(chan replaceMsg, 1),
		cooldown: cooldown,
		state:    state,
		done:     make(chan struct{}),
	}
	go g.run(ctx)
	return g
}

// Submit hands a batch of events to the guard.  It blocks only when
// the queue is full, which applies backpressure to the feed consumer
// instead of losing events.
func (g *Guard) Submit(ctx context.Context, events []model.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	select {
	case g.events <- events:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Replace swaps in a full snapshot, typically after a refresh.  The
// swap goes through the same goroutine as event batches so it cannot
// race with an in-flight apply.
func (g *Guard) Replace(ctx context.Context, reservations []model.Reservation, requests []model.Request, specials []model.SpecialDate, lastSync time.Time) error {
	select {
	case g.replace <- replaceMsg{reservations, requests, specials, lastSync}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the guard loop has exited.
func (g *Guard) Done() <-chan struct{} { return g.done }

func (g *Guard) run(ctx context.Context) {
	defer close(g.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-g.replace:
			g.state.Replace(msg.reservations, msg.requests, msg.specials, msg.lastSync)
		case batch := <-g.events:
			batch = g.coalesce(batch)
			g.apply(batch)
		}
	}
}

// coalesce drains everything queued during the cooldown window into a
// single batch so rapid-fire deliveries trigger one apply, not many.
func (g *Guard) coalesce(batch []model.ChangeEvent) []model.ChangeEvent {
	if g.cooldown <= 0 {
		return g.drain(batch)
	}
	timer := time.NewTimer(g.cooldown)
	defer timer.Stop()
	for {
		select {
		case more := <-g.events:
			batch = append(batch, more...)
		case <-timer.C:
			return g.drain(batch)
		}
	}
}

func (g *Guard) drain(batch []model.ChangeEvent) []model.ChangeEvent {
	for {
		select {
		case more := <-g.events:
			batch = append(batch, more...)
		default:
			return batch
		}
	}
}

// apply runs one batch through the reconciler.  A panic in the apply
// path is contained here so a single poisoned event cannot take the
// whole loop down.
func (g *Guard) apply(batch []model.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("sync: recovered from apply panic: %v", r)
		}
	}()
	g.state.Apply(batch)
}
