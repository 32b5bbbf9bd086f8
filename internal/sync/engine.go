package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-reservation-sync/internal/config"
	"github.com/iliyamo/venue-reservation-sync/internal/feed"
	"github.com/iliyamo/venue-reservation-sync/internal/model"
	"github.com/iliyamo/venue-reservation-sync/internal/outbox"
	"github.com/iliyamo/venue-reservation-sync/internal/repository"
	"github.com/iliyamo/venue-reservation-sync/internal/utils"
)

// Remote is the authoritative datastore the engine synchronizes
// against.  repository.RemoteStore satisfies it; tests substitute an
// in-memory fake.
type Remote interface {
	FetchAll(ctx context.Context) ([]model.Reservation, []model.Request, []model.SpecialDate, error)

	CreateReservation(ctx context.Context, res *model.Reservation) error
	GetReservation(ctx context.Context, id uint64) (model.Reservation, error)
	UpdateReservation(ctx context.Context, res model.Reservation) error
	DeleteReservation(ctx context.Context, id uint64) error

	CreateRequest(ctx context.Context, req *model.Request, dedupeKey string) error
	GetRequest(ctx context.Context, id uint64) (model.Request, error)
	GetRequestByDedupeKey(ctx context.Context, key string) (model.Request, error)
	UpdateRequest(ctx context.Context, req model.Request) error
	DeleteRequest(ctx context.Context, id uint64) error
	TransitionRequest(ctx context.Context, id uint64, from, to model.RequestStatus) error
	FindCandidates(ctx context.Context, probe model.DuplicateProbe) ([]model.Request, error)

	BeginPromotion(ctx context.Context, req model.Request) (uint64, error)
	SetPromotionReservation(ctx context.Context, intentID, reservationID uint64) error
	CompletePromotion(ctx context.Context, intentID uint64) error
	OpenPromotions(ctx context.Context, olderThan time.Duration) ([]model.PromotionIntent, error)
}

// Engine ties the synchronization pipeline together: it executes
// downstream actions against the remote datastore, captures mutations
// into the outbox when the remote is unreachable, feeds every change
// (local or remote-originated) through the guard into the reconciler,
// and publishes applied mutations onto the change feed for the other
// client instances.
type Engine struct {
	remote    Remote
	state     *State
	guard     *Guard
	box       *outbox.Store
	pub       *feed.Publisher
	dedup     *Deduplicator
	agg       *Aggregator
	ingest    *Ingestor
	sessionID string
	strategy  model.ResolutionStrategy
	backoff   outbox.BackoffPolicy

	loading  atomic.Bool // a non-silent refresh is in flight
	degraded atomic.Bool // last remote contact failed; state may be stale

	// localSeq numbers the placeholder ids handed to offline
	// optimistic copies.  See nextLocalID.
	localSeq atomic.Uint64

	now func() time.Time
}

// localIDBase is the floor of the placeholder id range.  Remote ids
// are small auto-increments, so the two ranges cannot collide; the
// placeholders exist only until the post-drain refresh swaps in the
// remotely assigned ids.
const localIDBase uint64 = 1 << 62

// nextLocalID hands out a placeholder id for an optimistic offline
// copy.  The reconciler keys remove-then-insert on id, so two
// concurrent offline creates need distinct ids to coexist locally.
func (e *Engine) nextLocalID() uint64 { return localIDBase + e.localSeq.Add(1) }

// NewEngine assembles an engine.  pub may be nil (change feed
// disabled); the Redis mirror inside agg may be nil likewise.
func NewEngine(remote Remote, state *State, guard *Guard, box *outbox.Store, pub *feed.Publisher, agg *Aggregator, sessionID string, cfg config.SyncConfig) *Engine {
	return &Engine{
		remote:    remote,
		state:     state,
		guard:     guard,
		box:       box,
		pub:       pub,
		dedup:     NewDeduplicator(cfg.DedupCandidateWindow, cfg.DedupExactWindow),
		agg:       agg,
		ingest:    NewIngestor(state),
		sessionID: sessionID,
		strategy:  model.ResolveRemoteWins,
		backoff:   outbox.BackoffPolicy{Base: cfg.BackoffBase, Max: cfg.BackoffMax},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetStrategy overrides the conflict resolution strategy.  The
// default is remote wins.
func (e *Engine) SetStrategy(s model.ResolutionStrategy) { e.strategy = s }

// Loading reports whether a full (non-silent) reload is in flight.
func (e *Engine) Loading() bool { return e.loading.Load() }

// Degraded reports whether the last remote contact failed.  Reads
// keep serving the last known snapshot while degraded.
func (e *Engine) Degraded() bool { return e.degraded.Load() }

// ReservationsFor returns the current reservations of one partition.
func (e *Engine) ReservationsFor(p model.Partition) []model.Reservation {
	return e.state.Snapshot().ReservationsFor(p)
}

// RequestsFor returns the current requests of one partition.
func (e *Engine) RequestsFor(p model.Partition) []model.Request {
	return e.state.Snapshot().RequestsFor(p)
}

// SpecialDates returns the current special-date overrides.
func (e *Engine) SpecialDates() []model.SpecialDate {
	return e.state.Snapshot().SpecialDates
}

// PendingCount returns the pending-request count.
func (e *Engine) PendingCount() int { return e.agg.Count() }

// RecomputeCount force-recomputes the pending count and repairs the
// external mirror.
func (e *Engine) RecomputeCount(ctx context.Context) { e.agg.Heal(ctx) }

// Refresh reloads the full state from the remote datastore, toggling
// the loading flag around the fetch.
func (e *Engine) Refresh(ctx context.Context) error {
	e.loading.Store(true)
	defer e.loading.Store(false)
	return e.reload(ctx)
}

// RefreshSilent reloads without touching the loading flag, for
// background resyncs that should not flicker downstream surfaces.
func (e *Engine) RefreshSilent(ctx context.Context) error {
	return e.reload(ctx)
}

func (e *Engine) reload(ctx context.Context) error {
	reservations, requests, specials, err := e.remote.FetchAll(ctx)
	if err != nil {
		e.degraded.Store(true)
		return fmt.Errorf("refresh: %w", err)
	}
	e.degraded.Store(false)
	now := e.now()
	if err := e.guard.Replace(ctx, reservations, requests, specials, now); err != nil {
		return err
	}
	if err := e.box.SaveSnapshot(ctx, reservations, requests, specials, now); err != nil {
		log.Printf("engine: snapshot save failed: %v", err)
	}
	e.agg.Sync(ctx)
	return nil
}

// Restore primes the state from the persisted snapshot so a restarted
// instance serves data before first remote contact.  A missing
// snapshot is not an error.
func (e *Engine) Restore(ctx context.Context) error {
	reservations, requests, specials, lastSync, err := e.box.LoadSnapshot(ctx)
	if errors.Is(err, outbox.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return err
	}
	return e.guard.Replace(ctx, reservations, requests, specials, lastSync)
}

// HandleNotification is the change feed entry point.  The engine's
// own notifications loop back through here too; the reconciler is
// idempotent so self-applies are harmless, but they are skipped to
// save work.
func (e *Engine) HandleNotification(ctx context.Context, n feed.Notification) error {
	if n.SessionID == e.sessionID && n.SessionID != "" {
		return nil
	}
	ev, ok := e.ingest.Normalize(n)
	if !ok {
		return nil
	}
	if err := e.guard.Submit(ctx, []model.ChangeEvent{ev}); err != nil {
		return err
	}
	e.agg.Sync(ctx)
	return nil
}

// CreateReservation persists a privileged direct creation.  When the
// remote is unreachable the mutation is captured into the outbox and
// applied optimistically to local state.
func (e *Engine) CreateReservation(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	if err := validateReservation(res); err != nil {
		return model.Reservation{}, err
	}
	res.CreatedAt = e.now()
	res.SessionID = e.sessionID
	if res.Status == "" {
		res.Status = model.ReservationApproved
	}
	if err := e.remote.CreateReservation(ctx, &res); err != nil {
		if !isTransient(err) {
			return model.Reservation{}, err
		}
		res.ID = e.nextLocalID()
		if qerr := e.capture(ctx, model.MutationCreate, model.CollectionReservations, res); qerr != nil {
			return model.Reservation{}, qerr
		}
	}
	e.applyLocal(ctx, model.ChangeEvent{
		Collection:     model.CollectionReservations,
		Kind:           model.EventInsert,
		NewReservation: &res,
	})
	e.publish(ctx, model.CollectionReservations, model.EventInsert, nil, res)
	return res, nil
}

// UpdateReservation writes an edited reservation.  Divergence is
// judged three-way: the caller's base copy (the local snapshot) is
// compared against the current remote copy, so only changes made by
// another instance count as a conflict.  The caller's own edits are
// re-applied on top of whatever the strategy resolves.
func (e *Engine) UpdateReservation(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	if err := validateReservation(res); err != nil {
		return model.Reservation{}, err
	}
	if res.ID == 0 {
		return model.Reservation{}, fmt.Errorf("%w: missing id", ErrValidation)
	}
	remote, err := e.remote.GetReservation(ctx, res.ID)
	switch {
	case err == nil:
		if base, known := e.state.Snapshot().ReservationByID(res.ID); known {
			if c := DetectConflict(base, remote); c != nil {
				resolved, ok := Resolve(*c, e.strategy)
				if !ok {
					return model.Reservation{}, fmt.Errorf("%w: reservation %d fields %v",
						ErrManualConflict, res.ID, c.ConflictingFields)
				}
				log.Printf("engine: reservation %d conflict on %v resolved via %s",
					res.ID, c.ConflictingFields, e.strategy)
				res = overlayEdit(base, res, resolved)
			}
		}
		if err := e.remote.UpdateReservation(ctx, res); err != nil {
			if !isTransient(err) {
				return model.Reservation{}, err
			}
			if qerr := e.capture(ctx, model.MutationUpdate, model.CollectionReservations, res); qerr != nil {
				return model.Reservation{}, qerr
			}
		}
	case errors.Is(err, repository.ErrNotFound):
		return model.Reservation{}, err
	case isTransient(err):
		if qerr := e.capture(ctx, model.MutationUpdate, model.CollectionReservations, res); qerr != nil {
			return model.Reservation{}, qerr
		}
	default:
		return model.Reservation{}, err
	}
	e.applyLocal(ctx, model.ChangeEvent{
		Collection:     model.CollectionReservations,
		Kind:           model.EventUpdate,
		NewReservation: &res,
	})
	e.publish(ctx, model.CollectionReservations, model.EventUpdate, nil, res)
	return res, nil
}

// DeleteReservation removes a reservation everywhere.
func (e *Engine) DeleteReservation(ctx context.Context, id uint64) error {
	if id == 0 {
		return fmt.Errorf("%w: missing id", ErrValidation)
	}
	if err := e.remote.DeleteReservation(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// Already gone remotely; still sweep it locally.
		case isTransient(err):
			if qerr := e.capture(ctx, model.MutationDelete, model.CollectionReservations,
				model.Reservation{ID: id}); qerr != nil {
				return qerr
			}
		default:
			return err
		}
	}
	e.applyLocal(ctx, model.ChangeEvent{
		Collection:     model.CollectionReservations,
		Kind:           model.EventDelete,
		OldReservation: &model.Reservation{ID: id},
	})
	e.publish(ctx, model.CollectionReservations, model.EventDelete, model.Reservation{ID: id}, nil)
	return nil
}

// MarkPaid flips a reservation's payment status to paid and, per the
// status machine, promotes approved to confirmed.
func (e *Engine) MarkPaid(ctx context.Context, id uint64, amountCents uint32) (model.Reservation, error) {
	res, err := e.remote.GetReservation(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	res.Paid = true
	if amountCents > 0 {
		res.AmountCents = amountCents
	}
	if res.Status == model.ReservationApproved {
		res.Status = model.ReservationConfirmed
	}
	return e.UpdateReservation(ctx, res)
}

// CreateRequest submits a new reservation request.  The deduplicator
// screens it first: an exact duplicate inside the tight window short-
// circuits and returns the existing record with no new id produced.
// A unique-constraint race on the dedupe key resolves the same way.
// The boolean is false when an existing record was returned instead
// of a fresh one.
func (e *Engine) CreateRequest(ctx context.Context, req model.Request) (model.Request, bool, error) {
	if err := validateRequest(req); err != nil {
		return model.Request{}, false, err
	}
	now := e.now()

	probe := e.dedup.Probe(req, now)
	candidates, err := e.remote.FindCandidates(ctx, probe)
	switch {
	case err == nil:
		verdict, match := e.dedup.Judge(req, candidates, now)
		switch verdict {
		case VerdictDuplicate:
			return *match, false, nil
		case VerdictSimilar:
			log.Printf("engine: request for %s on %s resembles recent request %d",
				probe.Email, req.Date.Format("2006-01-02"), match.ID)
		}
	case isTransient(err):
		// Offline: skip the pre-check, capture the create below.
		log.Printf("engine: duplicate pre-check unavailable: %v", err)
	default:
		return model.Request{}, false, err
	}

	token, err := utils.NewTrackingToken(now)
	if err != nil {
		return model.Request{}, false, err
	}
	req.TrackingToken = token
	req.Status = model.RequestPending
	req.CreatedAt = now
	req.SessionID = e.sessionID
	key := e.dedup.DedupeKey(req, now)

	if err := e.remote.CreateRequest(ctx, &req, key); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEntry):
			// Lost the create race; the winner is canonical.
			existing, qerr := e.remote.GetRequestByDedupeKey(ctx, key)
			if qerr != nil {
				return model.Request{}, false, qerr
			}
			return existing, false, nil
		case isTransient(err):
			req.ID = e.nextLocalID()
			if qerr := e.capture(ctx, model.MutationCreate, model.CollectionRequests, req); qerr != nil {
				return model.Request{}, false, qerr
			}
		default:
			return model.Request{}, false, err
		}
	}
	e.applyLocal(ctx, model.ChangeEvent{
		Collection: model.CollectionRequests,
		Kind:       model.EventInsert,
		NewRequest: &req,
	})
	e.publish(ctx, model.CollectionRequests, model.EventInsert, nil, req)
	return req, true, nil
}

// ApproveRequest promotes a pending request into a reservation.  The
// promotion runs as a saga: a durable intent is opened first, then
// the reservation insert, the request delete and the intent
// completion.  A crash in the middle is repaired by SweepPromotions.
func (e *Engine) ApproveRequest(ctx context.Context, requestID uint64) (model.Reservation, error) {
	req, err := e.remote.GetRequest(ctx, requestID)
	if err != nil {
		return model.Reservation{}, recoverable(err)
	}
	// Claim the request first.  The guarded transition is what makes
	// concurrent approvals safe: only one caller ever sees it succeed.
	if err := e.remote.TransitionRequest(ctx, requestID, model.RequestPending, model.RequestApproved); err != nil {
		return model.Reservation{}, recoverable(err)
	}
	req.Status = model.RequestApproved

	intentID, err := e.remote.BeginPromotion(ctx, req)
	if err != nil {
		return model.Reservation{}, recoverable(err)
	}
	res, err := e.finishPromotion(ctx, intentID, req, 0)
	if err != nil {
		return res, err
	}
	e.applyLocal(ctx, model.ChangeEvent{
		Collection: model.CollectionRequests,
		Kind:       model.EventDelete,
		OldRequest: &req,
	}, model.ChangeEvent{
		Collection:     model.CollectionReservations,
		Kind:           model.EventInsert,
		NewReservation: &res,
	})
	e.publish(ctx, model.CollectionRequests, model.EventDelete, req, nil)
	e.publish(ctx, model.CollectionReservations, model.EventInsert, nil, res)
	return res, nil
}

// finishPromotion performs the insert/delete/complete tail of the
// promotion saga.  It is shared by ApproveRequest and the orphaned-
// intent sweep.  A non-zero resID means an earlier attempt already
// inserted the reservation; the insert is then skipped so a replayed
// promotion cannot double-book.
func (e *Engine) finishPromotion(ctx context.Context, intentID uint64, req model.Request, resID uint64) (model.Reservation, error) {
	res := req.ToReservation()
	res.SessionID = e.sessionID
	if resID != 0 {
		res.ID = resID
	} else {
		if err := e.remote.CreateReservation(ctx, &res); err != nil {
			return model.Reservation{}, fmt.Errorf("promote request %d: %w", req.ID, err)
		}
		if err := e.remote.SetPromotionReservation(ctx, intentID, res.ID); err != nil {
			return res, fmt.Errorf("promote request %d: %w", req.ID, err)
		}
	}
	if err := e.remote.DeleteRequest(ctx, req.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		// The reservation exists but the source request lingers.
		// Surface it distinctly; the sweep retries the cleanup.
		return res, fmt.Errorf("%w: request %d, reservation %d: %v",
			repository.ErrPromotionCleanup, req.ID, res.ID, err)
	}
	if err := e.remote.CompletePromotion(ctx, intentID); err != nil {
		return res, fmt.Errorf("%w: request %d, reservation %d: %v",
			repository.ErrPromotionCleanup, req.ID, res.ID, err)
	}
	return res, nil
}

// SweepPromotions finds promotion intents left open by a crashed or
// failed approval and drives them to completion.  Run on a timer.
func (e *Engine) SweepPromotions(ctx context.Context, olderThan time.Duration) error {
	intents, err := e.remote.OpenPromotions(ctx, olderThan)
	if err != nil {
		return err
	}
	for _, in := range intents {
		log.Printf("engine: completing orphaned promotion intent %d (request %d)", in.ID, in.RequestID)
		if _, err := e.finishPromotion(ctx, in.ID, in.Request, in.ReservationID); err != nil {
			log.Printf("engine: promotion intent %d still open: %v", in.ID, err)
		}
	}
	return nil
}

// RejectRequest flips a pending request to rejected in place.  No
// promotion happens; the record stays queryable by its tracking
// token but leaves the pending set.
func (e *Engine) RejectRequest(ctx context.Context, requestID uint64) error {
	req, err := e.remote.GetRequest(ctx, requestID)
	if err != nil {
		return recoverable(err)
	}
	if err := e.remote.TransitionRequest(ctx, requestID, model.RequestPending, model.RequestRejected); err != nil {
		return recoverable(err)
	}
	old := req.Clone()
	req.Status = model.RequestRejected
	e.applyLocal(ctx, model.ChangeEvent{
		Collection: model.CollectionRequests,
		Kind:       model.EventDelete,
		OldRequest: &old,
	})
	e.publish(ctx, model.CollectionRequests, model.EventUpdate, old, req)
	return nil
}

// DeleteRequest removes a request outright.
func (e *Engine) DeleteRequest(ctx context.Context, id uint64) error {
	if id == 0 {
		return fmt.Errorf("%w: missing id", ErrValidation)
	}
	if err := e.remote.DeleteRequest(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case isTransient(err):
			if qerr := e.capture(ctx, model.MutationDelete, model.CollectionRequests,
				model.Request{ID: id}); qerr != nil {
				return qerr
			}
		default:
			return err
		}
	}
	e.applyLocal(ctx, model.ChangeEvent{
		Collection: model.CollectionRequests,
		Kind:       model.EventDelete,
		OldRequest: &model.Request{ID: id},
	})
	e.publish(ctx, model.CollectionRequests, model.EventDelete, model.Request{ID: id}, nil)
	return nil
}

// Drain replays the outbox against the remote in FIFO order.  It is
// called on reconnect and on the drain timer; a fully drained queue
// is followed by a silent refresh so ids assigned remotely replace
// the optimistic local copies.
func (e *Engine) Drain(ctx context.Context) (outbox.DrainResult, error) {
	res, err := e.box.Drain(ctx, e.backoff, e.applyPending)
	if err != nil {
		return res, err
	}
	if res.Applied > 0 {
		if rerr := e.RefreshSilent(ctx); rerr != nil {
			log.Printf("engine: post-drain refresh failed: %v", rerr)
		}
	}
	return res, nil
}

// applyPending replays one captured mutation.  Creates reuse the
// dedupe-key path so a replayed create that already won remotely
// resolves to the existing record instead of erroring.
func (e *Engine) applyPending(ctx context.Context, op model.PendingOperation) error {
	switch op.Collection {
	case model.CollectionReservations:
		var res model.Reservation
		if err := json.Unmarshal(op.Payload, &res); err != nil {
			return err
		}
		switch op.Kind {
		case model.MutationCreate:
			res.ID = 0 // remote assigns
			err := e.remote.CreateReservation(ctx, &res)
			if errors.Is(err, repository.ErrDuplicateEntry) {
				return nil
			}
			return err
		case model.MutationUpdate:
			err := e.remote.UpdateReservation(ctx, res)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		case model.MutationDelete:
			err := e.remote.DeleteReservation(ctx, res.ID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
	case model.CollectionRequests:
		var req model.Request
		if err := json.Unmarshal(op.Payload, &req); err != nil {
			return err
		}
		switch op.Kind {
		case model.MutationCreate:
			key := e.dedup.DedupeKey(req, req.CreatedAt)
			req.ID = 0
			err := e.remote.CreateRequest(ctx, &req, key)
			if errors.Is(err, repository.ErrDuplicateEntry) {
				return nil
			}
			return err
		case model.MutationUpdate:
			err := e.remote.UpdateRequest(ctx, req)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		case model.MutationDelete:
			err := e.remote.DeleteRequest(ctx, req.ID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}
	}
	return fmt.Errorf("unknown pending operation %s/%s", op.Collection, op.Kind)
}

// capture persists a mutation into the outbox.  Enqueue durability is
// the contract: the call returns only after the operation is on disk.
func (e *Engine) capture(ctx context.Context, kind model.MutationKind, coll model.Collection, payload any) error {
	e.degraded.Store(true)
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	op := model.PendingOperation{
		ID:         uuid.NewString(),
		Kind:       kind,
		Collection: coll,
		Payload:    body,
		EnqueuedAt: e.now(),
	}
	log.Printf("engine: remote unreachable, queued %s %s %s", kind, coll, op.ID)
	return e.box.Enqueue(ctx, op)
}

// applyLocal routes the engine's own mutations through the same guard
// path remote events take, then refreshes the aggregate.
func (e *Engine) applyLocal(ctx context.Context, events ...model.ChangeEvent) {
	now := e.now()
	for i := range events {
		events[i].ReceivedAt = now
	}
	if err := e.guard.Submit(ctx, events); err != nil {
		log.Printf("engine: local apply dropped: %v", err)
		return
	}
	e.agg.Sync(ctx)
}

// publish emits a change notification to the feed.  Failures are
// logged, never surfaced: the other instances converge on their next
// refresh even if a notification is lost.
func (e *Engine) publish(ctx context.Context, coll model.Collection, kind model.EventKind, old, new_ any) {
	if e.pub == nil {
		return
	}
	n := feed.Notification{
		Collection: string(coll),
		Kind:       string(kind),
		SessionID:  e.sessionID,
		EmittedAt:  e.now(),
	}
	if old != nil {
		if body, err := json.Marshal(old); err == nil {
			n.Old = body
		}
	}
	if new_ != nil {
		if body, err := json.Marshal(new_); err == nil {
			n.New = body
		}
	}
	if err := e.pub.Publish(ctx, n); err != nil {
		log.Printf("engine: feed publish failed: %v", err)
	}
}

// recoverable tags a transient remote failure with
// ErrRemoteUnavailable so callers can tell retry-later from a
// definitive refusal.  Sentinel errors pass through untouched.
func recoverable(err error) error {
	if isTransient(err) {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return err
}

// isTransient classifies a remote failure.  The repository sentinels
// are definitive answers from the datastore; everything else is
// treated as reachability trouble and retried via the outbox.
func isTransient(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrForbidden),
		errors.Is(err, repository.ErrDuplicateEntry),
		errors.Is(err, repository.ErrAlreadyApproved),
		errors.Is(err, repository.ErrAlreadyRejected),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func validateReservation(res model.Reservation) error {
	if res.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrValidation)
	}
	if !res.Partition.Valid() {
		return fmt.Errorf("%w: invalid partition %q", ErrValidation, res.Partition)
	}
	if err := validateAllocation(res.Kind, res.Slots); err != nil {
		return err
	}
	if res.Requester.Name == "" && res.Requester.Email == "" {
		return fmt.Errorf("%w: requester identity required", ErrValidation)
	}
	return nil
}

func validateRequest(req model.Request) error {
	if req.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrValidation)
	}
	if !req.Partition.Valid() {
		return fmt.Errorf("%w: invalid partition %q", ErrValidation, req.Partition)
	}
	if err := validateAllocation(req.Kind, req.Slots); err != nil {
		return err
	}
	if req.Requester.Name == "" && req.Requester.Email == "" {
		return fmt.Errorf("%w: requester identity required", ErrValidation)
	}
	return nil
}

func validateAllocation(kind model.AllocationKind, slots []int) error {
	switch kind {
	case model.AllocationFullRange:
		return nil
	case model.AllocationSlots:
		if len(slots) == 0 {
			return fmt.Errorf("%w: slot allocation without slots", ErrValidation)
		}
		return nil
	default:
		return fmt.Errorf("%w: invalid allocation kind %q", ErrValidation, kind)
	}
}
