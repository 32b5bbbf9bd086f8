package sync

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation-sync/internal/config"
	"github.com/iliyamo/venue-reservation-sync/internal/model"
	"github.com/iliyamo/venue-reservation-sync/internal/outbox"
	"github.com/iliyamo/venue-reservation-sync/internal/repository"
)

var errRemoteDown = errors.New("dial tcp: connection refused")

// fakeRemote is an in-memory Remote with fault injection.
type fakeRemote struct {
	mu stdsync.Mutex

	offline bool

	reservations map[uint64]model.Reservation
	requests     map[uint64]model.Request
	byDedupeKey  map[string]uint64
	specials     map[uint64]model.SpecialDate
	intents      map[uint64]*model.PromotionIntent

	nextResID    uint64
	nextReqID    uint64
	nextIntentID uint64

	failDeleteRequest bool // force the promotion cleanup step to fail
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		reservations: map[uint64]model.Reservation{},
		requests:     map[uint64]model.Request{},
		byDedupeKey:  map[string]uint64{},
		specials:     map[uint64]model.SpecialDate{},
		intents:      map[uint64]*model.PromotionIntent{},
	}
}

func (f *fakeRemote) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

func (f *fakeRemote) FetchAll(ctx context.Context) ([]model.Reservation, []model.Request, []model.SpecialDate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, nil, nil, errRemoteDown
	}
	var rs []model.Reservation
	for _, r := range f.reservations {
		rs = append(rs, r)
	}
	var qs []model.Request
	for _, r := range f.requests {
		qs = append(qs, r)
	}
	var sd []model.SpecialDate
	for _, s := range f.specials {
		sd = append(sd, s)
	}
	return rs, qs, sd, nil
}

func (f *fakeRemote) CreateReservation(ctx context.Context, res *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errRemoteDown
	}
	f.nextResID++
	res.ID = f.nextResID
	f.reservations[res.ID] = res.Clone()
	return nil
}

func (f *fakeRemote) GetReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return model.Reservation{}, errRemoteDown
	}
	r, ok := f.reservations[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	return r.Clone(), nil
}

func (f *fakeRemote) UpdateReservation(ctx context.Context, res model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errRemoteDown
	}
	if _, ok := f.reservations[res.ID]; !ok {
		return repository.ErrNotFound
	}
	f.reservations[res.ID] = res.Clone()
	return nil
}

func (f *fakeRemote) DeleteReservation(ctx context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errRemoteDown
	}
	if _, ok := f.reservations[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.reservations, id)
	return nil
}

func (f *fakeRemote) CreateRequest(ctx context.Context, req *model.Request, dedupeKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errRemoteDown
	}
	if _, taken := f.byDedupeKey[dedupeKey]; taken {
		return repository.ErrDuplicateEntry
	}
	f.nextReqID++
	req.ID = f.nextReqID
	f.requests[req.ID] = req.Clone()
	f.byDedupeKey[dedupeKey] = req.ID
	return nil
}

func (f *fakeRemote) GetRequest(ctx context.Context, id uint64) (model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return model.Request{}, errRemoteDown
	}
	r, ok := f.requests[id]
	if !ok {
		return model.Request{}, repository.ErrNotFound
	}
	return r.Clone(), nil
}

func (f *fakeRemote) GetRequestByDedupeKey(ctx context.Context, key string) (model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byDedupeKey[key]
	if !ok {
		return model.Request{}, repository.ErrNotFound
	}
	return f.requests[id].Clone(), nil
}

func (f *fakeRemote) UpdateRequest(ctx context.Context, req model.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errRemoteDown
	}
	if _, ok := f.requests[req.ID]; !ok {
		return repository.ErrNotFound
	}
	f.requests[req.ID] = req.Clone()
	return nil
}

func (f *fakeRemote) DeleteRequest(ctx context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errRemoteDown
	}
	if f.failDeleteRequest {
		return errRemoteDown
	}
	if _, ok := f.requests[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.requests, id)
	return nil
}

func (f *fakeRemote) TransitionRequest(ctx context.Context, id uint64, from, to model.RequestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errRemoteDown
	}
	r, ok := f.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Status == from {
		r.Status = to
		f.requests[id] = r
		return nil
	}
	switch r.Status {
	case model.RequestApproved, model.RequestConfirmed:
		return repository.ErrAlreadyApproved
	case model.RequestRejected:
		return repository.ErrAlreadyRejected
	}
	return repository.ErrNotFound
}

func (f *fakeRemote) FindCandidates(ctx context.Context, probe model.DuplicateProbe) ([]model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errRemoteDown
	}
	var out []model.Request
	for _, r := range f.requests {
		if r.Status != model.RequestPending && r.Status != model.RequestApproved {
			continue
		}
		if !r.Date.Equal(probe.Date) || r.Partition != probe.Partition {
			continue
		}
		if r.CreatedAt.Before(probe.Since) {
			continue
		}
		if strings.EqualFold(r.Requester.Email, probe.Email) || strings.EqualFold(r.Requester.Name, probe.Name) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (f *fakeRemote) BeginPromotion(ctx context.Context, req model.Request) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return 0, errRemoteDown
	}
	f.nextIntentID++
	f.intents[f.nextIntentID] = &model.PromotionIntent{
		ID:        f.nextIntentID,
		RequestID: req.ID,
		Request:   req.Clone(),
		CreatedAt: time.Now().UTC(),
	}
	return f.nextIntentID, nil
}

func (f *fakeRemote) SetPromotionReservation(ctx context.Context, intentID, reservationID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in, ok := f.intents[intentID]; ok {
		in.ReservationID = reservationID
	}
	return nil
}

func (f *fakeRemote) CompletePromotion(ctx context.Context, intentID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.intents, intentID)
	return nil
}

func (f *fakeRemote) OpenPromotions(ctx context.Context, olderThan time.Duration) ([]model.PromotionIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PromotionIntent
	for _, in := range f.intents {
		out = append(out, *in)
	}
	return out, nil
}

func (f *fakeRemote) openIntents() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.intents)
}

func (f *fakeRemote) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeRemote) reservationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reservations)
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		DedupCandidateWindow: 10 * time.Minute,
		DedupExactWindow:     5 * time.Minute,
		GuardCooldown:        0,
		BackoffBase:          time.Millisecond,
		BackoffMax:           10 * time.Millisecond,
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeRemote, *State) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	remote := newFakeRemote()
	state := NewState()
	guard := NewGuard(ctx, state, 0)
	box, err := outbox.Open(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = box.Close() })

	agg := NewAggregator(state, nil)
	e := NewEngine(remote, state, guard, box, nil, agg, "session-test", testSyncConfig())
	return e, remote, state
}

func pendingRequest(t *testing.T, e *Engine, remote *fakeRemote) model.Request {
	t.Helper()
	created, fresh, err := e.CreateRequest(context.Background(), model.Request{
		Date:      day("2026-04-10"),
		Partition: model.PartitionA,
		Kind:      model.AllocationFullRange,
		Requester: model.Requester{Name: "Dana", Email: "dana@example.com"},
		Category:  "wedding",
	})
	require.NoError(t, err)
	require.True(t, fresh)
	require.NotZero(t, created.ID)
	return created
}

func TestCreateRequestAssignsTokenAndStatus(t *testing.T) {
	e, remote, state := newTestEngine(t)
	created := pendingRequest(t, e, remote)

	assert.Equal(t, model.RequestPending, created.Status)
	assert.Regexp(t, `^REQ-\d{8}-\d{6}-[0-9a-f]{4}$`, created.TrackingToken)
	assert.Equal(t, "session-test", created.SessionID)

	waitFor(t, func() bool {
		return len(state.Snapshot().RequestsFor(model.PartitionA)) == 1
	})
	assert.Equal(t, 1, e.PendingCount())
}

func TestCreateRequestDeduplicates(t *testing.T) {
	e, remote, _ := newTestEngine(t)
	first := pendingRequest(t, e, remote)

	second, fresh, err := e.CreateRequest(context.Background(), model.Request{
		Date:      day("2026-04-10"),
		Partition: model.PartitionA,
		Kind:      model.AllocationFullRange,
		Requester: model.Requester{Name: "dana", Email: "DANA@example.com"},
		Category:  "Wedding",
	})
	require.NoError(t, err)
	assert.False(t, fresh, "exact duplicate returns the existing record")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, remote.requestCount())
}

func TestCreateRequestValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, _, err := e.CreateRequest(context.Background(), model.Request{
		Date:      day("2026-04-10"),
		Partition: "Z",
		Kind:      model.AllocationFullRange,
		Requester: model.Requester{Name: "Dana"},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = e.CreateRequest(context.Background(), model.Request{
		Date:      day("2026-04-10"),
		Partition: model.PartitionA,
		Kind:      model.AllocationSlots, // no slots
		Requester: model.Requester{Name: "Dana"},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestApprovePromotesAndCleansUp(t *testing.T) {
	e, remote, state := newTestEngine(t)
	created := pendingRequest(t, e, remote)

	res, err := e.ApproveRequest(context.Background(), created.ID)
	require.NoError(t, err)
	assert.NotZero(t, res.ID)
	assert.Equal(t, model.ReservationApproved, res.Status)

	assert.Equal(t, 0, remote.requestCount(), "promoted request leaves the request collection")
	assert.Equal(t, 0, remote.openIntents(), "intent completed")

	waitFor(t, func() bool {
		snap := state.Snapshot()
		return len(snap.RequestsFor(model.PartitionA)) == 0 &&
			len(snap.ReservationsFor(model.PartitionA)) == 1
	})
	assert.Equal(t, 0, e.PendingCount())
}

func TestApproveIsGuardedAgainstDoubleDecision(t *testing.T) {
	e, remote, _ := newTestEngine(t)
	created := pendingRequest(t, e, remote)

	require.NoError(t, e.RejectRequest(context.Background(), created.ID))
	_, err := e.ApproveRequest(context.Background(), created.ID)
	assert.ErrorIs(t, err, repository.ErrAlreadyRejected)

	err = e.RejectRequest(context.Background(), created.ID)
	assert.ErrorIs(t, err, repository.ErrAlreadyRejected)
}

func TestApproveSurfacesCleanupFailure(t *testing.T) {
	e, remote, _ := newTestEngine(t)
	created := pendingRequest(t, e, remote)

	remote.failDeleteRequest = true
	_, err := e.ApproveRequest(context.Background(), created.ID)
	assert.ErrorIs(t, err, repository.ErrPromotionCleanup)
	assert.Equal(t, 1, remote.openIntents(), "intent stays open for the sweep")

	// The sweep finishes the half-done promotion once the remote
	// cooperates again.
	remote.failDeleteRequest = false
	require.NoError(t, e.SweepPromotions(context.Background(), 0))
	assert.Equal(t, 0, remote.openIntents())
	assert.Equal(t, 0, remote.requestCount())
	assert.Equal(t, 1, remote.reservationCount(), "replayed promotion must not double-book")
}

func TestOfflineMutationsAreCapturedAndDrained(t *testing.T) {
	e, remote, state := newTestEngine(t)
	remote.setOffline(true)

	created, err := e.CreateReservation(context.Background(), model.Reservation{
		Date:      day("2026-04-12"),
		Partition: model.PartitionB,
		Kind:      model.AllocationFullRange,
		Requester: model.Requester{Name: "Avery", Email: "avery@example.com"},
	})
	require.NoError(t, err, "offline create is captured, not failed")
	assert.True(t, e.Degraded())
	assert.GreaterOrEqual(t, created.ID, localIDBase, "placeholder id while offline")

	second, err := e.CreateReservation(context.Background(), model.Reservation{
		Date:      day("2026-04-13"),
		Partition: model.PartitionB,
		Kind:      model.AllocationFullRange,
		Requester: model.Requester{Name: "Blake", Email: "blake@example.com"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, second.ID, "placeholders are distinct")

	// Both optimistic copies are visible locally before the remote
	// ever heard about them; the reconciler keys on id, so the second
	// create must not evict the first.
	waitFor(t, func() bool {
		return len(state.Snapshot().ReservationsFor(model.PartitionB)) == 2
	})

	remote.setOffline(false)
	result, err := e.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	assert.False(t, e.Degraded(), "post-drain refresh clears the degraded flag")

	// After the drain both records carry remote-assigned ids; the
	// placeholders are gone.
	waitFor(t, func() bool {
		rs := state.Snapshot().ReservationsFor(model.PartitionB)
		if len(rs) != 2 {
			return false
		}
		for _, r := range rs {
			if r.ID == 0 || r.ID >= localIDBase {
				return false
			}
		}
		return true
	})
}

func TestDecisionsRequireReachableRemote(t *testing.T) {
	// Approvals and rejections go through the guarded transition and
	// are never captured for replay; offline they fail with a typed
	// retry-later error and leave the request untouched.
	e, remote, _ := newTestEngine(t)
	created := pendingRequest(t, e, remote)

	remote.setOffline(true)
	_, err := e.ApproveRequest(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.ErrorIs(t, e.RejectRequest(context.Background(), created.ID), ErrRemoteUnavailable)

	remote.setOffline(false)
	got, gerr := remote.GetRequest(context.Background(), created.ID)
	require.NoError(t, gerr)
	assert.Equal(t, model.RequestPending, got.Status, "no decision was recorded")
	assert.Equal(t, 0, remote.openIntents())
}

func TestUpdateResolvesRemoteConflict(t *testing.T) {
	e, remote, state := newTestEngine(t)

	base, err := e.CreateReservation(context.Background(), model.Reservation{
		Date:      day("2026-04-12"),
		Partition: model.PartitionA,
		Kind:      model.AllocationFullRange,
		Requester: model.Requester{Name: "Avery", Email: "avery@example.com"},
	})
	require.NoError(t, err)
	waitFor(t, func() bool {
		_, ok := state.Snapshot().ReservationByID(base.ID)
		return ok
	})

	// Another instance marked it paid+confirmed behind our back.
	remote.mu.Lock()
	divergent := remote.reservations[base.ID]
	divergent.Paid = true
	divergent.Status = model.ReservationConfirmed
	remote.reservations[base.ID] = divergent
	remote.mu.Unlock()

	// Remote wins arbitrates the fields we did not touch, while the
	// edit itself (the note and the amount) goes through.
	edited := base.Clone()
	edited.Note = "window table please"
	edited.AmountCents = 5000
	got, err := e.UpdateReservation(context.Background(), edited)
	require.NoError(t, err)
	assert.True(t, got.Paid, "divergent remote payment survives")
	assert.Equal(t, model.ReservationConfirmed, got.Status)
	assert.Equal(t, "window table please", got.Note, "the edit is not a conflict")
	assert.Equal(t, uint32(5000), got.AmountCents, "a deliberate edit beats arbitration")
	waitFor(t, func() bool {
		r, ok := state.Snapshot().ReservationByID(base.ID)
		return ok && r.Paid
	})

	// Manual strategy refuses to pick a side once the copies diverge
	// again.
	remote.mu.Lock()
	divergent = remote.reservations[base.ID]
	divergent.AmountCents = 9900
	remote.reservations[base.ID] = divergent
	remote.mu.Unlock()

	e.SetStrategy(model.ResolveManual)
	retry := got.Clone()
	retry.Note = "corner table instead"
	_, err = e.UpdateReservation(context.Background(), retry)
	assert.ErrorIs(t, err, ErrManualConflict)
}

func TestUpdateWithoutDivergenceNeedsNoArbitration(t *testing.T) {
	// An edit to an arbitrated field against an unchanged remote is
	// just a write, never a conflict, regardless of strategy.
	e, remote, state := newTestEngine(t)
	e.SetStrategy(model.ResolveManual)

	base, err := e.CreateReservation(context.Background(), model.Reservation{
		Date:      day("2026-04-12"),
		Partition: model.PartitionA,
		Kind:      model.AllocationFullRange,
		Requester: model.Requester{Name: "Avery", Email: "avery@example.com"},
	})
	require.NoError(t, err)
	waitFor(t, func() bool {
		_, ok := state.Snapshot().ReservationByID(base.ID)
		return ok
	})

	edited := base.Clone()
	edited.Paid = true
	edited.Status = model.ReservationConfirmed
	got, err := e.UpdateReservation(context.Background(), edited)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.Equal(t, model.ReservationConfirmed, got.Status)

	stored, gerr := remote.GetReservation(context.Background(), base.ID)
	require.NoError(t, gerr)
	assert.True(t, stored.Paid, "the write reached the remote unreverted")
}

func TestMarkPaidConfirms(t *testing.T) {
	e, remote, _ := newTestEngine(t)
	created := pendingRequest(t, e, remote)
	res, err := e.ApproveRequest(context.Background(), created.ID)
	require.NoError(t, err)

	got, err := e.MarkPaid(context.Background(), res.ID, 12000)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.Equal(t, uint32(12000), got.AmountCents)
	assert.Equal(t, model.ReservationConfirmed, got.Status)

	// Paying again is harmless and does not regress the status.
	again, err := e.MarkPaid(context.Background(), res.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, again.Status)
	assert.Equal(t, uint32(12000), again.AmountCents)
}

func TestRefreshTogglesLoadingAndSilentDoesNot(t *testing.T) {
	e, remote, state := newTestEngine(t)
	remote.mu.Lock()
	remote.nextResID = 10
	remote.reservations[10] = res(10, model.PartitionA, "2026-04-15", time.Now().UTC())
	remote.mu.Unlock()

	require.NoError(t, e.RefreshSilent(context.Background()))
	assert.False(t, e.Loading())
	waitFor(t, func() bool {
		return len(state.Snapshot().ReservationsFor(model.PartitionA)) == 1
	})

	remote.setOffline(true)
	err := e.Refresh(context.Background())
	assert.Error(t, err)
	assert.True(t, e.Degraded())
	assert.False(t, e.Loading(), "flag cleared after the attempt")
	// Last known state survives the failed refresh.
	assert.Len(t, state.Snapshot().ReservationsFor(model.PartitionA), 1)
}
