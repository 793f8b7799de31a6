package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu         sync.Mutex
	committed  []Snapshot
	incomplete []Snapshot
}

func (n *recordingNotifier) BookingCommitted(_ context.Context, _ Identity, snap Snapshot) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.committed = append(n.committed, snap)
	return nil
}

func (n *recordingNotifier) ReleaseIncomplete(_ context.Context, _ Identity, snap Snapshot) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.incomplete = append(n.incomplete, snap)
	return nil
}

var alice = Identity{ID: "alice", DisplayName: "Alice"}

type deskFixture struct {
	store    *memStore
	verifier *stubVerifier
	notifier *recordingNotifier
	desk     *Desk
}

func newDeskFixture(t *testing.T) *deskFixture {
	t.Helper()
	f := &deskFixture{
		store: newMemStore(
			heldSeat("A", "t1", "chair-1", "alice", "Alice", at(10, 0)),
			seat("B", "t1", "chair-2"),
			heldSeat("C", "t1", "chair-3", "bob", "Bob", at(10, 0)),
		),
		verifier: newStubVerifier("tok", "tok2"),
		notifier: &recordingNotifier{},
	}
	f.desk = NewDesk(f.store, NewRebooker(f.store, tenOClock), f.verifier,
		WithClock(func() time.Time { return at(9, 0) }),
		WithNotifier(f.notifier),
		WithChallenge(ChallengeHandle{SiteKey: "site", ConfigurationName: "cfg"}),
	)
	return f
}

func TestDeskBooksSelectedSeat(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()

	h, err := f.desk.SelectSeat(ctx, alice, "B")
	require.NoError(t, err)
	assert.Equal(t, "site", h.SiteKey)
	assert.Equal(t, AttemptAwaitingVerification, f.desk.Attempt(alice).Status)
	assert.Equal(t, GateAwaitingToken, f.desk.Attempt(alice).Gate)

	views, err := f.desk.SeatViews(ctx, alice, "hq")
	require.NoError(t, err)
	assert.True(t, views["B"].Selected)
	assert.Equal(t, StateHeldBySelf, views["A"].State)

	out, err := f.desk.BookSelectedSeat(ctx, alice, "tok")
	require.NoError(t, err)
	assert.Equal(t, AttemptCommitted, out.Status)
	assert.Equal(t, "B", out.SeatID)
	assert.NoError(t, out.Warning)

	assert.Equal(t, "alice", f.store.get("B").OwnerID)
	assert.Empty(t, f.store.get("A").OwnerID)
	assert.Equal(t, AttemptIdle, f.desk.Attempt(alice).Status)
	assert.Len(t, f.notifier.committed, 1)
	assert.Empty(t, f.notifier.incomplete)

	active, err := f.desk.ActiveSeat(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "B", active.SeatID)
}

func TestDeskSelectRules(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()

	_, err := f.desk.SelectSeat(ctx, alice, "C")
	assert.ErrorIs(t, err, ErrSeatNotFree)
	_, err = f.desk.SelectSeat(ctx, alice, "A")
	assert.ErrorIs(t, err, ErrSeatNotFree, "own seat is not selectable")
	_, err = f.desk.SelectSeat(ctx, alice, "Z")
	assert.ErrorIs(t, err, ErrSeatNotFound)
	_, err = f.desk.SelectSeat(ctx, Identity{}, "B")
	assert.ErrorIs(t, err, ErrAnonymousCaller)
}

func TestDeskNeedsSelectionAndToken(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()

	_, err := f.desk.BookSelectedSeat(ctx, alice, "tok")
	assert.ErrorIs(t, err, ErrNoSelection)

	_, err = f.desk.SelectSeat(ctx, alice, "B")
	require.NoError(t, err)
	out, err := f.desk.BookSelectedSeat(ctx, alice, "")
	assert.ErrorIs(t, err, ErrChallengeRequired)
	assert.Equal(t, AttemptAwaitingVerification, out.Status)
	assert.Zero(t, f.verifier.Calls())
}

func TestDeskRetriesAfterRejectedToken(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()
	_, err := f.desk.SelectSeat(ctx, alice, "B")
	require.NoError(t, err)

	out, err := f.desk.BookSelectedSeat(ctx, alice, "bad")
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, AttemptFailed, out.Status)
	v := f.desk.Attempt(alice)
	assert.Equal(t, "B", v.SeatID, "selection is kept")
	assert.Equal(t, GateIdle, v.Gate)
	assert.NotEmpty(t, v.LastError)
	assert.Empty(t, f.store.get("B").OwnerID)

	out, err = f.desk.BookSelectedSeat(ctx, alice, "tok")
	require.NoError(t, err)
	assert.Equal(t, AttemptCommitted, out.Status)
}

func TestDeskSameTokenNeverRebooksTwice(t *testing.T) {
	f := newDeskFixture(t)
	f.store.failUpdate = func(fl Filter, _ Patch) error {
		if fl[FieldSeatID] == "B" {
			return errStoreDown
		}
		return nil
	}
	ctx := context.Background()
	_, err := f.desk.SelectSeat(ctx, alice, "B")
	require.NoError(t, err)

	_, err = f.desk.BookSelectedSeat(ctx, alice, "tok")
	require.ErrorIs(t, err, ErrClaimFailed)
	assert.Equal(t, AttemptFailed, f.desk.Attempt(alice).Status)

	_, err = f.desk.BookSelectedSeat(ctx, alice, "tok")
	assert.ErrorIs(t, err, ErrDuplicateSubmission)

	claims := 0
	for _, fl := range f.store.updates {
		if fl[FieldSeatID] == "B" {
			claims++
		}
	}
	assert.Equal(t, 1, claims)

	f.store.failUpdate = nil
	out, err := f.desk.BookSelectedSeat(ctx, alice, "tok2")
	require.NoError(t, err)
	assert.Equal(t, AttemptCommitted, out.Status)
}

func TestDeskSeatTakenBeforeSubmit(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()
	_, err := f.desk.SelectSeat(ctx, alice, "B")
	require.NoError(t, err)

	f.store.mu.Lock()
	f.store.rows["B"] = heldSeat("B", "t1", "chair-2", "bob", "Bob", at(10, 0))
	f.store.mu.Unlock()

	out, err := f.desk.BookSelectedSeat(ctx, alice, "tok")
	assert.ErrorIs(t, err, ErrSeatNoLongerFree)
	assert.Equal(t, AttemptFailed, out.Status)
	assert.Equal(t, "alice", f.store.get("A").OwnerID, "nothing released")
}

func TestDeskPartialReleaseWarns(t *testing.T) {
	f := newDeskFixture(t)
	f.store.failUpdate = func(fl Filter, _ Patch) error {
		if fl[FieldSeatID] == "A" {
			return errStoreDown
		}
		return nil
	}
	ctx := context.Background()
	_, err := f.desk.SelectSeat(ctx, alice, "B")
	require.NoError(t, err)

	out, err := f.desk.BookSelectedSeat(ctx, alice, "tok")
	require.NoError(t, err)
	assert.Equal(t, AttemptCommitted, out.Status)
	assert.ErrorIs(t, out.Warning, ErrPartialRelease)
	assert.Equal(t, []string{"A"}, out.Snapshot.FailedReleases)
	assert.Len(t, f.notifier.incomplete, 1)
}

func TestDeskActiveSeatAfterPartialRelease(t *testing.T) {
	f := newDeskFixture(t)
	f.store.mu.Lock()
	a := f.store.rows["A"]
	a.OccupiedSince = at(8, 0)
	f.store.rows["A"] = a
	f.store.mu.Unlock()
	f.store.failUpdate = func(fl Filter, _ Patch) error {
		if fl[FieldSeatID] == "A" {
			return errStoreDown
		}
		return nil
	}
	ctx := context.Background()
	_, err := f.desk.SelectSeat(ctx, alice, "B")
	require.NoError(t, err)
	out, err := f.desk.BookSelectedSeat(ctx, alice, "tok")
	require.NoError(t, err)
	require.ErrorIs(t, out.Warning, ErrPartialRelease)
	require.Equal(t, "alice", f.store.get("A").OwnerID)

	active, err := f.desk.ActiveSeat(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "B", active.SeatID, "the seat just booked, not the stale one")
}

func TestDeskClearDuringVerification(t *testing.T) {
	f := newDeskFixture(t)
	f.verifier.block = make(chan struct{})
	f.verifier.entered = make(chan struct{}, 1)
	ctx := context.Background()
	_, err := f.desk.SelectSeat(ctx, alice, "B")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.desk.BookSelectedSeat(ctx, alice, "tok")
		done <- err
	}()
	<-f.verifier.entered

	assert.Equal(t, AttemptVerifying, f.desk.Attempt(alice).Status)
	_, err = f.desk.BookSelectedSeat(ctx, alice, "tok2")
	assert.ErrorIs(t, err, ErrDuplicateSubmission, "second confirm while verifying")
	_, err = f.desk.SelectSeat(ctx, alice, "B")
	assert.ErrorIs(t, err, ErrAttemptInFlight)

	require.NoError(t, f.desk.ClearSelection(alice))
	close(f.verifier.block)

	assert.ErrorIs(t, <-done, ErrChallengeRequired)
	assert.Empty(t, f.store.get("B").OwnerID)
	assert.Equal(t, AttemptIdle, f.desk.Attempt(alice).Status)
	assert.Empty(t, f.notifier.committed)
}

func TestDeskActiveSeatNone(t *testing.T) {
	f := newDeskFixture(t)
	v, err := f.desk.ActiveSeat(context.Background(), Identity{ID: "carol"})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = f.desk.ActiveSeat(context.Background(), Identity{})
	assert.ErrorIs(t, err, ErrAnonymousCaller)
}
