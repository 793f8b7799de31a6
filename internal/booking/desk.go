package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/desk-booking/internal/logger"
	"github.com/iliyamo/desk-booking/internal/model"
)

const defaultSubmitTimeout = 30 * time.Second

// Identity is the authenticated caller as supplied by the identity
// provider.
type Identity struct {
	ID          string
	DisplayName string
}

// AttemptStatus is the lifecycle of one caller's booking attempt.
type AttemptStatus string

const (
	AttemptIdle                 AttemptStatus = "IDLE"
	AttemptAwaitingVerification AttemptStatus = "AWAITING_VERIFICATION"
	AttemptVerifying            AttemptStatus = "VERIFYING"
	AttemptSubmitting           AttemptStatus = "SUBMITTING"
	AttemptCommitted            AttemptStatus = "COMMITTED"
	AttemptFailed               AttemptStatus = "FAILED"
)

// AttemptView is the externally visible state of an attempt.
type AttemptView struct {
	SeatID    string        `json:"seat_id,omitempty"`
	Status    AttemptStatus `json:"status"`
	Gate      GateState     `json:"gate"`
	LastError string        `json:"last_error,omitempty"`
}

// Outcome is the result of BookSelectedSeat.  Warning is a
// KindPartialRelease error when the booking succeeded but some old seats
// could not be released.
type Outcome struct {
	Status   AttemptStatus
	SeatID   string
	Snapshot Snapshot
	Warning  error
}

// Notifier is told about committed bookings and incomplete releases.
// Failures are logged and never undo a booking.
type Notifier interface {
	BookingCommitted(ctx context.Context, caller Identity, snap Snapshot) error
	ReleaseIncomplete(ctx context.Context, caller Identity, snap Snapshot) error
}

type attempt struct {
	seatID  string
	status  AttemptStatus
	gate    *Gate
	lastErr error
}

// Desk is the booking surface exposed to the HTTP layer.  It keeps one
// in-memory attempt per caller; everything durable lives in the Store.
type Desk struct {
	store         Store
	rebooker      *Rebooker
	verifier      Verifier
	challenge     ChallengeHandle
	ledger        TokenLedger
	notifier      Notifier
	log           *logger.Logger
	now           func() time.Time
	submitTimeout time.Duration

	mu       sync.Mutex
	attempts map[string]*attempt
	guards   map[string]*Guard
}

// DeskOption customises a Desk.
type DeskOption func(*Desk)

func WithChallenge(h ChallengeHandle) DeskOption { return func(d *Desk) { d.challenge = h } }
func WithLedger(l TokenLedger) DeskOption        { return func(d *Desk) { d.ledger = l } }
func WithNotifier(n Notifier) DeskOption         { return func(d *Desk) { d.notifier = n } }
func WithLogger(l *logger.Logger) DeskOption     { return func(d *Desk) { d.log = l } }
func WithClock(now func() time.Time) DeskOption  { return func(d *Desk) { d.now = now } }

// WithSubmitTimeout bounds a rebook once it has started.  The saga does
// not observe the caller's cancellation, only this timeout.
func WithSubmitTimeout(t time.Duration) DeskOption {
	return func(d *Desk) {
		if t > 0 {
			d.submitTimeout = t
		}
	}
}

func NewDesk(store Store, rebooker *Rebooker, verifier Verifier, opts ...DeskOption) *Desk {
	d := &Desk{
		store:         store,
		rebooker:      rebooker,
		verifier:      verifier,
		now:           time.Now,
		submitTimeout: defaultSubmitTimeout,
		attempts:      make(map[string]*attempt),
		guards:        make(map[string]*Guard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeatViews projects every seat of unit for caller at the current time.
func (d *Desk) SeatViews(ctx context.Context, caller Identity, unit string) (map[string]SeatView, error) {
	rs, err := listAll(ctx, d.store, Filter{FieldUnit: unit}, Sort{Field: SortTableName}, defaultPageSize)
	if err != nil {
		return nil, networkError(err)
	}
	return Project(rs, caller.ID, d.selectedSeat(caller.ID), d.now()), nil
}

// Now is the desk's clock.
func (d *Desk) Now() time.Time { return d.now() }

// ActiveSeat returns the view of the seat caller holds now, or nil.  After
// a partial release the caller briefly holds several seats; the most
// recently booked one wins.
func (d *Desk) ActiveSeat(ctx context.Context, caller Identity) (*SeatView, error) {
	if caller.ID == "" {
		return nil, ErrAnonymousCaller
	}
	rs, err := listAll(ctx, d.store, Filter{FieldOwnerID: caller.ID}, Sort{Field: SortLabel}, defaultPageSize)
	if err != nil {
		return nil, networkError(err)
	}
	now := d.now()
	var latest *model.Reservation
	for i := range rs {
		if !rs[i].HeldBy(caller.ID, now) {
			continue
		}
		if latest == nil || rs[i].OccupiedSince.After(latest.OccupiedSince) {
			latest = &rs[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	v := ProjectOne(*latest, caller.ID, "", now)
	return &v, nil
}

// SelectSeat starts an attempt on seatID, which must be free now, and
// returns the challenge the caller has to complete.
func (d *Desk) SelectSeat(ctx context.Context, caller Identity, seatID string) (ChallengeHandle, error) {
	if caller.ID == "" {
		return ChallengeHandle{}, ErrAnonymousCaller
	}
	if d.inFlight(caller.ID) {
		return ChallengeHandle{}, ErrAttemptInFlight
	}
	res, err := findSeat(ctx, d.store, seatID)
	if err != nil {
		if errors.Is(err, ErrSeatNotFound) {
			return ChallengeHandle{}, err
		}
		return ChallengeHandle{}, networkError(err, seatID)
	}
	if ProjectOne(res, caller.ID, "", d.now()).State != StateFree {
		return ChallengeHandle{}, ErrSeatNotFree
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.attempts[caller.ID]
	if a != nil && (a.status == AttemptVerifying || a.status == AttemptSubmitting) {
		return ChallengeHandle{}, ErrAttemptInFlight
	}
	if a == nil {
		a = &attempt{gate: NewGate(d.verifier, d.challenge)}
		d.attempts[caller.ID] = a
	}
	a.seatID = seatID
	a.status = AttemptAwaitingVerification
	a.lastErr = nil
	a.gate.Reset()
	return a.gate.BeginChallenge(), nil
}

// ClearSelection cancels the caller's attempt.  Once the attempt is
// submitting it can no longer be cancelled.
func (d *Desk) ClearSelection(caller Identity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.attempts[caller.ID]
	if a == nil {
		return nil
	}
	if a.status == AttemptSubmitting {
		return ErrAttemptInFlight
	}
	a.gate.Reset()
	delete(d.attempts, caller.ID)
	return nil
}

// Attempt reports the caller's current attempt.
func (d *Desk) Attempt(caller Identity) AttemptView {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.attempts[caller.ID]
	if a == nil {
		return AttemptView{Status: AttemptIdle, Gate: GateIdle}
	}
	v := AttemptView{SeatID: a.seatID, Status: a.status, Gate: a.gate.State()}
	if a.lastErr != nil {
		v.LastError = a.lastErr.Error()
	}
	return v
}

// BookSelectedSeat verifies token and, if it is fresh and admitted by
// the caller's guard, runs the rebooking transaction for the selected
// seat.  On failure the selection is kept so the caller can retry with a
// new token.
func (d *Desk) BookSelectedSeat(ctx context.Context, caller Identity, token string) (Outcome, error) {
	if caller.ID == "" {
		return Outcome{Status: AttemptIdle}, ErrAnonymousCaller
	}

	d.mu.Lock()
	a := d.attempts[caller.ID]
	if a == nil || a.seatID == "" {
		d.mu.Unlock()
		return Outcome{Status: AttemptIdle}, ErrNoSelection
	}
	seatID := a.seatID
	switch a.status {
	case AttemptVerifying, AttemptSubmitting:
		st := a.status
		d.mu.Unlock()
		return Outcome{Status: st, SeatID: seatID}, ErrDuplicateSubmission
	case AttemptFailed:
		// a retry is a fresh challenge on the same selection
		a.gate.Reset()
		a.gate.BeginChallenge()
		a.status = AttemptAwaitingVerification
	}
	guard := d.guardLocked(caller.ID)
	if token == "" {
		d.mu.Unlock()
		return Outcome{Status: AttemptAwaitingVerification, SeatID: seatID}, ErrChallengeRequired
	}
	if guard.Seen(token) {
		d.mu.Unlock()
		return Outcome{Status: AttemptAwaitingVerification, SeatID: seatID}, ErrDuplicateSubmission
	}
	a.status = AttemptVerifying
	gate := a.gate
	d.mu.Unlock()

	res, err := gate.OnTokenReceived(ctx, token)
	if err == nil && !res.Fresh {
		d.restore(caller.ID, a, AttemptAwaitingVerification)
		return Outcome{Status: AttemptAwaitingVerification, SeatID: seatID}, ErrDuplicateSubmission
	}
	if err != nil {
		return d.fail(caller, a, seatID, Snapshot{}, err)
	}

	if err := guard.Admit(ctx, token); err != nil {
		return d.fail(caller, a, seatID, Snapshot{}, err)
	}
	if !d.transition(caller.ID, a, AttemptVerifying, AttemptSubmitting) {
		guard.Done()
		return Outcome{Status: AttemptIdle}, ErrNoSelection
	}

	snap, err := d.submit(ctx, caller, seatID)
	guard.Done()
	if err != nil {
		return d.fail(caller, a, seatID, snap, err)
	}

	d.mu.Lock()
	a.status = AttemptCommitted
	if d.attempts[caller.ID] == a {
		delete(d.attempts, caller.ID)
	}
	d.mu.Unlock()

	d.log.LogBooking("COMMIT", seatID, fmt.Sprintf("user=%s released=%d", caller.ID, len(snap.Released)))
	d.notify(ctx, caller, snap)
	return Outcome{Status: AttemptCommitted, SeatID: seatID, Snapshot: snap, Warning: snap.Warning()}, nil
}

func (d *Desk) submit(ctx context.Context, caller Identity, seatID string) (Snapshot, error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.submitTimeout)
	defer cancel()
	return d.rebooker.Rebook(sctx, caller.ID, caller.DisplayName, seatID, d.now())
}

func (d *Desk) notify(ctx context.Context, caller Identity, snap Snapshot) {
	if d.notifier == nil {
		return
	}
	nctx := context.WithoutCancel(ctx)
	if err := d.notifier.BookingCommitted(nctx, caller, snap); err != nil {
		d.log.Warn("BOOKING", fmt.Sprintf("publish committed event for %s failed: %v", snap.Claimed.SeatID, err))
	}
	if len(snap.FailedReleases) == 0 {
		return
	}
	d.log.Warn("BOOKING", fmt.Sprintf("partial release for user=%s seats=%v", caller.ID, snap.FailedReleases))
	if err := d.notifier.ReleaseIncomplete(nctx, caller, snap); err != nil {
		d.log.Error("BOOKING", fmt.Sprintf("schedule release retry for user=%s failed: %v", caller.ID, err))
	}
}

// fail records err on the attempt, keeping the selection.  An attempt
// cleared meanwhile is left alone.
func (d *Desk) fail(caller Identity, a *attempt, seatID string, snap Snapshot, err error) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attempts[caller.ID] != a {
		return Outcome{Status: AttemptIdle, SeatID: seatID, Snapshot: snap}, err
	}
	a.status = AttemptFailed
	a.lastErr = err
	a.gate.Reset()
	d.log.LogBooking("FAIL", seatID, fmt.Sprintf("user=%s: %v", caller.ID, err))
	return Outcome{Status: AttemptFailed, SeatID: seatID, Snapshot: snap}, err
}

func (d *Desk) restore(callerID string, a *attempt, st AttemptStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attempts[callerID] == a && a.status == AttemptVerifying {
		a.status = st
	}
}

func (d *Desk) transition(callerID string, a *attempt, from, to AttemptStatus) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attempts[callerID] != a || a.status != from {
		return false
	}
	a.status = to
	return true
}

func (d *Desk) guardLocked(callerID string) *Guard {
	g := d.guards[callerID]
	if g == nil {
		g = NewGuard(d.ledger)
		d.guards[callerID] = g
	}
	return g
}

func (d *Desk) inFlight(callerID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.attempts[callerID]
	return a != nil && (a.status == AttemptVerifying || a.status == AttemptSubmitting)
}

func (d *Desk) selectedSeat(callerID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a := d.attempts[callerID]; a != nil {
		return a.seatID
	}
	return ""
}
