package booking

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/desk-booking/internal/model"
)

const (
	defaultPageSize           = 100
	defaultReleaseConcurrency = 4
)

var errNotAcknowledged = errors.New("store did not acknowledge update")

// Snapshot is the state written by a rebook.  It is enough to render the
// result without fetching the table again (see Apply).
type Snapshot struct {
	Claimed        model.Reservation
	Released       []model.Reservation
	FailedReleases []string
}

// Warning returns a KindPartialRelease error naming the seats that could
// not be released, or nil.
func (s Snapshot) Warning() error {
	if len(s.FailedReleases) == 0 {
		return nil
	}
	return &Error{Kind: KindPartialRelease, SeatIDs: append([]string(nil), s.FailedReleases...)}
}

// Apply overlays the snapshot onto a previously fetched listing.
func (s Snapshot) Apply(rs []model.Reservation) []model.Reservation {
	byID := make(map[string]model.Reservation, len(s.Released)+1)
	for _, r := range s.Released {
		byID[r.SeatID] = r
	}
	if s.Claimed.SeatID != "" {
		byID[s.Claimed.SeatID] = s.Claimed
	}
	out := make([]model.Reservation, len(rs))
	for i, r := range rs {
		if w, ok := byID[r.SeatID]; ok {
			r = w
		}
		out[i] = r
	}
	return out
}

// Rebooker moves a caller to a new seat: release everything they hold,
// then claim the target.  The two phases are separate store writes.
type Rebooker struct {
	store              Store
	cutover            Cutover
	pageSize           int
	releaseConcurrency int
}

// RebookerOption customises a Rebooker.
type RebookerOption func(*Rebooker)

// WithPageSize sets the page size used when listing a caller's seats.
func WithPageSize(n int) RebookerOption {
	return func(r *Rebooker) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithReleaseConcurrency bounds the number of release writes in flight.
func WithReleaseConcurrency(n int) RebookerOption {
	return func(r *Rebooker) {
		if n > 0 {
			r.releaseConcurrency = n
		}
	}
}

func NewRebooker(store Store, cutover Cutover, opts ...RebookerOption) *Rebooker {
	r := &Rebooker{
		store:              store,
		cutover:            cutover,
		pageSize:           defaultPageSize,
		releaseConcurrency: defaultReleaseConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cutover returns the cutover the rebooker computes expiries with.
func (r *Rebooker) Cutover() Cutover { return r.cutover }

// Rebook releases every seat callerID holds at now and claims
// targetSeatID.
//
// The target is re-read first; if it is no longer free nothing is
// written and a KindSeatNoLongerFree error is returned.  It is read once
// more between the releases and the claim; if it was taken meanwhile the
// error carries the snapshot of what was released.  Release failures
// do not stop the claim: the snapshot lists them and Warning reports
// them.  A failed claim returns KindClaimFailed together with the
// snapshot of what was already released; released seats are not
// re-claimed.
func (r *Rebooker) Rebook(ctx context.Context, callerID, callerName, targetSeatID string, now time.Time) (Snapshot, error) {
	if callerID == "" {
		return Snapshot{}, ErrAnonymousCaller
	}
	target, err := findSeat(ctx, r.store, targetSeatID)
	if err != nil {
		if errors.Is(err, ErrSeatNotFound) {
			return Snapshot{}, err
		}
		return Snapshot{}, networkError(err, targetSeatID)
	}
	if ProjectOne(target, callerID, "", now).State != StateFree {
		return Snapshot{}, &Error{Kind: KindSeatNoLongerFree, SeatIDs: []string{targetSeatID}}
	}

	owned, err := listAll(ctx, r.store, Filter{FieldOwnerID: callerID}, Sort{Field: SortLabel}, r.pageSize)
	if err != nil {
		return Snapshot{}, networkError(err)
	}
	var held []model.Reservation
	for _, res := range owned {
		if res.HeldBy(callerID, now) && res.SeatID != targetSeatID {
			held = append(held, res)
		}
	}

	snap := Snapshot{}
	snap.Released, snap.FailedReleases = r.release(ctx, callerID, held)

	// the releases took time; look at the target again right before the claim
	if len(held) > 0 {
		target, err = findSeat(ctx, r.store, targetSeatID)
		if err != nil {
			if errors.Is(err, ErrSeatNotFound) {
				return snap, err
			}
			return snap, networkError(err, targetSeatID)
		}
		if ProjectOne(target, callerID, "", now).State != StateFree {
			return snap, &Error{Kind: KindSeatNoLongerFree, SeatIDs: []string{targetSeatID}}
		}
	}

	claim := claimPatch(callerID, callerName, now, r.cutover.OccupiedUntil(now))
	ok, err := r.store.UpdateReservation(ctx, Filter{FieldSeatID: targetSeatID}, claim)
	if err == nil && !ok {
		err = errNotAcknowledged
	}
	if err != nil {
		return snap, &Error{Kind: KindClaimFailed, SeatIDs: []string{targetSeatID}, Err: err}
	}
	snap.Claimed = claim.Apply(target)
	return snap, nil
}

// ReleaseSeats vacates the listed seats that callerID still holds,
// skipping keepSeatID.  It is used to retry the cleanup of a partial
// release.  It returns the seat ids whose release failed again.
func (r *Rebooker) ReleaseSeats(ctx context.Context, callerID, keepSeatID string, seatIDs []string, now time.Time) ([]string, error) {
	if callerID == "" {
		return nil, ErrAnonymousCaller
	}
	var held []model.Reservation
	for _, id := range seatIDs {
		if id == keepSeatID {
			continue
		}
		res, err := findSeat(ctx, r.store, id)
		if errors.Is(err, ErrSeatNotFound) {
			continue
		}
		if err != nil {
			return nil, networkError(err, id)
		}
		if res.HeldBy(callerID, now) {
			held = append(held, res)
		}
	}
	_, failed := r.release(ctx, callerID, held)
	return failed, nil
}

// release vacates each row in parallel.  A row that no longer matches the
// caller (someone else wrote it meanwhile) counts as released.
func (r *Rebooker) release(ctx context.Context, callerID string, held []model.Reservation) ([]model.Reservation, []string) {
	if len(held) == 0 {
		return nil, nil
	}
	vacate := vacatePatch()
	errs := make([]error, len(held))

	var g errgroup.Group
	g.SetLimit(r.releaseConcurrency)
	for i, res := range held {
		g.Go(func() error {
			_, err := r.store.UpdateReservation(ctx, Filter{FieldSeatID: res.SeatID, FieldOwnerID: callerID}, vacate)
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var released []model.Reservation
	var failed []string
	for i, res := range held {
		if errs[i] != nil {
			failed = append(failed, res.SeatID)
			continue
		}
		released = append(released, vacate.Apply(res))
	}
	return released, failed
}

func vacatePatch() Patch {
	owner := ""
	until := model.VacatedAt
	return Patch{OwnerID: &owner, OccupiedUntil: &until}
}

func claimPatch(callerID, callerName string, now, until time.Time) Patch {
	since := now.UTC()
	return Patch{
		OwnerID:          &callerID,
		OwnerDisplayName: &callerName,
		OccupiedSince:    &since,
		OccupiedUntil:    &until,
	}
}
