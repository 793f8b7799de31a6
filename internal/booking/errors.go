package booking

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a booking failure so callers can react without parsing
// messages.
type Kind string

const (
	KindChallengeRequired  Kind = "challenge_required"
	KindVerificationFailed Kind = "verification_failed"
	KindSeatNoLongerFree   Kind = "seat_no_longer_free"
	KindPartialRelease     Kind = "partial_release"
	KindClaimFailed        Kind = "claim_failed"
	KindNetworkError       Kind = "network_error"
)

// Error is the typed result of a failed (or, for KindPartialRelease,
// degraded) booking step.  SeatIDs names the seats the failure is about.
type Error struct {
	Kind    Kind
	SeatIDs []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if len(e.SeatIDs) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.SeatIDs, ","))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err,
// ErrClaimFailed) works regardless of the seat ids or cause attached.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons against the typed kinds.
var (
	ErrChallengeRequired  = &Error{Kind: KindChallengeRequired}
	ErrVerificationFailed = &Error{Kind: KindVerificationFailed}
	ErrSeatNoLongerFree   = &Error{Kind: KindSeatNoLongerFree}
	ErrPartialRelease     = &Error{Kind: KindPartialRelease}
	ErrClaimFailed        = &Error{Kind: KindClaimFailed}
	ErrNetwork            = &Error{Kind: KindNetworkError}
)

// Service level failures that are not part of the saga itself.
var (
	ErrNoSelection         = errors.New("no seat selected")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrAttemptInFlight     = errors.New("booking already submitting")
	ErrSeatNotFound        = errors.New("seat not found")
	ErrTableNotFound       = errors.New("table not found")
	ErrSeatNotFree         = errors.New("seat is not free")
	ErrAnonymousCaller     = errors.New("caller identity required")
	ErrInvalidFilter       = errors.New("invalid filter")
	ErrInvalidLayout       = errors.New("invalid table layout")
)

// KindOf returns the Kind carried by err, or "" when err is not a booking
// Error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

func networkError(err error, seatIDs ...string) error {
	return &Error{Kind: KindNetworkError, SeatIDs: seatIDs, Err: err}
}
