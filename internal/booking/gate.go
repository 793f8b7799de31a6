package booking

import (
	"context"
	"sync"
)

// GateState is the lifecycle of one human-verification challenge.
type GateState string

const (
	GateIdle               GateState = "IDLE"
	GateAwaitingToken      GateState = "AWAITING_TOKEN"
	GateVerifying          GateState = "VERIFYING"
	GateVerified           GateState = "VERIFIED"
	GateVerificationFailed GateState = "VERIFICATION_FAILED"
)

// Verifier asks the external challenge service whether a token is valid.
// A false result with a nil error is a rejection; an error means the
// service could not be asked.
type Verifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// ChallengeHandle is what a client needs to render the challenge widget.
type ChallengeHandle struct {
	SiteKey           string `json:"site_key"`
	ConfigurationName string `json:"configuration_name"`
}

// VerificationResult reports the outcome of OnTokenReceived.  Fresh is
// false when the token had already produced a Verified signal; such a
// result must not start a booking.
type VerificationResult struct {
	Token string
	State GateState
	Fresh bool
}

// Gate tracks one challenge: Idle -> AwaitingToken -> Verifying ->
// Verified | VerificationFailed.  Reset returns it to Idle from anywhere.
type Gate struct {
	verifier Verifier
	handle   ChallengeHandle

	mu       sync.Mutex
	state    GateState
	token    string
	verified string
	gen      uint64
}

func NewGate(v Verifier, handle ChallengeHandle) *Gate {
	return &Gate{verifier: v, handle: handle, state: GateIdle}
}

// BeginChallenge starts a new challenge and discards any retained token.
func (g *Gate) BeginChallenge() ChallengeHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	g.state = GateAwaitingToken
	g.token = ""
	return g.handle
}

// Reset returns the gate to Idle.  A verification still in progress is
// discarded when it completes.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	g.state = GateIdle
	g.token = ""
}

func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// OnTokenReceived verifies token with the external service.  It blocks
// for the duration of the remote call.  Re-emitting the token that was
// already verified yields a non-fresh result instead of a second signal.
func (g *Gate) OnTokenReceived(ctx context.Context, token string) (VerificationResult, error) {
	g.mu.Lock()
	if token == "" {
		st := g.state
		g.mu.Unlock()
		return VerificationResult{State: st}, ErrChallengeRequired
	}
	if token == g.verified {
		st := g.state
		g.mu.Unlock()
		return VerificationResult{Token: token, State: st}, nil
	}
	switch g.state {
	case GateAwaitingToken:
	case GateVerifying:
		g.mu.Unlock()
		return VerificationResult{Token: token, State: GateVerifying}, ErrAttemptInFlight
	default:
		st := g.state
		g.mu.Unlock()
		return VerificationResult{Token: token, State: st}, ErrChallengeRequired
	}
	g.state = GateVerifying
	g.token = token
	gen := g.gen
	g.mu.Unlock()

	ok, err := g.verifier.Verify(ctx, token)

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		// reset while the service was answering
		return VerificationResult{Token: token, State: g.state}, ErrChallengeRequired
	}
	if err != nil {
		g.state = GateVerificationFailed
		return VerificationResult{Token: token, State: g.state}, networkError(err)
	}
	if !ok {
		g.state = GateVerificationFailed
		return VerificationResult{Token: token, State: g.state}, ErrVerificationFailed
	}
	g.state = GateVerified
	g.verified = token
	return VerificationResult{Token: token, State: GateVerified, Fresh: true}, nil
}
