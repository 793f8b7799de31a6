package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVerifier answers from a map; tokens not listed are rejected.  When
// block is set every call waits for a value on it first.
type stubVerifier struct {
	mu      sync.Mutex
	answers map[string]bool
	err     error
	calls   int
	block   chan struct{}
	entered chan struct{}
}

func newStubVerifier(valid ...string) *stubVerifier {
	v := &stubVerifier{answers: make(map[string]bool)}
	for _, t := range valid {
		v.answers[t] = true
	}
	return v
}

func (v *stubVerifier) Verify(ctx context.Context, token string) (bool, error) {
	v.mu.Lock()
	v.calls++
	block, entered := v.block, v.entered
	v.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return false, v.err
	}
	return v.answers[token], nil
}

func (v *stubVerifier) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func TestGateAcceptsValidToken(t *testing.T) {
	g := NewGate(newStubVerifier("tok"), ChallengeHandle{SiteKey: "k"})
	assert.Equal(t, GateIdle, g.State())

	h := g.BeginChallenge()
	assert.Equal(t, "k", h.SiteKey)
	assert.Equal(t, GateAwaitingToken, g.State())

	res, err := g.OnTokenReceived(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, res.Fresh)
	assert.Equal(t, GateVerified, g.State())
}

func TestGateSameTokenIsNotFreshTwice(t *testing.T) {
	v := newStubVerifier("tok")
	g := NewGate(v, ChallengeHandle{})
	g.BeginChallenge()

	_, err := g.OnTokenReceived(context.Background(), "tok")
	require.NoError(t, err)
	res, err := g.OnTokenReceived(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, res.Fresh)
	assert.Equal(t, 1, v.Calls())
}

func TestGateRejectsEmptyToken(t *testing.T) {
	g := NewGate(newStubVerifier(), ChallengeHandle{})
	g.BeginChallenge()
	_, err := g.OnTokenReceived(context.Background(), "")
	assert.ErrorIs(t, err, ErrChallengeRequired)
	assert.Equal(t, GateAwaitingToken, g.State())
}

func TestGateNeedsChallengeFirst(t *testing.T) {
	g := NewGate(newStubVerifier("tok"), ChallengeHandle{})
	_, err := g.OnTokenReceived(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrChallengeRequired)
}

func TestGateRejection(t *testing.T) {
	g := NewGate(newStubVerifier(), ChallengeHandle{})
	g.BeginChallenge()

	_, err := g.OnTokenReceived(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Equal(t, GateVerificationFailed, g.State())

	// a new challenge is required before the next token
	_, err = g.OnTokenReceived(context.Background(), "other")
	assert.ErrorIs(t, err, ErrChallengeRequired)
}

func TestGateServiceError(t *testing.T) {
	v := newStubVerifier()
	v.err = errors.New("connection refused")
	g := NewGate(v, ChallengeHandle{})
	g.BeginChallenge()

	_, err := g.OnTokenReceived(context.Background(), "tok")
	assert.Equal(t, KindNetworkError, KindOf(err))
	assert.Equal(t, GateVerificationFailed, g.State())
}

func TestGateResetDuringVerification(t *testing.T) {
	v := newStubVerifier("tok")
	v.block = make(chan struct{})
	v.entered = make(chan struct{}, 1)
	g := NewGate(v, ChallengeHandle{})
	g.BeginChallenge()

	type result struct {
		res VerificationResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := g.OnTokenReceived(context.Background(), "tok")
		done <- result{res, err}
	}()

	<-v.entered
	assert.Equal(t, GateVerifying, g.State())
	_, err := g.OnTokenReceived(context.Background(), "second")
	assert.ErrorIs(t, err, ErrAttemptInFlight)

	g.Reset()
	close(v.block)

	r := <-done
	assert.ErrorIs(t, r.err, ErrChallengeRequired)
	assert.False(t, r.res.Fresh)
	assert.Equal(t, GateIdle, g.State())
}
