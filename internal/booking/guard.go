package booking

import (
	"context"
	"sync"
)

// TokenLedger records consumed verification tokens across processes.
// Consume returns false when the token was consumed before.
type TokenLedger interface {
	Consume(ctx context.Context, token string) (bool, error)
}

// Guard admits a verified token into the rebooking transaction at most
// once, and never while another admission is still running.
type Guard struct {
	ledger TokenLedger

	mu           sync.Mutex
	lastConsumed string
	inFlight     bool
}

// NewGuard returns a guard.  ledger may be nil, in which case only this
// guard's own memory of the last token is used.
func NewGuard(ledger TokenLedger) *Guard {
	return &Guard{ledger: ledger}
}

// Seen reports whether token is the last one admitted.
func (g *Guard) Seen(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return token != "" && token == g.lastConsumed
}

func (g *Guard) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Admit claims token for one invocation.  The token is recorded as
// consumed before Admit returns, so a retry of the same value is refused
// even while the first invocation is still running.  Every nil return
// must be paired with a call to Done.
func (g *Guard) Admit(ctx context.Context, token string) error {
	g.mu.Lock()
	if token == "" {
		g.mu.Unlock()
		return ErrChallengeRequired
	}
	if g.inFlight || token == g.lastConsumed {
		g.mu.Unlock()
		return ErrDuplicateSubmission
	}
	g.lastConsumed = token
	g.inFlight = true
	g.mu.Unlock()

	if g.ledger == nil {
		return nil
	}
	fresh, err := g.ledger.Consume(ctx, token)
	if err != nil {
		g.Done()
		return networkError(err)
	}
	if !fresh {
		g.Done()
		return ErrDuplicateSubmission
	}
	return nil
}

// Done ends the current invocation, successful or not.  The consumed
// token stays consumed.
func (g *Guard) Done() {
	g.mu.Lock()
	g.inFlight = false
	g.mu.Unlock()
}

// Run admits token and invokes fn once if admitted.  Discarded
// submissions return ErrDuplicateSubmission without calling fn.
func (g *Guard) Run(ctx context.Context, token string, fn func() error) error {
	if err := g.Admit(ctx, token); err != nil {
		return err
	}
	defer g.Done()
	return fn()
}
