package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/desk-booking/internal/booking"
)

// TokenLedger remembers consumed verification tokens in Redis so a token
// replayed against another instance, or from another tab, is refused.
// Only a hash of the token is stored.
type TokenLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ booking.TokenLedger = (*TokenLedger)(nil)

func NewTokenLedger(client *redis.Client, prefix string, ttl time.Duration) *TokenLedger {
	if prefix == "" {
		prefix = "booking:token"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenLedger{client: client, prefix: prefix, ttl: ttl}
}

func (l *TokenLedger) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return l.prefix + ":" + hex.EncodeToString(sum[:])
}

// Consume marks token as used.  It returns false if it was already used.
func (l *TokenLedger) Consume(ctx context.Context, token string) (bool, error) {
	return l.client.SetNX(ctx, l.key(token), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
}

// Consumed reports whether token has been used, without consuming it.
func (l *TokenLedger) Consumed(ctx context.Context, token string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(token)).Result()
	return n > 0, err
}
