package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestTokenLedgerConsumesOnce(t *testing.T) {
	client, _ := setupTestRedis(t)
	ledger := NewTokenLedger(client, "test:token", time.Hour)
	ctx := context.Background()

	fresh, err := ledger.Consume(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = ledger.Consume(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, fresh, "second consume must be refused")

	fresh, err = ledger.Consume(ctx, "tok-2")
	require.NoError(t, err)
	assert.True(t, fresh)

	used, err := ledger.Consumed(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, used)
}

func TestTokenLedgerStoresHashOnly(t *testing.T) {
	client, mr := setupTestRedis(t)
	ledger := NewTokenLedger(client, "test:token", time.Hour)

	_, err := ledger.Consume(context.Background(), "secret-token")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "secret-token")
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))
}

func TestTokenLedgerExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	ledger := NewTokenLedger(client, "", time.Minute)
	ctx := context.Background()

	_, err := ledger.Consume(ctx, "tok")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	fresh, err := ledger.Consume(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, fresh, "expired entries are forgotten")
}

func TestTokenLedgerConcurrentConsume(t *testing.T) {
	client, _ := setupTestRedis(t)
	ledger := NewTokenLedger(client, "test:token", time.Hour)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh, err := ledger.Consume(context.Background(), "shared")
			if err == nil && fresh {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestTokenLedgerReportsRedisErrors(t *testing.T) {
	client, mr := setupTestRedis(t)
	ledger := NewTokenLedger(client, "test:token", time.Hour)
	mr.Close()

	_, err := ledger.Consume(context.Background(), "tok")
	assert.Error(t, err)
}
