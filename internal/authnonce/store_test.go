package authnonce

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Test connection
	err := client.Ping(ctx).Err()
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	// Clear test DB
	err = client.FlushDB(ctx).Err()
	require.NoError(t, err)

	return client
}

func cleanupTestRedis(_ *testing.T, client *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = client.FlushDB(ctx).Err()
	_ = client.Close()
}

func TestNonceFormat(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	n, err := newNonce(now)
	require.NoError(t, err)
	assert.Len(t, n, 32)
	assert.NoError(t, ValidateNonce(n))

	issued, err := IssuedAt(n)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), issued.Unix())
}

func TestValidateNonce(t *testing.T) {
	for _, bad := range []string{"", "abc", "ZZ000000000000000000000000000000", "00000000000000000000000000000000aa"} {
		assert.Error(t, ValidateNonce(bad), bad)
	}
}

func TestStore_IssueConsume(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	store, err := NewStore(client, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	n, err := store.Issue(ctx)
	require.NoError(t, err)
	assert.True(t, n.ExpiresAt.After(n.IssuedAt))

	ttl, err := client.TTL(ctx, nonceKey(n.Value)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Consume(ctx, n.Value))
	assert.Equal(t, ErrNotFound, store.Consume(ctx, n.Value), "second use must fail")
}

func TestStore_ConsumeUnknown(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	store, err := NewStore(client, time.Minute)
	require.NoError(t, err)

	n, err := newNonce(time.Now())
	require.NoError(t, err)
	assert.Equal(t, ErrNotFound, store.Consume(context.Background(), n))
	assert.Error(t, store.Consume(context.Background(), "not-a-nonce"))
}

func TestStore_ConsumeExpiredByTimestamp(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	store, err := NewStore(client, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	n, err := store.Issue(ctx)
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, ErrNotFound, store.Consume(ctx, n.Value))
}

func TestStore_ConcurrentConsumeOnce(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(t, client)

	store, err := NewStore(client, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	n, err := store.Issue(ctx)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		wins int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.Consume(ctx, n.Value) == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
