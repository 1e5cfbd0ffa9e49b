package wallet

import (
	"context"
	"path/filepath"
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
		DB:   1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())
	return client
}

func exerciseLocker(t *testing.T, l Locker) {
	t.Helper()
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "0xAbC")
			require.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestLocalLocker_Serialises(t *testing.T) {
	exerciseLocker(t, NewLocalLocker())
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "w")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "w")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// other keys are independent
	other, err := l.Lock(context.Background(), "other")
	require.NoError(t, err)
	other()
}

func TestRedisLocker_Serialises(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	exerciseLocker(t, NewRedisLocker(client, time.Second))
}

func TestRedisLocker_UnlockOnlyOwnToken(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()

	l := NewRedisLocker(client, 60*time.Millisecond)
	unlock, err := l.Lock(ctx, "0xdef")
	require.NoError(t, err)

	// someone else takes the key over
	require.NoError(t, client.Set(ctx, "wallet:lock:0xdef", "other-token", time.Minute).Err())
	time.Sleep(50 * time.Millisecond)

	ttl, err := client.PTTL(ctx, "wallet:lock:0xdef").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 30*time.Second, "renewal must not touch a lease it no longer owns")

	unlock() // stale holder must not release the new lease
	val, err := client.Get(ctx, "wallet:lock:0xdef").Result()
	require.NoError(t, err)
	assert.Equal(t, "other-token", val)
}

func TestRedisLocker_RenewsLease(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()
	ctx := context.Background()

	l := NewRedisLocker(client, 60*time.Millisecond)
	unlock, err := l.Lock(ctx, "0xfeed")
	require.NoError(t, err)

	// hold well past the TTL
	time.Sleep(200 * time.Millisecond)

	ttl, err := client.PTTL(ctx, "wallet:lock:0xfeed").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "0xfeed")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	exists, err := client.Exists(ctx, "wallet:lock:0xfeed").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)

	again, err := l.Lock(ctx, "0xfeed")
	require.NoError(t, err)
	again()
}

func TestLoadOrCreateKeystore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	first, err := LoadOrCreateKeystore(dir, "pw", LightScrypt)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := LoadOrCreateKeystore(dir, "pw", LightScrypt)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Address, second.Address)

	_, err = LoadOrCreateKeystore(dir, "wrong", LightScrypt)
	assert.Error(t, err)
}
