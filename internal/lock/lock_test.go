package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLocker(client, "enrich", ttl), mr
}

func TestTryAcquire_Exclusive(t *testing.T) {
	l, mr := setupLocker(t, time.Minute)
	ctx := context.Background()

	lk, ok, err := l.TryAcquire(ctx, "sig-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "lock:enrich:sig-1", lk.Key())
	assert.True(t, mr.Exists("lock:enrich:sig-1"))

	_, ok, err = l.TryAcquire(ctx, "sig-1")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	other, ok, err := l.TryAcquire(ctx, "sig-2")
	require.NoError(t, err)
	assert.True(t, ok, "different keys do not contend")
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lk.Release(ctx))
	assert.False(t, mr.Exists("lock:enrich:sig-1"))

	_, ok, err = l.TryAcquire(ctx, "sig-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryAcquire_ExpiresAfterTTL(t *testing.T) {
	l, mr := setupLocker(t, 30*time.Second)
	ctx := context.Background()

	_, ok, err := l.TryAcquire(ctx, "sig-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)

	_, ok, err = l.TryAcquire(ctx, "sig-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_DoesNotFreeOtherOwner(t *testing.T) {
	l, mr := setupLocker(t, 30*time.Second)
	ctx := context.Background()

	first, ok, err := l.TryAcquire(ctx, "sig-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)
	_, ok, err = l.TryAcquire(ctx, "sig-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, first.Release(ctx))
	assert.True(t, mr.Exists("lock:enrich:sig-1"), "stale holder must not delete the new owner's key")
}

func TestExtend(t *testing.T) {
	l, mr := setupLocker(t, 30*time.Second)
	ctx := context.Background()

	lk, ok, err := l.TryAcquire(ctx, "sig-1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lk.Extend(ctx, 2*time.Minute))
	assert.Equal(t, 2*time.Minute, mr.TTL("lock:enrich:sig-1"))

	require.NoError(t, lk.Release(ctx))
	err = lk.Extend(ctx, time.Minute)
	assert.True(t, errors.Is(err, ErrNotOwner))
}

func TestTryLock(t *testing.T) {
	l, mr := setupLocker(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	unlock, ok, err := l.TryLock(ctx, "sig-1")
	require.NoError(t, err)
	require.True(t, ok)

	noop, ok, err := l.TryLock(ctx, "sig-1")
	require.NoError(t, err)
	assert.False(t, ok)
	noop()
	assert.True(t, mr.Exists("lock:enrich:sig-1"))

	cancel()
	unlock()
	assert.False(t, mr.Exists("lock:enrich:sig-1"), "release must survive a cancelled request context")
}

func TestRedisUnavailable(t *testing.T) {
	l, mr := setupLocker(t, time.Minute)
	mr.Close()

	_, ok, err := l.TryAcquire(context.Background(), "sig-1")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, l.Ping(context.Background()))
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = NewClient(context.Background(), Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
