// Package lock provides per-key mutual exclusion backed by Redis SET NX.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// extendScript refreshes the TTL only if we still own the key.
var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// ErrNotOwner is returned by Extend when the lock expired or was taken over.
var ErrNotOwner = eris.New("lock: not owner")

// Options configures a Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient opens a Redis client and verifies connectivity.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "lock: ping redis %s", opts.Addr)
	}
	return client, nil
}

// Locker hands out locks under a common key prefix.
type Locker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewLocker creates a Locker. ttl bounds how long a crashed holder can block
// other callers.
func NewLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Locker{client: client, prefix: prefix, ttl: ttl}
}

// Lock is a held lock.
type Lock struct {
	client redis.UniversalClient
	key    string
	value  string
}

// TryAcquire attempts to take the lock for key without waiting. It returns
// (nil, false, nil) when another holder owns it.
func (l *Locker) TryAcquire(ctx context.Context, key string) (*Lock, bool, error) {
	full := "lock:" + l.prefix + ":" + key
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, false, eris.Wrap(err, "lock: generate token")
	}
	value := id.String()

	ok, err := l.client.SetNX(ctx, full, value, l.ttl).Result()
	if err != nil {
		return nil, false, eris.Wrapf(err, "lock: acquire %s", full)
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{client: l.client, key: full, value: value}, true, nil
}

// TryLock is TryAcquire returning a release func that logs instead of
// failing, for use in defer.
func (l *Locker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	lk, ok, err := l.TryAcquire(ctx, key)
	if err != nil || !ok {
		return func() {}, ok, err
	}
	return func() {
		// The caller's context may already be cancelled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lk.Release(rctx); err != nil {
			zap.L().Warn("lock: release failed", zap.String("key", lk.key), zap.Error(err))
		}
	}, true, nil
}

// Ping checks the Redis connection.
func (l *Locker) Ping(ctx context.Context) error {
	return eris.Wrap(l.client.Ping(ctx).Err(), "lock: ping")
}

// Key returns the Redis key backing the lock.
func (lk *Lock) Key() string { return lk.key }

// Release frees the lock if still owned. Releasing an expired lock is a no-op.
func (lk *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.value).Err(); err != nil {
		return eris.Wrapf(err, "lock: release %s", lk.key)
	}
	return nil
}

// Extend pushes the expiry out to ttl from now.
func (lk *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, lk.client, []string{lk.key}, lk.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return eris.Wrapf(err, "lock: extend %s", lk.key)
	}
	if n == 0 {
		return ErrNotOwner
	}
	return nil
}
