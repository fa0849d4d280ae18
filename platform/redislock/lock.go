// Package redislock provides a single-holder lock backed by Redis.
// This is part of the platform layer and contains no business logic.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("redislock: lock is held by another owner")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker acquires named locks on a Redis client.
type Locker struct {
	client redis.UniversalClient
}

// New creates a Locker on client.
func New(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// Lock is a held lock. Release it exactly once.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Obtain takes key for ttl. It never waits: when the key is held it returns
// ErrNotAcquired.
func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("redislock: ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redislock: obtain %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return &Lock{client: l.client, key: key, token: token}, nil
}

// Key returns the locked key.
func (lk *Lock) Key() string { return lk.key }

// Refresh extends the lock's ttl if it is still owned.
func (lk *Lock) Refresh(ctx context.Context, ttl time.Duration) error {
	res, err := refreshScript.Run(ctx, lk.client, []string{lk.key}, lk.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redislock: refresh %s: %w", lk.key, err)
	}
	if res == 0 {
		return ErrNotAcquired
	}
	return nil
}

// Release deletes the key if this lock still owns it. Releasing an expired
// lock that another owner has since taken is a no-op.
func (lk *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, lk.client, []string{lk.key}, lk.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redislock: release %s: %w", lk.key, err)
	}
	return nil
}
