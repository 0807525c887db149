// Package lock provides a redis-backed mutual exclusion used to serialise
// writers across processes. A nil *Locker is valid and never locks.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	DefaultTTL  = 10 * time.Second
	DefaultWait = 3 * time.Second
	retryDelay  = 25 * time.Millisecond
)

var (
	ErrNotConfigured = errors.New("lock client not configured")
	ErrNotAcquired   = errors.New("lock not acquired")
)

type Locker struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
	wait   time.Duration
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		ttl:    DefaultTTL,
		wait:   DefaultWait,
	}
}

// Enabled reports whether the locker is backed by a redis client.
func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if !l.Enabled() {
		return "", false, ErrNotConfigured
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if !l.Enabled() {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// Acquire polls TryLock until the key is held or the wait budget runs out.
// The returned release func is safe to call once the caller is done.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if !l.Enabled() {
		return func(context.Context) error { return nil }, nil
	}

	deadline := time.Now().Add(l.wait)
	for {
		token, ok, err := l.TryLock(ctx, key, l.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return func(ctx context.Context) error { return l.Release(ctx, key, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		timer := time.NewTimer(retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
