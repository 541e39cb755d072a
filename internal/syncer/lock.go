package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost is returned when a pass finds its lock expired or taken over.
var ErrLockLost = errors.New("sync lock lost")

// Locker guards a sync pass across replicas.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lease Lease, acquired bool, err error)
}

// Lease is a held lock. Extend pushes the expiry one TTL forward and returns
// ErrLockLost when the lock no longer belongs to the holder. Release only
// drops a lock the holder still owns.
type Lease interface {
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

// Both scripts act only while the key still carries our token, so a pass
// that outlived its TTL cannot touch a lock another replica now owns.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

type RedisLocker struct {
	client redis.Cmdable
	prefix string
}

func NewRedisLocker(client redis.Cmdable, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "relay:sync-lock:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: l.client, key: fullKey, token: token, ttl: ttl}, true, nil
}

type redisLease struct {
	client redis.Cmdable
	key    string
	token  string
	ttl    time.Duration
}

func (l *redisLease) Extend(ctx context.Context) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extending lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.key, err)
	}
	return nil
}

// noopLocker is used when no Redis is configured; the in-process
// single-flight still applies.
type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string, time.Duration) (Lease, bool, error) {
	return noopLease{}, true, nil
}

type noopLease struct{}

func (noopLease) Extend(context.Context) error  { return nil }
func (noopLease) Release(context.Context) error { return nil }
