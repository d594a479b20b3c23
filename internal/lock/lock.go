package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker serializes check-then-save sections across engine instances. The
// engine itself models no locking (persistence provides at most row-level
// consistency), so the lock is advisory: it narrows, but does not close, the
// window where two callers both pass an availability check before either
// saves.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// RedisLocker implements Locker with a Redis SETNX key per series.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(addr string) (*RedisLocker, error) {
	const op = "lock.NewRedisLocker"

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisLocker{client: client}, nil
}

// Lock attempts to take the key. It returns false without error when another
// holder already owns it.
func (r *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	const op = "lock.RedisLocker.Lock"

	ok, err := r.client.SetNX(ctx, lockKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// Unlock releases the key. Releasing a key that already expired is not an
// error.
func (r *RedisLocker) Unlock(ctx context.Context, key string) error {
	const op = "lock.RedisLocker.Unlock"

	if _, err := r.client.Del(ctx, lockKey(key)).Result(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (r *RedisLocker) Close() error {
	return r.client.Close()
}

func lockKey(key string) string {
	return fmt.Sprintf("reservation-lock:%s", key)
}

// Noop is the default locker: every Lock succeeds immediately. Used when no
// Redis address is configured; the engine then relies solely on its
// check-then-act ordering.
type Noop struct{}

// Lock always succeeds.
func (Noop) Lock(context.Context, string, time.Duration) (bool, error) { return true, nil }

// Unlock always succeeds.
func (Noop) Unlock(context.Context, string) error { return nil }
