package cache

import (
	"context"
	"strconv"
	"time"

	"TrafficWatch/storage/redis"
)

const lockPrefix = "lock:alert"

// Locker claims an alert for one evaluation pass so an on-demand trigger
// and the periodic sweep never process the same alert concurrently.
type Locker interface {
	TryLock(ctx context.Context, alertID int64, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, alertID int64) error
}

// RedisLocker backs the claim with a SetNX key. The TTL bounds how long a
// crashed pass can pin an alert.
type RedisLocker struct{}

func NewRedisLocker() *RedisLocker {
	return &RedisLocker{}
}

func (l *RedisLocker) TryLock(ctx context.Context, alertID int64, ttl time.Duration) (bool, error) {
	key := redis.Key(lockPrefix, strconv.FormatInt(alertID, 10))
	return redis.Client().SetNX(ctx, key, 1, ttl).Result()
}

func (l *RedisLocker) Unlock(ctx context.Context, alertID int64) error {
	key := redis.Key(lockPrefix, strconv.FormatInt(alertID, 10))
	return redis.Client().Del(ctx, key).Err()
}

// NoopLocker always grants the claim. Used in tests and single-node
// deployments without Redis; the conditional status update in the store
// still keeps completion exactly-once.
type NoopLocker struct{}

func NewNoopLocker() *NoopLocker {
	return &NoopLocker{}
}

func (l *NoopLocker) TryLock(ctx context.Context, alertID int64, ttl time.Duration) (bool, error) {
	return true, nil
}

func (l *NoopLocker) Unlock(ctx context.Context, alertID int64) error {
	return nil
}
