package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"drivekr-wallet-backend/internal/logger"
)

// releaseScript deletes the key only while it still holds our token, so an expired lock
// that another instance took over is left alone.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

const keyPrefix = "lock:wallet:"

// RedisLocker holds keys with SET NX PX so that several server instances can share one
// ledger. A holder that dies keeps the key until the TTL expires.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(client redis.Cmdable, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, retry: 25 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	token := uuid.NewString()

	for i, key := range keys {
		if err := l.acquire(ctx, keyPrefix+key, token); err != nil {
			l.release(keys[:i], token)
			return nil, err
		}
	}
	return func() { l.release(keys, token) }, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return timeout(key, ctx.Err())
			}
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return timeout(key, ctx.Err())
		}
	}
}

// release runs on a fresh context: the caller's may already be cancelled.
func (l *RedisLocker) release(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		key := keyPrefix + keys[i]
		n, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int()
		switch {
		case err != nil:
			logger.Warn("Failed to release lock", "key", key, "error", err)
		case n == 0:
			logger.Warn("Lock expired before release", "key", key, "ttl", l.ttl)
		}
	}
}
