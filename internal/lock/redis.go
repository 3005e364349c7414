package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock key only if it still carries our token, so
// a lock that expired and was taken by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every service instance pointed at the
// same Redis. Each key is a SET NX PX entry holding a random token; the TTL
// bounds how long a crashed holder can block others.
type RedisLocker struct {
	rdb        *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
	prefix     string
	log        *slog.Logger
}

// NewRedisLocker creates a distributed locker. ttl must comfortably exceed
// the longest trade.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{
		rdb:        rdb,
		ttl:        ttl,
		retryDelay: 5 * time.Millisecond,
		prefix:     "papertrade:lock:",
		log:        logger,
	}
}

// Lock acquires every key in sorted order, polling with capped backoff
// while a key is taken.
func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))

	for _, key := range keys {
		if err := l.acquire(ctx, l.prefix+key, token); err != nil {
			l.release(held, token)
			return nil, err
		}
		held = append(held, l.prefix+key)
	}
	return func() { l.release(held, token) }, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	delay := l.retryDelay
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return nil
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if delay < 100*time.Millisecond {
			delay *= 2
		}
	}
}

func (l *RedisLocker) release(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.rdb, []string{keys[i]}, token).Err(); err != nil {
			l.log.Warn("lock release failed", "key", keys[i], "err", err)
		}
	}
}
