package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultLockTTL outlives the longest plausible gateway round-trip while
// bounding damage from a crashed holder. Auto-expiry is mandatory: a lock
// must never be held forever.
const DefaultLockTTL = 300 * time.Second

// Lock is a held mutual-exclusion token. The token value guards release:
// only the process that acquired the lock may delete it.
type Lock struct {
	Key   string
	Token string
}

// Locker is a short-TTL, non-blocking mutual-exclusion primitive keyed by
// order-transaction id. Acquire returns nil (no error) when the lock is
// already held elsewhere.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error)
	Release(ctx context.Context, lock *Lock) error
}

// RedisLocker backs Locker with redis SET NX so correctness holds across
// multiple server processes.
type RedisLocker struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisLocker(rdb *redis.Client, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{rdb: rdb, logger: logger}
}

// Compare-and-delete so an expired lock re-acquired by another process is
// never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func lockKey(key string) string {
	return fmt.Sprintf("lock:ordertx:%s", key)
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	acquired, err := l.rdb.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		l.logger.Debug("Lock already held", zap.String("key", key))
		return nil, nil
	}
	return &Lock{Key: key, Token: token}, nil
}

func (l *RedisLocker) Release(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	released, err := releaseScript.Run(ctx, l.rdb, []string{lockKey(lock.Key)}, lock.Token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if released == 0 {
		l.logger.Warn("Lock expired before release", zap.String("key", lock.Key))
	}
	return nil
}
