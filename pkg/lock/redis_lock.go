package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// unlock releases the key only when the caller still holds it, so a
// holder whose TTL expired cannot release a newer holder's lock.
const unlockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisLock provides short-lived named locks backed by SET NX + token
// compare-and-delete release.
type RedisLock struct {
	client *redis.Client
	prefix string
}

// NewRedisLock constructs a lock manager. Keys are namespaced under prefix.
func NewRedisLock(client *redis.Client, prefix string) *RedisLock {
	if prefix == "" {
		prefix = "lock"
	}
	return &RedisLock{client: client, prefix: prefix}
}

// ResourceKey builds the canonical lock key for a teacher calendar
// resource. Slot may be empty for a coarse per-day lock.
func ResourceKey(teacherID, date, slot string) string {
	parts := []string{"teacher", teacherID, date}
	if slot != "" {
		parts = append(parts, slot)
	}
	return strings.Join(parts, ":")
}

// TryLock acquires the key if unheld. Returns false when another
// holder owns the lock.
func (l *RedisLock) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if token == "" {
		return false, fmt.Errorf("lock token must not be empty")
	}
	ok, err := l.client.SetNX(ctx, l.namespaced(key), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// TryLockRetry attempts acquisition up to retries+1 times, sleeping
// interval between attempts. Returns false when the lock stayed held.
func (l *RedisLock) TryLockRetry(ctx context.Context, key, token string, ttl time.Duration, retries int, interval time.Duration) (bool, error) {
	for attempt := 0; ; attempt++ {
		ok, err := l.TryLock(ctx, key, token, ttl)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if attempt >= retries {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Unlock releases the key when token matches the current holder.
// Returns false when the lock was already released or re-acquired.
func (l *RedisLock) Unlock(ctx context.Context, key, token string) (bool, error) {
	res, err := l.client.Eval(ctx, unlockScript, []string{l.namespaced(key)}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", key, err)
	}
	return res == 1, nil
}

func (l *RedisLock) namespaced(key string) string {
	return l.prefix + ":" + key
}
