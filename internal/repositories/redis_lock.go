package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KEYS[1] = lock key
// ARGV[1] = holder id
// ARGV[2] = ttl in milliseconds
var redisAcquireScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if not cur then
    redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
    return {1, ARGV[1], tonumber(ARGV[2])}
end
if cur == ARGV[1] then
    redis.call("PEXPIRE", KEYS[1], ARGV[2])
    return {1, cur, tonumber(ARGV[2])}
end
return {0, cur, redis.call("PTTL", KEYS[1])}
`)

var redisReleaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockStore is the Redis-backed lock with the same semantics as LockRepo:
// expiry is the PX ttl, and release compares the holder before deleting.
type RedisLockStore struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRedisLockStore(client redis.Scripter) *RedisLockStore {
	return &RedisLockStore{client: client, now: time.Now}
}

func lockKey(projectID uuid.UUID, key string) string {
	return fmt.Sprintf("lock:%s:%s", projectID, key)
}

func (s *RedisLockStore) Acquire(ctx context.Context, projectID uuid.UUID, key, holderID string, ttlSeconds int) (LockResult, error) {
	ttlMs := int64(ttlSeconds) * 1000
	res, err := redisAcquireScript.Run(ctx, s.client, []string{lockKey(projectID, key)}, holderID, ttlMs).Result()
	if err != nil {
		return LockResult{}, &StoreError{Op: "acquire redis lock", Err: err}
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return LockResult{}, &StoreError{Op: "acquire redis lock", Err: fmt.Errorf("unexpected script reply %v", res)}
	}
	acquired, _ := vals[0].(int64)
	holder, _ := vals[1].(string)
	remaining, _ := vals[2].(int64)

	out := LockResult{Acquired: acquired == 1, HolderID: holder}
	if remaining > 0 {
		out.ExpiresAt = s.now().Add(time.Duration(remaining) * time.Millisecond)
	}
	return out, nil
}

func (s *RedisLockStore) Release(ctx context.Context, projectID uuid.UUID, key, holderID string) (bool, error) {
	n, err := redisReleaseScript.Run(ctx, s.client, []string{lockKey(projectID, key)}, holderID).Int64()
	if err != nil {
		return false, &StoreError{Op: "release redis lock", Err: err}
	}
	return n == 1, nil
}

// DeleteExpired is a no-op: Redis drops expired keys itself.
func (s *RedisLockStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}
