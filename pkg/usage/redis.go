package usage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix is followed by the day, e.g. "footy:usage:2025-08-20".
const RedisKeyPrefix = "footy:usage:"

// tryIncrBy adds ARGV[1] to KEYS[1] unless the sum would exceed ARGV[2].
// It returns {spent, count}.
var tryIncrBy = redis.NewScript(`
local n = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current + n > limit then
	return {0, current}
end
return {1, redis.call("INCRBY", KEYS[1], n)}
`)

// RedisLedger counts calls with INCRBY on a per-day key.
type RedisLedger struct {
	redis *redis.Client
	limit int64
	clock Clock
}

// NewRedisLedger creates a ledger on the given Redis client.
func NewRedisLedger(redisClient *redis.Client, limit int64, clock Clock) (*RedisLedger, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limit < 0 {
		return nil, fmt.Errorf("daily limit must be >= 0 (got %d)", limit)
	}
	return &RedisLedger{redis: redisClient, limit: limit, clock: clockOrNow(clock)}, nil
}

// Get returns today's usage.
func (l *RedisLedger) Get(ctx context.Context) (Usage, error) {
	u := Usage{Date: Day(l.clock()), Limit: l.limit}

	count, err := l.redis.Get(ctx, RedisKeyPrefix+u.Date).Int64()
	if err != nil && err != redis.Nil {
		return Usage{}, fmt.Errorf("get usage: %w", err)
	}
	u.Count = count

	observe(u)
	return u, nil
}

// Increment atomically adds n to today's counter.
func (l *RedisLedger) Increment(ctx context.Context, n int64) (Usage, error) {
	if n < 0 {
		return Usage{}, fmt.Errorf("increment must be >= 0 (got %d)", n)
	}
	u := Usage{Date: Day(l.clock()), Limit: l.limit}

	count, err := l.redis.IncrBy(ctx, RedisKeyPrefix+u.Date, n).Result()
	if err != nil {
		return Usage{}, fmt.Errorf("increment usage: %w", err)
	}
	u.Count = count

	observe(u)
	return u, nil
}

// TryIncrement spends n with a Lua script so that instances sharing the
// key cannot overrun the limit.
func (l *RedisLedger) TryIncrement(ctx context.Context, n int64) (Usage, bool, error) {
	if n < 0 {
		return Usage{}, false, fmt.Errorf("increment must be >= 0 (got %d)", n)
	}
	u := Usage{Date: Day(l.clock()), Limit: l.limit}

	res, err := tryIncrBy.Run(ctx, l.redis, []string{RedisKeyPrefix + u.Date}, n, l.limit).Int64Slice()
	if err != nil {
		return Usage{}, false, fmt.Errorf("increment usage: %w", err)
	}
	if len(res) != 2 {
		return Usage{}, false, fmt.Errorf("increment usage: unexpected script reply %v", res)
	}
	u.Count = res[1]

	observe(u)
	return u, res[0] == 1, nil
}

// CanSpend reports whether n more calls fit into today's limit.
func (l *RedisLedger) CanSpend(ctx context.Context, n int64) (bool, error) {
	u, err := l.Get(ctx)
	if err != nil {
		return false, err
	}
	return u.Allows(n), nil
}
