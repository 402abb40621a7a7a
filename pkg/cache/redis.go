package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout for the cache.
const (
	RedisKeyPrefix = "footy:cache:"
	RedisKeyIndex  = "footy:cache:index" // sorted set: member=cache key, score=captured_at ms
)

const flushBatch = 200

// RedisStore is a Store backed by Redis. Keys carry no expiry.
type RedisStore struct {
	redis  *redis.Client
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisStore creates a new cache store with Redis backend.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (m *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, RedisKeyPrefix+string(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			m.misses.Add(1)
			CacheMisses.WithLabelValues("redis").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("redis", "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("redis", "get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	m.hits.Add(1)
	CacheHits.WithLabelValues("redis", namespace(key)).Inc()
	return &entry, nil
}

// Set stores a cache entry and records it in the capture index.
func (m *RedisStore) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("redis", "set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	pipe := m.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyPrefix+string(key), data, 0)
	pipe.ZAdd(ctx, RedisKeyIndex, redis.Z{
		Score:  float64(entry.CapturedAt.UnixMilli()),
		Member: string(key),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		CacheErrors.WithLabelValues("redis", "set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheWrites.WithLabelValues("redis", namespace(key)).Inc()
	return nil
}

// Flush deletes entries whose key starts with prefix (all entries when empty).
func (m *RedisStore) Flush(ctx context.Context, prefix string) (int64, error) {
	match := escapeGlob(prefix) + "*"

	var (
		cursor  uint64
		removed int64
	)
	for {
		pairs, next, err := m.redis.ZScan(ctx, RedisKeyIndex, cursor, match, flushBatch).Result()
		if err != nil {
			CacheErrors.WithLabelValues("redis", "flush").Inc()
			return removed, fmt.Errorf("redis zscan: %w", err)
		}

		// ZSCAN returns member, score, member, score, ...
		members := make([]string, 0, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			members = append(members, pairs[i])
		}

		if len(members) > 0 {
			keys := make([]string, len(members))
			zmembers := make([]interface{}, len(members))
			for i, member := range members {
				keys[i] = RedisKeyPrefix + member
				zmembers[i] = member
			}

			pipe := m.redis.TxPipeline()
			del := pipe.Del(ctx, keys...)
			pipe.ZRem(ctx, RedisKeyIndex, zmembers...)
			if _, err := pipe.Exec(ctx); err != nil {
				CacheErrors.WithLabelValues("redis", "flush").Inc()
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += del.Val()
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	CacheFlushed.WithLabelValues("redis").Add(float64(removed))
	return removed, nil
}

// Stats returns entry count, capture range and read counters.
func (m *RedisStore) Stats(ctx context.Context) (Stats, error) {
	count, err := m.redis.ZCard(ctx, RedisKeyIndex).Result()
	if err != nil {
		CacheErrors.WithLabelValues("redis", "stats").Inc()
		return Stats{}, fmt.Errorf("redis zcard: %w", err)
	}

	stats := Stats{
		Backend:  "redis",
		Location: m.redis.Options().Addr,
		Entries:  count,
		Hits:     m.hits.Load(),
		Misses:   m.misses.Load(),
	}
	if count == 0 {
		return stats, nil
	}

	oldest, err := m.redis.ZRangeWithScores(ctx, RedisKeyIndex, 0, 0).Result()
	if err != nil {
		CacheErrors.WithLabelValues("redis", "stats").Inc()
		return Stats{}, fmt.Errorf("redis zrange: %w", err)
	}
	newest, err := m.redis.ZRevRangeWithScores(ctx, RedisKeyIndex, 0, 0).Result()
	if err != nil {
		CacheErrors.WithLabelValues("redis", "stats").Inc()
		return Stats{}, fmt.Errorf("redis zrevrange: %w", err)
	}
	if len(oldest) == 1 {
		t := time.UnixMilli(int64(oldest[0].Score))
		stats.OldestCapturedAt = &t
	}
	if len(newest) == 1 {
		t := time.UnixMilli(int64(newest[0].Score))
		stats.NewestCapturedAt = &t
	}
	return stats, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (m *RedisStore) Close() error {
	return nil
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
