package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis connects to a local Redis on DB 15 and skips when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisStore_Panic(t *testing.T) {
	assert.Panics(t, func() { NewRedisStore(nil) })
}

func TestRedisStore_SetGetFlush(t *testing.T) {
	client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	now := time.UnixMilli(time.Now().UnixMilli())
	raw := RawKey("https://example.test/fixtures?date=2025-08-20")
	day := FixturesDayKey("2025-08-20")

	require.NoError(t, store.Set(ctx, raw, &Entry{Body: []byte(`{"response":[]}`), StatusCode: 200, CapturedAt: now, TTL: time.Hour}))
	require.NoError(t, store.Set(ctx, day, &Entry{Body: []byte(`{}`), CapturedAt: now.Add(-2 * time.Hour), TTL: time.Hour}))

	// No backend expiry is set.
	ttl, err := client.TTL(ctx, RedisKeyPrefix+string(day)).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)

	got, err := store.Get(ctx, day)
	require.NoError(t, err)
	assert.False(t, got.IsFresh(now))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Entries)

	n, err := store.Flush(ctx, "DERIVED ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Get(ctx, day)
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = store.Get(ctx, raw)
	assert.NoError(t, err)
}
