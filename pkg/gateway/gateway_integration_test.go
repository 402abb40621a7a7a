//go:build integration

package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/footy-gateway/internal/testutil"
	"github.com/Sternrassler/footy-gateway/pkg/cache"
	"github.com/Sternrassler/footy-gateway/pkg/ratelimit"
	"github.com/Sternrassler/footy-gateway/pkg/upstream"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, client.Ping(ctx).Err())

	t.Cleanup(func() {
		client.Close()
		container.Terminate(ctx)
	})
	return client
}

// instance is one gateway process sharing Redis with its peers.
type instance struct {
	gw    *Gateway
	store *cache.RedisStore
}

func newRedisInstance(t *testing.T, client *redis.Client, mock *testutil.MockUpstream, limit int64, clock *testClock) *instance {
	t.Helper()

	store := cache.NewRedisStore(client)
	ledger, err := usage.NewRedisLedger(client, limit, clock.Now)
	require.NoError(t, err)
	holds := ratelimit.NewTracker(client, zerolog.Nop(), ratelimit.WithClock(clock.Now))

	cfg := upstream.DefaultConfig()
	cfg.APISportsKey = "test-key"
	cfg.APISportsBaseURL = mock.URL()
	cfg.RequestsPerSecond = 0
	cfg.BreakerFailures = 0
	up, err := upstream.New(cfg, ledger, holds)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Now = clock.Now
	gw, err := New(store, ledger, up, holds, opts)
	require.NoError(t, err)

	return &instance{gw: gw, store: store}
}

func newIntegrationMock(t *testing.T) *testutil.MockUpstream {
	t.Helper()
	mock := testutil.NewMockUpstream()
	t.Cleanup(mock.Close)
	return mock
}

// TestIntegration_FullRequestFlow covers miss, fetch, store and fresh hit on Redis.
func TestIntegration_FullRequestFlow(t *testing.T) {
	client := setupRedis(t)
	mock := newIntegrationMock(t)
	mock.SetResponse(upstream.PathStandings, testutil.NewJSONResponse(standingsBody))
	clock := &testClock{now: time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC)}
	inst := newRedisInstance(t, client, mock, 100, clock)
	ctx := context.Background()

	first, err := inst.gw.Fetch(ctx, standingsRequest())
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := inst.gw.Fetch(ctx, standingsRequest())
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.JSONEq(t, string(first.Body), string(second.Body))
	assert.Equal(t, 1, mock.RequestCount())

	u, err := inst.gw.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Count)
	assert.Equal(t, "2025-08-20", u.Date)

	stats, err := inst.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "redis", stats.Backend)
	assert.Equal(t, int64(1), stats.Entries)
}

// TestIntegration_SharedBudget checks that two instances spend one budget.
func TestIntegration_SharedBudget(t *testing.T) {
	client := setupRedis(t)
	mock := newIntegrationMock(t)
	mock.SetResponse(upstream.PathStandings, testutil.NewJSONResponse(standingsBody))
	clock := &testClock{now: time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	a := newRedisInstance(t, client, mock, 1, clock)
	b := newRedisInstance(t, client, mock, 1, clock)

	_, err := a.gw.Fetch(ctx, standingsRequest())
	require.NoError(t, err)

	other := standingsRequest()
	other.Params = upstream.StandingsParams(39, 2025)
	_, err = b.gw.Fetch(ctx, other)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExceeded))
	assert.Equal(t, 1, mock.RequestCount())

	// The entry cached by a is served by b without spending.
	res, err := b.gw.Fetch(ctx, standingsRequest())
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	// The next UTC day starts a fresh budget.
	clock.Advance(24 * time.Hour)
	_, err = b.gw.Fetch(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 2, mock.RequestCount())
}

// TestIntegration_SharedHold checks that a 429 seen by one instance stops the other.
func TestIntegration_SharedHold(t *testing.T) {
	client := setupRedis(t)
	mock := newIntegrationMock(t)
	clock := &testClock{now: time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	a := newRedisInstance(t, client, mock, 100, clock)
	b := newRedisInstance(t, client, mock, 100, clock)

	mock.SetResponse(upstream.PathStandings, testutil.NewRateLimitResponse(60))
	_, err := a.gw.Fetch(ctx, standingsRequest())
	require.Error(t, err)
	assert.Equal(t, 1, mock.RequestCount())

	mock.SetResponse(upstream.PathStandings, testutil.NewJSONResponse(standingsBody))
	_, err = b.gw.Fetch(ctx, standingsRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, 1, mock.RequestCount())

	clock.Advance(61 * time.Second)
	res, err := b.gw.Fetch(ctx, standingsRequest())
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, 2, mock.RequestCount())
}

// TestIntegration_StaleOnError serves an expired Redis entry when the upstream fails.
func TestIntegration_StaleOnError(t *testing.T) {
	client := setupRedis(t)
	mock := newIntegrationMock(t)
	mock.SetResponse(upstream.PathStandings, testutil.NewJSONResponse(standingsBody))
	clock := &testClock{now: time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC)}
	inst := newRedisInstance(t, client, mock, 100, clock)
	ctx := context.Background()

	_, err := inst.gw.Fetch(ctx, standingsRequest())
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	mock.SetResponse(upstream.PathStandings, testutil.NewServerErrorResponse())

	res, err := inst.gw.Fetch(ctx, standingsRequest())
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.True(t, res.Stale)
	assert.NotEmpty(t, res.Diagnostic)
}

// TestIntegration_FlushByPrefix removes only the derived namespace.
func TestIntegration_FlushByPrefix(t *testing.T) {
	client := setupRedis(t)
	store := cache.NewRedisStore(client)
	ctx := context.Background()
	now := time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC)

	entry := cache.NewEntry([]byte(`{"response":[]}`), 200, nil, time.Hour, now)
	require.NoError(t, store.Set(ctx, cache.RawKey("https://v3.football.api-sports.io/fixtures?date=2025-08-20"), entry))
	require.NoError(t, store.Set(ctx, cache.FixturesDayKey("2025-08-20"), entry))
	require.NoError(t, store.Set(ctx, cache.FixturesLeagueKey("2025-08-20", 283), entry))

	removed, err := store.Flush(ctx, "DERIVED ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	removed, err = store.Flush(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
