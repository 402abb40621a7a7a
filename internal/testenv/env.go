// Package testenv wires a complete gateway stack on a temp SQLite file and a
// mock upstream for tests of the packages built on top of the gateway.
package testenv

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/footy-gateway/internal/testutil"
	"github.com/Sternrassler/footy-gateway/pkg/cache"
	"github.com/Sternrassler/footy-gateway/pkg/gateway"
	"github.com/Sternrassler/footy-gateway/pkg/ratelimit"
	"github.com/Sternrassler/footy-gateway/pkg/upstream"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/rs/zerolog"
)

// Clock is a settable test clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Env is the assembled stack.
type Env struct {
	Mock    *testutil.MockUpstream
	DB      *sql.DB
	Store   cache.Store
	Ledger  usage.Ledger
	Holds   *ratelimit.Tracker
	Client  *upstream.Client
	Gateway *gateway.Gateway
	Clock   *Clock
	TTLs    gateway.TTLs
}

type settings struct {
	limit  int64
	start  time.Time
	mutate func(*upstream.Config)
}

// Option customizes New.
type Option func(*settings)

// WithLimit sets the daily upstream call limit (default 100).
func WithLimit(n int64) Option {
	return func(s *settings) { s.limit = n }
}

// WithStart sets the clock start (default 2025-08-20 09:00 UTC).
func WithStart(t time.Time) Option {
	return func(s *settings) { s.start = t }
}

// WithUpstreamConfig edits the upstream config before the client is built.
func WithUpstreamConfig(fn func(*upstream.Config)) Option {
	return func(s *settings) { s.mutate = fn }
}

// New builds the stack; everything is closed on test cleanup.
func New(t testing.TB, opts ...Option) *Env {
	t.Helper()

	s := settings{
		limit: 100,
		start: time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(&s)
	}

	mock := testutil.NewMockUpstream()
	t.Cleanup(mock.Close)

	db, err := cache.OpenSQLite(filepath.Join(t.TempDir(), "footy_test.sqlite"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := cache.NewSQLiteStore(db, "test")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := NewClock(s.start)

	ledger, err := usage.NewSQLiteLedger(db, s.limit, clock.Now)
	if err != nil {
		t.Fatalf("create ledger: %v", err)
	}

	holds := ratelimit.NewTracker(nil, zerolog.Nop(), ratelimit.WithClock(clock.Now))

	cfg := upstream.DefaultConfig()
	cfg.APISportsKey = "test-key"
	cfg.APISportsBaseURL = mock.URL()
	cfg.RequestsPerSecond = 0
	cfg.BreakerFailures = 0
	cfg.Timeout = 2 * time.Second
	if s.mutate != nil {
		s.mutate(&cfg)
	}

	client, err := upstream.New(cfg, ledger, holds)
	if err != nil {
		t.Fatalf("create upstream client: %v", err)
	}

	gwOpts := gateway.DefaultOptions()
	gwOpts.Now = clock.Now
	gw, err := gateway.New(store, ledger, client, holds, gwOpts)
	if err != nil {
		t.Fatalf("create gateway: %v", err)
	}

	return &Env{
		Mock:    mock,
		DB:      db,
		Store:   store,
		Ledger:  ledger,
		Holds:   holds,
		Client:  client,
		Gateway: gw,
		Clock:   clock,
		TTLs:    gateway.DefaultTTLs(),
	}
}

// UsageCount returns today's ledger count.
func (e *Env) UsageCount(t testing.TB) int64 {
	t.Helper()
	u, err := e.Ledger.Get(context.Background())
	if err != nil {
		t.Fatalf("get usage: %v", err)
	}
	return u.Count
}

// SeedRaw stores body as a raw entry for path and params, captured age ago.
func (e *Env) SeedRaw(t testing.TB, path string, params map[string]string, body string, ttl, age time.Duration) {
	t.Helper()
	entry := cache.NewEntry([]byte(body), 200, nil, ttl, e.Clock.Now().Add(-age))
	if err := e.Store.Set(context.Background(), e.Gateway.Key(path, params), entry); err != nil {
		t.Fatalf("seed %s: %v", path, err)
	}
}
