// Package gateway implements the cache-first fetch policy in front of the
// football upstream.
//
// For every request it decides between a fresh cache entry (free), one
// budgeted upstream call, or a stale cache entry when the budget, a
// rate-limit hold or the upstream itself stands in the way. Only when no
// cache entry exists does a failure reach the caller.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/cache"
	"github.com/Sternrassler/footy-gateway/pkg/logging"
	"github.com/Sternrassler/footy-gateway/pkg/ratelimit"
	"github.com/Sternrassler/footy-gateway/pkg/upstream"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// ErrBudgetExceeded means no cache entry exists and the daily budget
	// allows no further upstream call.
	ErrBudgetExceeded = errors.New("daily upstream budget exceeded")

	// ErrRateLimited means no cache entry exists and an upstream rate-limit
	// hold is active. It always wraps ErrBudgetExceeded as well.
	ErrRateLimited = errors.New("upstream rate-limit hold active")
)

// Fallback diagnostics.
const (
	DiagnosticBudgetBlocked = "budget blocked"
	DiagnosticHold          = "rate-limit hold"
)

var (
	gatewayOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footy_gateway_outcomes_total",
		Help: "Gateway fetch outcomes by tag and outcome",
	}, []string{"tag", "outcome"})

	gatewayBudgetBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footy_gateway_budget_blocks_total",
		Help: "Fetches that could not call upstream, by reason",
	}, []string{"reason"})

	gatewayStaleServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footy_gateway_stale_served_total",
		Help: "Stale cache entries served, by tag",
	}, []string{"tag"})
)

// Upstream is the mechanism the gateway calls when policy allows.
type Upstream interface {
	URL(path string, params map[string]string) string
	Fetch(ctx context.Context, path string, params map[string]string) (*upstream.Response, error)
}

// Request describes one cache-first fetch.
type Request struct {
	Path   string
	Params map[string]string
	// TTL is stored with the entry written on success.
	TTL time.Duration
	// Tag labels logs and metrics, e.g. "standings".
	Tag string
}

// Result is what a fetch produced.
type Result struct {
	URL        string
	Key        cache.Key
	StatusCode int
	Body       []byte
	FromCache  bool
	Stale      bool
	CapturedAt time.Time

	// Diagnostic explains why a stale entry was served.
	Diagnostic string
	// Cause is the failure hidden behind a stale entry, if any.
	Cause error
}

// Options tune the fallback policy.
type Options struct {
	// AllowStaleOnError serves stale entries instead of failures.
	AllowStaleOnError bool

	// Now overrides time.Now.
	Now func() time.Time
}

// DefaultOptions returns the production policy.
func DefaultOptions() Options {
	return Options{AllowStaleOnError: true}
}

// Gateway is the cache-first fetch orchestrator.
type Gateway struct {
	store  cache.Store
	ledger usage.Ledger
	client Upstream
	holds  *ratelimit.Tracker
	opts   Options
	logger zerolog.Logger
}

// New creates a gateway. holds may be nil.
func New(store cache.Store, ledger usage.Ledger, client Upstream, holds *ratelimit.Tracker, opts Options) (*Gateway, error) {
	if store == nil {
		return nil, fmt.Errorf("cache store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("usage ledger is required")
	}
	if client == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Gateway{
		store:  store,
		ledger: ledger,
		client: client,
		holds:  holds,
		opts:   opts,
		logger: logging.NewLogger("gateway"),
	}, nil
}

// Store returns the underlying cache store.
func (g *Gateway) Store() cache.Store {
	return g.store
}

// Now returns the gateway clock reading.
func (g *Gateway) Now() time.Time {
	return g.opts.Now()
}

// Usage returns today's ledger snapshot.
func (g *Gateway) Usage(ctx context.Context) (usage.Usage, error) {
	return g.ledger.Get(ctx)
}

// Key returns the raw cache key for path and params.
func (g *Gateway) Key(path string, params map[string]string) cache.Key {
	return cache.RawKey(g.client.URL(path, params))
}

// Fetch runs the cache-first policy for req.
func (g *Gateway) Fetch(ctx context.Context, req Request) (*Result, error) {
	url := g.client.URL(req.Path, req.Params)
	key := cache.RawKey(url)
	now := g.opts.Now()

	logger := logging.FromContext(ctx, g.logger).With().Str("tag", req.Tag).Str("cache_key", string(key)).Logger()

	cached, err := g.store.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		// A broken read is treated as a miss; the write on success repairs it.
		logger.Warn().Err(err).Msg("Cache read failed")
		cached = nil
	}

	held, err := g.holdActive(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Hold state unavailable, assuming no hold")
	}
	if held {
		gatewayBudgetBlocksTotal.WithLabelValues("hold").Inc()
		return g.blocked(logger, req, url, key, cached, now, DiagnosticHold)
	}

	if cached != nil && cached.IsFresh(now) {
		logger.Debug().Msg("Serving fresh cache entry")
		gatewayOutcomesTotal.WithLabelValues(req.Tag, "fresh").Inc()
		return fromEntry(url, key, cached, false), nil
	}

	ok, err := g.ledger.CanSpend(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("check daily budget: %w", err)
	}
	if !ok {
		gatewayBudgetBlocksTotal.WithLabelValues("budget").Inc()
		return g.blocked(logger, req, url, key, cached, now, DiagnosticBudgetBlocked)
	}

	resp, fetchErr := g.client.Fetch(ctx, req.Path, req.Params)
	if fetchErr == nil {
		entry := cache.NewEntry(resp.Body, resp.StatusCode, resp.Header, req.TTL, g.opts.Now())
		if err := g.store.Set(ctx, key, entry); err != nil {
			logger.Warn().Err(err).Msg("Cache write failed")
		}
		gatewayOutcomesTotal.WithLabelValues(req.Tag, "fetched").Inc()

		return &Result{
			URL:        url,
			Key:        key,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			CapturedAt: entry.CapturedAt,
		}, nil
	}

	if errors.Is(fetchErr, usage.ErrLimitReached) {
		// Another request spent the last unit between the check and the call.
		gatewayBudgetBlocksTotal.WithLabelValues("budget").Inc()
		return g.blocked(logger, req, url, key, cached, now, DiagnosticBudgetBlocked)
	}

	if errors.Is(fetchErr, upstream.ErrConfiguration) {
		gatewayOutcomesTotal.WithLabelValues(req.Tag, "config_error").Inc()
		return nil, fetchErr
	}

	if cached != nil && g.opts.AllowStaleOnError {
		logger.Warn().Err(fetchErr).Dur("age", cached.Age(now)).Msg("Upstream failed, serving stale cache entry")
		gatewayOutcomesTotal.WithLabelValues(req.Tag, "stale_on_error").Inc()
		gatewayStaleServedTotal.WithLabelValues(req.Tag).Inc()

		result := fromEntry(url, key, cached, true)
		result.Diagnostic = fetchErr.Error()
		result.Cause = fetchErr
		return result, nil
	}

	gatewayOutcomesTotal.WithLabelValues(req.Tag, "error").Inc()
	return nil, fetchErr
}

// Peek returns a fresh raw entry without ever calling upstream.
// Missing and stale entries both yield cache.ErrCacheMiss.
func (g *Gateway) Peek(ctx context.Context, path string, params map[string]string) (*Result, error) {
	url := g.client.URL(path, params)
	key := cache.RawKey(url)

	entry, err := g.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !entry.IsFresh(g.opts.Now()) {
		return nil, cache.ErrCacheMiss
	}
	return fromEntry(url, key, entry, false), nil
}

func (g *Gateway) holdActive(ctx context.Context) (bool, error) {
	if g.holds == nil {
		return false, nil
	}
	allowed, err := g.holds.ShouldAllowRequest(ctx)
	if err != nil {
		return false, err
	}
	return !allowed, nil
}

// blocked serves whatever entry exists when no upstream call may be made.
// The returned entry is stale unless it happens to still be fresh, which
// only occurs under a hold since fresh entries are served before the
// budget check.
func (g *Gateway) blocked(logger zerolog.Logger, req Request, url string, key cache.Key, cached *cache.Entry, now time.Time, diagnostic string) (*Result, error) {
	if cached != nil && g.opts.AllowStaleOnError {
		stale := !cached.IsFresh(now)
		logger.Warn().
			Bool("stale", stale).
			Dur("age", cached.Age(now)).
			Str("reason", diagnostic).
			Msg("Upstream blocked, serving cache entry")
		gatewayOutcomesTotal.WithLabelValues(req.Tag, "blocked_cached").Inc()
		if stale {
			gatewayStaleServedTotal.WithLabelValues(req.Tag).Inc()
		}

		result := fromEntry(url, key, cached, stale)
		result.Diagnostic = diagnostic
		return result, nil
	}

	gatewayOutcomesTotal.WithLabelValues(req.Tag, "blocked").Inc()
	logger.Warn().Str("reason", diagnostic).Msg("Upstream blocked and nothing cached")

	if diagnostic == DiagnosticHold {
		return nil, fmt.Errorf("%w: %w", ErrRateLimited, ErrBudgetExceeded)
	}
	return nil, ErrBudgetExceeded
}

func fromEntry(url string, key cache.Key, e *cache.Entry, stale bool) *Result {
	status := e.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &Result{
		URL:        url,
		Key:        key,
		StatusCode: status,
		Body:       e.Body,
		FromCache:  true,
		Stale:      stale,
		CapturedAt: e.CapturedAt,
	}
}
