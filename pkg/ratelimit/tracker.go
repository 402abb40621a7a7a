package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the backoff window.
var (
	holdSecondsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "footy_rate_limit_hold_seconds",
		Help: "Seconds left in the current upstream rate-limit hold",
	})

	holdActivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "footy_rate_limit_holds_total",
		Help: "Total number of holds started by upstream 429 responses",
	})

	holdBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "footy_rate_limit_blocks_total",
		Help: "Total number of upstream calls suppressed by an active hold",
	})
)

// Tracker records and answers the hold state.
// With a Redis client the state is shared across instances; without one it
// lives in process memory.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	local HoldState
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now returns the tracker's clock reading.
func (t *Tracker) Now() time.Time {
	return t.now()
}

// GetState returns the current hold. A zero HoldState means no hold.
func (t *Tracker) GetState(ctx context.Context) (*HoldState, error) {
	if t.redis == nil {
		t.mu.RLock()
		state := t.local
		t.mu.RUnlock()
		return &state, nil
	}

	data, err := t.redis.Get(ctx, RedisKeyHold).Bytes()
	if err == redis.Nil {
		return &HoldState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get hold state: %w", err)
	}

	var state HoldState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse hold state: %w", err)
	}
	return &state, nil
}

// Hold records a hold of duration d starting now.
func (t *Tracker) Hold(ctx context.Context, d time.Duration, reason string) (*HoldState, error) {
	now := t.now()
	state := HoldState{
		HoldUntil:  now.Add(d),
		Reason:     reason,
		LastUpdate: now,
	}

	if t.redis == nil {
		t.mu.Lock()
		t.local = state
		t.mu.Unlock()
	} else {
		data, err := json.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("marshal hold state: %w", err)
		}
		// The key expires with the hold so a released hold leaves nothing behind.
		if err := t.redis.Set(ctx, RedisKeyHold, data, d).Err(); err != nil {
			return nil, fmt.Errorf("store hold state in redis: %w", err)
		}
	}

	holdActivationsTotal.Inc()
	holdSecondsRemaining.Set(d.Seconds())

	t.logger.Warn().
		Time("hold_until", state.HoldUntil).
		Dur("hold", d).
		Str("reason", reason).
		Msg("Upstream rate-limit hold started")

	return &state, nil
}

// UpdateFromResponse starts a hold when status is 429. It reports whether a
// hold was started.
func (t *Tracker) UpdateFromResponse(ctx context.Context, status int, headers http.Header) (bool, error) {
	if status != http.StatusTooManyRequests {
		return false, nil
	}
	if headers == nil {
		headers = http.Header{}
	}

	d := HoldDuration(headers, t.now())
	if _, err := t.Hold(ctx, d, "upstream 429"); err != nil {
		return false, err
	}
	return true, nil
}

// ShouldAllowRequest reports whether an upstream call may be made now.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get hold state: %w", err)
	}

	now := t.now()
	if !state.Active(now) {
		holdSecondsRemaining.Set(0)
		return true, nil
	}

	left := state.TimeUntilRelease(now)
	holdSecondsRemaining.Set(left.Seconds())
	holdBlocksTotal.Inc()

	t.logger.Debug().
		Dur("hold_remaining", left).
		Str("reason", state.Reason).
		Msg("Upstream call suppressed by rate-limit hold")

	return false, nil
}
