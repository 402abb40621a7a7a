// Package usage implements the daily upstream call ledger.
//
// The ledger counts upstream calls per UTC calendar day and compares the
// count with a static limit. A new day starts at zero because the day is
// part of the key; past days are retained but never consulted again.
package usage

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrLimitReached is returned when a spend would exceed the daily limit.
var ErrLimitReached = errors.New("daily upstream limit reached")

var (
	dailyUsageCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "footy_upstream_daily_usage",
		Help: "Upstream calls counted for the current day",
	})

	dailyUsageLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "footy_upstream_daily_limit",
		Help: "Configured daily upstream call limit",
	})
)

// Usage is the ledger snapshot for one day.
type Usage struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
	Limit int64  `json:"limit"`
}

// Remaining returns how many calls are left today (never negative).
func (u Usage) Remaining() int64 {
	if u.Count >= u.Limit {
		return 0
	}
	return u.Limit - u.Count
}

// Allows reports whether n more calls fit into the limit.
func (u Usage) Allows(n int64) bool {
	return u.Count+n <= u.Limit
}

// Ledger is a durable per-day counter of upstream calls.
type Ledger interface {
	// Get returns today's usage.
	Get(ctx context.Context) (Usage, error)

	// Increment atomically adds n to today's count and returns the new usage.
	Increment(ctx context.Context, n int64) (Usage, error)

	// TryIncrement adds n only if count+n <= limit, checking and spending in
	// one atomic step. It returns the resulting usage and whether n was spent.
	TryIncrement(ctx context.Context, n int64) (Usage, bool, error)

	// CanSpend reports whether count+n <= limit for today. The answer may be
	// outdated by the time a call is made; only TryIncrement reserves budget.
	CanSpend(ctx context.Context, n int64) (bool, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Day formats t as the ledger's UTC day key (YYYY-MM-DD).
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func observe(u Usage) {
	dailyUsageCount.Set(float64(u.Count))
	dailyUsageLimit.Set(float64(u.Limit))
}

func clockOrNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
