// Package ratelimit implements the transient upstream backoff window.
// When the upstream answers HTTP 429 a hold is recorded; while the hold is
// active no upstream calls are made and callers fall back to cached data.
// The hold is independent of the daily call budget.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RedisKeyHold stores the JSON encoded HoldState shared by all instances.
const RedisKeyHold = "footy:rate_limit:hold"

// Hold durations.
const (
	// MinHold is the shortest hold ever recorded, whatever the headers say.
	MinHold = 10 * time.Second

	// DefaultHold applies when the 429 response carries no usable reset hint.
	DefaultHold = 90 * time.Second
)

// Header names inspected on a 429 response, in order of precedence.
const (
	HeaderRetryAfter    = "Retry-After"
	HeaderRequestsReset = "X-Ratelimit-Requests-Reset"
)

// HoldState is the current backoff window.
type HoldState struct {
	// HoldUntil is the instant from which upstream calls are allowed again.
	// The zero value means no hold was ever recorded.
	HoldUntil time.Time `json:"hold_until"`

	// Reason is a short human readable cause, e.g. "upstream 429".
	Reason string `json:"reason,omitempty"`

	// LastUpdate is when the hold was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// Active reports whether the hold still blocks calls at now.
func (s *HoldState) Active(now time.Time) bool {
	return now.Before(s.HoldUntil)
}

// TimeUntilRelease returns the remaining hold duration, 0 once released.
func (s *HoldState) TimeUntilRelease(now time.Time) time.Duration {
	d := s.HoldUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// SecondsLeft rounds the remaining hold up to whole seconds.
func (s *HoldState) SecondsLeft(now time.Time) int {
	d := s.TimeUntilRelease(now)
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// HoldDuration derives the hold length from 429 response headers.
// Retry-After wins over X-Ratelimit-Requests-Reset; both are read as
// positive integer seconds. Retry-After may also be an HTTP date.
// Without a usable hint DefaultHold is used; the result is never below MinHold.
func HoldDuration(headers http.Header, now time.Time) time.Duration {
	d := DefaultHold

	if v, ok := parseSeconds(headers.Get(HeaderRetryAfter)); ok {
		d = v
	} else if t, err := http.ParseTime(strings.TrimSpace(headers.Get(HeaderRetryAfter))); err == nil && t.After(now) {
		d = t.Sub(now)
	} else if v, ok := parseSeconds(headers.Get(HeaderRequestsReset)); ok {
		d = v
	}

	if d < MinHold {
		d = MinHold
	}
	return d
}

func parseSeconds(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
