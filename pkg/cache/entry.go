// Package cache provides the persistent response cache used by the gateway.
// Entries are never expired by the backend; freshness is decided by the
// caller from the capture time and TTL.
package cache

import (
	"encoding/json"
	"net/http"
	"time"
)

// Entry represents a cached upstream response or derived view.
type Entry struct {
	// Body is the serialized payload (upstream JSON or a derived view)
	Body []byte `json:"body"`

	// StatusCode is the upstream HTTP status (0 for derived entries)
	StatusCode int `json:"status_code,omitempty"`

	// Headers are the upstream response headers (nil for derived entries)
	Headers http.Header `json:"headers,omitempty"`

	// CapturedAt is when the payload was fetched or derived
	CapturedAt time.Time `json:"captured_at"`

	// TTL is how long the entry counts as fresh after CapturedAt
	TTL time.Duration `json:"ttl"`
}

// NewEntry builds an entry captured at now.
func NewEntry(body []byte, status int, headers http.Header, ttl time.Duration, now time.Time) *Entry {
	return &Entry{
		Body:       body,
		StatusCode: status,
		Headers:    headers,
		CapturedAt: now,
		TTL:        ttl,
	}
}

// IsFresh reports whether now - CapturedAt <= TTL.
// An entry without a capture time is never fresh.
func (e *Entry) IsFresh(now time.Time) bool {
	return Fresh(now, e.CapturedAt, e.TTL)
}

// Age returns how long ago the entry was captured.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CapturedAt)
}

// Decode unmarshals the entry body into v.
func (e *Entry) Decode(v any) error {
	return json.Unmarshal(e.Body, v)
}

// Fresh is the freshness rule shared by every store backend.
func Fresh(now, capturedAt time.Time, ttl time.Duration) bool {
	if capturedAt.IsZero() {
		return false
	}
	return now.Sub(capturedAt) <= ttl
}
