package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTracker_MemoryHold(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)}
	tracker := NewTracker(nil, zerolog.Nop(), WithClock(clock.Now))
	ctx := context.Background()

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Fatal("fresh tracker should allow requests")
	}

	headers := http.Header{}
	headers.Set(HeaderRetryAfter, "20")

	started, err := tracker.UpdateFromResponse(ctx, http.StatusTooManyRequests, headers)
	if err != nil {
		t.Fatalf("UpdateFromResponse() error = %v", err)
	}
	if !started {
		t.Fatal("429 should start a hold")
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if got := state.SecondsLeft(clock.Now()); got != 20 {
		t.Errorf("SecondsLeft() = %d, want 20", got)
	}

	allowed, _ = tracker.ShouldAllowRequest(ctx)
	if allowed {
		t.Error("request allowed during hold")
	}

	clock.Advance(21 * time.Second)
	allowed, _ = tracker.ShouldAllowRequest(ctx)
	if !allowed {
		t.Error("request blocked after hold released")
	}
}

func TestTracker_UpdateFromResponse_IgnoresOtherStatuses(t *testing.T) {
	tracker := NewTracker(nil, zerolog.Nop())
	ctx := context.Background()

	for _, status := range []int{http.StatusOK, http.StatusInternalServerError, http.StatusForbidden} {
		started, err := tracker.UpdateFromResponse(ctx, status, nil)
		if err != nil {
			t.Fatalf("UpdateFromResponse(%d) error = %v", status, err)
		}
		if started {
			t.Errorf("status %d should not start a hold", status)
		}
	}

	state, _ := tracker.GetState(ctx)
	if !state.HoldUntil.IsZero() {
		t.Errorf("HoldUntil = %v, want zero", state.HoldUntil)
	}
}

func TestTracker_UpdateFromResponse_NilHeaders(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)}
	tracker := NewTracker(nil, zerolog.Nop(), WithClock(clock.Now))

	if _, err := tracker.UpdateFromResponse(context.Background(), http.StatusTooManyRequests, nil); err != nil {
		t.Fatalf("UpdateFromResponse() error = %v", err)
	}

	state, _ := tracker.GetState(context.Background())
	if got := state.TimeUntilRelease(clock.Now()); got != DefaultHold {
		t.Errorf("TimeUntilRelease() = %v, want %v", got, DefaultHold)
	}
}
