package fixtures

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/cache"
	"github.com/Sternrassler/footy-gateway/pkg/gateway"
	"github.com/Sternrassler/footy-gateway/pkg/logging"
	"github.com/Sternrassler/footy-gateway/pkg/upstream"
	"github.com/rs/zerolog"
)

// ErrNotWarmed means neither the league slice nor the day it is cut from is
// cached and fresh. The caller should warm the date first.
var ErrNotWarmed = errors.New("fixtures not in cache, warm the date first")

// Source is the part of the gateway the views need.
type Source interface {
	Fetch(ctx context.Context, req gateway.Request) (*gateway.Result, error)
	Store() cache.Store
	Now() time.Time
}

// DayResult is the whole-day fixture list.
type DayResult struct {
	Date       string
	Items      []Item
	FromCache  bool
	Stale      bool
	CapturedAt time.Time
	Diagnostic string
}

// LeagueResult is one league's fixtures of a day. It is always cache sourced.
type LeagueResult struct {
	Date     string
	LeagueID int
	Items    []Item
	// Derived is set when the slice was cut from the day entry during this call.
	Derived    bool
	CapturedAt time.Time
}

// Views builds and caches the derived fixture entries.
type Views struct {
	source Source
	ttls   gateway.TTLs
	logger zerolog.Logger
}

// NewViews creates the view builder.
func NewViews(source Source, ttls gateway.TTLs) *Views {
	return &Views{
		source: source,
		ttls:   ttls,
		logger: logging.NewLogger("fixtures"),
	}
}

// Day returns all fixtures of date. A fresh derived day entry is served
// as is; otherwise one /fixtures?date= fetch goes through the gateway and
// its result is stored as the derived day entry.
func (v *Views) Day(ctx context.Context, date string) (*DayResult, error) {
	store := v.source.Store()
	key := cache.FixturesDayKey(date)
	now := v.source.Now()

	entry, err := store.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		v.logger.Warn().Err(err).Str("cache_key", string(key)).Msg("Derived day read failed")
	}
	if err == nil && entry.IsFresh(now) {
		items, err := Normalize(entry.Body)
		if err == nil {
			v.logger.Debug().Str("date", date).Int("fixtures", len(items)).Msg("Serving derived day entry")
			return &DayResult{Date: date, Items: items, FromCache: true, CapturedAt: entry.CapturedAt}, nil
		}
		v.logger.Warn().Err(err).Str("date", date).Msg("Derived day entry unreadable, refetching")
	}

	res, err := v.source.Fetch(ctx, gateway.Request{
		Path:   upstream.PathFixtures,
		Params: upstream.FixturesByDate(date),
		TTL:    v.ttls.FixturesDay,
		Tag:    "fixtures-day",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch fixtures for %s: %w", date, err)
	}

	items, err := Normalize(res.Body)
	if err != nil {
		return nil, fmt.Errorf("normalize fixtures for %s: %w", date, err)
	}

	// The derived entry inherits the capture time of the data it wraps, so
	// stale upstream data never turns into a fresh derived entry.
	derived := &cache.Entry{
		Body:       res.Body,
		StatusCode: http.StatusOK,
		CapturedAt: res.CapturedAt,
		TTL:        v.ttls.FixturesDay,
	}
	if err := store.Set(ctx, key, derived); err != nil {
		v.logger.Warn().Err(err).Str("cache_key", string(key)).Msg("Derived day write failed")
	}

	return &DayResult{
		Date:       date,
		Items:      items,
		FromCache:  res.FromCache,
		Stale:      res.Stale,
		CapturedAt: res.CapturedAt,
		Diagnostic: res.Diagnostic,
	}, nil
}

// League returns one league's fixtures of date from cache only. It never
// calls the upstream: a fresh slice is served, else it is cut from a fresh
// day entry and stored, else ErrNotWarmed.
func (v *Views) League(ctx context.Context, date string, leagueID int) (*LeagueResult, error) {
	store := v.source.Store()
	now := v.source.Now()
	sliceKey := cache.FixturesLeagueKey(date, leagueID)

	entry, err := store.Get(ctx, sliceKey)
	if err == nil && entry.IsFresh(now) {
		if items, err := Normalize(entry.Body); err == nil {
			return &LeagueResult{Date: date, LeagueID: leagueID, Items: items, CapturedAt: entry.CapturedAt}, nil
		}
	}

	day, err := store.Get(ctx, cache.FixturesDayKey(date))
	if err != nil || !day.IsFresh(now) {
		return nil, fmt.Errorf("league %d on %s: %w", leagueID, date, ErrNotWarmed)
	}

	all, err := Normalize(day.Body)
	if err != nil {
		return nil, fmt.Errorf("normalize day entry for %s: %w", date, err)
	}
	items := FilterLeague(all, leagueID)

	body, err := encodeSlice(date, leagueID, items)
	if err != nil {
		return nil, fmt.Errorf("encode league slice: %w", err)
	}
	slice := &cache.Entry{
		Body:       body,
		StatusCode: http.StatusOK,
		CapturedAt: day.CapturedAt,
		TTL:        v.ttls.Fixtures,
	}
	if err := store.Set(ctx, sliceKey, slice); err != nil {
		v.logger.Warn().Err(err).Str("cache_key", string(sliceKey)).Msg("Derived slice write failed")
	}

	v.logger.Debug().
		Str("date", date).
		Int("league_id", leagueID).
		Int("fixtures", len(items)).
		Msg("League slice derived from day entry")

	return &LeagueResult{
		Date:       date,
		LeagueID:   leagueID,
		Items:      items,
		Derived:    true,
		CapturedAt: day.CapturedAt,
	}, nil
}
