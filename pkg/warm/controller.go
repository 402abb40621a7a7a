// Package warm implements the budget-aware bulk prefetch that fills the
// cache ahead of read-only prediction queries.
package warm

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/cache"
	"github.com/Sternrassler/footy-gateway/pkg/failure"
	"github.com/Sternrassler/footy-gateway/pkg/fixtures"
	"github.com/Sternrassler/footy-gateway/pkg/gateway"
	"github.com/Sternrassler/footy-gateway/pkg/logging"
	"github.com/Sternrassler/footy-gateway/pkg/upstream"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultTeamStatsLimit caps team statistics fetches per league and run.
const DefaultTeamStatsLimit = 10

var (
	warmRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footy_warm_runs_total",
		Help: "Warm runs by outcome",
	}, []string{"outcome"})

	warmTeamStatsPrefetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "footy_warm_teamstats_prefetched_total",
		Help: "Team statistics entries fetched by warm runs",
	})

	warmDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "footy_warm_duration_seconds",
		Help:    "Warm run duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// Gateway is the part of the gateway the controller needs.
type Gateway interface {
	Fetch(ctx context.Context, req gateway.Request) (*gateway.Result, error)
	Peek(ctx context.Context, path string, params map[string]string) (*gateway.Result, error)
	Usage(ctx context.Context) (usage.Usage, error)
	Store() cache.Store
}

// Days is the part of the fixture views the controller needs.
type Days interface {
	Day(ctx context.Context, date string) (*fixtures.DayResult, error)
	League(ctx context.Context, date string, leagueID int) (*fixtures.LeagueResult, error)
}

// Controller runs warm requests.
type Controller struct {
	gw             Gateway
	views          Days
	ttls           gateway.TTLs
	teamStatsLimit int
	logger         zerolog.Logger
}

// NewController creates a controller. teamStatsLimit <= 0 uses the default.
func NewController(gw Gateway, views Days, ttls gateway.TTLs, teamStatsLimit int) *Controller {
	if teamStatsLimit <= 0 {
		teamStatsLimit = DefaultTeamStatsLimit
	}
	return &Controller{
		gw:             gw,
		views:          views,
		ttls:           ttls,
		teamStatsLimit: teamStatsLimit,
		logger:         logging.NewLogger("warm"),
	}
}

// Warm makes sure the day's fixtures are cached and, on request, prefetches
// standings and a bounded number of team statistics per league.
//
// The day fetch is shared by all leagues; if it fails nothing can be
// sliced and its typed error is returned. Every later failure is recorded in
// the report and the run continues.
func (c *Controller) Warm(ctx context.Context, req Request) (*Report, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { warmDuration.Observe(time.Since(start).Seconds()) }()

	runID := uuid.NewString()
	logger := c.logger.With().Str("run_id", runID).Str("date", req.Date).Logger()

	day, err := c.views.Day(ctx, req.Date)
	if err != nil {
		warmRunsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("Warm aborted, day fixtures unavailable")
		return nil, err
	}

	report := &Report{
		RunID:        runID,
		Date:         req.Date,
		Season:       req.Season,
		DayFromCache: day.FromCache,
		DayStale:     day.Stale,
		Warmed:       make([]LeagueSummary, 0, len(req.LeagueIDs)),
		Errors:       make([]Error, 0),
	}

	for _, leagueID := range req.LeagueIDs {
		c.warmLeague(ctx, req, leagueID, report)
	}

	report.OK = len(report.Errors) == 0

	if u, err := c.gw.Usage(ctx); err == nil {
		report.Usage = u
	} else {
		logger.Warn().Err(err).Msg("Usage snapshot failed")
	}
	if stats, err := c.gw.Store().Stats(ctx); err == nil {
		report.Cache = &stats
	} else {
		logger.Warn().Err(err).Msg("Cache stats failed")
	}

	outcome := "ok"
	if !report.OK {
		outcome = "partial"
	}
	warmRunsTotal.WithLabelValues(outcome).Inc()

	logger.Info().
		Ints("league_ids", req.LeagueIDs).
		Int("warmed", len(report.Warmed)).
		Int("teamstats_prefetched", report.TeamStatsPrefetched).
		Int("errors", len(report.Errors)).
		Int64("usage_count", report.Usage.Count).
		Dur("duration", time.Since(start)).
		Msg("Warm finished")

	return report, nil
}

func (c *Controller) warmLeague(ctx context.Context, req Request, leagueID int, report *Report) {
	slice, err := c.views.League(ctx, req.Date, leagueID)
	if err != nil {
		report.Errors = append(report.Errors, newError(leagueID, WhereFixtures, 0, err))
		return
	}

	summary := LeagueSummary{
		LeagueID:  leagueID,
		Season:    req.Season,
		Date:      req.Date,
		Fixtures:  len(slice.Items),
		Standings: StandingsSkipped,
	}

	if req.Standings {
		summary.Standings = c.warmStandings(ctx, req.Season, leagueID, report)
	}

	if req.TeamStats {
		c.warmTeamStats(ctx, req.Season, leagueID, slice.Items, &summary, report)
	}

	summary.Stale = summary.Standings == StandingsStale || summary.TeamStatsStale > 0

	report.Warmed = append(report.Warmed, summary)
}

func (c *Controller) warmStandings(ctx context.Context, season, leagueID int, report *Report) string {
	res, err := c.gw.Fetch(ctx, gateway.Request{
		Path:   upstream.PathStandings,
		Params: upstream.StandingsParams(leagueID, season),
		TTL:    c.ttls.Standings,
		Tag:    "standings",
	})
	switch {
	case err != nil:
		report.Errors = append(report.Errors, newError(leagueID, WhereStandings, 0, err))
		return StandingsFailed
	case res.Stale:
		c.logger.Warn().Int("league_id", leagueID).Str("reason", res.Diagnostic).Msg("Standings kept from expired entry")
		return StandingsStale
	case res.FromCache:
		return StandingsCached
	default:
		return StandingsFetched
	}
}

func (c *Controller) warmTeamStats(ctx context.Context, season, leagueID int, items []fixtures.Item, summary *LeagueSummary, report *Report) {
	teamIDs := fixtures.TeamIDs(items)
	if len(teamIDs) > c.teamStatsLimit {
		summary.TeamStatsSkipped = len(teamIDs) - c.teamStatsLimit
		teamIDs = teamIDs[:c.teamStatsLimit]
	}

	for _, teamID := range teamIDs {
		params := upstream.TeamStatsParams(leagueID, season, teamID)

		if _, err := c.gw.Peek(ctx, upstream.PathTeamStats, params); err == nil {
			summary.TeamStatsCached++
			continue
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Int("team_id", teamID).Msg("Team stats cache read failed")
		}

		res, err := c.gw.Fetch(ctx, gateway.Request{
			Path:   upstream.PathTeamStats,
			Params: params,
			TTL:    c.ttls.TeamStats,
			Tag:    "teamstats",
		})
		if err != nil {
			report.Errors = append(report.Errors, newError(leagueID, WhereTeamStats, teamID, err))
			continue
		}
		if res.Stale {
			summary.TeamStatsStale++
			continue
		}

		summary.TeamStatsFetched++
		report.TeamStatsPrefetched++
		warmTeamStatsPrefetched.Inc()
	}
}

func newError(leagueID int, where string, teamID int, err error) Error {
	return Error{
		LeagueID: leagueID,
		Where:    where,
		TeamID:   teamID,
		Status:   failure.Status(err),
		Code:     failure.Code(err),
		Message:  err.Error(),
	}
}
