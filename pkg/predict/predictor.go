// Package predict answers prediction queries from cache only.
//
// Fixtures come from the derived league slices, team strength from cached
// team statistics or standings, and anything missing degrades to a
// deterministic synthetic estimate. The upstream is never called, so a
// query costs nothing against the daily budget; an uncached league only
// flags that a warm run is needed.
package predict

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/batch"
	"github.com/Sternrassler/footy-gateway/pkg/cache"
	"github.com/Sternrassler/footy-gateway/pkg/fixtures"
	"github.com/Sternrassler/footy-gateway/pkg/gateway"
	"github.com/Sternrassler/footy-gateway/pkg/logging"
	"github.com/Sternrassler/footy-gateway/pkg/model"
	"github.com/Sternrassler/footy-gateway/pkg/upstream"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footy_predictions_total",
		Help: "Predicted fixtures by estimation method",
	}, []string{"method"})

	predictDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "footy_predict_duration_seconds",
		Help:    "Predict query duration in seconds",
		Buckets: []float64{.005, .01, .05, .1, .5, 1, 2, 5, 10},
	})
)

// Gateway is the cache-only part of the gateway predict reads from.
type Gateway interface {
	Peek(ctx context.Context, path string, params map[string]string) (*gateway.Result, error)
	Usage(ctx context.Context) (usage.Usage, error)
}

// Leagues serves cached league slices.
type Leagues interface {
	League(ctx context.Context, date string, leagueID int) (*fixtures.LeagueResult, error)
}

// Config tunes the predictor.
type Config struct {
	MaxMatches int
	// TimeBudget is the wall-clock deadline shared by all leagues of a query.
	TimeBudget time.Duration
	// Concurrency is the number of leagues resolved at once.
	Concurrency int
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		MaxMatches:  DefaultMaxMatches,
		TimeBudget:  DefaultTimeBudget,
		Concurrency: batch.DefaultConfig().MaxConcurrency,
	}
}

// Response is the outcome of a query.
type Response struct {
	Rows []Row
	// NeedsWarm is set when at least one league had no cached fixtures.
	NeedsWarm bool
	// CacheOnly is always true: predict never calls the upstream.
	CacheOnly bool
	// Truncated is set when the limit or the time budget cut rows off.
	Truncated bool
	Usage     usage.Usage
}

// Predictor runs predict queries.
type Predictor struct {
	gw      Gateway
	leagues Leagues
	config  Config
	logger  zerolog.Logger
}

// NewPredictor creates a predictor. Zero config values use the defaults.
func NewPredictor(gw Gateway, leagues Leagues, config Config) *Predictor {
	defaults := DefaultConfig()
	if config.MaxMatches <= 0 {
		config.MaxMatches = defaults.MaxMatches
	}
	if config.TimeBudget <= 0 {
		config.TimeBudget = defaults.TimeBudget
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}

	return &Predictor{
		gw:      gw,
		leagues: leagues,
		config:  config,
		logger:  logging.NewLogger("predict"),
	}
}

// leagueRows is what one league contributed.
type leagueRows struct {
	rows      []Row
	notWarmed bool
}

// Predict computes predictions for the fixtures of the requested leagues,
// in league request order, up to the request limit.
func (p *Predictor) Predict(ctx context.Context, req Request) (*Response, error) {
	if err := req.Normalize(p.config.MaxMatches); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { predictDuration.Observe(time.Since(start).Seconds()) }()

	budgetCtx, cancel := context.WithTimeout(ctx, p.config.TimeBudget)
	defer cancel()

	pool := batch.NewPool(batch.Config{
		MaxConcurrency: p.config.Concurrency,
		Timeout:        p.config.TimeBudget,
	}, func(ctx context.Context, i int) (leagueRows, error) {
		return p.league(ctx, req, req.LeagueIDs[i])
	})
	results := pool.Run(budgetCtx, len(req.LeagueIDs))

	resp := &Response{
		Rows:      make([]Row, 0, req.Limit),
		CacheOnly: true,
	}

	for _, r := range results {
		if r.Value.notWarmed {
			resp.NeedsWarm = true
		}
		if r.Err != nil {
			resp.Truncated = true
		}
		for _, row := range r.Value.rows {
			if len(resp.Rows) >= req.Limit {
				resp.Truncated = true
				break
			}
			resp.Rows = append(resp.Rows, row)
		}
	}

	for _, row := range resp.Rows {
		predictionsTotal.WithLabelValues(row.Debug.Method).Inc()
	}

	if u, err := p.gw.Usage(ctx); err == nil {
		resp.Usage = u
	} else {
		p.logger.Warn().Err(err).Msg("Usage snapshot failed")
	}

	p.logger.Info().
		Str("date", req.Date).
		Ints("league_ids", req.LeagueIDs).
		Int("rows", len(resp.Rows)).
		Bool("needs_warm", resp.NeedsWarm).
		Bool("truncated", resp.Truncated).
		Dur("duration", time.Since(start)).
		Msg("Predict finished")

	return resp, nil
}

// league predicts the fixtures of one league. Rows computed before the
// deadline are returned together with the deadline error.
func (p *Predictor) league(ctx context.Context, req Request, leagueID int) (leagueRows, error) {
	logger := p.logger.With().Int("league_id", leagueID).Logger()

	slice, err := p.leagues.League(ctx, req.Date, leagueID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return leagueRows{}, ctxErr
		}
		if !errors.Is(err, fixtures.ErrNotWarmed) {
			logger.Warn().Err(err).Msg("League slice unreadable")
		}
		return leagueRows{notWarmed: true}, nil
	}

	standings, standingsMissing := p.standings(ctx, logger, leagueID, req.Season)

	out := leagueRows{rows: make([]Row, 0, min(len(slice.Items), req.Limit))}
	for _, it := range slice.Items {
		if len(out.rows) >= req.Limit {
			break
		}

		home, away := it.Teams.Home.ID, it.Teams.Away.ID
		homeGoals, homeOK := p.teamGoals(ctx, logger, leagueID, req.Season, home)
		awayGoals, awayOK := p.teamGoals(ctx, logger, leagueID, req.Season, away)

		// Cache reads under an expired context look like misses; drop the
		// row instead of reporting a wrong method.
		if err := ctx.Err(); err != nil {
			return out, err
		}

		debug := Debug{
			Method:            MethodSynthetic,
			FixturesFromCache: true,
			StandingsMissing:  standingsMissing,
			SeasonUsed:        req.Season,
			LeagueIDUsed:      leagueID,
		}

		var lambdaHome, lambdaAway float64
		rowHome, inHome := standings[home]
		rowAway, inAway := standings[away]

		switch {
		case homeOK && awayOK:
			debug.Method = MethodTeamStats
			debug.TeamStatsHomeOK = true
			debug.TeamStatsAwayOK = true
			lambdaHome, lambdaAway = model.Lambdas(homeGoals.HomeRates(), awayGoals.AwayRates(), model.TeamStatsAdvantage)
		case home != 0 && away != 0 && inHome && inAway:
			debug.Method = MethodStandings
			lambdaHome, lambdaAway = model.Lambdas(rowHome.Rates(), rowAway.Rates(), model.StandingsAdvantage)
		default:
			lambdaHome, lambdaAway = model.Synthetic(home, away)
		}

		out.rows = append(out.rows, newRow(it, model.Predict(lambdaHome, lambdaAway), debug))
	}

	return out, nil
}

// standings reads the cached league table. missing is true when no fresh
// table is cached.
func (p *Predictor) standings(ctx context.Context, logger zerolog.Logger, leagueID, season int) (rows map[int]StandingRow, missing bool) {
	res, err := p.gw.Peek(ctx, upstream.PathStandings, upstream.StandingsParams(leagueID, season))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("Standings cache read failed")
		}
		return map[int]StandingRow{}, true
	}
	return ParseStandings(res.Body), false
}

// teamGoals reads a team's cached statistics.
func (p *Predictor) teamGoals(ctx context.Context, logger zerolog.Logger, leagueID, season, teamID int) (TeamGoals, bool) {
	if teamID == 0 {
		return TeamGoals{}, false
	}
	res, err := p.gw.Peek(ctx, upstream.PathTeamStats, upstream.TeamStatsParams(leagueID, season, teamID))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && ctx.Err() == nil {
			logger.Warn().Err(err).Int("team_id", teamID).Msg("Team stats cache read failed")
		}
		return TeamGoals{}, false
	}
	return ParseTeamGoals(res.Body)
}
