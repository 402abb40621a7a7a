package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/failure"
	"github.com/Sternrassler/footy-gateway/pkg/fixtures"
	"github.com/Sternrassler/footy-gateway/pkg/logging"
	"github.com/Sternrassler/footy-gateway/pkg/predict"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/Sternrassler/footy-gateway/pkg/warm"
	"github.com/gin-gonic/gin"
)

// Predict response headers.
const (
	HeaderUsage     = "X-Footy-Usage"
	HeaderNeedsWarm = "X-Footy-Needs-Warm"
	HeaderCacheOnly = "X-Footy-Cache-Only"
	HeaderTruncated = "X-Footy-Truncated"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) fail(c *gin.Context, err error) {
	status := failure.Status(err)
	if status >= http.StatusInternalServerError {
		logger := logging.FromContext(c.Request.Context(), s.logger)
		logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	c.JSON(status, errorResponse{OK: false, Error: err.Error(), Code: failure.Code(err)})
}

// date returns the date query parameter, today (UTC) when absent.
func (s *Server) date(c *gin.Context) (string, error) {
	date := c.Query("date")
	if date == "" {
		return usage.Day(s.deps.Now()), nil
	}
	if _, err := time.Parse(warm.DateLayout, date); err != nil {
		return "", fmt.Errorf("%w: date %q is not YYYY-MM-DD", failure.ErrInvalidRequest, date)
	}
	return date, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", failure.ErrInvalidRequest, name, raw)
	}
	return n, nil
}

func flagQuery(c *gin.Context, name string) bool {
	switch c.Query(name) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func leagueQuery(c *gin.Context) ([]int, error) {
	ids, err := warm.ParseLeagueIDs(c.Query("leagueIds"))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: missing leagueIds", failure.ErrInvalidRequest)
	}
	return ids, nil
}

type fixturesDayResponse struct {
	OK            bool                     `json:"ok"`
	Date          string                   `json:"date"`
	TotalFixtures int                      `json:"totalFixtures"`
	Leagues       []fixtures.LeagueSummary `json:"leagues"`
	Usage         usage.Usage              `json:"usage"`
	FromCache     bool                     `json:"fromCache"`
	Stale         bool                     `json:"stale"`
	Diagnostic    string                   `json:"diagnostic,omitempty"`
}

// fixturesDay returns the per-league overview of a day.
func (s *Server) fixturesDay(c *gin.Context) {
	ctx := c.Request.Context()

	date, err := s.date(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	day, err := s.deps.Days.Day(ctx, date)
	if err != nil {
		s.fail(c, err)
		return
	}

	summary := fixtures.Summarize(day.Items)
	u, _ := s.deps.Gateway.Usage(ctx)

	c.JSON(http.StatusOK, fixturesDayResponse{
		OK:            true,
		Date:          date,
		TotalFixtures: summary.TotalFixtures,
		Leagues:       summary.Leagues,
		Usage:         u,
		FromCache:     day.FromCache,
		Stale:         day.Stale,
		Diagnostic:    day.Diagnostic,
	})
}

// warm prefetches a day and, optionally, standings and team statistics.
func (s *Server) warm(c *gin.Context) {
	date, err := s.date(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	leagueIDs, err := leagueQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	season, err := intQuery(c, "season")
	if err != nil {
		s.fail(c, err)
		return
	}

	report, err := s.deps.Warmer.Warm(c.Request.Context(), warm.Request{
		Date:      date,
		Season:    season,
		LeagueIDs: leagueIDs,
		Standings: flagQuery(c, "standings"),
		TeamStats: flagQuery(c, "teamstats"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// predict answers from cache only. The rows are the body; the query
// metadata travels in headers.
func (s *Server) predict(c *gin.Context) {
	date, err := s.date(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	leagueIDs, err := leagueQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	season, err := intQuery(c, "season")
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		s.fail(c, err)
		return
	}
	if c.Query("limit") != "" && limit < 1 {
		limit = 1
	}

	resp, err := s.deps.Predictor.Predict(c.Request.Context(), predict.Request{
		Date:      date,
		Season:    season,
		LeagueIDs: leagueIDs,
		Limit:     limit,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	usageJSON, err := json.Marshal(resp.Usage)
	if err == nil {
		c.Header(HeaderUsage, string(usageJSON))
	}
	c.Header(HeaderNeedsWarm, strconv.FormatBool(resp.NeedsWarm))
	c.Header(HeaderCacheOnly, strconv.FormatBool(resp.CacheOnly))
	c.Header(HeaderTruncated, strconv.FormatBool(resp.Truncated))

	c.JSON(http.StatusOK, resp.Rows)
}

func (s *Server) cacheStats(c *gin.Context) {
	stats, err := s.deps.Gateway.Store().Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                true,
		"cache":             stats,
		"allowStaleOnError": s.deps.Env.AllowStaleOnError,
	})
}

func (s *Server) cacheUsage(c *gin.Context) {
	u, err := s.deps.Gateway.Usage(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "usage": u})
}

type flushRequest struct {
	Prefix string `json:"prefix"`
}

// cacheFlush removes entries whose key starts with prefix, or everything.
func (s *Server) cacheFlush(c *gin.Context) {
	var req flushRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.fail(c, fmt.Errorf("%w: %v", failure.ErrInvalidRequest, err))
		return
	}

	removed, err := s.deps.Gateway.Store().Flush(c.Request.Context(), req.Prefix)
	if err != nil {
		s.fail(c, err)
		return
	}

	flushed := req.Prefix
	if flushed == "" {
		flushed = "ALL"
	}
	logger := logging.FromContext(c.Request.Context(), s.logger)
	logger.Warn().Str("prefix", flushed).Int64("removed", removed).Msg("Cache flushed")

	c.JSON(http.StatusOK, gin.H{"ok": true, "flushed": flushed, "removed": removed})
}

type rateStatusResponse struct {
	OK          bool       `json:"ok"`
	Active      bool       `json:"active"`
	HoldUntil   *time.Time `json:"holdUntil"`
	SecondsLeft int        `json:"secondsLeft"`
	Reason      string     `json:"reason,omitempty"`
}

func (s *Server) rateStatus(c *gin.Context) {
	if s.deps.Holds == nil {
		c.JSON(http.StatusOK, rateStatusResponse{OK: true})
		return
	}

	state, err := s.deps.Holds.GetState(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	now := s.deps.Holds.Now()
	resp := rateStatusResponse{
		OK:          true,
		Active:      state.Active(now),
		SecondsLeft: state.SecondsLeft(now),
		Reason:      state.Reason,
	}
	if !state.HoldUntil.IsZero() {
		until := state.HoldUntil.UTC()
		resp.HoldUntil = &until
	}
	c.JSON(http.StatusOK, resp)
}

// envOK reports which settings are present, never their secret values.
func (s *Server) envOK(c *gin.Context) {
	ctx := c.Request.Context()
	body := gin.H{
		"ok":      true,
		"mode":    s.deps.Env.Mode,
		"present": s.deps.Env,
	}
	if u, err := s.deps.Gateway.Usage(ctx); err == nil {
		body["dailyUpstreamCalls"] = u
	}
	if stats, err := s.deps.Gateway.Store().Stats(ctx); err == nil {
		body["cache"] = stats
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) health(c *gin.Context) {
	checks := map[string]string{}
	status := "ok"

	if _, err := s.deps.Gateway.Store().Stats(c.Request.Context()); err != nil {
		status = "unhealthy"
		checks["store"] = "failed: " + err.Error()
	} else {
		checks["store"] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"service":   "footy-gateway",
		"timestamp": s.deps.Now().UTC(),
		"checks":    checks,
	})
}
