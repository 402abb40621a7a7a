package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/footy-gateway/internal/testenv"
	"github.com/Sternrassler/footy-gateway/internal/testutil"
	"github.com/Sternrassler/footy-gateway/pkg/fixtures"
	"github.com/Sternrassler/footy-gateway/pkg/predict"
	"github.com/Sternrassler/footy-gateway/pkg/upstream"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/Sternrassler/footy-gateway/pkg/warm"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testOrigin = "http://localhost:5173"

var dayBody = testutil.FixturesBody(
	testutil.Fixture{ID: 1, LeagueID: 283, LeagueName: "Liga I", Country: "Romania", HomeID: 10, AwayID: 20},
	testutil.Fixture{ID: 2, LeagueID: 283, LeagueName: "Liga I", Country: "Romania", HomeID: 30, AwayID: 40},
	testutil.Fixture{ID: 3, LeagueID: 39, LeagueName: "Premier League", Country: "England", HomeID: 50, AwayID: 60},
)

type apiFixture struct {
	env    *testenv.Env
	server *Server
}

func newAPI(t *testing.T, opts ...testenv.Option) apiFixture {
	t.Helper()
	env := testenv.New(t, opts...)
	env.Mock.SetResponse(upstream.PathFixtures, testutil.NewJSONResponse(dayBody))

	views := fixtures.NewViews(env.Gateway, env.TTLs)
	srv := New(Deps{
		Gateway:   env.Gateway,
		Days:      views,
		Warmer:    warm.NewController(env.Gateway, views, env.TTLs, 0),
		Predictor: predict.NewPredictor(env.Gateway, views, predict.DefaultConfig()),
		Holds:     env.Holds,
		Env: EnvReport{
			Mode:              "APISPORTS",
			APISportsKey:      true,
			AllowStaleOnError: true,
		},
		Now: env.Clock.Now,
	}, testOrigin)

	return apiFixture{env: env, server: srv}
}

func (a apiFixture) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestFixturesDay(t *testing.T) {
	api := newAPI(t)

	w := api.do(t, http.MethodGet, "/api/fixtures/day?date=2025-08-20", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp fixturesDayResponse
	decode(t, w, &resp)
	assert.True(t, resp.OK)
	assert.Equal(t, 3, resp.TotalFixtures)
	require.Len(t, resp.Leagues, 2)
	assert.Equal(t, 283, resp.Leagues[0].ID)
	assert.Equal(t, 2, resp.Leagues[0].Matches)
	assert.False(t, resp.FromCache)
	assert.Equal(t, int64(1), resp.Usage.Count)

	w = api.do(t, http.MethodGet, "/api/fixtures/day?date=2025-08-20", nil)
	decode(t, w, &resp)
	assert.True(t, resp.FromCache)
	assert.Equal(t, 1, api.env.Mock.RequestCount())
}

func TestFixturesDay_DefaultsToToday(t *testing.T) {
	api := newAPI(t)

	w := api.do(t, http.MethodGet, "/api/fixtures/day", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-08-20", api.env.Mock.LastQuery().Get("date"))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		opts       []testenv.Option
		target     string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed date",
			target:     "/api/fixtures/day?date=20.08.2025",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "budget exhausted",
			opts:       []testenv.Option{testenv.WithLimit(0)},
			target:     "/api/fixtures/day?date=2025-08-20",
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "budget_exceeded",
		},
		{
			name:       "missing credential",
			opts:       []testenv.Option{testenv.WithUpstreamConfig(func(c *upstream.Config) { c.APISportsKey = "" })},
			target:     "/api/fixtures/day?date=2025-08-20",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "configuration",
		},
		{
			name:       "warm without leagues",
			target:     "/api/warm?date=2025-08-20",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "predict with bad limit",
			target:     "/api/predict?date=2025-08-20&leagueIds=39&limit=many",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "predict with bad league id",
			target:     "/api/predict?leagueIds=39,premier",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newAPI(t, tt.opts...)

			w := api.do(t, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			var resp errorResponse
			decode(t, w, &resp)
			assert.False(t, resp.OK)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestWarmThenPredict(t *testing.T) {
	api := newAPI(t)

	// Nothing cached yet: predict answers empty and asks for a warm run.
	w := api.do(t, http.MethodGet, "/api/predict?date=2025-08-20&leagueIds=283", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "true", w.Header().Get(HeaderNeedsWarm))
	assert.Equal(t, "true", w.Header().Get(HeaderCacheOnly))
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, 0, api.env.Mock.RequestCount())

	var u usage.Usage
	require.NoError(t, json.Unmarshal([]byte(w.Header().Get(HeaderUsage)), &u))
	assert.Equal(t, int64(0), u.Count)
	assert.Equal(t, int64(100), u.Limit)

	w = api.do(t, http.MethodGet, "/api/warm?date=2025-08-20&leagueIds=283,39", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report warm.Report
	decode(t, w, &report)
	assert.True(t, report.OK)
	assert.Equal(t, 2025, report.Season)
	assert.Len(t, report.Warmed, 2)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, api.env.Mock.RequestCount())

	w = api.do(t, http.MethodGet, "/api/predict?date=2025-08-20&leagueIds=283,39&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "false", w.Header().Get(HeaderNeedsWarm))
	assert.Equal(t, "true", w.Header().Get(HeaderTruncated))

	var rows []map[string]any
	decode(t, w, &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(1), rows[0]["id"])
	assert.Contains(t, rows[0], "probs")
	assert.Contains(t, rows[0], "recommended")
	assert.Equal(t, "synthetic", rows[0]["_debug"].(map[string]any)["method"])

	// Predict never reached the upstream.
	assert.Equal(t, 1, api.env.Mock.RequestCount())
}

func TestWarm_StandingsFlag(t *testing.T) {
	api := newAPI(t)
	api.env.Mock.SetResponse(upstream.PathStandings, testutil.NewJSONResponse(testutil.StandingsBody(283, 2025)))

	w := api.do(t, http.MethodGet, "/api/warm?date=2025-08-20&leagueIds=283&standings=1&season=2025", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report warm.Report
	decode(t, w, &report)
	require.Len(t, report.Warmed, 1)
	assert.Equal(t, warm.StandingsFetched, report.Warmed[0].Standings)
	assert.Equal(t, 1, api.env.Mock.PathCount(upstream.PathStandings))
}

func TestCacheEndpoints(t *testing.T) {
	api := newAPI(t)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/fixtures/day?date=2025-08-20", nil).Code)

	w := api.do(t, http.MethodGet, "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		OK    bool `json:"ok"`
		Cache struct {
			Kind  string `json:"kind"`
			Count int64  `json:"count"`
		} `json:"cache"`
		AllowStaleOnError bool `json:"allowStaleOnError"`
	}
	decode(t, w, &stats)
	assert.Equal(t, "sqlite", stats.Cache.Kind)
	assert.Equal(t, int64(2), stats.Cache.Count)
	assert.True(t, stats.AllowStaleOnError)

	w = api.do(t, http.MethodGet, "/api/cache/usage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var usageResp struct {
		Usage usage.Usage `json:"usage"`
	}
	decode(t, w, &usageResp)
	assert.Equal(t, int64(1), usageResp.Usage.Count)

	w = api.do(t, http.MethodPost, "/api/cache/flush", strings.NewReader(`{"prefix":"DERIVED"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ok":true,"flushed":"DERIVED","removed":1}`, w.Body.String())

	w = api.do(t, http.MethodPost, "/api/cache/flush", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ok":true,"flushed":"ALL","removed":1}`, w.Body.String())

	w = api.do(t, http.MethodPost, "/api/cache/flush", strings.NewReader(`{"prefix":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateStatus(t *testing.T) {
	api := newAPI(t)

	w := api.do(t, http.MethodGet, "/api/rate-status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"active":false,"holdUntil":null,"secondsLeft":0}`, w.Body.String())

	_, err := api.env.Holds.Hold(context.Background(), 30*time.Second, "upstream 429")
	require.NoError(t, err)

	w = api.do(t, http.MethodGet, "/api/rate-status", nil)
	var resp rateStatusResponse
	decode(t, w, &resp)
	assert.True(t, resp.Active)
	assert.Equal(t, 30, resp.SecondsLeft)
	assert.Equal(t, "upstream 429", resp.Reason)
	require.NotNil(t, resp.HoldUntil)
}

func TestEnvOK_HidesSecrets(t *testing.T) {
	api := newAPI(t)

	w := api.do(t, http.MethodGet, "/api/env-ok", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "test-key")

	var resp struct {
		OK      bool           `json:"ok"`
		Mode    string         `json:"mode"`
		Present map[string]any `json:"present"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "APISPORTS", resp.Mode)
	assert.Equal(t, true, resp.Present["APISPORTS_KEY"])
}

func TestHealthAndMetrics(t *testing.T) {
	api := newAPI(t)

	w := api.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = api.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "footy_http_requests_total")
}

func TestCORS(t *testing.T) {
	api := newAPI(t)

	w := api.do(t, http.MethodOptions, "/api/predict", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))

	w = api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	api := newAPI(t)

	w := api.do(t, http.MethodGet, "/health", nil)
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "trace-7")
	w = httptest.NewRecorder()
	api.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, "trace-7", w.Header().Get(HeaderRequestID))
}
