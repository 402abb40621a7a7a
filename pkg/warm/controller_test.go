package warm

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/Sternrassler/footy-gateway/internal/testenv"
	"github.com/Sternrassler/footy-gateway/internal/testutil"
	"github.com/Sternrassler/footy-gateway/pkg/failure"
	"github.com/Sternrassler/footy-gateway/pkg/fixtures"
	"github.com/Sternrassler/footy-gateway/pkg/gateway"
	"github.com/Sternrassler/footy-gateway/pkg/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dayBody = testutil.FixturesBody(
	testutil.Fixture{ID: 1, LeagueID: 283, HomeID: 10, AwayID: 20},
	testutil.Fixture{ID: 2, LeagueID: 283, HomeID: 30, AwayID: 40},
	testutil.Fixture{ID: 3, LeagueID: 283, HomeID: 50, AwayID: 10},
	testutil.Fixture{ID: 4, LeagueID: 39, HomeID: 70, AwayID: 80},
)

func newController(t *testing.T, env *testenv.Env, teamStatsLimit int) *Controller {
	t.Helper()
	env.Mock.SetResponse(upstream.PathFixtures, testutil.NewJSONResponse(dayBody))
	env.Mock.SetResponse(upstream.PathStandings, testutil.NewJSONResponse(
		testutil.StandingsBody(283, 2025, testutil.StandingRow{TeamID: 10, Played: 3, GoalsFor: 5, GoalsAgainst: 2}),
	))
	env.Mock.SetHandler(upstream.PathTeamStats, func(w http.ResponseWriter, r *http.Request) {
		teamID, _ := strconv.Atoi(r.URL.Query().Get("team"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testutil.TeamStatsBody(teamID, testutil.TeamAverages{
			ForHome: "1.5", ForAway: "1.1", ForTotal: "1.3",
			AgainstHome: "0.9", AgainstAway: "1.4", AgainstTotal: "1.15",
		})))
	})

	views := fixtures.NewViews(env.Gateway, env.TTLs)
	return NewController(env.Gateway, views, env.TTLs, teamStatsLimit)
}

func TestWarm_DayOnce(t *testing.T) {
	env := testenv.New(t)
	ctrl := newController(t, env, 10)
	ctx := context.Background()

	req := Request{Date: "2025-08-20", LeagueIDs: []int{283}}

	first, err := ctrl.Warm(ctx, req)
	require.NoError(t, err)
	assert.True(t, first.OK)
	assert.False(t, first.DayFromCache)
	assert.Equal(t, 2025, first.Season)
	require.Len(t, first.Warmed, 1)
	assert.Equal(t, 3, first.Warmed[0].Fixtures)
	assert.Equal(t, StandingsSkipped, first.Warmed[0].Standings)
	assert.Equal(t, int64(1), first.Usage.Count)
	assert.NotEmpty(t, first.RunID)
	require.NotNil(t, first.Cache)
	assert.Greater(t, first.Cache.Entries, int64(0))

	second, err := ctrl.Warm(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.DayFromCache)
	assert.Equal(t, int64(1), second.Usage.Count, "second warm costs nothing")
	assert.NotEqual(t, first.RunID, second.RunID)

	assert.Equal(t, 1, env.Mock.PathCount(upstream.PathFixtures))
}

func TestWarm_Standings(t *testing.T) {
	env := testenv.New(t)
	ctrl := newController(t, env, 10)
	ctx := context.Background()

	req := Request{Date: "2025-08-20", Season: 2025, LeagueIDs: []int{283}, Standings: true}

	first, err := ctrl.Warm(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StandingsFetched, first.Warmed[0].Standings)
	assert.Equal(t, "2025", env.Mock.LastQuery().Get("season"))

	second, err := ctrl.Warm(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StandingsCached, second.Warmed[0].Standings)
	assert.Equal(t, int64(2), second.Usage.Count)
}

func TestWarm_TeamStatsLimitAndSkip(t *testing.T) {
	env := testenv.New(t)
	ctrl := newController(t, env, 4)
	ctx := context.Background()

	req := Request{Date: "2025-08-20", LeagueIDs: []int{283}, TeamStats: true}

	first, err := ctrl.Warm(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.Warmed, 1)

	// Teams 10, 20, 30, 40, 50 are distinct; the cap keeps the first four.
	assert.Equal(t, 4, first.TeamStatsPrefetched)
	assert.Equal(t, 4, first.Warmed[0].TeamStatsFetched)
	assert.Equal(t, 1, first.Warmed[0].TeamStatsSkipped)
	assert.Equal(t, 4, env.Mock.PathCount(upstream.PathTeamStats))

	second, err := ctrl.Warm(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.TeamStatsPrefetched)
	assert.Equal(t, 4, second.Warmed[0].TeamStatsCached)
	assert.Equal(t, 4, env.Mock.PathCount(upstream.PathTeamStats), "fresh team stats are skipped")
	assert.Equal(t, int64(5), second.Usage.Count)
}

func TestWarm_BudgetRunsOut(t *testing.T) {
	env := testenv.New(t, testenv.WithLimit(3))
	ctrl := newController(t, env, 10)

	report, err := ctrl.Warm(context.Background(), Request{
		Date:      "2025-08-20",
		LeagueIDs: []int{283},
		Standings: true,
		TeamStats: true,
	})
	require.NoError(t, err)
	assert.False(t, report.OK)

	// Day + standings + one team; the remaining four teams are refused.
	assert.Equal(t, 1, report.TeamStatsPrefetched)
	require.Len(t, report.Errors, 4)
	for _, e := range report.Errors {
		assert.Equal(t, WhereTeamStats, e.Where)
		assert.Equal(t, 283, e.LeagueID)
		assert.NotZero(t, e.TeamID)
		assert.Equal(t, http.StatusTooManyRequests, e.Status)
		assert.Equal(t, failure.CodeBudgetExceeded, e.Code)
	}
	assert.Equal(t, int64(3), report.Usage.Count)
}

func TestWarm_StaleFallbackIsNotAnError(t *testing.T) {
	// Only the day fetch fits into the budget.
	env := testenv.New(t, testenv.WithLimit(1))
	ctrl := newController(t, env, 1)
	ctx := context.Background()

	expired := env.TTLs.Standings + time.Hour
	env.SeedRaw(t, upstream.PathStandings, upstream.StandingsParams(283, 2025),
		testutil.StandingsBody(283, 2025), env.TTLs.Standings, expired)
	env.SeedRaw(t, upstream.PathTeamStats, upstream.TeamStatsParams(283, 2025, 10),
		testutil.TeamStatsBody(10, testutil.TeamAverages{}), env.TTLs.TeamStats, env.TTLs.TeamStats+time.Hour)

	report, err := ctrl.Warm(ctx, Request{
		Date:      "2025-08-20",
		Season:    2025,
		LeagueIDs: []int{283},
		Standings: true,
		TeamStats: true,
	})
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Empty(t, report.Errors)

	require.Len(t, report.Warmed, 1)
	summary := report.Warmed[0]
	assert.True(t, summary.Stale)
	assert.Equal(t, StandingsStale, summary.Standings)
	assert.Equal(t, 1, summary.TeamStatsStale)
	assert.Zero(t, summary.TeamStatsFetched)
	assert.Equal(t, 0, env.Mock.PathCount(upstream.PathStandings))
	assert.Equal(t, int64(1), report.Usage.Count)
}

func TestWarm_DayFailureAborts(t *testing.T) {
	env := testenv.New(t)
	ctrl := newController(t, env, 10)
	env.Mock.SetResponse(upstream.PathFixtures, testutil.NewServerErrorResponse())

	report, err := ctrl.Warm(context.Background(), Request{Date: "2025-08-20", LeagueIDs: []int{283}, Standings: true})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, upstream.ErrHTTP))
	assert.Equal(t, 0, env.Mock.PathCount(upstream.PathStandings))
}

func TestWarm_DayBudgetExceeded(t *testing.T) {
	env := testenv.New(t, testenv.WithLimit(0))
	ctrl := newController(t, env, 10)

	_, err := ctrl.Warm(context.Background(), Request{Date: "2025-08-20", LeagueIDs: []int{283}})
	assert.True(t, errors.Is(err, gateway.ErrBudgetExceeded))
}

func TestWarm_LeagueWithoutFixtures(t *testing.T) {
	env := testenv.New(t)
	ctrl := newController(t, env, 10)

	report, err := ctrl.Warm(context.Background(), Request{Date: "2025-08-20", LeagueIDs: []int{283, 999}})
	require.NoError(t, err)
	assert.True(t, report.OK)
	require.Len(t, report.Warmed, 2)
	assert.Equal(t, 999, report.Warmed[1].LeagueID)
	assert.Equal(t, 0, report.Warmed[1].Fixtures)
}

func TestWarm_InvalidRequest(t *testing.T) {
	env := testenv.New(t)
	ctrl := newController(t, env, 10)

	tests := []struct {
		name string
		req  Request
	}{
		{name: "no leagues", req: Request{Date: "2025-08-20"}},
		{name: "bad date", req: Request{Date: "20-08-2025", LeagueIDs: []int{283}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctrl.Warm(context.Background(), tt.req)
			assert.ErrorIs(t, err, failure.ErrInvalidRequest)
		})
	}
	assert.Equal(t, 0, env.Mock.RequestCount())
}

func TestParseLeagueIDs(t *testing.T) {
	ids, err := ParseLeagueIDs(" 283, 39,,283, 0 ")
	require.NoError(t, err)
	assert.Equal(t, []int{283, 39}, ids)

	ids, err = ParseLeagueIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ParseLeagueIDs("283,abc")
	assert.ErrorIs(t, err, failure.ErrInvalidRequest)
}
