package warm

import (
	"github.com/Sternrassler/footy-gateway/pkg/cache"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
)

// Where a per-league failure happened.
const (
	WhereFixtures  = "fixtures"
	WhereStandings = "standings"
	WhereTeamStats = "teamstats"
)

// Standings outcomes of a league summary.
const (
	StandingsCached  = "cached"
	StandingsFetched = "fetched"
	StandingsStale   = "stale"
	StandingsSkipped = "skipped"
	StandingsFailed  = "failed"
)

// LeagueSummary reports what was warmed for one league.
type LeagueSummary struct {
	LeagueID  int    `json:"leagueId"`
	Season    int    `json:"season"`
	Date      string `json:"date"`
	Fixtures  int    `json:"fixtures"`
	Standings string `json:"standings"`

	TeamStatsCached  int `json:"teamStatsCached,omitempty"`
	TeamStatsFetched int `json:"teamStatsFetched,omitempty"`
	TeamStatsSkipped int `json:"teamStatsSkipped,omitempty"`
	// TeamStatsStale counts teams answered only by an expired entry.
	TeamStatsStale int `json:"teamStatsStale,omitempty"`

	// Stale is set when any prefetch of the league fell back to an expired
	// entry. Stale fallbacks are not errors.
	Stale bool `json:"stale"`
}

// Error is one accumulated per-league failure.
type Error struct {
	LeagueID int    `json:"leagueId"`
	Where    string `json:"where"`
	TeamID   int    `json:"teamId,omitempty"`
	Status   int    `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"error"`
}

// Report is the outcome of a warm run.
type Report struct {
	RunID  string `json:"runId"`
	OK     bool   `json:"ok"`
	Date   string `json:"date"`
	Season int    `json:"season"`

	DayFromCache bool `json:"dayFromCache"`
	DayStale     bool `json:"dayStale"`

	Warmed              []LeagueSummary `json:"warmed"`
	TeamStatsPrefetched int             `json:"teamStatsPrefetched"`
	Errors              []Error         `json:"errors"`

	Usage usage.Usage  `json:"usage"`
	Cache *cache.Stats `json:"cache,omitempty"`
}
