package upstream

import "strconv"

// Upstream endpoint paths.
const (
	PathFixtures  = "/fixtures"
	PathStandings = "/standings"
	PathTeamStats = "/teams/statistics"
)

// FixturesByDate are the params of a whole-day fixtures request.
func FixturesByDate(date string) map[string]string {
	return map[string]string{"date": date}
}

// StandingsParams are the params of a league table request.
func StandingsParams(leagueID, season int) map[string]string {
	return map[string]string{
		"league": strconv.Itoa(leagueID),
		"season": strconv.Itoa(season),
	}
}

// TeamStatsParams are the params of a team statistics request.
func TeamStatsParams(leagueID, season, teamID int) map[string]string {
	return map[string]string{
		"league": strconv.Itoa(leagueID),
		"season": strconv.Itoa(season),
		"team":   strconv.Itoa(teamID),
	}
}
