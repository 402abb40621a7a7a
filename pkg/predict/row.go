package predict

import (
	"github.com/Sternrassler/footy-gateway/pkg/fixtures"
	"github.com/Sternrassler/footy-gateway/pkg/model"
)

// Estimation methods, best first.
const (
	MethodTeamStats = "teamstats"
	MethodStandings = "standings"
	MethodSynthetic = "synthetic"
)

// Logos of the league and both teams.
type Logos struct {
	League string `json:"league,omitempty"`
	Home   string `json:"home,omitempty"`
	Away   string `json:"away,omitempty"`
}

// TeamNames of both sides.
type TeamNames struct {
	Home string `json:"home"`
	Away string `json:"away"`
}

// Debug tells how a row was computed.
type Debug struct {
	Method            string `json:"method"`
	FixturesFromCache bool   `json:"fixturesFromCache"`
	StandingsMissing  bool   `json:"standingsMissing"`
	TeamStatsHomeOK   bool   `json:"teamStatsHomeOk"`
	TeamStatsAwayOK   bool   `json:"teamStatsAwayOk"`
	SeasonUsed        int    `json:"seasonUsed"`
	LeagueIDUsed      int    `json:"leagueIdUsed"`
}

// Row is the prediction of one fixture.
type Row struct {
	ID       int            `json:"id"`
	LeagueID int            `json:"leagueId"`
	League   string         `json:"league"`
	Logos    Logos          `json:"logos"`
	Teams    TeamNames      `json:"teams"`
	Kickoff  string         `json:"kickoff"`
	Status   string         `json:"status"`
	Referee  *string        `json:"referee"`
	Goals    fixtures.Goals `json:"goals"`

	model.View

	// Authoritative is false for synthetic estimates, which are not based
	// on any data about the teams.
	Authoritative bool  `json:"authoritative"`
	Debug         Debug `json:"_debug"`
}

func newRow(it fixtures.Item, pred model.Prediction, debug Debug) Row {
	return Row{
		ID:       it.Fixture.ID,
		LeagueID: it.League.ID,
		League:   it.League.Name,
		Logos: Logos{
			League: it.League.Logo,
			Home:   it.Teams.Home.Logo,
			Away:   it.Teams.Away.Logo,
		},
		Teams:         TeamNames{Home: it.Teams.Home.Name, Away: it.Teams.Away.Name},
		Kickoff:       it.Fixture.Date,
		Status:        it.Fixture.Status.Short,
		Referee:       it.Fixture.Referee,
		Goals:         it.Goals,
		View:          pred.View(),
		Authoritative: debug.Method != MethodSynthetic,
		Debug:         debug,
	}
}
