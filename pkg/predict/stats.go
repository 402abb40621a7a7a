package predict

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Sternrassler/footy-gateway/pkg/model"
)

// TeamGoals are the per-game goal averages of a /teams/statistics payload.
type TeamGoals struct {
	ForTotal     float64
	AgainstTotal float64
	ForHome      float64
	AgainstHome  float64
	ForAway      float64
	AgainstAway  float64
}

// HomeRates rates a team playing at home.
func (g TeamGoals) HomeRates() model.Rates {
	return model.Rates{Attack: g.ForHome, Defense: g.AgainstHome}
}

// AwayRates rates a team playing away.
func (g TeamGoals) AwayRates() model.Rates {
	return model.Rates{Attack: g.ForAway, Defense: g.AgainstAway}
}

type averages struct {
	Home  json.RawMessage `json:"home"`
	Away  json.RawMessage `json:"away"`
	Total json.RawMessage `json:"total"`
}

// ParseTeamGoals reads the goal averages of a team statistics body. The
// upstream sends them as strings, sometimes with a decimal comma. Missing
// home or away values fall back to the total; without both totals the
// payload is unusable and ok is false.
func ParseTeamGoals(body []byte) (goals TeamGoals, ok bool) {
	var payload struct {
		Response *struct {
			Goals struct {
				For struct {
					Average averages `json:"average"`
				} `json:"for"`
				Against struct {
					Average averages `json:"average"`
				} `json:"against"`
			} `json:"goals"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Response == nil {
		return TeamGoals{}, false
	}

	gf := payload.Response.Goals.For.Average
	ga := payload.Response.Goals.Against.Average

	forTotal, okFor := number(gf.Total)
	againstTotal, okAgainst := number(ga.Total)
	if !okFor || !okAgainst {
		return TeamGoals{}, false
	}

	return TeamGoals{
		ForTotal:     forTotal,
		AgainstTotal: againstTotal,
		ForHome:      numberOr(gf.Home, forTotal),
		AgainstHome:  numberOr(ga.Home, againstTotal),
		ForAway:      numberOr(gf.Away, forTotal),
		AgainstAway:  numberOr(ga.Away, againstTotal),
	}, true
}

// number accepts a JSON number or a numeric string. A blank string counts
// as zero.
func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
	} else {
		text = string(raw)
	}

	text = strings.TrimSpace(strings.Replace(text, ",", ".", 1))
	if text == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func numberOr(raw json.RawMessage, fallback float64) float64 {
	if v, ok := number(raw); ok {
		return v
	}
	return fallback
}

// StandingRow is a team's season totals from the league table.
type StandingRow struct {
	TeamID       int
	Played       int
	GoalsFor     int
	GoalsAgainst int
}

// Rates turns the totals into per-game rates.
func (r StandingRow) Rates() model.Rates {
	return model.RatesFromTotals(r.GoalsFor, r.GoalsAgainst, r.Played)
}

// ParseStandings indexes the first table of a /standings body by team id.
// Rows without a team id are ignored.
func ParseStandings(body []byte) map[int]StandingRow {
	var payload struct {
		Response []struct {
			League struct {
				Standings [][]struct {
					Team struct {
						ID int `json:"id"`
					} `json:"team"`
					All struct {
						Played int `json:"played"`
						Goals  struct {
							For     int `json:"for"`
							Against int `json:"against"`
						} `json:"goals"`
					} `json:"all"`
				} `json:"standings"`
			} `json:"league"`
		} `json:"response"`
	}

	rows := make(map[int]StandingRow)
	if err := json.Unmarshal(body, &payload); err != nil {
		return rows
	}
	if len(payload.Response) == 0 || len(payload.Response[0].League.Standings) == 0 {
		return rows
	}

	for _, r := range payload.Response[0].League.Standings[0] {
		if r.Team.ID == 0 {
			continue
		}
		rows[r.Team.ID] = StandingRow{
			TeamID:       r.Team.ID,
			Played:       r.All.Played,
			GoalsFor:     r.All.Goals.For,
			GoalsAgainst: r.All.Goals.Against,
		}
	}
	return rows
}
