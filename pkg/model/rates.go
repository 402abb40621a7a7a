// Package model is the independent-Poisson match model. It is pure: no I/O,
// no clock, deterministic for equal inputs.
package model

import "math"

// Lambda bounds keep the Poisson tails sane.
const (
	MinLambda = 0.2
	MaxLambda = 3.5
)

// DefaultRate is used for a team that has not played yet.
const DefaultRate = 1.2

// Rates are a team's goals scored (Attack) and conceded (Defense) per match.
type Rates struct {
	Attack  float64
	Defense float64
}

// RatesFromTotals normalizes aggregate goals to per-match rates.
func RatesFromTotals(goalsFor, goalsAgainst, played int) Rates {
	if played <= 0 {
		return Rates{Attack: DefaultRate, Defense: DefaultRate}
	}
	return Rates{
		Attack:  float64(goalsFor) / float64(played),
		Defense: float64(goalsAgainst) / float64(played),
	}
}

// Advantage scales the home and away expectation.
type Advantage struct {
	Home float64
	Away float64
}

var (
	// TeamStatsAdvantage applies to venue-split team statistics.
	TeamStatsAdvantage = Advantage{Home: 1.08, Away: 0.92}

	// StandingsAdvantage applies to whole-table aggregates.
	StandingsAdvantage = Advantage{Home: 1.06, Away: 0.94}
)

// Clamp bounds a lambda into [MinLambda, MaxLambda]. NaN maps to MinLambda.
func Clamp(x float64) float64 {
	if math.IsNaN(x) || x < MinLambda {
		return MinLambda
	}
	if x > MaxLambda {
		return MaxLambda
	}
	return x
}

// Lambdas blends each side's attack with the opponent's conceded rate.
func Lambdas(home, away Rates, adv Advantage) (lambdaHome, lambdaAway float64) {
	lambdaHome = Clamp(((home.Attack + away.Defense) / 2) * adv.Home)
	lambdaAway = Clamp(((away.Attack + home.Defense) / 2) * adv.Away)
	return lambdaHome, lambdaAway
}

// Synthetic derives reproducible lambdas from the two team ids alone. The
// values vary per matchup but carry no information about the teams.
func Synthetic(homeID, awayID int) (lambdaHome, lambdaAway float64) {
	seed := uint32(uint64(int64(homeID))*73856093) ^ uint32(uint64(int64(awayID))*19349663)

	r1 := float64(seed%1000) / 1000
	r2 := float64((uint64(seed)*48271)%1000) / 1000

	return Clamp(1.05 + r1*1.2), Clamp(0.85 + r2*1.1)
}
