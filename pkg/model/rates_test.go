package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: -1, want: MinLambda},
		{in: 0.1, want: MinLambda},
		{in: 1.7, want: 1.7},
		{in: 9, want: MaxLambda},
		{in: math.NaN(), want: MinLambda},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.in))
	}
}

func TestRatesFromTotals(t *testing.T) {
	assert.Equal(t, Rates{Attack: 2, Defense: 0.75}, RatesFromTotals(8, 3, 4))
	assert.Equal(t, Rates{Attack: DefaultRate, Defense: DefaultRate}, RatesFromTotals(5, 5, 0))
}

func TestLambdas(t *testing.T) {
	tests := []struct {
		name     string
		home     Rates
		away     Rates
		adv      Advantage
		wantHome float64
		wantAway float64
	}{
		{
			name:     "team statistics",
			home:     Rates{Attack: 1.5, Defense: 0.9},
			away:     Rates{Attack: 1.1, Defense: 1.4},
			adv:      TeamStatsAdvantage,
			wantHome: 1.566,
			wantAway: 0.92,
		},
		{
			name:     "standings totals",
			home:     RatesFromTotals(8, 6, 4),
			away:     RatesFromTotals(2, 3, 4),
			adv:      StandingsAdvantage,
			wantHome: 1.855,
			wantAway: 0.5875,
		},
		{
			name:     "clamped both ways",
			home:     Rates{Attack: 9, Defense: 0},
			away:     Rates{Attack: 0, Defense: 9},
			adv:      TeamStatsAdvantage,
			wantHome: MaxLambda,
			wantAway: MinLambda,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lh, la := Lambdas(tt.home, tt.away, tt.adv)
			assert.InDelta(t, tt.wantHome, lh, 1e-9)
			assert.InDelta(t, tt.wantAway, la, 1e-9)
		})
	}
}

func TestSynthetic(t *testing.T) {
	tests := []struct {
		home, away int
		wantHome   float64
		wantAway   float64
	}{
		{home: 10, away: 20, wantHome: 1.326, wantAway: 1.213},
		{home: 20, away: 10, wantHome: 1.5036, wantAway: 1.3318},
		{home: 541, away: 529, wantHome: 1.7868, wantAway: 1.2834},
		{home: 0, away: 0, wantHome: 1.05, wantAway: 0.85},
	}

	for _, tt := range tests {
		lh, la := Synthetic(tt.home, tt.away)
		assert.InDelta(t, tt.wantHome, lh, 1e-9, "home %d-%d", tt.home, tt.away)
		assert.InDelta(t, tt.wantAway, la, 1e-9, "away %d-%d", tt.home, tt.away)

		// Repeated calls agree.
		lh2, la2 := Synthetic(tt.home, tt.away)
		assert.Equal(t, lh, lh2)
		assert.Equal(t, la, la2)
	}
}

func TestSynthetic_Range(t *testing.T) {
	for home := 1; home < 200; home += 7 {
		for away := 1; away < 200; away += 11 {
			lh, la := Synthetic(home, away)
			assert.GreaterOrEqual(t, lh, 1.05)
			assert.Less(t, lh, 2.25)
			assert.GreaterOrEqual(t, la, 0.85)
			assert.Less(t, la, 1.95)
		}
	}
}
