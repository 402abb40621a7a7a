package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrid_Normalized(t *testing.T) {
	for _, lambdas := range [][2]float64{{0.2, 0.2}, {1.5, 1.1}, {3.5, 3.5}} {
		grid := NewGrid(lambdas[0], lambdas[1], MaxGoals)
		require.Len(t, grid, MaxGoals+1)

		sum := 0.0
		for _, row := range grid {
			require.Len(t, row, MaxGoals+1)
			for _, cell := range row {
				assert.GreaterOrEqual(t, cell, 0.0)
				sum += cell
			}
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "lambdas %v", lambdas)
	}
}

func TestPredict_Markets(t *testing.T) {
	tests := []struct {
		name        string
		lh, la      float64
		probs       ProbsView
		picks       PicksView
		recommended RecommendedView
	}{
		{
			name:        "balanced home edge",
			lh:          1.5,
			la:          1.1,
			probs:       ProbsView{P1: 46, PX: 26, P2: 28, PGG: 51, PO25: 47, PU35: 75, PO15: 73, P12: 74, P1X: 72, PX2: 54},
			picks:       PicksView{OneXTwo: "1", GG: "GG", Over25: "Under 2.5", CorrectScore: "1:1"},
			recommended: RecommendedView{Pick: "Under 3.5", Confidence: 75},
		},
		{
			name:        "strong home",
			lh:          2.8,
			la:          0.6,
			probs:       ProbsView{P1: 80, PX: 14, P2: 6, PGG: 42, PO25: 60, PU35: 66, PO15: 83, P12: 86, P1X: 94, PX2: 20},
			picks:       PicksView{OneXTwo: "1", GG: "NG", Over25: "Over 2.5", CorrectScore: "2:0"},
			recommended: RecommendedView{Pick: "1X", Confidence: 94},
		},
		{
			name:        "strong away",
			lh:          0.6,
			la:          2.4,
			probs:       ProbsView{P1: 8, PX: 17, P2: 75, PGG: 41, PO25: 53, PU35: 72, PO15: 78, P12: 83, P1X: 25, PX2: 92},
			picks:       PicksView{OneXTwo: "2", GG: "NG", Over25: "Over 2.5", CorrectScore: "0:2"},
			recommended: RecommendedView{Pick: "X2", Confidence: 92},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := Predict(tt.lh, tt.la).View()
			assert.Equal(t, tt.probs, view.Probs)
			assert.Equal(t, tt.picks, view.Predictions)
			assert.Equal(t, tt.recommended, view.Recommended)
			assert.Equal(t, LambdasView{Home: tt.lh, Away: tt.la}, view.Lambdas)
		})
	}
}

func TestPredict_Invariants(t *testing.T) {
	for lh := MinLambda; lh <= MaxLambda; lh += 0.3 {
		for la := MinLambda; la <= MaxLambda; la += 0.3 {
			p := Predict(lh, la).Probabilities

			assert.InDelta(t, 1.0, p.P1+p.PX+p.P2, 1e-9)
			assert.InDelta(t, 1.0, p.P12+p.PX, 1e-9)
			assert.LessOrEqual(t, p.PO25, p.PO15)
			assert.LessOrEqual(t, p.PGG, 1.0)
		}
	}
}

func TestPredict_LowScoringDraw(t *testing.T) {
	pred := Predict(0.2, 0.2)
	assert.Equal(t, "X", pred.Picks.OneXTwo)
	assert.Equal(t, "0:0", pred.Picks.CorrectScore)
	assert.Equal(t, "Under 3.5", pred.Recommended.Pick)
	assert.Equal(t, 100, pred.View().Recommended.Confidence)
}

func TestView_RoundsLambdas(t *testing.T) {
	view := Predict(1.566, 0.923).View()
	assert.Equal(t, 1.57, view.Lambdas.Home)
	assert.Equal(t, 0.92, view.Lambdas.Away)
}
