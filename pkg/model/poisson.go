package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// MaxGoals is the largest scoreline per side on the grid.
const MaxGoals = 4

// Grid holds P(home = h, away = a) at [h][a], normalized to sum 1.
type Grid [][]float64

// NewGrid builds the joint scoreline distribution of two independent
// Poisson variables truncated at maxGoals and renormalized.
func NewGrid(lambdaHome, lambdaAway float64, maxGoals int) Grid {
	home := distuv.Poisson{Lambda: lambdaHome}
	away := distuv.Poisson{Lambda: lambdaAway}

	grid := make(Grid, maxGoals+1)
	cells := make([]float64, 0, (maxGoals+1)*(maxGoals+1))
	for h := 0; h <= maxGoals; h++ {
		grid[h] = make([]float64, maxGoals+1)
		ph := home.Prob(float64(h))
		for a := 0; a <= maxGoals; a++ {
			grid[h][a] = ph * away.Prob(float64(a))
			cells = append(cells, grid[h][a])
		}
	}

	if sum := floats.Sum(cells); sum > 0 {
		for h := range grid {
			floats.Scale(1/sum, grid[h])
		}
	}
	return grid
}

// Probabilities are the market probabilities in [0, 1].
type Probabilities struct {
	P1   float64 // home win
	PX   float64 // draw
	P2   float64 // away win
	PGG  float64 // both teams score
	PO25 float64 // over 2.5 goals
	PU35 float64 // under 3.5 goals
	PO15 float64 // over 1.5 goals
	P12  float64
	P1X  float64
	PX2  float64
}

// Picks are the per-market choices.
type Picks struct {
	OneXTwo      string
	GG           string
	Over25       string
	CorrectScore string
}

// Recommendation is the single most confident pick.
type Recommendation struct {
	Pick       string
	Confidence float64
}

// Prediction is the full model output for one fixture.
type Prediction struct {
	LambdaHome    float64
	LambdaAway    float64
	Probabilities Probabilities
	Picks         Picks
	Recommended   Recommendation
}

// Market pick labels.
const (
	PickHome       = "1"
	PickDraw       = "X"
	PickAway       = "2"
	PickGG         = "GG"
	PickNG         = "NG"
	PickOver25     = "Over 2.5"
	PickUnder25    = "Under 2.5"
	PickUnder35    = "Under 3.5"
	PickOver15     = "Over 1.5"
	PickHomeOrAway = "12"
	PickHomeOrDraw = "1X"
	PickDrawOrAway = "X2"
)

// Predict reduces the scoreline grid for lambdaHome/lambdaAway to markets.
func Predict(lambdaHome, lambdaAway float64) Prediction {
	grid := NewGrid(lambdaHome, lambdaAway, MaxGoals)

	var p Probabilities
	bestH, bestA, bestP := 0, 0, grid[0][0]

	for h := range grid {
		for a, cell := range grid[h] {
			switch {
			case h > a:
				p.P1 += cell
			case h == a:
				p.PX += cell
			default:
				p.P2 += cell
			}
			if h >= 1 && a >= 1 {
				p.PGG += cell
			}
			goals := h + a
			if goals >= 3 {
				p.PO25 += cell
			}
			if goals <= 3 {
				p.PU35 += cell
			}
			if goals >= 2 {
				p.PO15 += cell
			}
			if cell > bestP {
				bestH, bestA, bestP = h, a, cell
			}
		}
	}
	p.P12 = 1 - p.PX
	p.P1X = 1 - p.P2
	p.PX2 = 1 - p.P1

	picks := Picks{
		OneXTwo:      oneXTwo(p),
		GG:           PickNG,
		Over25:       PickUnder25,
		CorrectScore: fmt.Sprintf("%d:%d", bestH, bestA),
	}
	if p.PGG >= 0.5 {
		picks.GG = PickGG
	}
	if p.PO25 >= 0.5 {
		picks.Over25 = PickOver25
	}

	// Candidates in priority order; the first of equal confidences wins.
	candidates := []Recommendation{
		{Pick: PickUnder35, Confidence: p.PU35},
		{Pick: PickOver15, Confidence: p.PO15},
		{Pick: picks.OneXTwo, Confidence: math.Max(p.P1, math.Max(p.PX, p.P2))},
		{Pick: PickHomeOrAway, Confidence: p.P12},
		{Pick: PickHomeOrDraw, Confidence: p.P1X},
		{Pick: PickDrawOrAway, Confidence: p.PX2},
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	return Prediction{
		LambdaHome:    lambdaHome,
		LambdaAway:    lambdaAway,
		Probabilities: p,
		Picks:         picks,
		Recommended:   best,
	}
}

func oneXTwo(p Probabilities) string {
	switch {
	case p.P1 >= p.PX && p.P1 >= p.P2:
		return PickHome
	case p.PX >= p.P1 && p.PX >= p.P2:
		return PickDraw
	default:
		return PickAway
	}
}
