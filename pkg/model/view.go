package model

import "math"

// LambdasView are the expected goals rounded to two decimals.
type LambdasView struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// ProbsView are the market probabilities as whole percentages.
type ProbsView struct {
	P1   int `json:"p1"`
	PX   int `json:"pX"`
	P2   int `json:"p2"`
	PGG  int `json:"pGG"`
	PO25 int `json:"pO25"`
	PU35 int `json:"pU35"`
	PO15 int `json:"pO15"`
	P12  int `json:"p12"`
	P1X  int `json:"p1X"`
	PX2  int `json:"pX2"`
}

// PicksView are the market picks.
type PicksView struct {
	OneXTwo      string `json:"oneXtwo"`
	GG           string `json:"gg"`
	Over25       string `json:"over25"`
	CorrectScore string `json:"correctScore"`
}

// RecommendedView is the recommendation with a percentage confidence.
type RecommendedView struct {
	Pick       string `json:"pick"`
	Confidence int    `json:"confidence"`
}

// View is the API rendering of a Prediction.
type View struct {
	Lambdas     LambdasView     `json:"lambdas"`
	Probs       ProbsView       `json:"probs"`
	Predictions PicksView       `json:"predictions"`
	Recommended RecommendedView `json:"recommended"`
}

// View rounds the prediction for output.
func (p Prediction) View() View {
	pr := p.Probabilities
	return View{
		Lambdas: LambdasView{Home: round2(p.LambdaHome), Away: round2(p.LambdaAway)},
		Probs: ProbsView{
			P1:   percent(pr.P1),
			PX:   percent(pr.PX),
			P2:   percent(pr.P2),
			PGG:  percent(pr.PGG),
			PO25: percent(pr.PO25),
			PU35: percent(pr.PU35),
			PO15: percent(pr.PO15),
			P12:  percent(pr.P12),
			P1X:  percent(pr.P1X),
			PX2:  percent(pr.PX2),
		},
		Predictions: PicksView{
			OneXTwo:      p.Picks.OneXTwo,
			GG:           p.Picks.GG,
			Over25:       p.Picks.Over25,
			CorrectScore: p.Picks.CorrectScore,
		},
		Recommended: RecommendedView{
			Pick:       p.Recommended.Pick,
			Confidence: percent(p.Recommended.Confidence),
		},
	}
}

func percent(p float64) int {
	return int(math.Round(p * 100))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
