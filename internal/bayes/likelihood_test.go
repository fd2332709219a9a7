package bayes

import (
	"math"
	"testing"

	"adaptrial/internal/links"
	"adaptrial/internal/model"
)

func TestLikelihoodEmptyHistory(t *testing.T) {
	got := Likelihood(nil, []float64{0.2, 0.4}, 0.5, links.Empiric{})
	if got != 1 {
		t.Fatalf("empty history should give likelihood 1, got %v", got)
	}
}

func TestLikelihoodSingleObservation(t *testing.T) {
	skeleton := []float64{0.25, 0.5}
	link := links.Empiric{}

	// efficacious outcome at dose 2, zero slope: p = 0.5
	got := Likelihood([]Observation{{Dose: 2, Outcome: 1}}, skeleton, 0, link)
	if math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	// non-efficacious outcome at dose 1: 1 - 0.25
	got = Likelihood([]Observation{{Dose: 1, Outcome: 0}}, skeleton, 0, link)
	if math.Abs(got-0.75) > 1e-12 {
		t.Fatalf("expected 0.75, got %v", got)
	}
}

func TestLikelihoodProductForm(t *testing.T) {
	skeleton := []float64{0.2, 0.4, 0.6}
	link := links.Empiric{}
	obs := []Observation{{1, 1}, {2, 0}, {3, 1}, {3, 0}}

	want := 1.0
	for _, o := range obs {
		p := link.Apply(skeleton[o.Dose-1], 0, -0.3)
		if o.Outcome == 1 {
			want *= p
		} else {
			want *= 1 - p
		}
	}
	got := Likelihood(obs, skeleton, -0.3, link)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got < 0 || got > 1 {
		t.Fatalf("likelihood out of [0,1]: %v", got)
	}
}

func TestLikelihoodIgnoresToxicityProjection(t *testing.T) {
	cases := []model.Case{
		{Dose: 1, Toxicity: 1, Efficacy: 0},
		{Dose: 2, Toxicity: 0, Efficacy: 1},
	}
	obs := EfficacyObservations(cases)
	if obs[0].Outcome != 0 || obs[1].Outcome != 1 {
		t.Fatalf("efficacy projection wrong: %+v", obs)
	}
	tox := ToxicityObservations([]model.ToxicityCase{cases[0].ToxicityOnly(), cases[1].ToxicityOnly()})
	if tox[0].Outcome != 1 || tox[1].Outcome != 0 {
		t.Fatalf("toxicity projection wrong: %+v", tox)
	}
}

func TestLikelihoodGridMatchesScalar(t *testing.T) {
	skeleton := []float64{0.3, 0.5}
	obs := []Observation{{1, 1}, {2, 0}}
	thetas := []float64{-1, 0, 1}
	grid := LikelihoodGrid(obs, skeleton, thetas, links.Empiric{})
	for i, th := range thetas {
		want := Likelihood(obs, skeleton, th, links.Empiric{})
		if grid[i] != want {
			t.Fatalf("grid[%d] = %v, scalar = %v", i, grid[i], want)
		}
	}
}
