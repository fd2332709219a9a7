package bayes

import (
	"math"
	"math/rand"
	"testing"

	"adaptrial/internal/links"
)

var elevenSkeletons = [][]float64{
	{0.60, 0.50, 0.40, 0.30, 0.20, 0.10},
	{0.50, 0.60, 0.50, 0.40, 0.30, 0.20},
	{0.40, 0.50, 0.60, 0.50, 0.40, 0.30},
	{0.30, 0.40, 0.50, 0.60, 0.50, 0.40},
	{0.20, 0.30, 0.40, 0.50, 0.60, 0.50},
	{0.10, 0.20, 0.30, 0.40, 0.50, 0.60},
	{0.20, 0.30, 0.40, 0.50, 0.60, 0.60},
	{0.30, 0.40, 0.50, 0.60, 0.60, 0.60},
	{0.40, 0.50, 0.60, 0.60, 0.60, 0.60},
	{0.50, 0.60, 0.60, 0.60, 0.60, 0.60},
	{0.60, 0.60, 0.60, 0.60, 0.60, 0.60},
}

func TestNormalizePriorWeights(t *testing.T) {
	uniform, err := NormalizePriorWeights(nil, 4)
	if err != nil {
		t.Fatalf("uniform: %v", err)
	}
	for _, w := range uniform {
		if math.Abs(w-0.25) > 1e-12 {
			t.Fatalf("expected uniform 0.25, got %v", w)
		}
	}

	scaled, err := NormalizePriorWeights([]float64{2, 1, 1}, 3)
	if err != nil {
		t.Fatalf("scaled: %v", err)
	}
	if math.Abs(scaled[0]-0.5) > 1e-12 {
		t.Fatalf("expected 0.5, got %v", scaled[0])
	}

	if _, err := NormalizePriorWeights([]float64{1, 1}, 3); err == nil {
		t.Fatal("expected length mismatch error")
	}
	if _, err := NormalizePriorWeights([]float64{0, 0, 0}, 3); err == nil {
		t.Fatal("expected zero-sum error")
	}
	if _, err := NormalizePriorWeights([]float64{1, -1, 1}, 3); err == nil {
		t.Fatal("expected negative-weight error")
	}
}

func TestPosteriorWeightsRegression(t *testing.T) {
	want := []float64{
		0.01347890, 0.03951504, 0.12006585, 0.11798287, 0.11764227, 0.12346595,
		0.11764227, 0.11798287, 0.12006585, 0.07073296, 0.04142517,
	}

	prior := DefaultSlopePrior()
	priorWeights, err := NormalizePriorWeights(nil, len(elevenSkeletons))
	if err != nil {
		t.Fatalf("prior weights: %v", err)
	}
	evidences := make([]float64, len(elevenSkeletons))
	for k, skeleton := range elevenSkeletons {
		evidences[k] = Quadrature{}.Estimate(eightPatientObs, skeleton, prior, links.Empiric{}, false).Evidence
	}
	weights, best, err := PosteriorWeights(priorWeights, evidences)
	if err != nil {
		t.Fatalf("posterior weights: %v", err)
	}
	if best != 5 {
		t.Fatalf("most probable model: got %d want 5", best)
	}
	sum := 0.0
	for k := range weights {
		if weights[k] < 0 {
			t.Fatalf("negative weight at %d: %v", k, weights[k])
		}
		if math.Abs(weights[k]-want[k]) > 1e-5 {
			t.Fatalf("weight %d: got %v want %v", k, weights[k], want[k])
		}
		sum += weights[k]
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("weights should sum to 1, got %v", sum)
	}
}

func TestPosteriorWeightsTieBreaksLowestIndex(t *testing.T) {
	weights, best, err := PosteriorWeights([]float64{0.25, 0.25, 0.25, 0.25}, []float64{2, 5, 5, 1})
	if err != nil {
		t.Fatalf("posterior weights: %v", err)
	}
	if best != 1 {
		t.Fatalf("tie should break to lowest index 1, got %d", best)
	}
	if weights[1] != weights[2] {
		t.Fatalf("expected exact tie, got %v vs %v", weights[1], weights[2])
	}
}

func TestPosteriorWeightsDegenerate(t *testing.T) {
	if _, _, err := PosteriorWeights([]float64{0.5, 0.5}, []float64{0, 0}); err == nil {
		t.Fatal("expected error for zero total weight")
	}
	if _, _, err := PosteriorWeights([]float64{0.5}, []float64{1, 1}); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestInitialModelIndexUniqueMax(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	weights := []float64{0.1, 0.6, 0.3}
	for i := 0; i < 20; i++ {
		if got := InitialModelIndex(rng, weights); got != 1 {
			t.Fatalf("unique max should always win, got %d", got)
		}
	}
}

func TestInitialModelIndexSamplesAmongTies(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	weights := []float64{0.4, 0.2, 0.4}
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		idx := InitialModelIndex(rng, weights)
		if idx == 1 {
			t.Fatal("non-maximal model selected")
		}
		seen[idx] = true
	}
	if !seen[0] || !seen[2] {
		t.Fatalf("expected both tied models to appear, saw %v", seen)
	}
}
