package bayes

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// NormalizePriorWeights validates a model prior-weight vector and normalizes
// it to sum to 1. A nil vector yields uniform weights over k models.
func NormalizePriorWeights(weights []float64, k int) ([]float64, error) {
	if weights == nil {
		uniform := make([]float64, k)
		for i := range uniform {
			uniform[i] = 1 / float64(k)
		}
		return uniform, nil
	}
	if len(weights) != k {
		return nil, fmt.Errorf("model prior weights should have %d items, got %d", k, len(weights))
	}
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("model prior weight %d is negative: %v", i, w)
		}
	}
	total := floats.Sum(weights)
	if total <= 0 {
		return nil, errors.New("model prior weights cannot sum to zero")
	}
	out := make([]float64, k)
	for i, w := range weights {
		out[i] = w / total
	}
	return out, nil
}

// PosteriorWeights combines prior model weights with marginal likelihoods and
// returns the normalized posterior weights together with the index of the
// most probable model. Ties go to the lowest index.
func PosteriorWeights(priorWeights, evidences []float64) ([]float64, int, error) {
	if len(priorWeights) != len(evidences) {
		return nil, 0, fmt.Errorf("weight/evidence length mismatch: %d vs %d", len(priorWeights), len(evidences))
	}
	if len(priorWeights) == 0 {
		return nil, 0, errors.New("no models to average")
	}
	weights := make([]float64, len(priorWeights))
	for i := range weights {
		weights[i] = priorWeights[i] * evidences[i]
	}
	total := floats.Sum(weights)
	if total <= 0 {
		return nil, 0, errors.New("posterior model weights sum to zero")
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights, floats.MaxIdx(weights), nil
}

// InitialModelIndex picks the pre-data current model: uniformly at random
// among models tied for the maximum prior weight. After the first update the
// tie-break is deterministic (lowest index); this asymmetry is intentional
// and matches the reference design.
func InitialModelIndex(rng *rand.Rand, priorWeights []float64) int {
	max := floats.Max(priorWeights)
	tied := make([]int, 0, len(priorWeights))
	for i, w := range priorWeights {
		if w == max {
			tied = append(tied, i)
		}
	}
	return tied[rng.Intn(len(tied))]
}
