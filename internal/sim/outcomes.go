// Package sim drives simulated trials: correlated binary toxicity/efficacy
// outcomes drawn from uniform variates, and a cohort-by-cohort harness that
// feeds a trial controller and records the per-patient trace.
package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// Tolerances is one row of pre-generated uniforms per simulated patient.
// Feeding the same tolerances to different designs compares them on identical
// patients. The third column is reserved.
type Tolerances [][3]float64

// NewTolerances draws n rows from rng.
func NewTolerances(rng *rand.Rand, n int) Tolerances {
	t := make(Tolerances, n)
	for i := range t {
		t[i] = [3]float64{rng.Float64(), rng.Float64(), rng.Float64()}
	}
	return t
}

// jointProbability returns P(tox=1, eff=1) for marginals p1, p2 under the
// odds-ratio psi, from the standard quadratic construction. psi = 1 means
// independent outcomes.
func jointProbability(p1, p2, psi float64) float64 {
	if psi == 1 {
		return p1 * p2
	}
	a := 1 + (p1+p2)*(psi-1)
	return (a - math.Sqrt(a*a-4*psi*(psi-1)*p1*p2)) / (2 * (psi - 1))
}

// correlatedOutcomes maps two uniforms to a correlated (toxicity, efficacy)
// pair: the first uniform decides toxicity against its marginal, the second
// decides efficacy against the conditional probability given the toxicity
// outcome.
func correlatedOutcomes(u1, u2, toxProb, effProb, psi float64) (tox, eff int) {
	p11 := jointProbability(toxProb, effProb, psi)
	if u1 < toxProb {
		tox = 1
		if toxProb > 0 && u2 < p11/toxProb {
			eff = 1
		}
	} else if toxProb < 1 && u2 < (effProb-p11)/(1-toxProb) {
		eff = 1
	}
	return tox, eff
}

func validateProbabilities(name string, probs []float64, numDoses int) error {
	if len(probs) != numDoses {
		return fmt.Errorf("%s should have %d items, got %d", name, numDoses, len(probs))
	}
	for i, p := range probs {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s dose %d out of [0,1]: %v", name, i+1, p)
		}
	}
	return nil
}
