package bayes

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Prior is the slope prior density. distuv.Normal satisfies it.
type Prior interface {
	Prob(x float64) float64
	Mean() float64
	StdDev() float64
}

// DefaultSlopePrior is the Normal(0, sqrt(1.34)) prior used for both the
// efficacy slope and the toxicity slope when no prior is supplied.
func DefaultSlopePrior() Prior {
	return distuv.Normal{Mu: 0, Sigma: math.Sqrt(1.34)}
}
