package links

import (
	"fmt"
	"math"
)

// Link is a monotone function mapping a prior probability and a latent slope
// to an adjusted probability. Both the efficacy models and the toxicity model
// are reparameterized through a single slope via a Link.
type Link interface {
	Name() string
	Apply(x, intercept, slope float64) float64
	Inverse(p, intercept, slope float64) float64
}

// Empiric is the power model: p = x^exp(slope). The intercept is unused.
type Empiric struct{}

func (Empiric) Name() string {
	return "empiric"
}

func (Empiric) Apply(x, _, slope float64) float64 {
	return math.Pow(x, math.Exp(slope))
}

func (Empiric) Inverse(p, _, slope float64) float64 {
	return math.Pow(p, 1/math.Exp(slope))
}

// Logistic is the one-parameter logistic model with fixed intercept:
// p = 1 / (1 + exp(-intercept - exp(slope)*x)).
type Logistic struct{}

func (Logistic) Name() string {
	return "logistic"
}

func (Logistic) Apply(x, intercept, slope float64) float64 {
	return 1 / (1 + math.Exp(-intercept-math.Exp(slope)*x))
}

func (Logistic) Inverse(p, intercept, slope float64) float64 {
	return (math.Log(p/(1-p)) - intercept) / math.Exp(slope)
}

// FromName resolves a link by its registered name.
func FromName(name string) (Link, error) {
	switch name {
	case "", "empiric":
		return Empiric{}, nil
	case "logistic":
		return Logistic{}, nil
	default:
		return nil, fmt.Errorf("unsupported link function: %s", name)
	}
}
