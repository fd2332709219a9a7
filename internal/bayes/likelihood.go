package bayes

import (
	"adaptrial/internal/links"
	"adaptrial/internal/model"
)

// Observation is a (dose, binary outcome) pair, the projection of a case the
// likelihood consumes. The same shape serves the efficacy models and the
// toxicity model.
type Observation struct {
	Dose    int
	Outcome int
}

func EfficacyObservations(cases []model.Case) []Observation {
	obs := make([]Observation, 0, len(cases))
	for _, c := range cases {
		obs = append(obs, Observation{Dose: c.Dose, Outcome: c.Efficacy})
	}
	return obs
}

func ToxicityObservations(cases []model.ToxicityCase) []Observation {
	obs := make([]Observation, 0, len(cases))
	for _, c := range cases {
		obs = append(obs, Observation{Dose: c.Dose, Outcome: c.Toxicity})
	}
	return obs
}

// Likelihood computes the compound likelihood of the observed outcomes under
// one skeleton and a trial slope value. Degenerates to 1 for no observations.
func Likelihood(obs []Observation, skeleton []float64, theta float64, link links.Link) float64 {
	l := 1.0
	for _, o := range obs {
		p := link.Apply(skeleton[o.Dose-1], 0, theta)
		if o.Outcome == 1 {
			l *= p
		} else {
			l *= 1 - p
		}
	}
	return l
}

// LikelihoodGrid evaluates the likelihood over a slice of slope values, the
// batched form the grid integrator uses.
func LikelihoodGrid(obs []Observation, skeleton []float64, thetas []float64, link links.Link) []float64 {
	out := make([]float64, len(thetas))
	for i, t := range thetas {
		out[i] = Likelihood(obs, skeleton, t, link)
	}
	return out
}
