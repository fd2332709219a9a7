// Package crm implements the continual-reassessment toxicity model: a single
// prior toxicity curve reparameterized by one latent slope, refit by posterior
// integration over the accumulated toxicity outcomes. The dose-finding engine
// consumes its slope estimate and posterior toxicity curve; the model also
// carries its own next-dose recommendation for standalone use.
package crm

import (
	"fmt"
	"math"

	"adaptrial/internal/bayes"
	"adaptrial/internal/links"
	"adaptrial/internal/model"
)

// Config fixes a toxicity model at construction.
type Config struct {
	PriorToxicities []float64
	Target          float64
	FirstDose       int
	MaxSize         int
	Link            links.Link  // nil defaults to the empiric link
	SlopePrior      bayes.Prior // nil defaults to Normal(0, sqrt(1.34))
	Integrator      bayes.Integrator
	EstimateVar     bool
}

// Model is one continual-reassessment instance. Update and Reset are the only
// mutators; all queries are reads of the last fit.
type Model struct {
	cfg Config

	cases    []model.ToxicityCase
	betaHat  float64
	variance float64
	curve    []float64
	nextDose int
}

// New validates the configuration and returns a model in its pre-data state:
// slope at the prior mean, curve at the prior toxicities, next dose at the
// configured first dose.
func New(cfg Config) (*Model, error) {
	if len(cfg.PriorToxicities) == 0 {
		return nil, fmt.Errorf("prior toxicity vector is empty")
	}
	for i, p := range cfg.PriorToxicities {
		if p <= 0 || p >= 1 {
			return nil, fmt.Errorf("prior toxicity %d out of (0,1): %v", i, p)
		}
	}
	if cfg.Target <= 0 || cfg.Target >= 1 {
		return nil, fmt.Errorf("toxicity target out of (0,1): %v", cfg.Target)
	}
	if cfg.FirstDose < 1 || cfg.FirstDose > len(cfg.PriorToxicities) {
		return nil, fmt.Errorf("first dose %d out of range 1..%d", cfg.FirstDose, len(cfg.PriorToxicities))
	}
	if cfg.MaxSize < 1 {
		return nil, fmt.Errorf("maximum size must be positive, got %d", cfg.MaxSize)
	}
	if cfg.Link == nil {
		cfg.Link = links.Empiric{}
	}
	if cfg.SlopePrior == nil {
		cfg.SlopePrior = bayes.DefaultSlopePrior()
	}
	if cfg.Integrator == nil {
		cfg.Integrator = bayes.New(false)
	}
	m := &Model{cfg: cfg}
	m.Reset()
	return m, nil
}

// Update appends the cohort's toxicity outcomes, refits the slope over the
// entire history, and returns the recommended next dose: the dose whose
// posterior toxicity is closest to the target, lowest dose on ties.
func (m *Model) Update(cases []model.ToxicityCase) (int, error) {
	for _, c := range cases {
		if c.Dose < 1 || c.Dose > len(m.cfg.PriorToxicities) {
			return 0, fmt.Errorf("dose %d out of range 1..%d", c.Dose, len(m.cfg.PriorToxicities))
		}
		if c.Toxicity != 0 && c.Toxicity != 1 {
			return 0, fmt.Errorf("toxicity outcome must be 0 or 1, got %d", c.Toxicity)
		}
	}
	m.cases = append(m.cases, cases...)

	obs := bayes.ToxicityObservations(m.cases)
	est := m.cfg.Integrator.Estimate(obs, m.cfg.PriorToxicities, m.cfg.SlopePrior, m.cfg.Link, m.cfg.EstimateVar)
	m.betaHat = est.ThetaHat
	m.variance = est.Variance
	m.curve = m.cfg.Integrator.PosteriorCurve(obs, m.cfg.PriorToxicities, m.cfg.SlopePrior, m.cfg.Link)
	m.nextDose = closestToTarget(m.curve, m.cfg.Target)
	return m.nextDose, nil
}

// Reset discards all outcomes and restores the pre-data state.
func (m *Model) Reset() {
	m.cases = nil
	m.betaHat = m.cfg.SlopePrior.Mean()
	m.variance = math.NaN()
	m.curve = append([]float64(nil), m.cfg.PriorToxicities...)
	m.nextDose = m.cfg.FirstDose
}

// BetaHat reports the posterior mean slope of the toxicity model; the prior
// mean before any data.
func (m *Model) BetaHat() float64 {
	return m.betaHat
}

// Variance reports the posterior slope variance; NaN unless variance
// estimation was configured and the last fit had usable evidence.
func (m *Model) Variance() float64 {
	return m.variance
}

// PosteriorToxicities returns the posterior toxicity probability per dose.
// Before any data this is the prior toxicity vector.
func (m *Model) PosteriorToxicities() []float64 {
	return append([]float64(nil), m.curve...)
}

// NextDose reports the recommendation from the last fit.
func (m *Model) NextDose() int {
	return m.nextDose
}

func (m *Model) Size() int {
	return len(m.cases)
}

func (m *Model) MaxSize() int {
	return m.cfg.MaxSize
}

// HasMore reports whether the model can accept further patients.
func (m *Model) HasMore() bool {
	return len(m.cases) < m.cfg.MaxSize
}

func closestToTarget(curve []float64, target float64) int {
	best := 1
	bestDist := math.Abs(curve[0] - target)
	for i := 1; i < len(curve); i++ {
		if d := math.Abs(curve[i] - target); d < bestDist {
			best = i + 1
			bestDist = d
		}
	}
	return best
}
