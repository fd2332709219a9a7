// Package trial implements the dose-finding controller: per-cohort Bayesian
// updates over a family of efficacy skeletons, a continual-reassessment
// toxicity model, admissibility-constrained dose selection, and exact-bound
// stopping rules. One Trial value owns all mutable state; Update and Reset
// are the only mutators.
package trial

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"adaptrial/internal/bayes"
	"adaptrial/internal/crm"
	"adaptrial/internal/exactci"
	"adaptrial/internal/links"
	"adaptrial/internal/model"
	"adaptrial/internal/policy"
)

// ErrTerminal is returned by Update once the trial has reached a terminal
// status. The trial must be Reset before it can accept further cohorts.
var ErrTerminal = errors.New("trial is in a terminal state")

// RandomizeAtStart is the FirstDose sentinel: pick the starting dose by
// efficacy-weighted randomization over the prior curves instead of fixing it.
const RandomizeAtStart = 0

// Config fixes a trial design. Zero values take documented defaults; the
// skeleton matrix, prior toxicities, limits and sizes are mandatory.
type Config struct {
	Skeletons       [][]float64 // K models x I doses of prior efficacy probabilities
	PriorToxicities []float64   // length I
	ToxTarget       float64
	ToxLimit        float64
	EffLimit        float64

	FirstDose              int // 1-based, or RandomizeAtStart
	MaxSize                int
	RandomizationStageSize int

	Link              links.Link    // default empiric
	ThetaPrior        bayes.Prior   // efficacy slope prior; default Normal(0, sqrt(1.34))
	BetaPrior         bayes.Prior   // toxicity slope prior; default Normal(0, sqrt(1.34))
	ModelPriorWeights []float64     // nil for uniform
	ExcessToxAlpha    float64       // default 0.05
	DeficientEffAlpha float64       // default 0.05
	Policy            policy.Policy // default policy.Base
	QuickIntegration  bool
	EstimateVar       bool
	RNG               *rand.Rand // default time-seeded
}

func (c *Config) validate() error {
	if len(c.Skeletons) == 0 {
		return errors.New("skeleton matrix is empty")
	}
	numDoses := len(c.Skeletons[0])
	if numDoses == 0 {
		return errors.New("skeleton rows are empty")
	}
	for k, row := range c.Skeletons {
		if len(row) != numDoses {
			return fmt.Errorf("skeleton %d has %d doses, want %d", k, len(row), numDoses)
		}
		for i, p := range row {
			if p <= 0 || p >= 1 {
				return fmt.Errorf("skeleton %d dose %d out of (0,1): %v", k, i+1, p)
			}
		}
	}
	if len(c.PriorToxicities) != numDoses {
		return fmt.Errorf("prior toxicity vector should have %d items, got %d", numDoses, len(c.PriorToxicities))
	}
	if c.ToxTarget > c.ToxLimit {
		return fmt.Errorf("toxicity target %v exceeds toxicity limit %v", c.ToxTarget, c.ToxLimit)
	}
	if c.EffLimit <= 0 || c.EffLimit >= 1 {
		return fmt.Errorf("efficacy limit out of (0,1): %v", c.EffLimit)
	}
	if c.FirstDose < RandomizeAtStart || c.FirstDose > numDoses {
		return fmt.Errorf("first dose %d out of range 1..%d", c.FirstDose, numDoses)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("maximum size must be positive, got %d", c.MaxSize)
	}
	if c.RandomizationStageSize < 0 || c.RandomizationStageSize > c.MaxSize {
		return fmt.Errorf("randomization stage size %d out of range 0..%d", c.RandomizationStageSize, c.MaxSize)
	}
	if c.ExcessToxAlpha < 0 || c.ExcessToxAlpha >= 1 {
		return fmt.Errorf("excess-toxicity alpha out of range: %v", c.ExcessToxAlpha)
	}
	if c.DeficientEffAlpha < 0 || c.DeficientEffAlpha >= 1 {
		return fmt.Errorf("deficient-efficacy alpha out of range: %v", c.DeficientEffAlpha)
	}
	return nil
}

// Trial is one design instance. Instances are independent; a single instance
// is not safe for concurrent use.
type Trial struct {
	cfg          Config
	numDoses     int
	numModels    int
	priorWeights []float64
	integrator   bayes.Integrator
	tox          *crm.Model
	pol          policy.Policy
	rng          *rand.Rand

	cases       []model.Case
	thetaHats   []float64
	weights     []float64
	modelIndex  int
	postTox     []float64
	postEff     []float64
	admissible  []int
	nextDose    int
	status      model.Status
	startRandom bool
}

// New validates the configuration, fills defaults, and returns a trial in its
// pre-data state. Invalid configurations are hard errors; nothing is enrolled.
func New(cfg Config) (*Trial, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("trial config: %w", err)
	}
	if cfg.Link == nil {
		cfg.Link = links.Empiric{}
	}
	if cfg.ThetaPrior == nil {
		cfg.ThetaPrior = bayes.DefaultSlopePrior()
	}
	if cfg.BetaPrior == nil {
		cfg.BetaPrior = bayes.DefaultSlopePrior()
	}
	if cfg.ExcessToxAlpha == 0 {
		cfg.ExcessToxAlpha = 0.05
	}
	if cfg.DeficientEffAlpha == 0 {
		cfg.DeficientEffAlpha = 0.05
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.Base{}
	}
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	priorWeights, err := bayes.NormalizePriorWeights(cfg.ModelPriorWeights, len(cfg.Skeletons))
	if err != nil {
		return nil, fmt.Errorf("trial config: %w", err)
	}
	integrator := bayes.New(cfg.QuickIntegration)
	tox, err := crm.New(crm.Config{
		PriorToxicities: cfg.PriorToxicities,
		Target:          cfg.ToxTarget,
		FirstDose:       1,
		MaxSize:         cfg.MaxSize,
		Link:            cfg.Link,
		SlopePrior:      cfg.BetaPrior,
		Integrator:      integrator,
		EstimateVar:     cfg.EstimateVar,
	})
	if err != nil {
		return nil, fmt.Errorf("toxicity model: %w", err)
	}

	t := &Trial{
		cfg:          cfg,
		numDoses:     len(cfg.PriorToxicities),
		numModels:    len(cfg.Skeletons),
		priorWeights: priorWeights,
		integrator:   integrator,
		tox:          tox,
		pol:          cfg.Policy,
		rng:          cfg.RNG,
		startRandom:  cfg.FirstDose == RandomizeAtStart,
	}
	if err := t.Reset(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reset clears the case history and restores the pre-data state: slope
// estimates at zero, weights at the prior, posterior curves at the prior
// curves, and the starting dose re-drawn when the design randomizes at start.
func (t *Trial) Reset() error {
	t.cases = nil
	t.thetaHats = make([]float64, t.numModels)
	t.weights = append([]float64(nil), t.priorWeights...)
	t.modelIndex = bayes.InitialModelIndex(t.rng, t.priorWeights)
	t.postTox = append([]float64(nil), t.cfg.PriorToxicities...)
	t.postEff = append([]float64(nil), t.cfg.Skeletons[t.modelIndex]...)
	t.admissible = nil
	t.status = model.StatusNotStarted
	t.tox.Reset()
	t.pol.Reset()
	if t.startRandom {
		d, err := t.pol.Decide(t.rng, policy.Input{
			Mode:         policy.Randomize,
			PosteriorTox: t.postTox,
			PosteriorEff: t.postEff,
			ToxLimit:     t.cfg.ToxLimit,
		})
		if err != nil {
			return fmt.Errorf("starting dose: %w", err)
		}
		t.nextDose = d.NextDose
	} else {
		t.nextDose = t.cfg.FirstDose
	}
	return nil
}

// Update appends a cohort of outcomes, refits every model over the entire
// history, re-evaluates admissibility, selection, and stopping rules, and
// returns the next recommended dose, or -1 if the trial has terminated.
func (t *Trial) Update(cases []model.Case) (int, error) {
	if t.status.Terminal() {
		return -1, ErrTerminal
	}
	for _, c := range cases {
		if err := c.Validate(t.numDoses); err != nil {
			return 0, err
		}
	}
	t.cases = append(t.cases, cases...)
	t.pol.Observe(cases)

	toxCases := make([]model.ToxicityCase, len(cases))
	for i, c := range cases {
		toxCases[i] = c.ToxicityOnly()
	}
	if _, err := t.tox.Update(toxCases); err != nil {
		return 0, fmt.Errorf("toxicity model: %w", err)
	}

	obs := bayes.EfficacyObservations(t.cases)
	evidences := make([]float64, t.numModels)
	for k, skeleton := range t.cfg.Skeletons {
		est := t.integrator.Estimate(obs, skeleton, t.cfg.ThetaPrior, t.cfg.Link, t.cfg.EstimateVar)
		t.thetaHats[k] = est.ThetaHat
		evidences[k] = est.Evidence
	}
	weights, best, err := bayes.PosteriorWeights(t.priorWeights, evidences)
	if err != nil {
		return 0, fmt.Errorf("model averaging: %w", err)
	}
	t.weights = weights
	t.modelIndex = best
	t.postEff = t.integrator.PosteriorCurve(obs, t.cfg.Skeletons[best], t.cfg.ThetaPrior, t.cfg.Link)
	t.postTox = t.tox.PosteriorToxicities()

	mode := policy.Maximize
	t.status = model.StatusMaximizing
	if len(t.cases) < t.cfg.RandomizationStageSize {
		mode = policy.Randomize
		t.status = model.StatusRandomizing
	}
	decision, err := t.pol.Decide(t.rng, policy.Input{
		Mode:            mode,
		PosteriorTox:    t.postTox,
		PosteriorEff:    t.postEff,
		ToxLimit:        t.cfg.ToxLimit,
		TreatedAtLowest: t.TreatedAt(1),
	})
	if err != nil {
		return 0, err
	}
	t.nextDose = decision.NextDose
	t.admissible = decision.Admissible
	if decision.Stopped {
		t.status = model.StatusStoppedNoAcceptableDose
	}

	// Stopping rules run over the whole history, not just this cohort.
	if lb := t.ToxicityLowerBound(1, t.cfg.ExcessToxAlpha); lb > t.cfg.ToxLimit {
		t.status = model.StatusStoppedExcessToxicity
		t.nextDose = -1
		t.admissible = nil
	}
	if len(t.cases) >= t.cfg.RandomizationStageSize && t.nextDose > 0 {
		if ub := t.EfficacyUpperBound(t.nextDose, t.cfg.DeficientEffAlpha); ub < t.cfg.EffLimit {
			t.status = model.StatusStoppedDeficientEfficacy
			t.nextDose = -1
			t.admissible = nil
		}
	}
	if !t.status.Terminal() && len(t.cases) >= t.cfg.MaxSize {
		t.status = model.StatusCompleted
	}
	return t.nextDose, nil
}

// Status reports the current trial state.
func (t *Trial) Status() model.Status { return t.status }

// NextDose reports the recommendation from the last update, the starting dose
// before any data, or -1 once the trial has stopped.
func (t *Trial) NextDose() int { return t.nextDose }

// AdmissibleSet returns the dose levels currently acceptable, in increasing
// order. Empty when the trial is terminal or not yet updated.
func (t *Trial) AdmissibleSet() []int {
	return append([]int(nil), t.admissible...)
}

// PosteriorToxicities returns the toxicity probability per dose.
func (t *Trial) PosteriorToxicities() []float64 {
	return append([]float64(nil), t.postTox...)
}

// PosteriorEfficacies returns the efficacy probability per dose under the
// current most probable model.
func (t *Trial) PosteriorEfficacies() []float64 {
	return append([]float64(nil), t.postEff...)
}

// MostLikelyModel reports the 0-based index of the model with the highest
// posterior weight.
func (t *Trial) MostLikelyModel() int { return t.modelIndex }

// Weights returns the posterior model weights; the prior weights before any
// data.
func (t *Trial) Weights() []float64 {
	return append([]float64(nil), t.weights...)
}

// ThetaHats returns the posterior mean slope per model.
func (t *Trial) ThetaHats() []float64 {
	return append([]float64(nil), t.thetaHats...)
}

// ModelThetaHat reports the slope estimate of the current model.
func (t *Trial) ModelThetaHat() float64 { return t.thetaHats[t.modelIndex] }

// BetaHat reports the toxicity model's slope estimate.
func (t *Trial) BetaHat() float64 { return t.tox.BetaHat() }

func (t *Trial) Size() int      { return len(t.cases) }
func (t *Trial) MaxSize() int   { return t.cfg.MaxSize }
func (t *Trial) NumDoses() int  { return t.numDoses }
func (t *Trial) NumModels() int { return t.numModels }

// RandomizationStageSize reports the enrollment count below which dose
// selection is randomized.
func (t *Trial) RandomizationStageSize() int { return t.cfg.RandomizationStageSize }

// HasMore reports whether the trial can accept another cohort.
func (t *Trial) HasMore() bool {
	return !t.status.Terminal() && len(t.cases) < t.cfg.MaxSize
}

// Cases returns a copy of the accumulated history in arrival order.
func (t *Trial) Cases() []model.Case {
	return append([]model.Case(nil), t.cases...)
}

// TreatedAt counts patients treated at a dose level.
func (t *Trial) TreatedAt(dose int) int {
	n := 0
	for _, c := range t.cases {
		if c.Dose == dose {
			n++
		}
	}
	return n
}

// ToxicitiesAt counts toxicity events at a dose level.
func (t *Trial) ToxicitiesAt(dose int) int {
	n := 0
	for _, c := range t.cases {
		if c.Dose == dose && c.Toxicity == 1 {
			n++
		}
	}
	return n
}

// EfficaciesAt counts efficacy events at a dose level.
func (t *Trial) EfficaciesAt(dose int) int {
	n := 0
	for _, c := range t.cases {
		if c.Dose == dose && c.Efficacy == 1 {
			n++
		}
	}
	return n
}

// ToxicityLowerBound is the exact lower confidence bound on the toxicity rate
// at a dose level; NaN when the dose is out of range or untreated.
func (t *Trial) ToxicityLowerBound(dose int, alpha float64) float64 {
	if dose < 1 || dose > t.numDoses {
		return math.NaN()
	}
	return exactci.Lower(t.ToxicitiesAt(dose), t.TreatedAt(dose), alpha)
}

// EfficacyUpperBound is the exact upper confidence bound on the efficacy rate
// at a dose level; NaN when the dose is out of range or untreated.
func (t *Trial) EfficacyUpperBound(dose int, alpha float64) float64 {
	if dose < 1 || dose > t.numDoses {
		return math.NaN()
	}
	return exactci.Upper(t.EfficaciesAt(dose), t.TreatedAt(dose), alpha)
}

// Outcome maps the current status to the numeric outcome taxonomy.
func (t *Trial) Outcome() model.Outcome {
	return model.OutcomeForStatus(t.status)
}
