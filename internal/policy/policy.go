// Package policy implements dose admissibility and next-dose selection as an
// injectable strategy: the base design and the no-skip variant used when
// escalation past an untolerated dose must be prevented.
package policy

import (
	"errors"
	"fmt"
	"math/rand"

	"adaptrial/internal/model"
)

// Mode selects between the trial's two allocation regimes.
type Mode int

const (
	// Randomize allocates among admissible doses with probability
	// proportional to posterior efficacy.
	Randomize Mode = iota
	// Maximize deterministically picks the admissible dose with the highest
	// posterior efficacy; ties go to the lowest dose.
	Maximize
)

// ErrDegenerateRandomization is returned when randomization is requested but
// every acceptable dose has zero posterior efficacy, leaving no valid
// allocation distribution. Callers must treat this as a precondition
// violation, not a trial outcome.
var ErrDegenerateRandomization = errors.New("all acceptable doses have zero efficacy weight")

// Input carries the posterior state a policy decides on.
type Input struct {
	Mode            Mode
	PosteriorTox    []float64
	PosteriorEff    []float64
	ToxLimit        float64
	TreatedAtLowest int
}

// Decision is one dose-selection outcome. Stopped means no dose can be given
// and the trial must terminate; NextDose is -1 in that case.
type Decision struct {
	NextDose   int
	Admissible []int
	Stopped    bool
}

// Policy computes the admissible dose set and selects the next dose. Observe
// lets stateful variants track outcome history; it is called once per cohort
// before the decision.
type Policy interface {
	Name() string
	Decide(rng *rand.Rand, in Input) (Decision, error)
	Observe(cases []model.Case)
	Reset()
}

// Base is the original design: a dose is admissible when its posterior
// toxicity does not exceed the limit.
type Base struct{}

func (Base) Name() string {
	return "base"
}

func (Base) Observe([]model.Case) {}

func (Base) Reset() {}

func (Base) Decide(rng *rand.Rand, in Input) (Decision, error) {
	acceptable := acceptableByToxicity(in.PosteriorTox, in.ToxLimit)
	if len(acceptable) == 0 {
		return Decision{NextDose: -1, Stopped: true}, nil
	}
	return choose(rng, in, acceptable)
}

// NoSkip extends the base design with two safeguards: doses more than one
// level above the highest tolerated dose so far are not admissible, and the
// trial must try the lowest dose before stopping for lack of acceptable
// doses. The highest-tolerated-dose state belongs to the variant.
type NoSkip struct {
	PreventSkipping bool
	MustTryLowest   bool

	highestTolerated int
}

// NewNoSkip returns the variant with both safeguards enabled.
func NewNoSkip() *NoSkip {
	return &NoSkip{PreventSkipping: true, MustTryLowest: true}
}

func (p *NoSkip) Name() string {
	return "noskip"
}

func (p *NoSkip) Observe(cases []model.Case) {
	for _, c := range cases {
		if c.Toxicity == 0 && c.Dose > p.highestTolerated {
			p.highestTolerated = c.Dose
		}
	}
}

func (p *NoSkip) Reset() {
	p.highestTolerated = 0
}

// HighestTolerated reports the highest dose level at which a non-toxic
// outcome has been observed; 0 before any tolerance event.
func (p *NoSkip) HighestTolerated() int {
	return p.highestTolerated
}

func (p *NoSkip) Decide(rng *rand.Rand, in Input) (Decision, error) {
	acceptable := acceptableByToxicity(in.PosteriorTox, in.ToxLimit)
	if p.PreventSkipping {
		capped := acceptable[:0]
		for _, dose := range acceptable {
			if dose <= p.highestTolerated+1 {
				capped = append(capped, dose)
			}
		}
		acceptable = capped
	}
	if len(acceptable) == 0 {
		if p.MustTryLowest && in.TreatedAtLowest == 0 {
			return Decision{NextDose: 1, Admissible: []int{1}}, nil
		}
		return Decision{NextDose: -1, Stopped: true}, nil
	}
	return choose(rng, in, acceptable)
}

func acceptableByToxicity(postTox []float64, limit float64) []int {
	acceptable := make([]int, 0, len(postTox))
	for i, p := range postTox {
		if p <= limit {
			acceptable = append(acceptable, i+1)
		}
	}
	return acceptable
}

func choose(rng *rand.Rand, in Input, acceptable []int) (Decision, error) {
	admissible := append([]int(nil), acceptable...)
	switch in.Mode {
	case Randomize:
		dose, err := randomizeDose(rng, acceptable, in.PosteriorEff)
		if err != nil {
			return Decision{}, err
		}
		return Decision{NextDose: dose, Admissible: admissible}, nil
	case Maximize:
		return Decision{NextDose: maximizeDose(acceptable, in.PosteriorEff), Admissible: admissible}, nil
	default:
		return Decision{}, fmt.Errorf("unknown selection mode: %d", in.Mode)
	}
}

func randomizeDose(rng *rand.Rand, acceptable []int, eff []float64) (int, error) {
	if rng == nil {
		return 0, errors.New("random source is required")
	}
	total := 0.0
	for _, dose := range acceptable {
		total += eff[dose-1]
	}
	if total <= 0 {
		return 0, ErrDegenerateRandomization
	}
	u := rng.Float64() * total
	acc := 0.0
	for _, dose := range acceptable {
		acc += eff[dose-1]
		if u < acc {
			return dose, nil
		}
	}
	// Rounding can leave u marginally above the accumulated total.
	return acceptable[len(acceptable)-1], nil
}

func maximizeDose(acceptable []int, eff []float64) int {
	best := acceptable[0]
	for _, dose := range acceptable[1:] {
		if eff[dose-1] > eff[best-1] {
			best = dose
		}
	}
	return best
}
