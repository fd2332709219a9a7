package sim

import (
	"errors"
	"fmt"
	"math/rand"

	"adaptrial/internal/model"
	"adaptrial/internal/trial"
)

// Scenario is the ground truth for one simulated trial.
type Scenario struct {
	TrueToxicities []float64
	TrueEfficacies []float64
	OddsRatio      float64    // toxicity/efficacy odds ratio; 0 or 1 for independence
	CohortSize     int        // patients per update; default 1
	Tolerances     Tolerances // optional pre-generated uniforms, one row per patient
}

// Result is one simulated trial: the final recommendation, the trace, and the
// outcome code from the stopping-rule taxonomy.
type Result struct {
	FinalDose  int
	FinalModel int
	Outcome    model.Outcome
	Trace      []model.PatientRecord
}

// Run drives the trial cohort-by-cohort until it completes or a stopping rule
// fires. Terminal conditions are read from the controller; the harness never
// re-evaluates the bounds itself. The rng supplies tolerances when the
// scenario carries none.
func Run(t *trial.Trial, sc Scenario, rng *rand.Rand) (Result, error) {
	if err := validateProbabilities("true toxicities", sc.TrueToxicities, t.NumDoses()); err != nil {
		return Result{}, err
	}
	if err := validateProbabilities("true efficacies", sc.TrueEfficacies, t.NumDoses()); err != nil {
		return Result{}, err
	}
	psi := sc.OddsRatio
	if psi == 0 {
		psi = 1
	}
	if psi < 0 {
		return Result{}, fmt.Errorf("odds ratio must be positive, got %v", psi)
	}
	cohortSize := sc.CohortSize
	if cohortSize == 0 {
		cohortSize = 1
	}
	if cohortSize < 1 {
		return Result{}, fmt.Errorf("cohort size must be positive, got %d", cohortSize)
	}
	tolerances := sc.Tolerances
	if tolerances == nil {
		if rng == nil {
			return Result{}, errors.New("either tolerances or a random source is required")
		}
		tolerances = NewTolerances(rng, t.MaxSize())
	}
	if len(tolerances) < t.MaxSize() {
		return Result{}, fmt.Errorf("need %d tolerance rows, got %d", t.MaxSize(), len(tolerances))
	}

	dose := t.NextDose()
	if dose < 1 {
		return Result{}, fmt.Errorf("trial has no startable dose (%d)", dose)
	}
	var trace []model.PatientRecord
	for t.HasMore() {
		n := cohortSize
		if left := t.MaxSize() - t.Size(); n > left {
			n = left
		}
		randPhase := t.Size() < t.RandomizationStageSize()

		cohort := make([]model.Case, n)
		for j := range cohort {
			u := tolerances[t.Size()+j]
			tox, eff := correlatedOutcomes(u[0], u[1],
				sc.TrueToxicities[dose-1], sc.TrueEfficacies[dose-1], psi)
			cohort[j] = model.Case{Dose: dose, Toxicity: tox, Efficacy: eff}
		}
		next, err := t.Update(cohort)
		if err != nil {
			return Result{}, err
		}

		phase := "Max"
		if randPhase {
			phase = "Rand"
		}
		for j, c := range cohort {
			trace = append(trace, model.PatientRecord{
				Patient:     t.Size() - n + j + 1,
				Dose:        c.Dose,
				Toxicity:    c.Toxicity,
				Efficacy:    c.Efficacy,
				ModelChoice: t.MostLikelyModel(),
				Phase:       phase,
				ThetaHat:    t.ModelThetaHat(),
				BetaHat:     t.BetaHat(),
			})
		}
		if t.Status().Terminal() {
			break
		}
		dose = next
	}
	return Result{
		FinalDose:  t.NextDose(),
		FinalModel: t.MostLikelyModel(),
		Outcome:    t.Outcome(),
		Trace:      trace,
	}, nil
}
