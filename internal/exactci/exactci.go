// Package exactci computes exact (Clopper-Pearson) confidence bounds on
// binomial proportions via Beta quantiles. The stopping rules compare these
// bounds against the trial's toxicity and efficacy limits.
package exactci

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Lower returns the lower bound of the two-sided interval at significance
// alpha for a proportion with events successes out of treated trials:
// Beta(x, n-x+1).Quantile(alpha/2). The bound is NaN when no patients were
// treated or no events occurred (a zero Beta shape is undefined); NaN
// comparisons never trigger a stopping rule.
func Lower(events, treated int, alpha float64) float64 {
	if !validInput(events, treated, alpha) || events == 0 {
		return math.NaN()
	}
	return distuv.Beta{Alpha: float64(events), Beta: float64(treated - events + 1)}.Quantile(alpha / 2)
}

// Upper returns the upper bound: Beta(x+1, n-x).Quantile(1-alpha/2). NaN when
// no patients were treated or every patient had the event.
func Upper(events, treated int, alpha float64) float64 {
	if !validInput(events, treated, alpha) || events == treated {
		return math.NaN()
	}
	return distuv.Beta{Alpha: float64(events + 1), Beta: float64(treated - events)}.Quantile(1 - alpha/2)
}

// Interval returns both bounds.
func Interval(events, treated int, alpha float64) (float64, float64) {
	return Lower(events, treated, alpha), Upper(events, treated, alpha)
}

func validInput(events, treated int, alpha float64) bool {
	return treated > 0 && events >= 0 && events <= treated && alpha > 0 && alpha < 1
}
