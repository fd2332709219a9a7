package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"adaptrial/internal/model"
	"adaptrial/internal/sim"
)

// BenchmarkSummary aggregates a batch of simulated trial replicates into
// operating characteristics for one scenario.
type BenchmarkSummary struct {
	Replicates int `json:"replicates"`

	// SelectionCounts[d-1] counts replicates recommending dose level d.
	// StoppedCounts counts replicates ending with no recommendation.
	SelectionCounts     []int     `json:"selection_counts"`
	SelectionFrequency  []float64 `json:"selection_frequency"`
	StoppedCounts       int       `json:"stopped_counts"`
	StoppedFrequency    float64   `json:"stopped_frequency"`
	ModelCounts         []int     `json:"model_counts"`
	MeanPatientsPerDose []float64 `json:"mean_patients_per_dose"`
	MeanSampleSize      float64   `json:"mean_sample_size"`

	Completed         int `json:"completed"`
	NoAcceptableDose  int `json:"no_acceptable_dose"`
	ExcessToxicity    int `json:"excess_toxicity"`
	DeficientEfficacy int `json:"deficient_efficacy"`
}

// SummarizeBenchmark aggregates replicate results over a design with
// numDoses dose levels and numModels efficacy models.
func SummarizeBenchmark(results []sim.Result, numDoses, numModels int) (BenchmarkSummary, error) {
	if len(results) == 0 {
		return BenchmarkSummary{}, fmt.Errorf("no replicates to summarize")
	}
	if numDoses < 1 {
		return BenchmarkSummary{}, fmt.Errorf("numDoses must be at least 1, got %d", numDoses)
	}
	if numModels < 1 {
		return BenchmarkSummary{}, fmt.Errorf("numModels must be at least 1, got %d", numModels)
	}

	summary := BenchmarkSummary{
		Replicates:          len(results),
		SelectionCounts:     make([]int, numDoses),
		SelectionFrequency:  make([]float64, numDoses),
		ModelCounts:         make([]int, numModels),
		MeanPatientsPerDose: make([]float64, numDoses),
	}

	totalPatients := 0
	for i, res := range results {
		switch {
		case res.FinalDose >= 1 && res.FinalDose <= numDoses:
			summary.SelectionCounts[res.FinalDose-1]++
		case res.FinalDose == -1:
			summary.StoppedCounts++
		default:
			return BenchmarkSummary{}, fmt.Errorf("replicate %d: final dose %d out of range", i, res.FinalDose)
		}
		if res.FinalModel >= 0 && res.FinalModel < numModels {
			summary.ModelCounts[res.FinalModel]++
		}

		switch res.Outcome {
		case model.OutcomeCompleted:
			summary.Completed++
		case model.OutcomeNoAcceptableDose:
			summary.NoAcceptableDose++
		case model.OutcomeExcessToxicity:
			summary.ExcessToxicity++
		case model.OutcomeDeficientEfficacy:
			summary.DeficientEfficacy++
		default:
			return BenchmarkSummary{}, fmt.Errorf("replicate %d: outcome %d is not terminal", i, res.Outcome)
		}

		totalPatients += len(res.Trace)
		for _, rec := range res.Trace {
			if rec.Dose < 1 || rec.Dose > numDoses {
				return BenchmarkSummary{}, fmt.Errorf("replicate %d: treated dose %d out of range", i, rec.Dose)
			}
			summary.MeanPatientsPerDose[rec.Dose-1]++
		}
	}

	n := float64(len(results))
	for d := 0; d < numDoses; d++ {
		summary.SelectionFrequency[d] = float64(summary.SelectionCounts[d]) / n
		summary.MeanPatientsPerDose[d] /= n
	}
	summary.StoppedFrequency = float64(summary.StoppedCounts) / n
	summary.MeanSampleSize = float64(totalPatients) / n
	return summary, nil
}

// WriteBenchmarkSummary writes the aggregated summary under the batch's
// run directory as benchmark_summary.json.
func WriteBenchmarkSummary(baseDir, runID string, summary BenchmarkSummary) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(runDir, "benchmark_summary.json")
	if err := writeJSON(path, summary); err != nil {
		return "", err
	}
	return path, nil
}

// ReadBenchmarkSummary loads a persisted benchmark summary.
func ReadBenchmarkSummary(baseDir, runID string) (BenchmarkSummary, bool, error) {
	path := filepath.Join(baseDir, runID, "benchmark_summary.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return BenchmarkSummary{}, false, nil
		}
		return BenchmarkSummary{}, false, err
	}

	var summary BenchmarkSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return BenchmarkSummary{}, false, err
	}
	return summary, true, nil
}
