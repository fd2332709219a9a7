// Package stats writes and reads run artifacts: per-run JSON and CSV files
// under an artifacts directory, a run index, and aggregated summaries across
// simulation replicates.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"adaptrial/internal/model"
)

const runIndexFile = "run_index.json"

// RunArtifacts is everything persisted for one simulated trial.
type RunArtifacts struct {
	Run   model.TrialRunRecord  `json:"run"`
	Trace []model.PatientRecord `json:"trace"`
}

// RunIndexEntry is one row of the artifacts directory's run index.
type RunIndexEntry struct {
	RunID        string        `json:"run_id"`
	Design       string        `json:"design,omitempty"`
	Seed         int64         `json:"seed"`
	Patients     int           `json:"patients"`
	FinalDose    int           `json:"final_dose"`
	FinalModel   int           `json:"final_model"`
	Outcome      model.Outcome `json:"outcome"`
	CreatedAtUTC string        `json:"created_at_utc"`
}

// WriteRunArtifacts writes run.json, trace.json and trace.csv under
// baseDir/<run id> and returns the run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "run.json"), artifacts.Run); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "trace.json"), artifacts.Trace); err != nil {
		return "", err
	}
	if err := writeTraceCSV(filepath.Join(runDir, "trace.csv"), artifacts.Trace); err != nil {
		return "", err
	}
	return runDir, nil
}

// ReadRun loads one persisted run record.
func ReadRun(baseDir, runID string) (model.TrialRunRecord, bool, error) {
	path := filepath.Join(baseDir, runID, "run.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.TrialRunRecord{}, false, nil
		}
		return model.TrialRunRecord{}, false, err
	}

	var run model.TrialRunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.TrialRunRecord{}, false, err
	}
	return run, true, nil
}

// ReadTrace loads one persisted per-patient trace.
func ReadTrace(baseDir, runID string) ([]model.PatientRecord, bool, error) {
	path := filepath.Join(baseDir, runID, "trace.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var trace []model.PatientRecord
	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, false, err
	}
	return trace, true, nil
}

// AppendRunIndex inserts or replaces one index entry.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the run index, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies one run's artifact files into outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"run.json", "trace.json", "trace.csv"} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	summaryPath := filepath.Join(src, "benchmark_summary.json")
	if _, err := os.Stat(summaryPath); err == nil {
		if err := copyFile(summaryPath, filepath.Join(dst, "benchmark_summary.json")); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func writeTraceCSV(path string, trace []model.PatientRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"patient", "dose", "tox", "eff", "model_choice", "phase", "theta_hat", "beta_hat"}); err != nil {
		return err
	}
	for _, rec := range trace {
		if err := writer.Write([]string{
			strconv.Itoa(rec.Patient),
			strconv.Itoa(rec.Dose),
			strconv.Itoa(rec.Toxicity),
			strconv.Itoa(rec.Efficacy),
			strconv.Itoa(rec.ModelChoice),
			rec.Phase,
			strconv.FormatFloat(rec.ThetaHat, 'f', -1, 64),
			strconv.FormatFloat(rec.BetaHat, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
