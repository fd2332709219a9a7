// Command adaptrialctl drives dose-finding trial simulations from the
// command line: single runs, replicate benchmarks, and run inspection.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"adaptrial/internal/stats"
	"adaptrial/internal/storage"
	api "adaptrial/pkg/adaptrial"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "adaptrial.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "simulate":
		return runSimulate(ctx, args[1:])
	case "benchmark":
		return runBenchmark(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "trace":
		return runTrace(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: adaptrialctl <init|reset|simulate|benchmark|runs|trace|export> [flags]", msg)
}

type clientFlags struct {
	storeKind    *string
	dbPath       *string
	artifactsDir *string
	exportsDir   *string
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:    fs.String("store", "memory", "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", defaultDBPath, "sqlite database path"),
		artifactsDir: fs.String("artifacts-dir", defaultArtifactsDir, "run artifacts directory"),
		exportsDir:   fs.String("exports-dir", defaultExportsDir, "export output directory"),
	}
}

func (f clientFlags) newClient() (*api.Client, error) {
	return api.New(api.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ExportsDir:   *f.exportsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", "memory", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", "memory", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}
	if err := store.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runSimulate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	designPath := fs.String("design", "", "design YAML path (required)")
	seed := fs.Int64("seed", 0, "rng seed (0 uses wall clock)")
	oddsRatio := fs.Float64("odds-ratio", 0, "toxicity/efficacy odds ratio override (0 keeps design file value)")
	cohortSize := fs.Int("cohort", 0, "patients per cohort override (0 keeps design file value)")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *designPath == "" {
		return errors.New("simulate requires --design")
	}

	file, err := loadDesignFile(*designPath)
	if err != nil {
		return err
	}
	if *oddsRatio != 0 {
		file.Scenario.OddsRatio = *oddsRatio
	}
	if *cohortSize != 0 {
		file.Scenario.CohortSize = *cohortSize
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Simulate(ctx, api.SimulateRequest{
		Design:   file.Design,
		Scenario: file.Scenario,
		Seed:     *seed,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("simulated run_id=%s design=%s seed=%d patients=%d\n",
		summary.RunID, file.Design.Name, summary.Seed, summary.Patients)
	fmt.Printf("final_dose=%d final_model=%d outcome=%d status=%s\n",
		summary.FinalDose, summary.FinalModel, summary.Outcome, summary.Status)
	fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

func runBenchmark(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	designPath := fs.String("design", "", "design YAML path (required)")
	seed := fs.Int64("seed", 0, "rng seed (0 uses wall clock)")
	replicates := fs.Int("replicates", 100, "simulated trial count")
	oddsRatio := fs.Float64("odds-ratio", 0, "toxicity/efficacy odds ratio override (0 keeps design file value)")
	cohortSize := fs.Int("cohort", 0, "patients per cohort override (0 keeps design file value)")
	jsonOut := fs.Bool("json", false, "emit benchmark summary as JSON")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *designPath == "" {
		return errors.New("benchmark requires --design")
	}
	if *replicates <= 0 {
		return errors.New("replicates must be > 0")
	}

	file, err := loadDesignFile(*designPath)
	if err != nil {
		return err
	}
	if *oddsRatio != 0 {
		file.Scenario.OddsRatio = *oddsRatio
	}
	if *cohortSize != 0 {
		file.Scenario.CohortSize = *cohortSize
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	result, err := client.Benchmark(ctx, api.BenchmarkRequest{
		Design:     file.Design,
		Scenario:   file.Scenario,
		Seed:       *seed,
		Replicates: *replicates,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("benchmark batch_id=%s design=%s replicates=%d mean_sample_size=%.2f\n",
		result.BatchID, file.Design.Name, result.Summary.Replicates, result.Summary.MeanSampleSize)
	for d, freq := range result.Summary.SelectionFrequency {
		fmt.Printf("dose=%d selection_frequency=%.4f mean_patients=%.2f\n",
			d+1, freq, result.Summary.MeanPatientsPerDose[d])
	}
	fmt.Printf("stopped_frequency=%.4f completed=%d no_acceptable_dose=%d excess_toxicity=%d deficient_efficacy=%d\n",
		result.Summary.StoppedFrequency,
		result.Summary.Completed,
		result.Summary.NoAcceptableDose,
		result.Summary.ExcessToxicity,
		result.Summary.DeficientEfficacy,
	)
	fmt.Printf("summary_path=%s\n", result.SummaryPath)
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	entries, err := stats.ListRunIndex(*cf.artifactsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range entries {
		fmt.Printf("run_id=%s created_at=%s design=%s seed=%d patients=%d final_dose=%d final_model=%d outcome=%d\n",
			e.RunID, e.CreatedAtUTC, e.Design, e.Seed, e.Patients, e.FinalDose, e.FinalModel, e.Outcome)
	}
	return nil
}

func runTrace(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run's trace")
	limit := fs.Int("limit", 0, "max trace rows to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit trace rows as JSON")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("trace requires --run-id or --latest")
	}

	id := *runID
	if *latest {
		entries, err := stats.ListRunIndex(*cf.artifactsDir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("no runs available")
		}
		id = entries[0].RunID
	}

	trace, ok, err := stats.ReadTrace(*cf.artifactsDir, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("trace not found for run id: %s", id)
	}
	if *limit > 0 && len(trace) > *limit {
		trace = trace[:*limit]
	}
	if len(trace) == 0 {
		fmt.Println("no trace records")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(trace)
	}

	for _, rec := range trace {
		fmt.Printf("patient=%d dose=%d tox=%d eff=%d model=%d phase=%s theta_hat=%.6f beta_hat=%.6f\n",
			rec.Patient, rec.Dose, rec.Toxicity, rec.Efficacy, rec.ModelChoice,
			strings.ToLower(rec.Phase), rec.ThetaHat, rec.BetaHat)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "", "output directory (defaults to the exports directory)")
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, api.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}
