// Package adaptrial is the public API: it wires the trial controller, the
// simulation harness, persistence and run artifacts behind a single client.
package adaptrial

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"adaptrial/internal/links"
	"adaptrial/internal/model"
	"adaptrial/internal/policy"
	"adaptrial/internal/sim"
	"adaptrial/internal/stats"
	"adaptrial/internal/storage"
	"adaptrial/internal/trial"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "adaptrial.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
}

type Client struct {
	store storage.Store

	artifactsDir string
	exportsDir   string
}

// Design is the full description of one dose-finding design. Zero values fall
// back to the controller defaults: empiric link, base admissibility policy,
// uniform model prior weights, 0.05 stopping alphas.
type Design struct {
	Name            string      `yaml:"name"`
	Skeletons       [][]float64 `yaml:"skeletons"`
	PriorToxicities []float64   `yaml:"prior_toxicities"`
	ToxTarget       float64     `yaml:"tox_target"`
	ToxLimit        float64     `yaml:"tox_limit"`
	EffLimit        float64     `yaml:"eff_limit"`

	FirstDose              int `yaml:"first_dose"`
	MaxSize                int `yaml:"max_size"`
	RandomizationStageSize int `yaml:"randomization_stage_size"`

	Link              string    `yaml:"link"`
	ModelPriorWeights []float64 `yaml:"model_prior_weights"`
	ExcessToxAlpha    float64   `yaml:"excess_tox_alpha"`
	DeficientEffAlpha float64   `yaml:"deficient_eff_alpha"`
	Policy            string    `yaml:"policy"`
	QuickIntegration  bool      `yaml:"quick_integration"`
}

// Scenario is the simulated ground truth the design is run against.
type Scenario struct {
	TrueToxicities []float64 `yaml:"true_toxicities"`
	TrueEfficacies []float64 `yaml:"true_efficacies"`
	OddsRatio      float64   `yaml:"odds_ratio"`
	CohortSize     int       `yaml:"cohort_size"`
}

type SimulateRequest struct {
	Design   Design
	Scenario Scenario
	Seed     int64
}

type SimulateSummary struct {
	RunID        string
	ArtifactsDir string
	Seed         int64
	Patients     int
	FinalDose    int
	FinalModel   int
	Outcome      model.Outcome
	Status       string
}

type BenchmarkRequest struct {
	Design     Design
	Scenario   Scenario
	Seed       int64
	Replicates int
}

type BenchmarkResult struct {
	BatchID     string
	SummaryPath string
	Summary     stats.BenchmarkSummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Design       string
	Seed         int64
	Patients     int
	FinalDose    int
	FinalModel   int
	Outcome      model.Outcome
}

type TraceRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = "memory"
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) ResetStore(ctx context.Context) error {
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

// Simulate runs one trial against the scenario, persists the run and its
// per-patient trace, and writes the run artifacts.
func (c *Client) Simulate(ctx context.Context, req SimulateRequest) (SimulateSummary, error) {
	if err := c.store.Init(ctx); err != nil {
		return SimulateSummary{}, err
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	t, err := buildTrial(req.Design, rng)
	if err != nil {
		return SimulateSummary{}, err
	}

	result, err := sim.Run(t, simScenario(req.Scenario), rng)
	if err != nil {
		return SimulateSummary{}, err
	}

	runID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	run := model.TrialRunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		RunID:                  runID,
		CreatedAtUTC:           now,
		Design:                 req.Design.Name,
		Seed:                   seed,
		MaxSize:                t.MaxSize(),
		RandomizationStageSize: t.RandomizationStageSize(),
		Patients:               t.Size(),
		FinalDose:              result.FinalDose,
		FinalModel:             result.FinalModel,
		Outcome:                result.Outcome,
		FinalThetaHat:          t.ModelThetaHat(),
		FinalBetaHat:           t.BetaHat(),
	}

	if err := c.store.SaveRun(ctx, run); err != nil {
		return SimulateSummary{}, err
	}
	if err := c.store.SaveTrace(ctx, runID, result.Trace); err != nil {
		return SimulateSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{Run: run, Trace: result.Trace})
	if err != nil {
		return SimulateSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        runID,
		Design:       req.Design.Name,
		Seed:         seed,
		Patients:     t.Size(),
		FinalDose:    result.FinalDose,
		FinalModel:   result.FinalModel,
		Outcome:      result.Outcome,
		CreatedAtUTC: now,
	}); err != nil {
		return SimulateSummary{}, err
	}

	return SimulateSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Seed:         seed,
		Patients:     t.Size(),
		FinalDose:    result.FinalDose,
		FinalModel:   result.FinalModel,
		Outcome:      result.Outcome,
		Status:       t.Status().String(),
	}, nil
}

// Benchmark runs the design against the scenario for a batch of replicates
// and aggregates the operating characteristics.
func (c *Client) Benchmark(_ context.Context, req BenchmarkRequest) (BenchmarkResult, error) {
	replicates := req.Replicates
	if replicates <= 0 {
		replicates = 100
	}
	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	t, err := buildTrial(req.Design, rng)
	if err != nil {
		return BenchmarkResult{}, err
	}
	scenario := simScenario(req.Scenario)

	results := make([]sim.Result, 0, replicates)
	for i := 0; i < replicates; i++ {
		if i > 0 {
			if err := t.Reset(); err != nil {
				return BenchmarkResult{}, err
			}
		}
		result, err := sim.Run(t, scenario, rng)
		if err != nil {
			return BenchmarkResult{}, fmt.Errorf("replicate %d: %w", i+1, err)
		}
		results = append(results, result)
	}

	summary, err := stats.SummarizeBenchmark(results, t.NumDoses(), t.NumModels())
	if err != nil {
		return BenchmarkResult{}, err
	}

	batchID := "batch-" + uuid.NewString()
	path, err := stats.WriteBenchmarkSummary(c.artifactsDir, batchID, summary)
	if err != nil {
		return BenchmarkResult{}, err
	}
	return BenchmarkResult{BatchID: batchID, SummaryPath: path, Summary: summary}, nil
}

// Runs lists persisted runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, limit)
	for i := len(runs) - 1; i >= 0 && len(out) < limit; i-- {
		run := runs[i]
		out = append(out, RunItem{
			RunID:        run.RunID,
			CreatedAtUTC: run.CreatedAtUTC,
			Design:       run.Design,
			Seed:         run.Seed,
			Patients:     run.Patients,
			FinalDose:    run.FinalDose,
			FinalModel:   run.FinalModel,
			Outcome:      run.Outcome,
		})
	}
	return out, nil
}

// Trace returns one run's per-patient records.
func (c *Client) Trace(ctx context.Context, req TraceRequest) ([]model.PatientRecord, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}

	runID := req.RunID
	if req.Latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, errors.New("no runs available")
		}
		runID = runs[len(runs)-1].RunID
	}
	if runID == "" {
		return nil, errors.New("trace requires run id or latest")
	}

	trace, ok, err := c.store.GetTrace(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("trace not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(trace) > req.Limit {
		trace = trace[:req.Limit]
	}
	out := make([]model.PatientRecord, len(trace))
	copy(out, trace)
	return out, nil
}

// Export copies one run's artifact files into the exports directory.
func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func buildTrial(d Design, rng *rand.Rand) (*trial.Trial, error) {
	link, err := links.FromName(d.Link)
	if err != nil {
		return nil, err
	}
	pol, err := policyFromName(d.Policy)
	if err != nil {
		return nil, err
	}

	return trial.New(trial.Config{
		Skeletons:              d.Skeletons,
		PriorToxicities:        d.PriorToxicities,
		ToxTarget:              d.ToxTarget,
		ToxLimit:               d.ToxLimit,
		EffLimit:               d.EffLimit,
		FirstDose:              d.FirstDose,
		MaxSize:                d.MaxSize,
		RandomizationStageSize: d.RandomizationStageSize,
		Link:                   link,
		ModelPriorWeights:      d.ModelPriorWeights,
		ExcessToxAlpha:         d.ExcessToxAlpha,
		DeficientEffAlpha:      d.DeficientEffAlpha,
		Policy:                 pol,
		QuickIntegration:       d.QuickIntegration,
		RNG:                    rng,
	})
}

func simScenario(sc Scenario) sim.Scenario {
	return sim.Scenario{
		TrueToxicities: sc.TrueToxicities,
		TrueEfficacies: sc.TrueEfficacies,
		OddsRatio:      sc.OddsRatio,
		CohortSize:     sc.CohortSize,
	}
}

func policyFromName(name string) (policy.Policy, error) {
	switch name {
	case "", "base":
		return policy.Base{}, nil
	case "noskip":
		return policy.NewNoSkip(), nil
	default:
		return nil, fmt.Errorf("unsupported admissibility policy: %s", name)
	}
}
