package storage

import (
	"context"
	"testing"

	"adaptrial/internal/model"
)

func testRun(id, createdAt string) model.TrialRunRecord {
	return model.TrialRunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		RunID:           id,
		CreatedAtUTC:    createdAt,
		MaxSize:         30,
		Patients:        30,
		FinalDose:       2,
		Outcome:         model.OutcomeCompleted,
	}
}

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := testRun("run-1", "2026-03-02T10:00:00Z")
	if err := store.SaveRun(ctx, input); err != nil {
		t.Fatalf("save run: %v", err)
	}

	output, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if output.RunID != "run-1" || output.FinalDose != 2 {
		t.Fatalf("unexpected run: %+v", output)
	}

	_, ok, err = store.GetRun(ctx, "missing")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Fatal("missing run should not be found")
	}
}

func TestMemoryStoreInitKeepsExistingData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := store.SaveRun(ctx, testRun("run-1", "2026-03-02T10:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := store.SaveTrace(ctx, "run-1", []model.PatientRecord{{Patient: 1, Dose: 1}}); err != nil {
		t.Fatalf("save trace: %v", err)
	}

	if err := store.Init(ctx); err != nil {
		t.Fatalf("re-init: %v", err)
	}
	if _, ok, _ := store.GetRun(ctx, "run-1"); !ok {
		t.Fatal("re-init dropped a saved run")
	}
	if _, ok, _ := store.GetTrace(ctx, "run-1"); !ok {
		t.Fatal("re-init dropped a saved trace")
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok, _ := store.GetRun(ctx, "run-1"); ok {
		t.Fatal("reset should still clear the store")
	}
}

func TestMemoryStoreTraceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.PatientRecord{
		{Patient: 1, Dose: 1, Efficacy: 1, Phase: "Rand"},
		{Patient: 2, Dose: 2, Toxicity: 1, Phase: "Max"},
	}
	if err := store.SaveTrace(ctx, "run-1", input); err != nil {
		t.Fatalf("save trace: %v", err)
	}

	output, ok, err := store.GetTrace(ctx, "run-1")
	if err != nil {
		t.Fatalf("get trace: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted trace")
	}
	if len(output) != 2 || output[1].Dose != 2 {
		t.Fatalf("unexpected trace: %+v", output)
	}

	output[0].Dose = 99 // stored trace must not alias the returned slice
	again, _, err := store.GetTrace(ctx, "run-1")
	if err != nil {
		t.Fatalf("get trace again: %v", err)
	}
	if again[0].Dose == 99 {
		t.Fatal("trace escaped by reference")
	}
}

func TestMemoryStoreListRunsOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, run := range []model.TrialRunRecord{
		testRun("run-b", "2026-03-02T12:00:00Z"),
		testRun("run-a", "2026-03-02T10:00:00Z"),
		testRun("run-c", "2026-03-02T12:00:00Z"),
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.RunID, err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-a" || runs[1].RunID != "run-b" || runs[2].RunID != "run-c" {
		t.Fatalf("unexpected order: %s %s %s", runs[0].RunID, runs[1].RunID, runs[2].RunID)
	}
}

func TestMemoryStoreDeleteAndReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := store.SaveRun(ctx, testRun("run-1", "2026-03-02T10:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := store.SaveTrace(ctx, "run-1", []model.PatientRecord{{Patient: 1, Dose: 1}}); err != nil {
		t.Fatalf("save trace: %v", err)
	}

	if err := store.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	if _, ok, _ := store.GetRun(ctx, "run-1"); ok {
		t.Fatal("deleted run should be gone")
	}
	if _, ok, _ := store.GetTrace(ctx, "run-1"); ok {
		t.Fatal("deleting a run should delete its trace")
	}

	if err := store.SaveRun(ctx, testRun("run-2", "2026-03-02T11:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("reset store should be empty, got %d runs", len(runs))
	}
}
