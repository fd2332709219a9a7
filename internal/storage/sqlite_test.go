//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"adaptrial/internal/model"
)

func TestSQLiteStoreRunAndTraceRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "adaptrial.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	run := testRun("run-1", "2026-03-02T10:00:00Z")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	loaded, ok, err := store.GetRun(ctx, run.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatalf("expected run %s", run.RunID)
	}
	if loaded.RunID != run.RunID || loaded.Outcome != run.Outcome {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}

	trace := []model.PatientRecord{
		{Patient: 1, Dose: 1, Efficacy: 1, Phase: "Rand", ThetaHat: -0.1},
		{Patient: 2, Dose: 2, Toxicity: 1, Phase: "Max", BetaHat: -0.5},
	}
	if err := store.SaveTrace(ctx, run.RunID, trace); err != nil {
		t.Fatalf("save trace: %v", err)
	}
	loadedTrace, ok, err := store.GetTrace(ctx, run.RunID)
	if err != nil {
		t.Fatalf("get trace: %v", err)
	}
	if !ok {
		t.Fatal("expected trace run-1")
	}
	if len(loadedTrace) != 2 || loadedTrace[1].Phase != "Max" {
		t.Fatalf("unexpected trace loaded: %+v", loadedTrace)
	}

	if err := store.SaveRun(ctx, testRun("run-0", "2026-03-01T09:00:00Z")); err != nil {
		t.Fatalf("save second run: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-0" {
		t.Fatalf("unexpected run order: %+v", runs)
	}

	if err := store.DeleteRun(ctx, run.RunID); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	if _, ok, _ := store.GetTrace(ctx, run.RunID); ok {
		t.Fatal("deleting a run should delete its trace")
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "adaptrial.db")

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("first init: %v", err)
	}
	run := testRun("persisted-run", "2026-03-02T10:00:00Z")
	if err := first.SaveRun(ctx, run); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}

	second := NewSQLiteStore(dbPath)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("second init: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})

	loaded, ok, err := second.GetRun(ctx, run.RunID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if !ok || loaded.RunID != run.RunID {
		t.Fatalf("expected persisted run, got ok=%t value=%+v", ok, loaded)
	}
}
