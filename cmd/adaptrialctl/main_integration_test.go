package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adaptrial/internal/stats"
)

func TestRunDispatchRejectsUnknownCommand(t *testing.T) {
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected missing command error")
	}
	err := run(context.Background(), []string{"bogus"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestInitAndResetCommands(t *testing.T) {
	ctx := context.Background()

	if err := run(ctx, []string{"init", "-store", "memory"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := run(ctx, []string{"reset", "-store", "memory"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := run(ctx, []string{"init", "-store", "bogus"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestSimulateRunsTraceAndExportCommands(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	artifactsDir := filepath.Join(base, "artifacts")
	exportsDir := filepath.Join(base, "exports")
	designPath := writeTestDesign(t)

	err := run(ctx, []string{
		"simulate",
		"-design", designPath,
		"-seed", "42",
		"-artifacts-dir", artifactsDir,
		"-exports-dir", exportsDir,
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %d", len(entries))
	}
	runID := entries[0].RunID

	if err := run(ctx, []string{"runs", "-artifacts-dir", artifactsDir}); err != nil {
		t.Fatalf("runs: %v", err)
	}
	if err := run(ctx, []string{"runs", "-artifacts-dir", artifactsDir, "-json", "-limit", "1"}); err != nil {
		t.Fatalf("runs json: %v", err)
	}

	if err := run(ctx, []string{"trace", "-latest", "-artifacts-dir", artifactsDir}); err != nil {
		t.Fatalf("trace latest: %v", err)
	}
	if err := run(ctx, []string{"trace", "-run-id", runID, "-limit", "2", "-artifacts-dir", artifactsDir}); err != nil {
		t.Fatalf("trace by id: %v", err)
	}

	err = run(ctx, []string{
		"export", "-latest",
		"-artifacts-dir", artifactsDir,
		"-exports-dir", exportsDir,
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	for _, file := range []string{"run.json", "trace.json", "trace.csv"} {
		if _, err := os.Stat(filepath.Join(exportsDir, runID, file)); err != nil {
			t.Fatalf("expected exported %s: %v", file, err)
		}
	}
}

func TestBenchmarkCommand(t *testing.T) {
	ctx := context.Background()
	artifactsDir := filepath.Join(t.TempDir(), "artifacts")
	designPath := writeTestDesign(t)

	err := run(ctx, []string{
		"benchmark",
		"-design", designPath,
		"-seed", "7",
		"-replicates", "3",
		"-artifacts-dir", artifactsDir,
	})
	if err != nil {
		t.Fatalf("benchmark: %v", err)
	}

	runDirs, err := os.ReadDir(artifactsDir)
	if err != nil {
		t.Fatalf("read artifacts dir: %v", err)
	}
	found := false
	for _, entry := range runDirs {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "batch-") {
			if _, err := os.Stat(filepath.Join(artifactsDir, entry.Name(), "benchmark_summary.json")); err == nil {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("expected a batch directory with benchmark_summary.json")
	}

	if err := run(ctx, []string{"benchmark", "-design", designPath, "-replicates", "0"}); err == nil {
		t.Fatal("expected replicates validation error")
	}
	if err := run(ctx, []string{"benchmark"}); err == nil {
		t.Fatal("expected missing design error")
	}
}

func TestSimulateCommandValidation(t *testing.T) {
	ctx := context.Background()

	if err := run(ctx, []string{"simulate"}); err == nil {
		t.Fatal("expected missing design error")
	}
	if err := run(ctx, []string{"trace"}); err == nil {
		t.Fatal("expected trace selector error")
	}
	if err := run(ctx, []string{"trace", "-run-id", "x", "-latest"}); err == nil {
		t.Fatal("expected trace selector conflict error")
	}
	if err := run(ctx, []string{"export"}); err == nil {
		t.Fatal("expected export selector error")
	}
}
