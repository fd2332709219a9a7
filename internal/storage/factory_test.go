package storage

import (
	"context"
	"strings"
	"testing"
)

func TestNewStoreMemory(t *testing.T) {
	for _, kind := range []string{"", "memory"} {
		store, err := NewStore(kind, "")
		if err != nil {
			t.Fatalf("new store %q: %v", kind, err)
		}
		if _, ok := store.(*MemoryStore); !ok {
			t.Fatalf("kind %q: expected memory store, got %T", kind, store)
		}
		if err := CloseIfSupported(store); err != nil {
			t.Fatalf("close %q: %v", kind, err)
		}
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("postgres", "")
	if err == nil || !strings.Contains(err.Error(), "unsupported run store backend") {
		t.Fatalf("expected unsupported backend error, got %v", err)
	}
}

func TestNewStoreUsable(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore("memory", "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SaveRun(ctx, testRun("run-1", "2026-03-02T10:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if _, ok, _ := store.GetRun(ctx, "run-1"); !ok {
		t.Fatal("expected run from a factory-built store")
	}
}
