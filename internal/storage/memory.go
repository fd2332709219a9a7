package storage

import (
	"context"
	"sort"
	"sync"

	"adaptrial/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.TrialRunRecord
	traces      map[string][]model.PatientRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Init is idempotent: re-initializing an already initialized store keeps
// the runs and traces saved so far.
func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]model.TrialRunRecord)
	s.traces = make(map[string][]model.PatientRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.TrialRunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.RunID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.TrialRunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.TrialRunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.TrialRunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].CreatedAtUTC < runs[j].CreatedAtUTC
	})
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	delete(s.traces, runID)
	return nil
}

func (s *MemoryStore) SaveTrace(_ context.Context, runID string, trace []model.PatientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.PatientRecord, len(trace))
	copy(copied, trace)
	s.traces[runID] = copied
	return nil
}

func (s *MemoryStore) GetTrace(_ context.Context, runID string) ([]model.PatientRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trace, ok := s.traces[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.PatientRecord, len(trace))
	copy(copied, trace)
	return copied, true, nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]model.TrialRunRecord)
	s.traces = make(map[string][]model.PatientRecord)
	return nil
}
