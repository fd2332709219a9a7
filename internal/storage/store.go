package storage

import (
	"context"

	"adaptrial/internal/model"
)

// Store defines persistence operations for simulated trial runs and their
// per-patient traces.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.TrialRunRecord) error
	GetRun(ctx context.Context, runID string) (model.TrialRunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.TrialRunRecord, error)
	DeleteRun(ctx context.Context, runID string) error
	SaveTrace(ctx context.Context, runID string, trace []model.PatientRecord) error
	GetTrace(ctx context.Context, runID string) ([]model.PatientRecord, bool, error)
	Reset(ctx context.Context) error
}
