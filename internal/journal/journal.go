// Package journal records runs and the provider operations they
// issued. The journal is observational: nothing is replayed or
// recovered from it.
package journal

import (
	"context"
	"time"
)

// OperationRecord is one provider operation as the toolkit saw it.
type OperationRecord struct {
	RunID       string    `json:"run_id"`
	InstanceID  string    `json:"instance_id"`
	Kind        string    `json:"kind"`
	OperationID string    `json:"operation_id,omitempty"`
	Outcome     string    `json:"outcome"`
	Detail      string    `json:"detail,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// RunRecord summarizes one run.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Instances  int       `json:"instances"`
	Created    int       `json:"snapshots_created"`
	Pruned     int       `json:"snapshots_pruned"`
	Errors     int       `json:"errors"`
}

// Store persists records. Implementations must tolerate concurrent
// RecordOperation calls from instance workers.
type Store interface {
	RecordOperation(ctx context.Context, rec OperationRecord) error
	RecordRun(ctx context.Context, rec RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

// Open returns the store for a configured backend. An empty or "none"
// backend yields a NopStore.
func Open(ctx context.Context, backend, path, dsn string) (Store, error) {
	switch backend {
	case "badger":
		return NewBadgerStore(path)
	case "postgres":
		return NewPostgresStore(ctx, dsn)
	default:
		return NopStore{}, nil
	}
}

// NopStore discards everything. It is the default when journaling is
// disabled.
type NopStore struct{}

// RecordOperation implements Store.
func (NopStore) RecordOperation(context.Context, OperationRecord) error { return nil }

// RecordRun implements Store.
func (NopStore) RecordRun(context.Context, RunRecord) error { return nil }

// ListRuns implements Store.
func (NopStore) ListRuns(context.Context, int) ([]RunRecord, error) { return nil, nil }

// Close implements Store.
func (NopStore) Close() error { return nil }
