// Package report renders run reports and writes them to a local
// directory or to S3-compatible object storage.
package report

import (
	"context"
	"time"
)

// OperationOutcome is one provider operation's terminal state within a
// run.
type OperationOutcome struct {
	Kind        string `json:"kind"`
	OperationID string `json:"operation_id,omitempty"`
	Outcome     string `json:"outcome"`
	Detail      string `json:"detail,omitempty"`
}

// InstanceReport is the outcome of one instance within a run.
type InstanceReport struct {
	InstanceID string             `json:"instance_id"`
	Name       string             `json:"name,omitempty"`
	Created    []string           `json:"snapshots_created,omitempty"`
	Pruned     []string           `json:"snapshots_pruned,omitempty"`
	Operations []OperationOutcome `json:"operations,omitempty"`
	Errors     []string           `json:"errors,omitempty"`
}

// RunReport is the document written after each run.
type RunReport struct {
	RunID      string           `json:"run_id"`
	Kind       string           `json:"kind"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Instances  []InstanceReport `json:"instances"`
}

// Counts sums the per-instance outcomes.
func (r *RunReport) Counts() (created, pruned, errs int) {
	for _, inst := range r.Instances {
		created += len(inst.Created)
		pruned += len(inst.Pruned)
		errs += len(inst.Errors)
	}
	return created, pruned, errs
}

// Writer persists one report per run.
type Writer interface {
	Write(ctx context.Context, r *RunReport) error
}

// NopWriter discards reports. It is the default when reporting is
// disabled.
type NopWriter struct{}

// Write implements Writer by discarding the report.
func (NopWriter) Write(context.Context, *RunReport) error { return nil }
