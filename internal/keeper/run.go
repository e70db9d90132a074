package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/shilovk/yandex-cloud-tools/internal/compute"
	"github.com/shilovk/yandex-cloud-tools/internal/events"
	"github.com/shilovk/yandex-cloud-tools/internal/instance"
	"github.com/shilovk/yandex-cloud-tools/internal/journal"
	"github.com/shilovk/yandex-cloud-tools/internal/operation"
	"github.com/shilovk/yandex-cloud-tools/internal/report"
	"github.com/shilovk/yandex-cloud-tools/internal/snapshot"
	"github.com/shilovk/yandex-cloud-tools/internal/telemetry"
)

// Run kinds.
const (
	KindBackup = "backup"
	KindPrune  = "prune"
)

var lifecycleEvents = map[string]events.Type{
	"start":   events.InstanceStart,
	"stop":    events.InstanceStop,
	"restart": events.InstanceRestart,
}

// BackupRun snapshots each target instance's boot disk (and secondary
// disks when configured), waits for the creates, then prunes snapshots
// past the retention window. Per-instance failures are recorded in the
// report, not propagated; the run itself fails only when no instances
// are targeted. Empty ids falls back to the configured fleet.
func (k *Keeper) BackupRun(ctx context.Context, ids []string) (*report.RunReport, error) {
	return k.run(ctx, KindBackup, ids)
}

// PruneRun deletes old snapshots only.
func (k *Keeper) PruneRun(ctx context.Context, ids []string) (*report.RunReport, error) {
	return k.run(ctx, KindPrune, ids)
}

func (k *Keeper) run(ctx context.Context, kind string, ids []string) (*report.RunReport, error) {
	if len(ids) == 0 {
		ids = k.cfg.Instances
	}
	if len(ids) == 0 {
		return nil, errors.New("no instances configured")
	}

	runID := ulid.Make().String()
	ctx = telemetry.WithRunID(ctx, runID)
	logger := k.logger.With("run_id", runID, "kind", kind)

	telemetry.RunsInProgress.WithLabelValues(kind).Inc()
	defer telemetry.RunsInProgress.WithLabelValues(kind).Dec()

	started := k.now().UTC()
	logger.Info("run started", "instances", len(ids))

	results := make([]report.InstanceReport, len(ids))
	sem := make(chan struct{}, k.cfg.FleetLimit())
	var wg sync.WaitGroup
	for i, id := range ids {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, instanceID string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = k.processInstance(ctx, kind, instanceID)
		}(i, id)
	}
	wg.Wait()

	rep := &report.RunReport{
		RunID:      runID,
		Kind:       kind,
		StartedAt:  started,
		FinishedAt: k.now().UTC(),
		Instances:  results,
	}
	created, pruned, errs := rep.Counts()
	logger.Info("run finished", "created", created, "pruned", pruned, "errors", errs)

	if err := k.journal.RecordRun(ctx, journal.RunRecord{
		RunID:      runID,
		Kind:       kind,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
		Instances:  len(rep.Instances),
		Created:    created,
		Pruned:     pruned,
		Errors:     errs,
	}); err != nil {
		logger.Warn("journal write failed", "error", err)
	}
	if err := k.reports.Write(ctx, rep); err != nil {
		logger.Warn("report write failed", "error", err)
	}

	status := "ok"
	if errs > 0 {
		status = "errors"
	}
	k.publish(ctx, events.New(events.RunCompleted, runID).
		WithStatus(status).
		WithDetail(fmt.Sprintf("%d created, %d pruned, %d errors", created, pruned, errs)))

	return rep, nil
}

func (k *Keeper) processInstance(ctx context.Context, kind, id string) report.InstanceReport {
	ir := report.InstanceReport{InstanceID: id}
	logger := telemetry.InstanceLogger(k.logger, ctx, id)

	inst, err := instance.New(ctx, k.client, id, instance.WithLogger(logger))
	if err != nil {
		ir.Errors = append(ir.Errors, err.Error())
		return ir
	}
	ir.Name = inst.Name()
	mgr := k.manager(inst, logger)

	if kind == KindBackup {
		disks := []string{""}
		if k.cfg.BackupSecondary {
			disks = append(disks, inst.SecondaryDiskIDs()...)
		}
		for _, diskID := range disks {
			k.createAndWait(ctx, mgr, inst, diskID, &ir)
		}
	}

	old, err := mgr.ListOld(ctx)
	if err != nil {
		ir.Errors = append(ir.Errors, err.Error())
		return ir
	}
	for _, snap := range old {
		k.deleteAndWait(ctx, mgr, inst, snap, &ir)
	}
	return ir
}

func (k *Keeper) createAndWait(ctx context.Context, mgr *snapshot.Manager, inst *instance.Instance, diskID string, ir *report.InstanceReport) {
	runID := telemetry.RunID(ctx)
	startedAt := k.now().UTC()
	opID, err := mgr.Create(ctx, diskID)

	oo := report.OperationOutcome{Kind: "create_snapshot", OperationID: opID}
	switch {
	case err != nil:
		oo.Outcome, oo.Detail = "error", err.Error()
		ir.Errors = append(ir.Errors, err.Error())
	default:
		res, werr := k.waiter.Wait(ctx, opID)
		switch {
		case werr != nil:
			oo.Outcome, oo.Detail = "error", werr.Error()
			ir.Errors = append(ir.Errors, werr.Error())
		case res == nil:
			oo.Outcome = "skipped"
		default:
			telemetry.OperationWaitSeconds.WithLabelValues("create_snapshot").Observe(res.Elapsed.Seconds())
			oo.Outcome, oo.Detail = string(res.Outcome), res.Message
			if res.Outcome == operation.OutcomeDone {
				created := res.Operation.Metadata.SnapshotID
				if created == "" {
					created = opID
				}
				ir.Created = append(ir.Created, created)
			}
		}
	}
	ir.Operations = append(ir.Operations, oo)

	k.record(ctx, journal.OperationRecord{
		RunID:       runID,
		InstanceID:  inst.ID(),
		Kind:        oo.Kind,
		OperationID: opID,
		Outcome:     oo.Outcome,
		Detail:      oo.Detail,
		StartedAt:   startedAt,
		FinishedAt:  k.now().UTC(),
	})
	k.publish(ctx, events.New(events.SnapshotCreate, runID).
		WithInstance(inst.ID()).
		WithOperation(opID).
		WithStatus(oo.Outcome).
		WithDetail(oo.Detail))
}

func (k *Keeper) deleteAndWait(ctx context.Context, mgr *snapshot.Manager, inst *instance.Instance, snap compute.Snapshot, ir *report.InstanceReport) {
	runID := telemetry.RunID(ctx)
	startedAt := k.now().UTC()
	opID, err := mgr.Delete(ctx, snapshot.Ref{Desc: &snap})

	oo := report.OperationOutcome{Kind: "delete_snapshot", OperationID: opID}
	switch {
	case err != nil:
		oo.Outcome, oo.Detail = "error", err.Error()
		ir.Errors = append(ir.Errors, err.Error())
	default:
		res, werr := k.waiter.Wait(ctx, opID)
		switch {
		case werr != nil:
			oo.Outcome, oo.Detail = "error", werr.Error()
			ir.Errors = append(ir.Errors, werr.Error())
		case res == nil:
			oo.Outcome = "skipped"
		default:
			telemetry.OperationWaitSeconds.WithLabelValues("delete_snapshot").Observe(res.Elapsed.Seconds())
			oo.Outcome, oo.Detail = string(res.Outcome), res.Message
			if res.Outcome == operation.OutcomeDone {
				ir.Pruned = append(ir.Pruned, snap.ID)
				telemetry.SnapshotsPruned.Inc()
			}
		}
	}
	ir.Operations = append(ir.Operations, oo)

	k.record(ctx, journal.OperationRecord{
		RunID:       runID,
		InstanceID:  inst.ID(),
		Kind:        oo.Kind,
		OperationID: opID,
		Outcome:     oo.Outcome,
		Detail:      oo.Detail,
		StartedAt:   startedAt,
		FinishedAt:  k.now().UTC(),
	})
	k.publish(ctx, events.New(events.SnapshotDelete, runID).
		WithInstance(inst.ID()).
		WithOperation(opID).
		WithStatus(oo.Outcome).
		WithDetail(oo.Detail))
}

// StartInstance issues a one-off start command, optionally waiting for
// the operation. A nil result with a nil error means the command was a
// guarded no-op or was not waited on.
func (k *Keeper) StartInstance(ctx context.Context, id string, wait bool) (*operation.Result, error) {
	inst, err := k.Instance(ctx, id)
	if err != nil {
		return nil, err
	}
	opID, err := inst.Start(ctx)
	return k.settle(ctx, "start", id, opID, err, wait)
}

// StopInstance issues a one-off stop command.
func (k *Keeper) StopInstance(ctx context.Context, id string, wait bool) (*operation.Result, error) {
	inst, err := k.Instance(ctx, id)
	if err != nil {
		return nil, err
	}
	opID, err := inst.Stop(ctx)
	return k.settle(ctx, "stop", id, opID, err, wait)
}

// RestartInstance issues a one-off restart command.
func (k *Keeper) RestartInstance(ctx context.Context, id string, wait bool) (*operation.Result, error) {
	inst, err := k.Instance(ctx, id)
	if err != nil {
		return nil, err
	}
	opID, err := inst.Restart(ctx)
	return k.settle(ctx, "restart", id, opID, err, wait)
}

func (k *Keeper) settle(ctx context.Context, kind, id, opID string, err error, wait bool) (*operation.Result, error) {
	runID := telemetry.RunID(ctx)
	e := events.New(lifecycleEvents[kind], runID).WithInstance(id).WithOperation(opID)
	if err != nil {
		k.publish(ctx, e.WithStatus("error").WithDetail(err.Error()))
		return nil, err
	}
	if opID == "" {
		k.publish(ctx, e.WithStatus("skipped"))
		return nil, nil
	}
	if !wait {
		k.publish(ctx, e.WithStatus("issued"))
		return nil, nil
	}

	res, err := k.waiter.Wait(ctx, opID)
	if err != nil {
		k.publish(ctx, e.WithStatus("error").WithDetail(err.Error()))
		return nil, err
	}
	telemetry.OperationWaitSeconds.WithLabelValues(kind).Observe(res.Elapsed.Seconds())
	k.publish(ctx, e.WithStatus(string(res.Outcome)).WithDetail(res.Message))
	return res, nil
}
