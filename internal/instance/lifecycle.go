package instance

import (
	"context"

	"github.com/shilovk/yandex-cloud-tools/internal/compute"
	"github.com/shilovk/yandex-cloud-tools/internal/telemetry"
)

// Lifecycle commands. Every command reads a live status first and
// skips the provider call when the instance is already in (or moving
// toward) the requested state. Guarded no-ops return ("", nil): an
// empty operation ID means the command did not take effect. Provider
// rejections are logged and returned as errors with an empty ID.

// Start powers the instance on unless its status is already positive
// (running, provisioning, creating).
func (i *Instance) Start(ctx context.Context) (string, error) {
	status, err := i.Status(ctx)
	if err != nil {
		return "", err
	}
	if status.IsPositive() {
		i.logger.Warn("invalid state for start",
			"instance", i.Name(),
			"instance_id", i.id,
			"status", status,
		)
		return "", nil
	}

	op, err := i.client.StartInstance(ctx, i.id)
	if err != nil {
		i.logger.Error("start failed",
			"instance", i.Name(),
			"instance_id", i.id,
			"error", err,
		)
		return "", err
	}
	i.logger.Info("starting instance", "instance", i.Name(), "instance_id", i.id)
	telemetry.OperationsIssued.WithLabelValues("start", i.id).Inc()
	return op.ID, nil
}

// Stop shuts the instance down unless its status is already negative.
// An instance that is simply STOPPED logs at info severity; the other
// negative states warn.
func (i *Instance) Stop(ctx context.Context) (string, error) {
	status, err := i.Status(ctx)
	if err != nil {
		return "", err
	}
	switch {
	case !status.IsNegative():
		op, err := i.client.StopInstance(ctx, i.id)
		if err != nil {
			i.logger.Error("stop failed",
				"instance", i.Name(),
				"instance_id", i.id,
				"error", err,
			)
			return "", err
		}
		i.logger.Info("stopping instance", "instance", i.Name(), "instance_id", i.id)
		telemetry.OperationsIssued.WithLabelValues("stop", i.id).Inc()
		return op.ID, nil

	case status == compute.StatusStopped:
		i.logger.Info("instance already stopped",
			"instance", i.Name(),
			"instance_id", i.id,
		)
		return "", nil

	default:
		i.logger.Warn("invalid state for stop",
			"instance", i.Name(),
			"instance_id", i.id,
			"status", status,
		)
		return "", nil
	}
}

// Restart reboots the instance in place unless its status is negative.
func (i *Instance) Restart(ctx context.Context) (string, error) {
	status, err := i.Status(ctx)
	if err != nil {
		return "", err
	}
	if status.IsNegative() {
		i.logger.Warn("invalid state for restart",
			"instance", i.Name(),
			"instance_id", i.id,
			"status", status,
		)
		return "", nil
	}

	op, err := i.client.RestartInstance(ctx, i.id)
	if err != nil {
		i.logger.Error("restart failed",
			"instance", i.Name(),
			"instance_id", i.id,
			"error", err,
		)
		return "", err
	}
	i.logger.Info("restarting instance", "instance", i.Name(), "instance_id", i.id)
	telemetry.OperationsIssued.WithLabelValues("restart", i.id).Inc()
	return op.ID, nil
}
