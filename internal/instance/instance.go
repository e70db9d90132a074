// Package instance models one Yandex Cloud VM: metadata cached at
// construction, live status reads, and lifecycle commands guarded by
// the current status.
package instance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shilovk/yandex-cloud-tools/internal/compute"
)

// Client is the provider surface the instance model needs.
// *compute.Client satisfies it.
type Client interface {
	GetInstance(ctx context.Context, id string) (*compute.Instance, error)
	StartInstance(ctx context.Context, id string) (*compute.Operation, error)
	StopInstance(ctx context.Context, id string) (*compute.Operation, error)
	RestartInstance(ctx context.Context, id string) (*compute.Operation, error)
}

// Option configures an Instance.
type Option func(*Instance)

// WithLogger sets the logger for lifecycle and guard diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Instance) { i.logger = logger }
}

// Instance is a handle on one VM. The metadata document is cached once
// at construction (or on Refresh); Status always reads live. Each
// Instance is owned by a single logical flow and does no locking of
// its own.
type Instance struct {
	id     string
	client Client
	logger *slog.Logger

	// meta is the cached metadata document, nil when the instance was
	// not found.
	meta *compute.Instance
}

// New fetches the instance's metadata once and caches it. A missing
// instance is recorded as absent rather than failing; any other fetch
// failure is an error.
func New(ctx context.Context, client Client, id string, opts ...Option) (*Instance, error) {
	inst := &Instance{
		id:     id,
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(inst)
	}
	if err := inst.Refresh(ctx); err != nil {
		return nil, err
	}
	return inst, nil
}

// Refresh re-fetches the metadata document and replaces the cache.
// Not-found clears the cache and logs a warning.
func (i *Instance) Refresh(ctx context.Context) error {
	meta, err := i.client.GetInstance(ctx, i.id)
	if err != nil {
		if compute.IsNotFound(err) {
			i.logger.Warn("instance does not exist", "instance_id", i.id)
			i.meta = nil
			return nil
		}
		return fmt.Errorf("fetch instance %s: %w", i.id, err)
	}
	i.meta = meta
	return nil
}

// ID returns the instance ID the handle was created with.
func (i *Instance) ID() string { return i.id }

// Exists reports whether metadata was retrieved for the instance.
func (i *Instance) Exists() bool { return i.meta != nil }

// FolderID returns the cached folder ID, or "" when absent.
func (i *Instance) FolderID() string {
	if i.meta == nil {
		return ""
	}
	return i.meta.FolderID
}

// Name returns the cached instance name, or "" when absent.
func (i *Instance) Name() string {
	if i.meta == nil {
		return ""
	}
	return i.meta.Name
}

// BootDiskID returns the cached boot disk ID, or "" when absent.
func (i *Instance) BootDiskID() string {
	return i.meta.BootDiskID()
}

// SecondaryDiskIDs returns the cached secondary disk IDs in order.
func (i *Instance) SecondaryDiskIDs() []string {
	return i.meta.SecondaryDiskIDs()
}

// Status reads the instance's current status with a fresh fetch. The
// cached metadata is not touched. An instance recorded absent keeps
// reporting StatusNonExistent without a fetch, and a live fetch that
// finds the instance gone reports the same sentinel.
func (i *Instance) Status(ctx context.Context) (compute.Status, error) {
	if i.meta == nil {
		return compute.StatusNonExistent, nil
	}
	fresh, err := i.client.GetInstance(ctx, i.id)
	if err != nil {
		if compute.IsNotFound(err) {
			return compute.StatusNonExistent, nil
		}
		return "", fmt.Errorf("fetch status of %s: %w", i.id, err)
	}
	return fresh.Status, nil
}

// Describe renders a one-line summary with a live status read. An
// absent instance renders a not-found line.
func (i *Instance) Describe(ctx context.Context) (string, error) {
	if i.meta == nil {
		return fmt.Sprintf("Instance %s not found.", i.id), nil
	}
	status, err := i.Status(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("InstanceID: %s, FolderID: %s, Name: %s, BootDisk: %s, Status: %s",
		i.id, i.FolderID(), i.Name(), i.BootDiskID(), status), nil
}
