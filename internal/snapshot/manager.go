// Package snapshot manages disk snapshots for one instance: listing,
// retention, creation and deletion.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shilovk/yandex-cloud-tools/internal/compute"
	"github.com/shilovk/yandex-cloud-tools/internal/telemetry"
)

// Client is the provider surface snapshot management needs.
// *compute.Client satisfies it.
type Client interface {
	ListSnapshots(ctx context.Context, folderID string) ([]compute.Snapshot, error)
	CreateSnapshot(ctx context.Context, req compute.CreateSnapshotRequest) (*compute.Operation, error)
	DeleteSnapshot(ctx context.Context, id string) (*compute.Operation, error)
}

// Owner is the instance whose snapshots are managed. The manager reads
// only cached identity fields; *instance.Instance satisfies it.
type Owner interface {
	ID() string
	Name() string
	FolderID() string
	BootDiskID() string
	Exists() bool
}

// nameLayout renders the timestamp embedded in snapshot names.
const nameLayout = "02-01-2006-15-04-05"

// FormatName builds the snapshot name for an instance at a point in
// time: `{instance-name}-{DD-MM-YYYY-HH-MM-SS}`.
func FormatName(instanceName string, t time.Time) string {
	return fmt.Sprintf("%s-%s", instanceName, t.Format(nameLayout))
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the logger for snapshot diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithFilter sets a compiled prune filter. When present, a snapshot
// must be old and match the filter to be prune-eligible.
func WithFilter(f *Filter) Option {
	return func(m *Manager) { m.filter = f }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager lists, creates and deletes the snapshots of one instance's
// boot disk and decides which are old enough to prune.
type Manager struct {
	client   Client
	owner    Owner
	lifetime int
	filter   *Filter
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a Manager. Lifetime is the retention window in
// days; a snapshot is old once its age reaches it.
func NewManager(client Client, owner Owner, lifetime int, opts ...Option) *Manager {
	m := &Manager{
		client:   client,
		owner:    owner,
		lifetime: lifetime,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// List returns the instance's own snapshots: those in its folder whose
// source disk is the instance's boot disk. An absent instance or an
// unresolvable boot disk yields a logged notice and no snapshots, not
// an error.
func (m *Manager) List(ctx context.Context) ([]compute.Snapshot, error) {
	if !m.owner.Exists() {
		m.logger.Warn("cannot list snapshots of non-existent instance",
			"instance_id", m.owner.ID(),
		)
		return nil, nil
	}
	folder, disk := m.owner.FolderID(), m.owner.BootDiskID()
	if folder == "" || disk == "" {
		m.logger.Info("no snapshots found", "instance", m.owner.Name())
		return nil, nil
	}

	all, err := m.client.ListSnapshots(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("list snapshots of %s: %w", m.owner.Name(), err)
	}
	var own []compute.Snapshot
	for _, snap := range all {
		if snap.SourceDiskID == disk {
			own = append(own, snap)
		}
	}
	return own, nil
}

// ListOld returns the snapshots at least lifetime days old that the
// prune filter, when configured, marks eligible. A successful call
// never returns nil: no data and nothing-old both yield an empty
// slice.
func (m *Manager) ListOld(ctx context.Context) ([]compute.Snapshot, error) {
	own, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	old := make([]compute.Snapshot, 0, len(own))
	now := m.now()
	for _, snap := range own {
		age, err := snap.AgeDays(now)
		if err != nil {
			m.logger.Warn("skipping snapshot with unparseable createdAt",
				"snapshot_id", snap.ID,
				"error", err,
			)
			continue
		}
		if age < m.lifetime {
			continue
		}
		if m.filter != nil {
			match, err := m.filter.Match(snap, age)
			if err != nil {
				m.logger.Warn("prune filter failed, keeping snapshot",
					"snapshot_id", snap.ID,
					"error", err,
				)
				continue
			}
			if !match {
				continue
			}
		}
		old = append(old, snap)
	}
	return old, nil
}

// Create starts a snapshot of one of the instance's disks, defaulting
// to the boot disk when diskID is empty. Returns the operation ID
// tracking the create. A quota rejection logs one warning and returns
// compute.ErrQuotaExceeded.
func (m *Manager) Create(ctx context.Context, diskID string) (string, error) {
	disk := diskID
	if disk == "" {
		disk = m.owner.BootDiskID()
	}
	folder := m.owner.FolderID()
	if disk == "" || folder == "" {
		m.logger.Warn("cannot snapshot, no resolvable disk",
			"instance_id", m.owner.ID(),
		)
		return "", errors.New("no disk to snapshot: instance metadata missing")
	}

	name := FormatName(m.owner.Name(), m.now())
	op, err := m.client.CreateSnapshot(ctx, compute.CreateSnapshotRequest{
		FolderID: folder,
		DiskID:   disk,
		Name:     name,
	})
	if err != nil {
		if compute.IsQuotaExceeded(err) {
			m.logger.Warn("snapshot not created, quota exceeded",
				"instance", m.owner.Name(),
				"error", err,
			)
			telemetry.QuotaErrors.Inc()
			return "", err
		}
		m.logger.Error("create snapshot failed",
			"instance", m.owner.Name(),
			"disk_id", disk,
			"error", err,
		)
		return "", err
	}

	m.logger.Info("creating snapshot",
		"instance", m.owner.Name(),
		"disk_id", disk,
		"name", name,
	)
	telemetry.OperationsIssued.WithLabelValues("create_snapshot", m.owner.ID()).Inc()
	return op.ID, nil
}

// Ref identifies a snapshot to delete: a full descriptor, a bare ID,
// or both. The bare ID wins when both are set.
type Ref struct {
	ID   string
	Desc *compute.Snapshot
}

func (r Ref) id() string {
	if r.ID != "" {
		return r.ID
	}
	if r.Desc != nil {
		return r.Desc.ID
	}
	return ""
}

func (r Ref) label() string {
	if r.ID != "" {
		return r.ID
	}
	if r.Desc != nil {
		return r.Desc.Name
	}
	return ""
}

// Delete removes one snapshot and returns the operation ID tracking
// the deletion. A ref carrying neither descriptor nor ID is a
// configuration error; no request is made.
func (m *Manager) Delete(ctx context.Context, ref Ref) (string, error) {
	id := ref.id()
	if id == "" {
		m.logger.Error("snapshot descriptor or id required")
		return "", errors.New("snapshot descriptor or id required")
	}

	op, err := m.client.DeleteSnapshot(ctx, id)
	if err != nil {
		m.logger.Error("delete snapshot failed",
			"snapshot", ref.label(),
			"error", err,
		)
		return "", err
	}
	m.logger.Info("deleting snapshot",
		"snapshot", ref.label(),
		"snapshot_id", id,
	)
	telemetry.OperationsIssued.WithLabelValues("delete_snapshot", m.owner.ID()).Inc()
	return op.ID, nil
}
