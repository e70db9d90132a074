package compute

import (
	"fmt"
	"strings"
	"time"
)

// Status is the provider-reported state of an instance.
type Status string

const (
	StatusRunning      Status = "RUNNING"
	StatusProvisioning Status = "PROVISIONING"
	StatusCreating     Status = "CREATING"
	StatusStopped      Status = "STOPPED"
	StatusStopping     Status = "STOPPING"
	StatusError        Status = "ERROR"
	StatusCrashed      Status = "CRASHED"

	// StatusNonExistent is a local sentinel for instances the provider
	// reported as not found. It is never returned by the API itself.
	StatusNonExistent Status = "NON-EXISTENT"
)

// Status groupings used to guard lifecycle transitions. Initialized once,
// read-only afterwards.
var (
	positiveStates = map[Status]bool{
		StatusRunning:      true,
		StatusProvisioning: true,
		StatusCreating:     true,
	}
	negativeStates = map[Status]bool{
		StatusStopped:  true,
		StatusStopping: true,
		StatusError:    true,
		StatusCrashed:  true,
	}
)

// IsPositive reports whether the status is active or transitioning to
// active (running, provisioning, creating).
func (s Status) IsPositive() bool { return positiveStates[s] }

// IsNegative reports whether the status is inactive or failed (stopped,
// stopping, error, crashed).
func (s Status) IsNegative() bool { return negativeStates[s] }

// AttachedDisk is a disk attached to an instance.
type AttachedDisk struct {
	DiskID string `json:"diskId"`
}

// Instance is the provider's metadata document for one VM.
type Instance struct {
	ID             string         `json:"id"`
	FolderID       string         `json:"folderId"`
	Name           string         `json:"name"`
	Status         Status         `json:"status"`
	BootDisk       *AttachedDisk  `json:"bootDisk,omitempty"`
	SecondaryDisks []AttachedDisk `json:"secondaryDisks,omitempty"`
}

// BootDiskID returns the boot disk ID, or "" when the document carries
// no boot disk.
func (i *Instance) BootDiskID() string {
	if i == nil || i.BootDisk == nil {
		return ""
	}
	return i.BootDisk.DiskID
}

// SecondaryDiskIDs returns the attached secondary disk IDs in order.
func (i *Instance) SecondaryDiskIDs() []string {
	if i == nil || len(i.SecondaryDisks) == 0 {
		return nil
	}
	ids := make([]string, len(i.SecondaryDisks))
	for n, d := range i.SecondaryDisks {
		ids[n] = d.DiskID
	}
	return ids
}

// Snapshot is a point-in-time disk backup.
type Snapshot struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FolderID     string `json:"folderId,omitempty"`
	SourceDiskID string `json:"sourceDiskId"`
	CreatedAt    string `json:"createdAt"`
}

// createdAtLayout is the bare timestamp the provider emits once the
// trailing zone letter is stripped.
const createdAtLayout = "2006-01-02T15:04:05"

// CreatedTime parses the snapshot's creation timestamp. The provider
// emits `YYYY-MM-DDTHH:MM:SSz` with a lowercase zone letter; RFC 3339
// forms (including fractional seconds) are accepted too.
func (s *Snapshot) CreatedTime() (time.Time, error) {
	raw := s.CreatedAt
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	trimmed := strings.TrimRight(raw, "zZ")
	t, err := time.ParseInLocation(createdAtLayout, trimmed, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("snapshot %s: parse createdAt %q: %w", s.ID, raw, err)
	}
	return t, nil
}

// AgeDays returns the snapshot age in whole days at the given time,
// flooring. A snapshot dated in the future has a negative age.
func (s *Snapshot) AgeDays(now time.Time) (int, error) {
	created, err := s.CreatedTime()
	if err != nil {
		return 0, err
	}
	secs := int64(now.UTC().Sub(created).Seconds())
	days := secs / 86400
	if secs < 0 && secs%86400 != 0 {
		days--
	}
	return int(days), nil
}

// OperationMetadata is the service-specific part of an operation
// document. Snapshot operations identify the snapshot they act on.
type OperationMetadata struct {
	SnapshotID string `json:"snapshotId,omitempty"`
}

// Operation is a provider-side long-running task. It is created
// implicitly when a lifecycle or snapshot command is issued and polled
// until Done reports true.
type Operation struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Done        bool              `json:"done"`
	Metadata    OperationMetadata `json:"metadata"`
}

// CreateSnapshotRequest is the body of a snapshot create call.
type CreateSnapshotRequest struct {
	FolderID string `json:"folderId"`
	DiskID   string `json:"diskId"`
	Name     string `json:"name"`
}
