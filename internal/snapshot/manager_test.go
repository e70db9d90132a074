package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/shilovk/yandex-cloud-tools/internal/compute"
	"github.com/shilovk/yandex-cloud-tools/internal/testutil"
)

type ownerStub struct {
	id, name, folder, bootDisk string
	exists                     bool
}

func (o ownerStub) ID() string         { return o.id }
func (o ownerStub) Name() string       { return o.name }
func (o ownerStub) FolderID() string   { return o.folder }
func (o ownerStub) BootDiskID() string { return o.bootDisk }
func (o ownerStub) Exists() bool       { return o.exists }

var webOwner = ownerStub{id: "i-1", name: "web", folder: "f-1", bootDisk: "d-1", exists: true}

func newFake(t *testing.T) *testutil.FakeCloud {
	t.Helper()
	f := testutil.NewFakeCloud()
	t.Cleanup(f.Close)
	return f
}

func fixedNow() time.Time {
	return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
}

func newManager(f *testutil.FakeCloud, owner Owner, lifetime int, opts ...Option) *Manager {
	opts = append([]Option{WithLogger(testutil.DiscardLogger()), WithNow(fixedNow)}, opts...)
	return NewManager(f.Client(), owner, lifetime, opts...)
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

func TestManager_List_FiltersByBootDisk(t *testing.T) {
	f := newFake(t)
	f.AddSnapshot(compute.Snapshot{ID: "s-1", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-02-01T00:00:00z"})
	f.AddSnapshot(compute.Snapshot{ID: "s-2", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-02-02T00:00:00z"})
	f.AddSnapshot(compute.Snapshot{ID: "s-3", FolderID: "f-1", SourceDiskID: "d-other", CreatedAt: "2026-02-03T00:00:00z"})
	f.AddSnapshot(compute.Snapshot{ID: "s-4", FolderID: "f-other", SourceDiskID: "d-1", CreatedAt: "2026-02-04T00:00:00z"})

	m := newManager(f, webOwner, 10)
	own, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(own) != 2 {
		t.Fatalf("snapshots: got %d, want 2", len(own))
	}
	for _, s := range own {
		if s.SourceDiskID != "d-1" {
			t.Errorf("snapshot %s from disk %s leaked in", s.ID, s.SourceDiskID)
		}
	}
}

func TestManager_List_AbsentInstance(t *testing.T) {
	f := newFake(t)
	m := newManager(f, ownerStub{id: "i-9"}, 10)

	own, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if own != nil {
		t.Errorf("snapshots: got %v, want nil", own)
	}
	if got := len(f.Requests()); got != 0 {
		t.Errorf("requests: got %d, want 0", got)
	}
}

func TestManager_List_NoBootDisk(t *testing.T) {
	f := newFake(t)
	m := newManager(f, ownerStub{id: "i-1", name: "web", folder: "f-1", exists: true}, 10)

	own, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if own != nil {
		t.Errorf("snapshots: got %v, want nil", own)
	}
}

// ---------------------------------------------------------------------------
// ListOld
// ---------------------------------------------------------------------------

func TestManager_ListOld_RetentionBoundary(t *testing.T) {
	f := newFake(t)
	// Ten days and one hour old: prune-eligible at lifetime 10.
	f.AddSnapshot(compute.Snapshot{ID: "s-old", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-01-31T11:00:00z"})
	// Nine days and twenty-three hours old: kept.
	f.AddSnapshot(compute.Snapshot{ID: "s-young", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-01-31T13:00:00z"})

	m := newManager(f, webOwner, 10)
	old, err := m.ListOld(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(old) != 1 || old[0].ID != "s-old" {
		t.Errorf("old snapshots: got %v, want [s-old]", old)
	}
}

func TestManager_ListOld_NeverNil(t *testing.T) {
	f := newFake(t)
	m := newManager(f, webOwner, 10)

	old, err := m.ListOld(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if old == nil {
		t.Fatal("a successful ListOld should return an empty slice, not nil")
	}
	if len(old) != 0 {
		t.Errorf("old snapshots: got %v, want none", old)
	}
}

func TestManager_ListOld_SkipsUnparseable(t *testing.T) {
	f := newFake(t)
	f.AddSnapshot(compute.Snapshot{ID: "s-bad", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "not-a-time"})
	f.AddSnapshot(compute.Snapshot{ID: "s-old", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-01-01T00:00:00z"})

	m := newManager(f, webOwner, 10)
	old, err := m.ListOld(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(old) != 1 || old[0].ID != "s-old" {
		t.Errorf("old snapshots: got %v, want [s-old]", old)
	}
}

func TestManager_ListOld_Filter(t *testing.T) {
	f := newFake(t)
	f.AddSnapshot(compute.Snapshot{ID: "s-db", Name: "db-01-01-2026", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-01-01T00:00:00z"})
	f.AddSnapshot(compute.Snapshot{ID: "s-web", Name: "web-01-01-2026", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-01-01T00:00:00z"})

	filter, err := CompileFilter(`name startsWith "db-"`)
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}
	m := newManager(f, webOwner, 10, WithFilter(filter))
	old, err := m.ListOld(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(old) != 1 || old[0].ID != "s-db" {
		t.Errorf("old snapshots: got %v, want [s-db]", old)
	}
}

func TestManager_ListOld_FilterFailureKeepsSnapshot(t *testing.T) {
	f := newFake(t)
	f.AddSnapshot(compute.Snapshot{ID: "s-old", Name: "web-x", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-01-01T00:00:00z"})

	// int() of a timestamp string fails at evaluation time.
	filter, err := CompileFilter(`int(created_at) > 0`)
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}
	m := newManager(f, webOwner, 10, WithFilter(filter))
	old, err := m.ListOld(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("a failing filter must keep the snapshot, got %v", old)
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestManager_Create_DefaultsToBootDisk(t *testing.T) {
	f := newFake(t)
	m := newManager(f, webOwner, 10)

	opID, err := m.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opID == "" {
		t.Fatal("expected an operation id")
	}

	snaps := f.Snapshots()
	if len(snaps) != 1 {
		t.Fatalf("snapshots: got %d, want 1", len(snaps))
	}
	if snaps[0].SourceDiskID != "d-1" {
		t.Errorf("source disk: got %q, want d-1", snaps[0].SourceDiskID)
	}
	if want := "web-10-02-2026-12-00-00"; snaps[0].Name != want {
		t.Errorf("name: got %q, want %q", snaps[0].Name, want)
	}
}

func TestManager_Create_ExplicitDisk(t *testing.T) {
	f := newFake(t)
	m := newManager(f, webOwner, 10)

	if _, err := m.Create(context.Background(), "d-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snaps := f.Snapshots()
	if len(snaps) != 1 || snaps[0].SourceDiskID != "d-2" {
		t.Errorf("snapshots: got %v, want one from d-2", snaps)
	}
}

func TestManager_Create_QuotaExceeded(t *testing.T) {
	f := newFake(t)
	f.QuotaExceeded = true
	m := newManager(f, webOwner, 10)

	opID, err := m.Create(context.Background(), "")
	if err == nil {
		t.Fatal("expected quota error")
	}
	if !compute.IsQuotaExceeded(err) {
		t.Errorf("expected a quota error, got %v", err)
	}
	if opID != "" {
		t.Errorf("operation id: got %q, want empty", opID)
	}
}

func TestManager_Create_NoDisk(t *testing.T) {
	f := newFake(t)
	m := newManager(f, ownerStub{id: "i-9"}, 10)

	_, err := m.Create(context.Background(), "")
	if err == nil {
		t.Fatal("expected error when no disk can be resolved")
	}
	if got := len(f.Requests()); got != 0 {
		t.Errorf("requests: got %d, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestManager_Delete_ByID(t *testing.T) {
	f := newFake(t)
	f.AddSnapshot(compute.Snapshot{ID: "s-1", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-01-01T00:00:00z"})

	m := newManager(f, webOwner, 10)
	opID, err := m.Delete(context.Background(), Ref{ID: "s-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opID == "" {
		t.Fatal("expected an operation id")
	}
	if got := len(f.Snapshots()); got != 0 {
		t.Errorf("snapshots left: got %d, want 0", got)
	}
}

func TestManager_Delete_ByDescriptor(t *testing.T) {
	f := newFake(t)
	f.AddSnapshot(compute.Snapshot{ID: "s-1", Name: "web-x", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-01-01T00:00:00z"})

	m := newManager(f, webOwner, 10)
	snap := compute.Snapshot{ID: "s-1", Name: "web-x"}
	if _, err := m.Delete(context.Background(), Ref{Desc: &snap}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(f.Snapshots()); got != 0 {
		t.Errorf("snapshots left: got %d, want 0", got)
	}
}

func TestManager_Delete_IDWinsOverDescriptor(t *testing.T) {
	f := newFake(t)
	f.AddSnapshot(compute.Snapshot{ID: "s-a", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-01-01T00:00:00z"})
	f.AddSnapshot(compute.Snapshot{ID: "s-b", FolderID: "f-1", SourceDiskID: "d-1", CreatedAt: "2026-01-01T00:00:00z"})

	m := newManager(f, webOwner, 10)
	ref := Ref{ID: "s-a", Desc: &compute.Snapshot{ID: "s-b"}}
	if _, err := m.Delete(context.Background(), ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snaps := f.Snapshots()
	if len(snaps) != 1 || snaps[0].ID != "s-b" {
		t.Errorf("snapshots left: got %v, want [s-b]", snaps)
	}
}

func TestManager_Delete_EmptyRef(t *testing.T) {
	f := newFake(t)
	m := newManager(f, webOwner, 10)

	_, err := m.Delete(context.Background(), Ref{})
	if err == nil {
		t.Fatal("expected error for an empty ref")
	}
	if got := len(f.Requests()); got != 0 {
		t.Errorf("requests: got %d, want 0 (no call without an id)", got)
	}
}

// ---------------------------------------------------------------------------
// FormatName
// ---------------------------------------------------------------------------

func TestFormatName(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if got, want := FormatName("web", at), "web-04-03-2026-05-06-07"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
