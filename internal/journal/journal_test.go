package journal

import (
	"context"
	"testing"
	"time"
)

func testRun(id string, startedAt time.Time) RunRecord {
	return RunRecord{
		RunID:      id,
		Kind:       "backup",
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Minute),
		Instances:  2,
		Created:    2,
		Pruned:     1,
	}
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	base := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := store.RecordRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("record run %s: %v", id, err)
		}
	}
	if err := store.RecordOperation(ctx, OperationRecord{
		RunID:       "run-a",
		InstanceID:  "i-1",
		Kind:        "create_snapshot",
		OperationID: "op-1",
		Outcome:     "done",
		StartedAt:   base,
		FinishedAt:  base.Add(10 * time.Second),
	}); err != nil {
		t.Fatalf("record operation: %v", err)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs: got %d, want 3", len(runs))
	}
	// Newest first.
	if runs[0].RunID != "run-c" || runs[2].RunID != "run-a" {
		t.Errorf("order: got %s..%s, want run-c..run-a", runs[0].RunID, runs[2].RunID)
	}
	if runs[0].Created != 2 || runs[0].Pruned != 1 || runs[0].Instances != 2 {
		t.Errorf("fields lost in round trip: %+v", runs[0])
	}
}

func TestBadgerStore_ListRuns_Limit(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	base := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := store.RecordRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("record run %s: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs: got %d, want 2", len(runs))
	}
	if runs[0].RunID != "run-c" || runs[1].RunID != "run-b" {
		t.Errorf("order: got %s, %s", runs[0].RunID, runs[1].RunID)
	}
}

func TestOpen_Dispatch(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, "", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(NopStore); !ok {
		t.Errorf("empty backend: got %T, want NopStore", store)
	}

	store, err = Open(ctx, "none", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(NopStore); !ok {
		t.Errorf("none backend: got %T, want NopStore", store)
	}

	store, err = Open(ctx, "badger", t.TempDir(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*BadgerStore); !ok {
		t.Errorf("badger backend: got %T, want *BadgerStore", store)
	}
	_ = store.Close()
}

func TestNopStore(t *testing.T) {
	var s NopStore
	ctx := context.Background()
	if err := s.RecordRun(ctx, RunRecord{}); err != nil {
		t.Errorf("record run: %v", err)
	}
	if err := s.RecordOperation(ctx, OperationRecord{}); err != nil {
		t.Errorf("record operation: %v", err)
	}
	runs, err := s.ListRuns(ctx, 10)
	if err != nil || runs != nil {
		t.Errorf("list runs: got %v, %v", runs, err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
