package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

func TestEvent_JSON(t *testing.T) {
	e := New(SnapshotCreate, "run-1").
		WithInstance("i-1").
		WithOperation("op-1").
		WithStatus("done").
		WithDetail("operation Create snapshot (op-1) completed")

	data, err := e.JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := map[string]string{
		"type":         "snapshot.create",
		"run_id":       "run-1",
		"instance_id":  "i-1",
		"operation_id": "op-1",
		"status":       "done",
		"detail":       "operation Create snapshot (op-1) completed",
	}
	for key, val := range want {
		if got[key] != val {
			t.Errorf("%s: got %v, want %q", key, got[key], val)
		}
	}
	if got["timestamp"] == nil {
		t.Error("timestamp missing")
	}
}

func TestEvent_JSON_OmitsEmpty(t *testing.T) {
	data, err := New(RunCompleted, "run-1").JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"instance_id", "operation_id", "status", "detail"} {
		if _, ok := got[key]; ok {
			t.Errorf("%s should be omitted when empty", key)
		}
	}
}

func TestCollector_Concurrent(t *testing.T) {
	var col Collector
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = col.Publish(context.Background(), New(InstanceStart, "run-1"))
		}()
	}
	wg.Wait()

	if got := len(col.Events()); got != 20 {
		t.Errorf("events: got %d, want 20", got)
	}
}

func TestNopPublisher(t *testing.T) {
	var p NopPublisher
	if err := p.Publish(context.Background(), New(InstanceStop, "run-1")); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	p.Close()
}
