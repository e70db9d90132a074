// Package events defines structured lifecycle events and the
// publishers that deliver them.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Type represents the kind of event.
type Type string

const (
	InstanceStart   Type = "instance.start"
	InstanceStop    Type = "instance.stop"
	InstanceRestart Type = "instance.restart"
	SnapshotCreate  Type = "snapshot.create"
	SnapshotDelete  Type = "snapshot.delete"
	RunCompleted    Type = "run.completed"
)

// Event is one lifecycle occurrence.
type Event struct {
	Type        Type      `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id,omitempty"`
	InstanceID  string    `json:"instance_id,omitempty"`
	OperationID string    `json:"operation_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	Detail      string    `json:"detail,omitempty"`
}

// New creates an event of the given type within a run.
func New(eventType Type, runID string) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
}

// WithInstance sets the instance ID and returns the event for
// chaining.
func (e *Event) WithInstance(id string) *Event {
	e.InstanceID = id
	return e
}

// WithOperation sets the operation ID and returns the event.
func (e *Event) WithOperation(id string) *Event {
	e.OperationID = id
	return e
}

// WithStatus sets the outcome status and returns the event.
func (e *Event) WithStatus(status string) *Event {
	e.Status = status
	return e
}

// WithDetail sets a human-readable detail line and returns the event.
func (e *Event) WithDetail(detail string) *Event {
	e.Detail = detail
	return e
}

// JSON returns the event serialized as JSON.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to an external consumer. Publishing is
// best-effort; callers log failures and move on.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
	Close()
}

// NopPublisher discards all events.
type NopPublisher struct{}

// Publish implements Publisher by discarding the event.
func (NopPublisher) Publish(context.Context, *Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() {}

// Collector keeps events in memory for tests. Safe for concurrent
// publishers.
type Collector struct {
	mu     sync.Mutex
	events []*Event
}

// Publish appends the event to the collector.
func (c *Collector) Publish(_ context.Context, e *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

// Close implements Publisher.
func (c *Collector) Close() {}

// Events returns a copy of everything published so far.
func (c *Collector) Events() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Event, len(c.events))
	copy(out, c.events)
	return out
}
