package secrets

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

const placeholder = "***"

// Redactor is a slog handler that scrubs known secret values from log
// output. The OAuth token is registered at startup; anything logged
// through the wrapped handler has registered values replaced.
type Redactor struct {
	inner  slog.Handler
	mu     *sync.RWMutex
	values map[string]bool
}

// NewRedactor wraps a handler, redacting the given values.
func NewRedactor(inner slog.Handler, values ...string) *Redactor {
	r := &Redactor{
		inner:  inner,
		mu:     &sync.RWMutex{},
		values: make(map[string]bool),
	}
	for _, v := range values {
		r.Add(v)
	}
	return r
}

// Add registers another value to redact.
func (r *Redactor) Add(value string) {
	if value == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[value] = true
}

// Enabled delegates to the inner handler.
func (r *Redactor) Enabled(ctx context.Context, level slog.Level) bool {
	return r.inner.Enabled(ctx, level)
}

// Handle scrubs the message and string attributes before delegating.
func (r *Redactor) Handle(ctx context.Context, record slog.Record) error {
	r.mu.RLock()
	values := make([]string, 0, len(r.values))
	for v := range r.values {
		values = append(values, v)
	}
	r.mu.RUnlock()

	if len(values) == 0 {
		return r.inner.Handle(ctx, record)
	}

	scrubbed := slog.NewRecord(record.Time, record.Level, scrub(record.Message, values), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		if a.Value.Kind() == slog.KindString {
			a = slog.String(a.Key, scrub(a.Value.String(), values))
		}
		scrubbed.AddAttrs(a)
		return true
	})
	return r.inner.Handle(ctx, scrubbed)
}

// WithAttrs delegates to the inner handler, sharing the value set.
func (r *Redactor) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Redactor{inner: r.inner.WithAttrs(attrs), mu: r.mu, values: r.values}
}

// WithGroup delegates to the inner handler, sharing the value set.
func (r *Redactor) WithGroup(name string) slog.Handler {
	return &Redactor{inner: r.inner.WithGroup(name), mu: r.mu, values: r.values}
}

func scrub(s string, values []string) string {
	for _, v := range values {
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}
