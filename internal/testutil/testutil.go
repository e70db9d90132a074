// Package testutil provides shared test helpers, chiefly an in-memory
// stand-in for the compute control plane.
package testutil

import (
	"io"
	"log/slog"
)

// DiscardLogger returns a logger that drops everything, for wiring
// into code under test.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
