package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DirWriter writes one indented JSON file per run into a directory,
// named `<run-id>.json`.
type DirWriter struct {
	Dir string
}

// NewDirWriter creates a writer targeting dir.
func NewDirWriter(dir string) *DirWriter {
	return &DirWriter{Dir: dir}
}

// Write implements Writer.
func (w *DirWriter) Write(_ context.Context, r *RunReport) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	path := filepath.Join(w.Dir, r.RunID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
