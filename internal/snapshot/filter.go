package snapshot

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/shilovk/yandex-cloud-tools/internal/compute"
)

// filterEnv is the variable set a prune filter sees for each snapshot.
type filterEnv struct {
	ID        string `expr:"id"`
	Name      string `expr:"name"`
	DiskID    string `expr:"disk_id"`
	AgeDays   int    `expr:"age_days"`
	CreatedAt string `expr:"created_at"`
}

// Filter is a compiled prune filter. Snapshots it matches are
// prune-eligible once old enough; the rest are kept regardless of age.
type Filter struct {
	Source  string
	program *vm.Program
}

// CompileFilter validates and compiles a filter expression. The
// expression must yield a boolean.
func CompileFilter(source string) (*Filter, error) {
	if source == "" {
		return nil, errors.New("empty filter expression")
	}
	program, err := expr.Compile(source, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("filter compile error: %w", err)
	}
	return &Filter{Source: source, program: program}, nil
}

// Match evaluates the filter against one snapshot at the given age.
func (f *Filter) Match(snap compute.Snapshot, ageDays int) (bool, error) {
	result, err := expr.Run(f.program, filterEnv{
		ID:        snap.ID,
		Name:      snap.Name,
		DiskID:    snap.SourceDiskID,
		AgeDays:   ageDays,
		CreatedAt: snap.CreatedAt,
	})
	if err != nil {
		return false, fmt.Errorf("filter eval error for %q: %w", f.Source, err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T, expected bool", f.Source, result)
	}
	return matched, nil
}
