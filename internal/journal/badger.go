package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/oklog/ulid/v2"
)

// BadgerStore is the embedded journal backend. Runs live under
// `run:<run-id>`, operations under `op:<run-id>:<ulid>`, JSON values.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the journal at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil
	opts = opts.WithValueLogFileSize(1 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func runKey(runID string) []byte {
	return []byte("run:" + runID)
}

func opKey(runID string) []byte {
	return []byte("op:" + runID + ":" + ulid.Make().String())
}

// RecordOperation implements Store.
func (s *BadgerStore) RecordOperation(_ context.Context, rec OperationRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(opKey(rec.RunID), data)
	})
}

// RecordRun implements Store.
func (s *BadgerStore) RecordRun(_ context.Context, rec RunRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(runKey(rec.RunID), data)
	})
}

// ListRuns implements Store, returning the most recent runs first.
func (s *BadgerStore) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	var runs []RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("run:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var rec RunRecord
				if err := json.Unmarshal(v, &rec); err != nil {
					return err
				}
				runs = append(runs, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
