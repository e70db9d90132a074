package journal

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migration/*.sql
var migrationFiles embed.FS

// PostgresStore is the centralized journal backend, for fleets whose
// runs should land in one place.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and creates the journal
// tables when they do not exist yet.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect journal database: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema, err := migrationFiles.ReadFile("migration/001_initial.sql")
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply journal schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// RecordOperation implements Store.
func (s *PostgresStore) RecordOperation(ctx context.Context, rec OperationRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO yct_operations
			(run_id, instance_id, kind, operation_id, outcome, detail, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.RunID, rec.InstanceID, rec.Kind, rec.OperationID,
		rec.Outcome, rec.Detail, rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record operation: %w", err)
	}
	return nil
}

// RecordRun implements Store.
func (s *PostgresStore) RecordRun(ctx context.Context, rec RunRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO yct_runs
			(run_id, kind, started_at, finished_at, instances, snapshots_created, snapshots_pruned, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			instances = EXCLUDED.instances,
			snapshots_created = EXCLUDED.snapshots_created,
			snapshots_pruned = EXCLUDED.snapshots_pruned,
			errors = EXCLUDED.errors`,
		rec.RunID, rec.Kind, rec.StartedAt, rec.FinishedAt,
		rec.Instances, rec.Created, rec.Pruned, rec.Errors,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns implements Store, returning the most recent runs first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, kind, started_at, finished_at, instances,
		       snapshots_created, snapshots_pruned, errors
		FROM yct_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.RunID, &rec.Kind, &rec.StartedAt, &rec.FinishedAt,
			&rec.Instances, &rec.Created, &rec.Pruned, &rec.Errors,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
