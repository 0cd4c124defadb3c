package runrecord

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"nodeflow/internal/runner"
)

const tableName = "run_records"

var columns = []string{
	"run_id", "node_id", "job_id", "success", "output",
	"error_kind", "message", "started_at", "finished_at",
}

// PostgresStore keeps run records in a single table built with ent's SQL builder.
type PostgresStore struct {
	drv        *entsql.Driver
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{drv: entsql.OpenDB(dialect.Postgres, db)}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.drv.DB().ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS run_records (
  run_id TEXT PRIMARY KEY,
  node_id TEXT NOT NULL,
  job_id TEXT NOT NULL DEFAULT '',
  success BOOLEAN NOT NULL DEFAULT FALSE,
  output TEXT NOT NULL DEFAULT '',
  error_kind TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL DEFAULT '',
  started_at TIMESTAMP WITH TIME ZONE NOT NULL,
  finished_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_records_node_started ON run_records (node_id, started_at DESC);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Save(ctx context.Context, rec runner.Record) error {
	if s == nil || s.drv == nil {
		return fmt.Errorf("store is nil")
	}
	rec.RunID = strings.TrimSpace(rec.RunID)
	if rec.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	query, args := insertQuery(rec)
	_, err := s.drv.DB().ExecContext(ctx, query, args...)
	return err
}

func (s *PostgresStore) List(ctx context.Context, nodeID string, limit int) ([]runner.Record, error) {
	if s == nil || s.drv == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	query, args := listQuery(strings.TrimSpace(nodeID), limit)
	rows, err := s.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]runner.Record, 0, 16)
	for rows.Next() {
		var rec runner.Record
		if err := rows.Scan(
			&rec.RunID, &rec.NodeID, &rec.JobID, &rec.Success, &rec.Output,
			&rec.ErrorKind, &rec.Message, &rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	if s == nil || s.drv == nil {
		return nil
	}
	return s.drv.Close()
}

func insertQuery(rec runner.Record) (string, []any) {
	return entsql.Dialect(dialect.Postgres).
		Insert(tableName).
		Columns(columns...).
		Values(
			rec.RunID, rec.NodeID, rec.JobID, rec.Success, rec.Output,
			rec.ErrorKind, rec.Message, rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
		).
		OnConflict(
			entsql.ConflictColumns("run_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
}

func listQuery(nodeID string, limit int) (string, []any) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	sel := entsql.Dialect(dialect.Postgres).
		Select(columns...).
		From(entsql.Table(tableName))
	if nodeID != "" {
		sel = sel.Where(entsql.EQ("node_id", nodeID))
	}
	return sel.OrderBy(entsql.Desc("started_at")).Limit(limit).Query()
}
