// internal/store/postgres.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const recordsSchema = `
CREATE TABLE IF NOT EXISTS workflow_records (
	run_id        TEXT PRIMARY KEY,
	workflow_name TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	entries       JSONB NOT NULL
)`

// PostgresStore persists execution records in PostgreSQL. Definitions stay
// on disk; only run traces go to the database.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgresStore verifies the connection and ensures the schema exists.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, recordsSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure records schema: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("postgres_store")}, nil
}

// SaveRecord upserts the trace of one run.
func (s *PostgresStore) SaveRecord(ctx context.Context, record schemas.ExecutionRecord) error {
	if record.RunID == "" {
		return fmt.Errorf("execution record has no run id")
	}
	entries, err := json.Marshal(record.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode record entries: %w", err)
	}

	const upsert = `
		INSERT INTO workflow_records (run_id, workflow_name, started_at, entries)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id) DO UPDATE
		SET workflow_name = EXCLUDED.workflow_name,
		    started_at    = EXCLUDED.started_at,
		    entries       = EXCLUDED.entries`

	if _, err := s.pool.Exec(ctx, upsert, record.RunID, record.WorkflowName, record.StartedAt.UTC(), entries); err != nil {
		return fmt.Errorf("failed to persist execution record: %w", err)
	}
	s.log.Debug("Execution record persisted.", zap.String("run_id", record.RunID))
	return nil
}

// LoadRecord fetches the trace of a previous run by its ID.
func (s *PostgresStore) LoadRecord(ctx context.Context, runID string) (schemas.ExecutionRecord, error) {
	var record schemas.ExecutionRecord

	const query = `
		SELECT run_id, workflow_name, started_at, entries
		FROM workflow_records WHERE run_id = $1`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return record, fmt.Errorf("failed to query execution record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return record, fmt.Errorf("failed to read execution record: %w", err)
		}
		return record, fmt.Errorf("no execution record for run %s", runID)
	}

	var startedAt time.Time
	var entries []byte
	if err := rows.Scan(&record.RunID, &record.WorkflowName, &startedAt, &entries); err != nil {
		return record, fmt.Errorf("failed to scan execution record: %w", err)
	}
	record.StartedAt = startedAt
	if err := json.Unmarshal(entries, &record.Entries); err != nil {
		return record, fmt.Errorf("failed to decode record entries: %w", err)
	}
	return record, nil
}

// ListRuns returns the IDs of persisted runs, most recent first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id FROM workflow_records ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
