// internal/store/postgres_test.go
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// flexibleSQLMatcher builds a regex insensitive to whitespace differences.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	mockPool.ExpectExec(flexibleSQLMatcher("CREATE TABLE IF NOT EXISTS workflow_records")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	s, err := NewPostgresStore(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return s, mockPool
}

func sampleRecord() schemas.ExecutionRecord {
	return schemas.ExecutionRecord{
		RunID:        "run-42",
		WorkflowName: "search",
		StartedAt:    time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Entries: []schemas.RecordEntry{
			{
				StepPath: "0",
				Action:   schemas.Action{Kind: schemas.ActionNavigate, URL: "https://shop.example"},
				Outcome:  schemas.Outcome{Status: schemas.StepSucceeded},
			},
		},
	}
}

func TestNewPostgresStorePingFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(errors.New("connection refused"))

	_, err = NewPostgresStore(context.Background(), mockPool, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestSaveRecord(t *testing.T) {
	s, mockPool := newMockStore(t)
	record := sampleRecord()

	entries, err := json.Marshal(record.Entries)
	require.NoError(t, err)

	mockPool.ExpectExec(flexibleSQLMatcher("INSERT INTO workflow_records")).
		WithArgs(record.RunID, record.WorkflowName, record.StartedAt.UTC(), entries).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveRecord(context.Background(), record))
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveRecordExecFailure(t *testing.T) {
	s, mockPool := newMockStore(t)

	mockPool.ExpectExec(flexibleSQLMatcher("INSERT INTO workflow_records")).
		WillReturnError(errors.New("constraint violation"))

	err := s.SaveRecord(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist execution record")
}

func TestSaveRecordRejectsMissingRunID(t *testing.T) {
	s, _ := newMockStore(t)
	err := s.SaveRecord(context.Background(), schemas.ExecutionRecord{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run id")
}

func TestLoadRecord(t *testing.T) {
	s, mockPool := newMockStore(t)
	record := sampleRecord()

	entries, err := json.Marshal(record.Entries)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"run_id", "workflow_name", "started_at", "entries"}).
		AddRow(record.RunID, record.WorkflowName, record.StartedAt, []byte(entries))
	mockPool.ExpectQuery(flexibleSQLMatcher("SELECT run_id, workflow_name, started_at, entries")).
		WithArgs("run-42").
		WillReturnRows(rows)

	loaded, err := s.LoadRecord(context.Background(), "run-42")
	require.NoError(t, err)
	assert.Equal(t, record, loaded)
	require.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLoadRecordNotFound(t *testing.T) {
	s, mockPool := newMockStore(t)

	mockPool.ExpectQuery(flexibleSQLMatcher("SELECT run_id, workflow_name, started_at, entries")).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"run_id", "workflow_name", "started_at", "entries"}))

	_, err := s.LoadRecord(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no execution record")
}

func TestListRuns(t *testing.T) {
	s, mockPool := newMockStore(t)

	rows := pgxmock.NewRows([]string{"run_id"}).AddRow("run-2").AddRow("run-1")
	mockPool.ExpectQuery(flexibleSQLMatcher("SELECT run_id FROM workflow_records")).
		WithArgs(50).
		WillReturnRows(rows)

	ids, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-2", "run-1"}, ids)
}
