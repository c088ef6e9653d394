package models

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

func newSQLiteRepo(t *testing.T) *SQLETLLogRepository {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	d, err := warehouse.ForDriver(warehouse.DriverSQLite)
	require.NoError(t, err)

	repo := NewSQLETLLogRepository(db, d)
	require.NoError(t, repo.CreateETLLogTable(context.Background()))
	require.NoError(t, repo.CreateETLLogTable(context.Background()))
	return repo
}

func TestSQLETLLogRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)

	last, err := repo.GetLastSuccessfulRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	okRun := RunSummary{
		RunID:      uuid.New(),
		SourcePath: "data/candidates.csv",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Transform: TransformSummary{
			RowsRead: 10,
			RowsKept: 8,
			Dropped:  DropCounts{DropMissingEmail: 1, DropInvalidApplicationDate: 1},
		},
		Load: LoadResult{
			FactsInserted: 7,
			FactsDropped:  DropCounts{DropUnresolvedCountry: 1},
		},
	}
	require.NoError(t, repo.CreateLogEntry(ctx, okRun.RunID, okRun.SourcePath, okRun.StartedAt))

	monitor, err := repo.GetETLStateMonitor(ctx)
	require.NoError(t, err)
	require.NotNil(t, monitor.CurrentRun)
	assert.Equal(t, okRun.RunID, monitor.CurrentRun.RunID)
	assert.Nil(t, monitor.CurrentRun.EndTime)

	require.NoError(t, repo.UpdateLogEntrySuccess(ctx, okRun))

	failedID := uuid.New()
	failedStart := start.Add(time.Hour)
	require.NoError(t, repo.CreateLogEntry(ctx, failedID, okRun.SourcePath, failedStart))
	require.NoError(t, repo.UpdateLogEntryFailure(ctx, failedID, failedStart.Add(500*time.Millisecond), "load facts: disk full"))

	last, err = repo.GetLastSuccessfulRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, okRun.RunID, last.RunID)
	assert.Equal(t, RunSuccess, last.Status)
	assert.Equal(t, 10, last.RowsRead)
	assert.Equal(t, 8, last.RowsKept)
	assert.Equal(t, 2, last.RowsDropped)
	assert.EqualValues(t, 7, last.FactsInserted)
	assert.Equal(t, 1, last.FactsDropped)
	assert.InDelta(t, 2.0, last.ExecutionTimeSeconds, 0.001)
	require.NotNil(t, last.EndTime)

	runs, err := repo.GetRecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, failedID, runs[0].RunID)
	assert.Equal(t, RunFailed, runs[0].Status)
	assert.Equal(t, "load facts: disk full", runs[0].ErrorMessage)
	assert.InDelta(t, 0.5, runs[0].ExecutionTimeSeconds, 0.001)

	monitor, err = repo.GetETLStateMonitor(ctx)
	require.NoError(t, err)
	assert.Nil(t, monitor.CurrentRun)
	assert.Equal(t, 1, monitor.TotalSuccessfulRuns)
	assert.Equal(t, 1, monitor.TotalFailedRuns)
	assert.EqualValues(t, 7, monitor.TotalFactsInserted)
	require.NotNil(t, monitor.LastFailedRun)
	assert.Equal(t, failedID, monitor.LastFailedRun.RunID)
}

func TestSQLETLLogRepository_EmptyMonitor(t *testing.T) {
	monitor, err := newSQLiteRepo(t).GetETLStateMonitor(context.Background())
	require.NoError(t, err)
	assert.Zero(t, monitor.TotalSuccessfulRuns)
	assert.Zero(t, monitor.AvgExecutionTimeSeconds)
	assert.Nil(t, monitor.LastSuccessfulRun)
}

func TestSQLETLLogRepository_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	d, _ := warehouse.ForDriver(warehouse.DriverPgx)
	repo := NewSQLETLLogRepository(db, d)

	runID := uuid.New()
	start := time.Now()
	mock.ExpectExec(`INSERT INTO etl_run_log \(run_id, source_path, start_time, status\)\s+VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs(runID.String(), "in.csv", sqlmock.AnyArg(), "in_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateLogEntry(context.Background(), runID, "in.csv", start))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLETLLogRepository_FailureOnUnknownRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	d, _ := warehouse.ForDriver(warehouse.DriverMySQL)
	repo := NewSQLETLLogRepository(db, d)

	mock.ExpectQuery("SELECT start_time FROM etl_run_log WHERE run_id = ?").
		WillReturnError(sql.ErrNoRows)

	err = repo.UpdateLogEntryFailure(context.Background(), uuid.New(), time.Now(), "boom")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}
