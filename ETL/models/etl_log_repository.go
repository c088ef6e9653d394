package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

// TableRunLog holds one row per pipeline run.
const TableRunLog = "etl_run_log"

const runLogColumns = `run_id, source_path, start_time, end_time, status,
	rows_read, rows_kept, rows_dropped, facts_inserted, facts_dropped,
	COALESCE(error_message, ''), COALESCE(execution_time_seconds, 0)`

// SQLETLLogRepository implements ETLLogRepository on the warehouse database.
type SQLETLLogRepository struct {
	db      *sql.DB
	dialect warehouse.Dialect
}

// NewSQLETLLogRepository creates a new SQLETLLogRepository
func NewSQLETLLogRepository(db *sql.DB, dialect warehouse.Dialect) *SQLETLLogRepository {
	return &SQLETLLogRepository{
		db:      db,
		dialect: dialect,
	}
}

// CreateETLLogTable creates the run log table if it does not exist.
func (r *SQLETLLogRepository) CreateETLLogTable(ctx context.Context) error {
	ts := r.dialect.TimestampType()
	query := `
	CREATE TABLE IF NOT EXISTS ` + TableRunLog + ` (
		run_id VARCHAR(36) PRIMARY KEY,
		source_path ` + r.dialect.TextType() + ` NOT NULL,
		start_time ` + ts + ` NOT NULL,
		end_time ` + ts + ` NULL,
		status VARCHAR(16) NOT NULL,
		rows_read INTEGER NOT NULL DEFAULT 0,
		rows_kept INTEGER NOT NULL DEFAULT 0,
		rows_dropped INTEGER NOT NULL DEFAULT 0,
		facts_inserted BIGINT NOT NULL DEFAULT 0,
		facts_dropped INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		execution_time_seconds DOUBLE PRECISION
	)`
	if opts := r.dialect.TableOptions(); opts != "" {
		query += " " + opts
	}

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", TableRunLog, err)
	}
	return nil
}

// CreateLogEntry records the start of a run.
func (r *SQLETLLogRepository) CreateLogEntry(ctx context.Context, runID uuid.UUID, sourcePath string, startTime time.Time) error {
	query := r.dialect.Rebind(`
	INSERT INTO ` + TableRunLog + ` (run_id, source_path, start_time, status)
	VALUES (?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query, runID.String(), sourcePath, startTime.UTC(), string(RunInProgress))
	if err != nil {
		return fmt.Errorf("create run log entry: %w", err)
	}
	return nil
}

// UpdateLogEntrySuccess records the counts of a finished run.
func (r *SQLETLLogRepository) UpdateLogEntrySuccess(ctx context.Context, summary RunSummary) error {
	query := r.dialect.Rebind(`
	UPDATE ` + TableRunLog + `
	SET
		end_time = ?,
		status = ?,
		rows_read = ?,
		rows_kept = ?,
		rows_dropped = ?,
		facts_inserted = ?,
		facts_dropped = ?,
		execution_time_seconds = ?
	WHERE run_id = ?`)

	_, err := r.db.ExecContext(ctx, query,
		summary.FinishedAt.UTC(),
		string(RunSuccess),
		summary.Transform.RowsRead,
		summary.Transform.RowsKept,
		summary.Transform.Dropped.Total(),
		summary.Load.FactsInserted,
		summary.Load.FactsDropped.Total(),
		summary.Duration().Seconds(),
		summary.RunID.String(),
	)
	if err != nil {
		return fmt.Errorf("update run log entry: %w", err)
	}
	return nil
}

// UpdateLogEntryFailure records why a run failed.
func (r *SQLETLLogRepository) UpdateLogEntryFailure(ctx context.Context, runID uuid.UUID, endTime time.Time, errorMessage string) error {
	var startTime time.Time
	err := r.db.QueryRowContext(ctx,
		r.dialect.Rebind("SELECT start_time FROM "+TableRunLog+" WHERE run_id = ?"), runID.String()).
		Scan(&startTime)
	if err != nil {
		return fmt.Errorf("read run start time: %w", err)
	}

	query := r.dialect.Rebind(`
	UPDATE ` + TableRunLog + `
	SET
		end_time = ?,
		status = ?,
		error_message = ?,
		execution_time_seconds = ?
	WHERE run_id = ?`)

	_, err = r.db.ExecContext(ctx, query,
		endTime.UTC(), string(RunFailed), errorMessage, endTime.Sub(startTime).Seconds(), runID.String())
	if err != nil {
		return fmt.Errorf("update run log entry: %w", err)
	}
	return nil
}

// GetLastSuccessfulRun returns nil when no run succeeded yet.
func (r *SQLETLLogRepository) GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error) {
	return r.lastWithStatus(ctx, RunSuccess)
}

func (r *SQLETLLogRepository) lastWithStatus(ctx context.Context, status RunStatus) (*ETLRunLog, error) {
	query := r.dialect.Rebind(`SELECT ` + runLogColumns + `
	FROM ` + TableRunLog + `
	WHERE status = ?
	ORDER BY start_time DESC
	LIMIT 1`)

	rows, err := r.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("query %s run: %w", status, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	log, err := scanRunLog(rows)
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// GetRecentRuns returns up to limit runs, newest first.
func (r *SQLETLLogRepository) GetRecentRuns(ctx context.Context, limit int) ([]ETLRunLog, error) {
	query := r.dialect.Rebind(`SELECT ` + runLogColumns + `
	FROM ` + TableRunLog + `
	ORDER BY start_time DESC
	LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query run log: %w", err)
	}
	defer rows.Close()

	var logs []ETLRunLog
	for rows.Next() {
		log, err := scanRunLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run log: %w", err)
	}
	return logs, nil
}

// GetETLStateMonitor aggregates the run log.
func (r *SQLETLLogRepository) GetETLStateMonitor(ctx context.Context) (*ETLStateMonitor, error) {
	lastSuccessful, err := r.lastWithStatus(ctx, RunSuccess)
	if err != nil {
		return nil, err
	}
	lastFailed, err := r.lastWithStatus(ctx, RunFailed)
	if err != nil {
		return nil, err
	}
	current, err := r.lastWithStatus(ctx, RunInProgress)
	if err != nil {
		return nil, err
	}

	var (
		totalSuccess, totalFailed sql.NullInt64
		avgExecution              sql.NullFloat64
		totalFacts                sql.NullInt64
	)
	err = r.db.QueryRowContext(ctx, r.dialect.Rebind(`
	SELECT
		SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		AVG(CASE WHEN status = ? THEN execution_time_seconds ELSE NULL END),
		SUM(CASE WHEN status = ? THEN facts_inserted ELSE 0 END)
	FROM `+TableRunLog),
		string(RunSuccess), string(RunFailed), string(RunSuccess), string(RunSuccess),
	).Scan(&totalSuccess, &totalFailed, &avgExecution, &totalFacts)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("aggregate run log: %w", err)
	}

	return &ETLStateMonitor{
		LastSuccessfulRun:       lastSuccessful,
		LastFailedRun:           lastFailed,
		CurrentRun:              current,
		TotalSuccessfulRuns:     int(totalSuccess.Int64),
		TotalFailedRuns:         int(totalFailed.Int64),
		AvgExecutionTimeSeconds: avgExecution.Float64,
		TotalFactsInserted:      totalFacts.Int64,
	}, nil
}

func scanRunLog(rows *sql.Rows) (ETLRunLog, error) {
	var (
		log    ETLRunLog
		runID  string
		status string
		end    sql.NullTime
	)
	err := rows.Scan(
		&runID, &log.SourcePath, &log.StartTime, &end, &status,
		&log.RowsRead, &log.RowsKept, &log.RowsDropped, &log.FactsInserted, &log.FactsDropped,
		&log.ErrorMessage, &log.ExecutionTimeSeconds,
	)
	if err != nil {
		return log, fmt.Errorf("scan run log: %w", err)
	}

	if log.RunID, err = uuid.Parse(runID); err != nil {
		return log, fmt.Errorf("parse run id %q: %w", runID, err)
	}
	log.Status = RunStatus(status)
	if end.Valid {
		t := end.Time
		log.EndTime = &t
	}
	return log, nil
}
