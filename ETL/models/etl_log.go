package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunSuccess    RunStatus = "success"
	RunFailed     RunStatus = "failed"
)

// ETLRunLog is one row of the run log.
type ETLRunLog struct {
	RunID                uuid.UUID  `json:"run_id"`
	SourcePath           string     `json:"source_path"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	Status               RunStatus  `json:"status"`
	RowsRead             int        `json:"rows_read"`
	RowsKept             int        `json:"rows_kept"`
	RowsDropped          int        `json:"rows_dropped"`
	FactsInserted        int64      `json:"facts_inserted"`
	FactsDropped         int        `json:"facts_dropped"`
	ErrorMessage         string     `json:"error_message,omitempty"`
	ExecutionTimeSeconds float64    `json:"execution_time_seconds"`
}

// ETLLogRepository stores the history of pipeline runs.
type ETLLogRepository interface {
	// CreateETLLogTable creates the run log table if it does not exist.
	CreateETLLogTable(ctx context.Context) error

	// CreateLogEntry records the start of a run.
	CreateLogEntry(ctx context.Context, runID uuid.UUID, sourcePath string, startTime time.Time) error

	// UpdateLogEntrySuccess records the counts of a finished run.
	UpdateLogEntrySuccess(ctx context.Context, summary RunSummary) error

	// UpdateLogEntryFailure records why a run failed.
	UpdateLogEntryFailure(ctx context.Context, runID uuid.UUID, endTime time.Time, errorMessage string) error

	// GetLastSuccessfulRun returns nil when no run succeeded yet.
	GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error)

	// GetRecentRuns returns up to limit runs, newest first.
	GetRecentRuns(ctx context.Context, limit int) ([]ETLRunLog, error)

	// GetETLStateMonitor aggregates the run log.
	GetETLStateMonitor(ctx context.Context) (*ETLStateMonitor, error)
}

// ETLStateMonitor summarises the run log for the dashboard.
type ETLStateMonitor struct {
	LastSuccessfulRun       *ETLRunLog `json:"last_successful_run"`
	LastFailedRun           *ETLRunLog `json:"last_failed_run,omitempty"`
	CurrentRun              *ETLRunLog `json:"current_run,omitempty"`
	TotalSuccessfulRuns     int        `json:"total_successful_runs"`
	TotalFailedRuns         int        `json:"total_failed_runs"`
	AvgExecutionTimeSeconds float64    `json:"avg_execution_time_seconds"`
	TotalFactsInserted      int64      `json:"total_facts_inserted"`
}
