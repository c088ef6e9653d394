package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ETLLogger is the leveled logger shared by every ETL phase.
type ETLLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewETLLogger builds a logger writing to w in "text" or "json" format.
func NewETLLogger(w io.Writer, format, level string) (*ETLLogger, error) {
	if w == nil {
		w = os.Stderr
	}

	lv := new(slog.LevelVar)
	if err := setLevel(lv, level); err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}

	return &ETLLogger{logger: slog.New(h), level: lv}, nil
}

// NewDiscardLogger returns a logger that drops everything. Used in tests.
func NewDiscardLogger() *ETLLogger {
	return &ETLLogger{logger: slog.New(slog.DiscardHandler), level: new(slog.LevelVar)}
}

func setLevel(lv *slog.LevelVar, level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lv.Set(slog.LevelDebug)
	case "", "info":
		lv.Set(slog.LevelInfo)
	case "warn", "warning":
		lv.Set(slog.LevelWarn)
	case "error":
		lv.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %s", level)
	}
	return nil
}

// With returns a logger that adds args to every record.
func (l *ETLLogger) With(args ...any) *ETLLogger {
	return &ETLLogger{logger: l.logger.With(args...), level: l.level}
}

// Named returns a logger scoped to a component.
func (l *ETLLogger) Named(component string) *ETLLogger {
	return l.With("component", component)
}

// Slog exposes the underlying logger for libraries that take *slog.Logger.
func (l *ETLLogger) Slog() *slog.Logger {
	return l.logger
}

// Info logs an informational message
func (l *ETLLogger) Info(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn logs a recoverable problem.
func (l *ETLLogger) Warn(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error logs an error
func (l *ETLLogger) Error(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelError, msg, args...)
}

// Debug logs only when the level is debug.
func (l *ETLLogger) Debug(msg string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelDebug, msg, args...)
}

// LogETLStart logs the start of a pipeline run.
func (l *ETLLogger) LogETLStart(runID, source string) {
	l.Info("etl run started", "run_id", runID, "source", source)
}

// LogETLComplete logs the end of a pipeline run.
func (l *ETLLogger) LogETLComplete(startTime time.Time, rowsRead, rowsKept int, factsInserted int64) {
	l.Info("etl run completed",
		"duration", time.Since(startTime),
		"rows_read", rowsRead,
		"rows_kept", rowsKept,
		"facts_inserted", factsInserted,
	)
}

// LogExtractStart logs the start of the extract phase.
func (l *ETLLogger) LogExtractStart(source string) {
	l.Info("extract started", "source", source)
}

// LogExtractComplete logs the end of the extract phase.
func (l *ETLLogger) LogExtractComplete(records int, duration time.Duration) {
	l.Info("extract completed", "records", records, "duration", duration)
}

// LogTransformComplete logs the end of the transform phase.
func (l *ETLLogger) LogTransformComplete(read, kept, dropped int, duration time.Duration) {
	l.Info("transform completed", "rows_read", read, "rows_kept", kept, "rows_dropped", dropped, "duration", duration)
}

// LogLoadComplete logs the end of the load phase.
func (l *ETLLogger) LogLoadComplete(inserted int64, dropped int, duration time.Duration) {
	l.Info("load completed", "facts_inserted", inserted, "facts_dropped", dropped, "duration", duration)
}
