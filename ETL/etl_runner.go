package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/jslozanod/etl-workshop-1/ETL/config"
	"github.com/jslozanod/etl-workshop-1/ETL/extractors"
	"github.com/jslozanod/etl-workshop-1/ETL/load"
	"github.com/jslozanod/etl-workshop-1/ETL/metrics"
	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/reporting"
	"github.com/jslozanod/etl-workshop-1/ETL/transform"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

// ETLRunner wires the pipeline phases, the run log and reporting to one
// warehouse connection.
type ETLRunner struct {
	cfg         *config.Config
	db          *sql.DB
	dialect     warehouse.Dialect
	logger      *utils.ETLLogger
	extractor   *extractors.Extractor
	transformer *transform.Transformer
	loadManager *load.LoadManager
	etlLogRepo  models.ETLLogRepository
	reporter    *reporting.Reporter
	metrics     *metrics.Manager
}

// NewETLRunner connects to the configured warehouse and builds the pipeline.
func NewETLRunner(ctx context.Context, cfg *config.Config, logger *utils.ETLLogger) (*ETLRunner, error) {
	db, dialect, err := config.ConnectWarehouse(ctx, cfg.Warehouse)
	if err != nil {
		return nil, err
	}
	return newETLRunner(cfg, db, dialect, logger), nil
}

func newETLRunner(cfg *config.Config, db *sql.DB, dialect warehouse.Dialect, logger *utils.ETLLogger) *ETLRunner {
	return &ETLRunner{
		cfg:         cfg,
		db:          db,
		dialect:     dialect,
		logger:      logger,
		extractor:   extractors.NewExtractor(logger),
		transformer: transform.NewTransformer(logger, transform.Options{DateLayouts: cfg.Pipeline.DateLayouts}),
		loadManager: load.NewLoadManager(db, dialect, logger, load.Options{
			UniqueCandidates:  cfg.Load.UniqueCandidates,
			SingleTransaction: cfg.Load.SingleTransaction,
			BatchSize:         cfg.Load.BatchSize,
		}),
		etlLogRepo: models.NewSQLETLLogRepository(db, dialect),
		reporter: reporting.NewReporter(db, dialect, logger, reporting.Options{
			OutputDir:       cfg.Report.OutputDir,
			ProcessedDir:    cfg.Report.ProcessedDir,
			Countries:       cfg.Report.Countries,
			TopTechnologies: cfg.Report.TopTechnologies,
			Compress:        cfg.Report.Compress,
		}),
		metrics: metrics.NewManager(),
	}
}

// Close closes the warehouse connection.
func (r *ETLRunner) Close() error {
	r.logger.Debug("closing etl runner")
	return config.CloseWarehouse(r.db)
}

// PrepareSchema creates the star schema, or only checks it when schema
// creation is disabled, and creates the run log table.
func (r *ETLRunner) PrepareSchema(ctx context.Context) error {
	if r.cfg.Load.EnsureSchema {
		opts := warehouse.SchemaOptions{UniqueCandidates: r.cfg.Load.UniqueCandidates}
		if err := warehouse.EnsureSchema(ctx, r.db, r.dialect, opts); err != nil {
			return err
		}
	} else if err := warehouse.VerifySchema(ctx, r.db); err != nil {
		return err
	}

	if err := r.etlLogRepo.CreateETLLogTable(ctx); err != nil {
		return fmt.Errorf("create run log table: %w", err)
	}
	return nil
}

// ExecuteETL runs extract, transform and load once and records the run.
func (r *ETLRunner) ExecuteETL(ctx context.Context) (*models.RunSummary, error) {
	if err := r.cfg.RequireInput(); err != nil {
		return nil, err
	}
	source := r.cfg.Pipeline.InputPath
	runID := uuid.New()
	startTime := time.Now().UTC()

	r.logger.LogETLStart(runID.String(), source)
	if err := r.etlLogRepo.CreateLogEntry(ctx, runID, source, startTime); err != nil {
		return nil, fmt.Errorf("create run log entry: %w", err)
	}

	phase := time.Now()
	extracted, err := r.extractor.Extract(ctx, source)
	if err != nil {
		return nil, r.fail(ctx, runID, fmt.Errorf("extract: %w", err))
	}
	r.metrics.ObservePhase(metrics.PhaseExtract, time.Since(phase))

	phase = time.Now()
	transformed, err := r.transformer.Transform(extracted)
	if err != nil {
		return nil, r.fail(ctx, runID, fmt.Errorf("transform: %w", err))
	}
	r.metrics.ObservePhase(metrics.PhaseTransform, time.Since(phase))

	phase = time.Now()
	result, err := r.loadManager.Load(ctx, transformed)
	if err != nil {
		return nil, r.fail(ctx, runID, fmt.Errorf("load: %w", err))
	}
	r.metrics.ObservePhase(metrics.PhaseLoad, time.Since(phase))

	summary := models.RunSummary{
		RunID:      runID,
		SourcePath: source,
		StartedAt:  startTime,
		FinishedAt: time.Now().UTC(),
		Transform:  transformed.Summary,
		Load:       *result,
	}
	if err := r.etlLogRepo.UpdateLogEntrySuccess(ctx, summary); err != nil {
		r.logger.Error("run log update failed", "run_id", runID.String(), "error", err)
	}
	r.metrics.ObserveRun(summary)
	r.writeMetrics()

	r.logger.LogETLComplete(startTime, summary.Transform.RowsRead, summary.Transform.RowsKept, summary.Load.FactsInserted)
	return &summary, nil
}

// fail records a failed run and returns err unchanged.
func (r *ETLRunner) fail(ctx context.Context, runID uuid.UUID, err error) error {
	r.logger.Error("etl run failed", "run_id", runID.String(), "error", err)

	// The run context may be the reason for the failure.
	if uerr := r.etlLogRepo.UpdateLogEntryFailure(context.WithoutCancel(ctx), runID, time.Now().UTC(), err.Error()); uerr != nil {
		r.logger.Error("run log update failed", "run_id", runID.String(), "error", uerr)
	}
	r.metrics.RecordRunFailure()
	r.writeMetrics()
	return err
}

func (r *ETLRunner) writeMetrics() {
	path := r.cfg.Metrics.TextfilePath
	if path == "" {
		return
	}
	if err := r.metrics.WriteTextfile(path); err != nil {
		r.logger.Warn("metrics textfile not written", "path", path, "error", err)
		return
	}
	r.logger.Debug("metrics textfile written", "path", path)
}

// GenerateReports runs the KPI reports and prints the dashboard to w.
func (r *ETLRunner) GenerateReports(ctx context.Context, w io.Writer) (*reporting.Report, error) {
	start := time.Now()
	report, err := r.reporter.Run(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	r.metrics.ObservePhase(metrics.PhaseReport, time.Since(start))
	return report, nil
}

// History returns the latest runs, newest first.
func (r *ETLRunner) History(ctx context.Context, limit int) ([]models.ETLRunLog, error) {
	return r.etlLogRepo.GetRecentRuns(ctx, limit)
}

// StartScheduler regenerates the reports every report interval, running the
// pipeline first when withETL is set, until ctx is done.
func (r *ETLRunner) StartScheduler(ctx context.Context, w io.Writer, withETL bool) error {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	r.logger.Info("scheduler started", "interval", r.cfg.Report.Interval, "with_etl", withETL)

	_, err := scheduler.Every(r.cfg.Report.Interval).Do(func() {
		if withETL {
			summary, err := r.ExecuteETL(ctx)
			if err != nil {
				r.logger.Error("scheduled etl run failed", "error", err)
				return
			}
			printSummary(w, summary)
		}
		if _, err := r.GenerateReports(ctx, w); err != nil {
			r.logger.Error("scheduled report failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reports: %w", err)
	}

	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()

	r.logger.Info("scheduler stopped")
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
