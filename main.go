// Command dashboard serves the KPI dashboard over the warehouse: a JSON API,
// a websocket feed of KPI snapshots and Prometheus metrics.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-co-op/gocron"
	"github.com/gorilla/mux"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/jslozanod/etl-workshop-1/ETL/config"
	"github.com/jslozanod/etl-workshop-1/ETL/metrics"
	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/reporting"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
	"github.com/jslozanod/etl-workshop-1/routes"
	"github.com/jslozanod/etl-workshop-1/websocket"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 5 * time.Second
)

type dashboard struct {
	cfg    *config.Config
	logger *utils.ETLLogger
	hub    *websocket.Manager
	store  *routes.KPIStore
	server *http.Server
}

func newDashboard(ctx context.Context, cfg *config.Config, db *sql.DB, dialect warehouse.Dialect, logger *utils.ETLLogger) (*dashboard, error) {
	if cfg.Load.EnsureSchema {
		opts := warehouse.SchemaOptions{UniqueCandidates: cfg.Load.UniqueCandidates}
		if err := warehouse.EnsureSchema(ctx, db, dialect, opts); err != nil {
			return nil, err
		}
	} else if err := warehouse.VerifySchema(ctx, db); err != nil {
		return nil, err
	}

	runs := models.NewSQLETLLogRepository(db, dialect)
	if err := runs.CreateETLLogTable(ctx); err != nil {
		return nil, fmt.Errorf("create run log table: %w", err)
	}

	m := metrics.NewManager()
	hub := websocket.NewManager(logger, m.SetWebsocketClients)
	reporter := reporting.NewReporter(db, dialect, logger, reporting.Options{
		Countries:       cfg.Report.Countries,
		TopTechnologies: cfg.Report.TopTechnologies,
	})
	store := routes.NewKPIStore(reporter, runs, hub, m, logger)

	router := mux.NewRouter()
	routes.SetupRoutes(router, routes.Dependencies{
		DB:      db,
		Store:   store,
		Runs:    runs,
		Hub:     hub,
		Metrics: m,
	})

	return &dashboard{
		cfg:    cfg,
		logger: logger.Named("server"),
		hub:    hub,
		store:  store,
		server: &http.Server{
			Handler:      router,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
	}, nil
}

// Run serves on ln and refreshes the KPI snapshot on schedule until ctx is
// done.
func (d *dashboard) Run(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(d.cfg.Dashboard.RefreshInterval).Do(func() {
		_, _ = d.store.Refresh(egctx)
	}); err != nil {
		return fmt.Errorf("schedule kpi refresh: %w", err)
	}

	eg.Go(func() error {
		d.hub.Run(egctx)
		return nil
	})
	eg.Go(func() error {
		scheduler.StartAsync()
		<-egctx.Done()
		scheduler.Stop()
		return nil
	})

	eg.Go(func() error {
		d.logger.Info("dashboard listening", "addr", ln.Addr().String(), "refresh_interval", d.cfg.Dashboard.RefreshInterval)
		if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		d.logger.Info("shutting down dashboard")
		return d.server.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func run(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("dashboard", pflag.ContinueOnError)
	cfgFile := flags.String("config", "", "YAML config file (default $ETL_CONFIG)")
	flags.String("addr", ":8080", "listen address")
	flags.Duration("refresh-interval", time.Minute, "KPI snapshot refresh interval")
	flags.String("driver", "", "warehouse driver: pgx, postgres, mysql, sqlite, duckdb")
	flags.String("db-path", "", "database file for sqlite and duckdb")
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.String("log-format", "text", "text or json")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgFile, flags)
	if err != nil {
		return err
	}
	logger, err := utils.NewETLLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	db, dialect, err := config.ConnectWarehouse(ctx, cfg.Warehouse)
	if err != nil {
		return err
	}
	defer func() {
		if err := config.CloseWarehouse(db); err != nil {
			logger.Warn("close warehouse", "error", err)
		}
	}()

	d, err := newDashboard(ctx, cfg, db, dialect, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Dashboard.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Dashboard.Addr, err)
	}
	return d.Run(ctx, ln)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
