package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

// Sentinel errors for callers that use errors.Is.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Config is the full configuration of the ETL and its dashboard.
type Config struct {
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	Warehouse WarehouseConfig `koanf:"warehouse"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Load      LoadConfig      `koanf:"load"`
	Report    ReportConfig    `koanf:"report"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// WarehouseConfig selects and reaches the warehouse database.
type WarehouseConfig struct {
	// Driver is one of pgx, postgres, mysql, sqlite, duckdb.
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	// Path is the database file for sqlite and duckdb.
	Path    string `koanf:"path"`
	SSLMode string `koanf:"sslmode"`

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// PipelineConfig controls extraction and transformation.
type PipelineConfig struct {
	InputPath   string   `koanf:"input_path"`
	DateLayouts []string `koanf:"date_layouts"`
}

// LoadConfig controls the load phase.
type LoadConfig struct {
	UniqueCandidates  bool `koanf:"unique_candidates"`
	SingleTransaction bool `koanf:"single_transaction"`
	BatchSize         int  `koanf:"batch_size"`
	EnsureSchema      bool `koanf:"ensure_schema"`
}

// ReportConfig controls the KPI reports.
type ReportConfig struct {
	OutputDir       string        `koanf:"output_dir"`
	ProcessedDir    string        `koanf:"processed_dir"`
	Countries       []string      `koanf:"countries"`
	TopTechnologies int           `koanf:"top_technologies"`
	Compress        bool          `koanf:"compress"`
	Interval        time.Duration `koanf:"interval"`
}

// DashboardConfig controls the HTTP dashboard.
type DashboardConfig struct {
	Addr            string        `koanf:"addr"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	TextfilePath string `koanf:"textfile_path"`
}

// defaults are the lowest configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"log_level":                   "info",
		"log_format":                  "text",
		"warehouse.driver":            warehouse.DriverPgx,
		"warehouse.host":              "localhost",
		"warehouse.user":              "postgres",
		"warehouse.database":          "etl_dw",
		"warehouse.path":              "etl_dw.db",
		"warehouse.sslmode":           "disable",
		"warehouse.max_open_conns":    10,
		"warehouse.max_idle_conns":    5,
		"warehouse.conn_max_lifetime": "5m",
		"pipeline.input_path":         "data/candidates.csv",
		"load.batch_size":             500,
		"load.ensure_schema":          true,
		"report.output_dir":           "visualizations",
		"report.processed_dir":        "data/processed",
		"report.countries":            []string{"United States", "Brazil", "Colombia", "Ecuador"},
		"report.top_technologies":     15,
		"report.interval":             "1h",
		"dashboard.addr":              ":8080",
		"dashboard.refresh_interval":  "1m",
	}
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if _, err := warehouse.ForDriver(c.Warehouse.Driver); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch c.Warehouse.Driver {
	case warehouse.DriverSQLite:
		if c.Warehouse.Path == "" {
			return fmt.Errorf("%w: warehouse.path is required for %s", ErrInvalidConfig, c.Warehouse.Driver)
		}
	case warehouse.DriverDuckDB:
		// An empty path opens an in-memory database.
	default:
		if c.Warehouse.Host == "" {
			return fmt.Errorf("%w: warehouse.host is required for %s", ErrInvalidConfig, c.Warehouse.Driver)
		}
		if c.Warehouse.Database == "" {
			return fmt.Errorf("%w: warehouse.database is required for %s", ErrInvalidConfig, c.Warehouse.Driver)
		}
	}

	if c.Load.BatchSize <= 0 {
		return fmt.Errorf("%w: load.batch_size must be positive, got %d", ErrInvalidConfig, c.Load.BatchSize)
	}
	if c.Report.TopTechnologies < 0 {
		return fmt.Errorf("%w: report.top_technologies must not be negative", ErrInvalidConfig)
	}
	return nil
}

// RequireInput checks the settings of a pipeline run.
func (c *Config) RequireInput() error {
	if c.Pipeline.InputPath == "" {
		return fmt.Errorf("%w: pipeline.input_path is required", ErrInvalidConfig)
	}
	return nil
}
