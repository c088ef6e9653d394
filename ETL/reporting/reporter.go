package reporting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jslozanod/etl-workshop-1/ETL/utils"
	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

// DashboardFile is the name of the combined chart file in the output dir.
const DashboardFile = "dashboard_kpis.txt"

// Options configures where and how reports are written.
type Options struct {
	OutputDir       string
	ProcessedDir    string
	Countries       []string
	TopTechnologies int
	Compress        bool
}

// Report is the outcome of one reporting run.
type Report struct {
	GeneratedAt time.Time
	Results     []*Result
	Extracts    []string
	Charts      []string
}

// Reporter runs the KPI queries against a warehouse.
type Reporter struct {
	db      warehouse.Queryer
	dialect warehouse.Dialect
	logger  *utils.ETLLogger
	opts    Options
}

// NewReporter creates a reporter.
func NewReporter(db warehouse.Queryer, dialect warehouse.Dialect, logger *utils.ETLLogger, opts Options) *Reporter {
	return &Reporter{
		db:      db,
		dialect: dialect,
		logger:  logger.Named("report"),
		opts:    opts,
	}
}

// Query runs a single KPI by name.
func (r *Reporter) Query(ctx context.Context, name string) (*Result, error) {
	def, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return def.Execute(ctx, r.db, r.dialect, r.opts.Countries)
}

// QueryAll runs every KPI in report order.
func (r *Reporter) QueryAll(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, 0, len(definitions))
	for _, def := range definitions {
		res, err := def.Execute(ctx, r.db, r.dialect, r.opts.Countries)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("kpi computed", "kpi", def.Name, "rows", len(res.Rows))
		results = append(results, res)
	}
	return results, nil
}

// Run computes every KPI, writes CSV extracts to the processed dir and text
// charts to the output dir, and prints the dashboard to w when w is not nil.
func (r *Reporter) Run(ctx context.Context, w io.Writer) (*Report, error) {
	start := time.Now()
	results, err := r.QueryAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{GeneratedAt: start.UTC(), Results: results}
	for i, res := range results {
		path, err := ExportCSV(r.opts.ProcessedDir, definitions[i].File, res, r.opts.Compress)
		if err != nil {
			return nil, err
		}
		report.Extracts = append(report.Extracts, path)
		r.logger.Debug("kpi extract saved", "path", path)

		var chart bytes.Buffer
		if err := RenderChart(&chart, res, r.opts.TopTechnologies); err != nil {
			return nil, err
		}
		path, err = r.writeChart(definitions[i].File+".txt", chart.Bytes())
		if err != nil {
			return nil, err
		}
		report.Charts = append(report.Charts, path)
	}

	var dashboard bytes.Buffer
	if err := RenderDashboard(&dashboard, results, r.opts.TopTechnologies); err != nil {
		return nil, err
	}
	path, err := r.writeChart(DashboardFile, dashboard.Bytes())
	if err != nil {
		return nil, err
	}
	report.Charts = append(report.Charts, path)

	if w != nil {
		if _, err := w.Write(dashboard.Bytes()); err != nil {
			return nil, fmt.Errorf("print dashboard: %w", err)
		}
	}

	r.logger.Info("reports generated",
		"kpis", len(results),
		"extracts_dir", r.opts.ProcessedDir,
		"charts_dir", r.opts.OutputDir,
		"duration", time.Since(start))
	return report, nil
}

func (r *Reporter) writeChart(name string, data []byte) (string, error) {
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", r.opts.OutputDir, err)
	}
	path := filepath.Join(r.opts.OutputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
