package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/jslozanod/etl-workshop-1/ETL/config"
	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "etl",
		Short: "Candidate applications ETL",
		Long: `Loads the candidate applications CSV into a star-schema warehouse
and reports hiring KPIs from it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $ETL_CONFIG)")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("log-format", "", "log format (text|json)")
	flags.String("driver", "", "warehouse driver (pgx|postgres|mysql|sqlite|duckdb)")
	flags.String("dsn-host", "", "warehouse host")
	flags.Int("dsn-port", 0, "warehouse port")
	flags.String("database", "", "warehouse database name")
	flags.String("db-path", "", "warehouse file for sqlite and duckdb")

	rootCmd.AddCommand(
		newRunCommand(&cfgFile),
		newReportCommand(&cfgFile),
		newSchemaCommand(&cfgFile),
		newHistoryCommand(&cfgFile),
		newScheduleCommand(&cfgFile),
	)
	return rootCmd
}

func newRunCommand(cfgFile *string) *cobra.Command {
	var withReport bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, transform and load the applications CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, *cfgFile, func(ctx context.Context, r *ETLRunner) error {
				if err := r.PrepareSchema(ctx); err != nil {
					return err
				}
				summary, err := r.ExecuteETL(ctx)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), summary)
				if withReport {
					_, err = r.GenerateReports(ctx, cmd.OutOrStdout())
				}
				return err
			})
		},
	}

	f := cmd.Flags()
	f.StringP("input", "i", "", "applications CSV file")
	f.Bool("unique-candidates", false, "deduplicate candidates by name and email")
	f.Bool("single-transaction", false, "load dimensions and facts in one transaction")
	f.Int("batch-size", 0, "rows per insert statement")
	f.Bool("ensure-schema", true, "create missing warehouse tables")
	f.String("metrics-textfile", "", "write Prometheus metrics to this file after the run")
	f.BoolVar(&withReport, "report", false, "generate the KPI reports after loading")
	addReportFlags(cmd)
	return cmd
}

func newReportCommand(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute the hiring KPIs and write extracts and charts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, *cfgFile, func(ctx context.Context, r *ETLRunner) error {
				report, err := r.GenerateReports(ctx, cmd.OutOrStdout())
				if err != nil {
					return err
				}
				_, _ = color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(),
					"%d extracts in %s, %d charts in %s\n",
					len(report.Extracts), r.cfg.Report.ProcessedDir, len(report.Charts), r.cfg.Report.OutputDir)
				return nil
			})
		},
	}
	addReportFlags(cmd)
	return cmd
}

func newSchemaCommand(cfgFile *string) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create or verify the warehouse schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, *cfgFile, func(ctx context.Context, r *ETLRunner) error {
				if verify {
					r.cfg.Load.EnsureSchema = false
				}
				if err := r.PrepareSchema(ctx); err != nil {
					return err
				}
				_, _ = color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "schema ready on %s\n", r.dialect.Name())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "only check that the tables exist")
	cmd.Flags().Bool("unique-candidates", false, "add a unique constraint on candidates")
	return cmd
}

func newHistoryCommand(cfgFile *string) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, *cfgFile, func(ctx context.Context, r *ETLRunner) error {
				if err := r.etlLogRepo.CreateETLLogTable(ctx); err != nil {
					return err
				}
				runs, err := r.History(ctx, limit)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(runs)
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	return cmd
}

func newScheduleCommand(cfgFile *string) *cobra.Command {
	var withETL bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Regenerate the reports on an interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, *cfgFile, func(ctx context.Context, r *ETLRunner) error {
				if withETL {
					if err := r.PrepareSchema(ctx); err != nil {
						return err
					}
				}
				return r.StartScheduler(ctx, cmd.OutOrStdout(), withETL)
			})
		},
	}
	cmd.Flags().Duration("interval", 0, "time between report runs")
	cmd.Flags().BoolVar(&withETL, "with-etl", false, "run the pipeline before each report")
	cmd.Flags().StringP("input", "i", "", "applications CSV file")
	addReportFlags(cmd)
	return cmd
}

func addReportFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("output-dir", "", "directory for chart files")
	f.String("processed-dir", "", "directory for CSV extracts")
	f.StringSlice("countries", nil, "countries of the country-by-year KPI")
	f.Int("top-technologies", 0, "technologies shown in the technology chart")
	f.Bool("compress", false, "write snappy-compressed extracts")
}

// withRunner loads the configuration, builds a runner and hands it to fn.
func withRunner(cmd *cobra.Command, cfgFile string, fn func(context.Context, *ETLRunner) error) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := utils.NewETLLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runner, err := NewETLRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := runner.Close(); cerr != nil {
			logger.Warn("close warehouse", "error", cerr)
		}
	}()
	return fn(ctx, runner)
}

func printSummary(w io.Writer, s *models.RunSummary) {
	_, _ = color.New(color.FgCyan, color.Bold).Fprintf(w, "\nRun %s\n", s.RunID)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Append([]string{"source", s.SourcePath})
	table.Append([]string{"rows read", strconv.Itoa(s.Transform.RowsRead)})
	table.Append([]string{"rows kept", strconv.Itoa(s.Transform.RowsKept)})
	for _, reason := range s.Transform.Dropped.Reasons() {
		table.Append([]string{"dropped: " + string(reason), strconv.Itoa(s.Transform.Dropped[reason])})
	}
	for _, dim := range []string{
		models.DimensionCandidate, models.DimensionCountry, models.DimensionDate,
		models.DimensionSeniority, models.DimensionTechnology,
	} {
		table.Append([]string{"new " + dim + " rows", strconv.FormatInt(s.Load.DimensionRowsInserted[dim], 10)})
	}
	table.Append([]string{"facts inserted", strconv.FormatInt(s.Load.FactsInserted, 10)})
	for _, reason := range s.Load.FactsDropped.Reasons() {
		table.Append([]string{"dropped: " + string(reason), strconv.Itoa(s.Load.FactsDropped[reason])})
	}
	table.Append([]string{"duration", s.Duration().Round(time.Millisecond).String()})
	table.Render()
}

func printRuns(w io.Writer, runs []models.ETLRunLog) {
	if len(runs) == 0 {
		_, _ = color.New(color.FgYellow).Fprintln(w, "no runs recorded")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Run ID", "Started", "Status", "Read", "Kept", "Dropped", "Facts", "Seconds", "Error"})
	for _, run := range runs {
		table.Append([]string{
			run.RunID.String(),
			run.StartTime.Format(time.RFC3339),
			string(run.Status),
			strconv.Itoa(run.RowsRead),
			strconv.Itoa(run.RowsKept),
			strconv.Itoa(run.RowsDropped),
			strconv.FormatInt(run.FactsInserted, 10),
			fmt.Sprintf("%.2f", run.ExecutionTimeSeconds),
			run.ErrorMessage,
		})
	}
	table.Render()
}
