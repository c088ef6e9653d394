package load

import (
	"context"
	"fmt"

	"github.com/jslozanod/etl-workshop-1/ETL/models"
	"github.com/jslozanod/etl-workshop-1/ETL/utils"
	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

// DimensionLoader upserts the five dimensions.
type DimensionLoader struct {
	dialect          warehouse.Dialect
	logger           *utils.ETLLogger
	batchSize        int
	uniqueCandidates bool
}

// NewDimensionLoader creates a new DimensionLoader
func NewDimensionLoader(dialect warehouse.Dialect, logger *utils.ETLLogger, opts Options) *DimensionLoader {
	return &DimensionLoader{
		dialect:          dialect,
		logger:           logger,
		batchSize:        opts.BatchSize,
		uniqueCandidates: opts.UniqueCandidates,
	}
}

// dimensionInsert is one dimension ready to be written.
type dimensionInsert struct {
	name     string
	table    string
	columns  []string
	conflict []string
	rows     [][]any
}

// Load writes every dimension of data through q. Country, seniority,
// technology and date values already present are skipped. Candidates are
// always inserted unless unique candidates are enabled.
func (l *DimensionLoader) Load(ctx context.Context, q warehouse.Execer, data *models.TransformedData, result *models.LoadResult) error {
	for _, dim := range l.inserts(data) {
		inserted, err := l.insert(ctx, q, dim)
		if err != nil {
			return fmt.Errorf("%s: %w", dim.table, err)
		}
		result.DimensionRowsInserted[dim.name] = inserted
		l.logger.Debug("dimension loaded", "dimension", dim.name, "rows", len(dim.rows), "inserted", inserted)
	}
	return nil
}

func (l *DimensionLoader) inserts(data *models.TransformedData) []dimensionInsert {
	candidates := dimensionInsert{
		name:    models.DimensionCandidate,
		table:   warehouse.TableCandidate,
		columns: []string{"first_name", "last_name", "email"},
		rows:    make([][]any, 0, len(data.Candidates)),
	}
	if l.uniqueCandidates {
		candidates.conflict = candidates.columns
	}
	for _, c := range data.Candidates {
		candidates.rows = append(candidates.rows, []any{c.FirstName, c.LastName, c.Email})
	}

	countries := dimensionInsert{
		name:     models.DimensionCountry,
		table:    warehouse.TableCountry,
		columns:  []string{"country"},
		conflict: []string{"country"},
	}
	for _, c := range data.Countries {
		countries.rows = append(countries.rows, []any{c.Country})
	}

	dates := dimensionInsert{
		name:     models.DimensionDate,
		table:    warehouse.TableDate,
		columns:  []string{"application_date", "year", "month", "day"},
		conflict: []string{"application_date"},
	}
	for _, d := range data.Dates {
		dates.rows = append(dates.rows, []any{d.NaturalKey(), d.Year, d.Month, d.Day})
	}

	seniorities := dimensionInsert{
		name:     models.DimensionSeniority,
		table:    warehouse.TableSeniority,
		columns:  []string{"seniority"},
		conflict: []string{"seniority"},
	}
	for _, s := range data.Seniorities {
		seniorities.rows = append(seniorities.rows, []any{s.Seniority})
	}

	technologies := dimensionInsert{
		name:     models.DimensionTechnology,
		table:    warehouse.TableTechnology,
		columns:  []string{"technology"},
		conflict: []string{"technology"},
	}
	for _, t := range data.Technologies {
		technologies.rows = append(technologies.rows, []any{t.Technology})
	}

	return []dimensionInsert{candidates, countries, dates, seniorities, technologies}
}

// insert writes rows in chunks and returns how many rows were created.
func (l *DimensionLoader) insert(ctx context.Context, q warehouse.Execer, dim dimensionInsert) (int64, error) {
	var inserted int64
	err := chunk(dim.rows, l.dialect.BatchRows(l.batchSize, len(dim.columns)), func(rows [][]any) error {
		query := l.dialect.InsertSQL(dim.table, dim.columns, len(rows))
		if dim.conflict != nil {
			query = l.dialect.InsertIgnoreSQL(dim.table, dim.columns, dim.conflict, len(rows))
		}

		res, err := q.ExecContext(ctx, query, flatten(rows)...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
		return nil
	})
	return inserted, err
}

// chunk calls fn for consecutive slices of at most size rows.
func chunk(rows [][]any, size int, fn func([][]any) error) error {
	if size < 1 {
		size = 1
	}
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		if err := fn(rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func flatten(rows [][]any) []any {
	if len(rows) == 0 {
		return nil
	}
	args := make([]any, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		args = append(args, row...)
	}
	return args
}
