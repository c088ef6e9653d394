// Package reporting runs the hiring KPIs against the warehouse, exports them
// as CSV extracts and renders them for the terminal.
package reporting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

// KPI names, used in file names and the dashboard API.
const (
	KPIHiresByTechnology  = "hires_by_technology"
	KPIHiresByYear        = "hires_by_year"
	KPIHiresBySeniority   = "hires_by_seniority"
	KPIHiresByCountryYear = "hires_by_country_year"
	KPIHireRate           = "hire_rate"
	KPIAverageScores      = "avg_scores_hired"
)

// ErrUnknownKPI is returned for a KPI name that is not defined.
var ErrUnknownKPI = errors.New("unknown kpi")

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindFloat
)

// Definition describes one KPI query.
type Definition struct {
	Name    string
	Title   string
	File    string
	Columns []string

	kinds []columnKind
	query func(countries []string) (string, []any)
}

// Result is the tabular output of a KPI query. Values are string, int64,
// float64 or nil.
type Result struct {
	Name    string   `json:"name"`
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func static(q string) func([]string) (string, []any) {
	return func([]string) (string, []any) { return q, nil }
}

var definitions = []Definition{
	{
		Name:    KPIHiresByTechnology,
		Title:   "KPI 1 - Hires by Technology",
		File:    "kpi_1_hires_by_technology",
		Columns: []string{"technology", "hires"},
		kinds:   []columnKind{kindText, kindInt},
		query: static(`SELECT t.technology, COUNT(*) AS hires
FROM fact_application f
JOIN dim_technology t ON f.technology_key = t.technology_key
WHERE f.is_hired = TRUE
GROUP BY t.technology
ORDER BY hires DESC, t.technology`),
	},
	{
		Name:    KPIHiresByYear,
		Title:   "KPI 2 - Hires by Year",
		File:    "kpi_2_hires_by_year",
		Columns: []string{"year", "hires"},
		kinds:   []columnKind{kindInt, kindInt},
		query: static(`SELECT d.year, COUNT(*) AS hires
FROM fact_application f
JOIN dim_date d ON f.date_key = d.date_key
WHERE f.is_hired = TRUE
GROUP BY d.year
ORDER BY d.year`),
	},
	{
		Name:    KPIHiresBySeniority,
		Title:   "KPI 3 - Hires by Seniority",
		File:    "kpi_3_hires_by_seniority",
		Columns: []string{"seniority", "hires"},
		kinds:   []columnKind{kindText, kindInt},
		query: static(`SELECT s.seniority, COUNT(*) AS hires
FROM fact_application f
JOIN dim_seniority s ON f.seniority_key = s.seniority_key
WHERE f.is_hired = TRUE
GROUP BY s.seniority
ORDER BY hires DESC, s.seniority`),
	},
	{
		Name:    KPIHiresByCountryYear,
		Title:   "KPI 4 - Hires by Country over Years",
		File:    "kpi_4_hires_by_country_over_years",
		Columns: []string{"country", "year", "hires"},
		kinds:   []columnKind{kindText, kindInt, kindInt},
		query:   countryYearQuery,
	},
	{
		Name:    KPIHireRate,
		Title:   "KPI 5 - Hire Rate",
		File:    "kpi_5_hire_rate",
		Columns: []string{"hire_rate_percent"},
		kinds:   []columnKind{kindFloat},
		query: static(`SELECT
  100.0 * SUM(CASE WHEN is_hired THEN 1 ELSE 0 END) / NULLIF(COUNT(*), 0) AS hire_rate_percent
FROM fact_application`),
	},
	{
		Name:    KPIAverageScores,
		Title:   "KPI 6 - Average Scores (Hired Only)",
		File:    "kpi_6_avg_scores_hired",
		Columns: []string{"avg_code_score", "avg_interview_score"},
		kinds:   []columnKind{kindFloat, kindFloat},
		query: static(`SELECT
  AVG(code_challenge_score) AS avg_code_score,
  AVG(technical_interview_score) AS avg_interview_score
FROM fact_application
WHERE is_hired = TRUE`),
	},
}

// countryYearQuery filters on the configured countries; an empty list keeps
// every country.
func countryYearQuery(countries []string) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT c.country, d.year, COUNT(*) AS hires
FROM fact_application f
JOIN dim_country c ON f.country_key = c.country_key
JOIN dim_date d ON f.date_key = d.date_key
WHERE f.is_hired = TRUE`)

	args := make([]any, 0, len(countries))
	if len(countries) > 0 {
		b.WriteString("\n  AND c.country IN (")
		for i, c := range countries {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('?')
			args = append(args, c)
		}
		b.WriteByte(')')
	}
	b.WriteString("\nGROUP BY c.country, d.year\nORDER BY c.country, d.year")
	return b.String(), args
}

// Definitions returns the KPI definitions in report order.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition of a KPI by name.
func Lookup(name string) (Definition, error) {
	for _, d := range definitions {
		if d.Name == name {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %q", ErrUnknownKPI, name)
}

// SQL renders the definition's query for a dialect.
func (d Definition) SQL(dialect warehouse.Dialect, countries []string) (string, []any) {
	q, args := d.query(countries)
	return dialect.Rebind(q), args
}

// Execute runs the KPI query and normalises the values it returns.
func (d Definition) Execute(ctx context.Context, db warehouse.Queryer, dialect warehouse.Dialect, countries []string) (*Result, error) {
	q, args := d.SQL(dialect, countries)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", d.Name, err)
	}
	defer rows.Close()

	result := &Result{Name: d.Name, Title: d.Title, Columns: d.Columns, Rows: [][]any{}}
	for rows.Next() {
		raw := make([]any, len(d.kinds))
		ptrs := make([]any, len(d.kinds))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", d.Name, err)
		}
		row := make([]any, len(d.kinds))
		for i, kind := range d.kinds {
			v, err := normalize(kind, raw[i])
			if err != nil {
				return nil, fmt.Errorf("%s column %s: %w", d.Name, d.Columns[i], err)
			}
			row[i] = v
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", d.Name, err)
	}
	return result, nil
}

// normalize maps driver values onto string, int64 or float64. Drivers differ:
// numeric comes back as a string from pgx, as bytes from mysql and as a big
// integer for DuckDB HUGEINT sums.
func normalize(kind columnKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch kind {
	case kindText:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case kindInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		case int:
			return int64(n), nil
		case float64:
			return int64(n), nil
		case *big.Int:
			return n.Int64(), nil
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				f, ferr := strconv.ParseFloat(n, 64)
				if ferr != nil {
					return nil, err
				}
				return int64(f), nil
			}
			return i, nil
		}
	case kindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case string:
			return strconv.ParseFloat(n, 64)
		case fmt.Stringer:
			return strconv.ParseFloat(n.String(), 64)
		}
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

// nullFloat reads a float cell, reporting NULL as not valid.
func nullFloat(v any) sql.NullFloat64 {
	switch n := v.(type) {
	case float64:
		return sql.NullFloat64{Float64: n, Valid: true}
	case int64:
		return sql.NullFloat64{Float64: float64(n), Valid: true}
	}
	return sql.NullFloat64{}
}
