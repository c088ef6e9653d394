package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE and MySQL error number for a table that does not exist.
const (
	undefinedTableState = "42P01"
	mysqlNoSuchTable    = 1146
)

// Star schema tables.
const (
	TableCandidate   = "dim_candidate"
	TableCountry     = "dim_country"
	TableDate        = "dim_date"
	TableSeniority   = "dim_seniority"
	TableTechnology  = "dim_technology"
	TableApplication = "fact_application"
)

// FactColumns is the insert column order of fact_application.
var FactColumns = []string{
	"candidate_key", "country_key", "date_key", "seniority_key", "technology_key",
	"years_of_experience", "code_challenge_score", "technical_interview_score", "is_hired",
}

// ErrSchemaMissing is returned when a star schema table does not exist.
var ErrSchemaMissing = errors.New("warehouse schema missing")

// SchemaOptions tunes the generated DDL.
type SchemaOptions struct {
	// UniqueCandidates adds UNIQUE(first_name, last_name, email) to dim_candidate.
	UniqueCandidates bool
}

// Execer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Tables lists the star schema tables in creation order.
func Tables() []string {
	return []string{TableCandidate, TableCountry, TableDate, TableSeniority, TableTechnology, TableApplication}
}

// SchemaStatements returns the DDL of the star schema for a dialect. Every
// statement is safe to run against an existing schema.
func SchemaStatements(d Dialect, opts SchemaOptions) []string {
	text := d.textType + " NOT NULL"

	candidateCols := []string{
		"first_name " + text,
		"last_name " + text,
		"email " + text,
	}
	if opts.UniqueCandidates {
		candidateCols = append(candidateCols, "UNIQUE (first_name, last_name, email)")
	}

	var stmts []string
	stmts = append(stmts, d.createTable(TableCandidate, "candidate_key", candidateCols)...)
	stmts = append(stmts, d.createTable(TableCountry, "country_key", []string{"country " + text + " UNIQUE"})...)
	stmts = append(stmts, d.createTable(TableDate, "date_key", []string{
		"application_date DATE NOT NULL UNIQUE",
		"year INTEGER NOT NULL",
		"month INTEGER NOT NULL",
		"day INTEGER NOT NULL",
	})...)
	stmts = append(stmts, d.createTable(TableSeniority, "seniority_key", []string{"seniority " + text + " UNIQUE"})...)
	stmts = append(stmts, d.createTable(TableTechnology, "technology_key", []string{"technology " + text + " UNIQUE"})...)
	stmts = append(stmts, d.createTable(TableApplication, "application_key", []string{
		"candidate_key INTEGER NOT NULL",
		"country_key INTEGER NOT NULL",
		"date_key INTEGER NOT NULL",
		"seniority_key INTEGER NOT NULL",
		"technology_key INTEGER NOT NULL",
		"years_of_experience INTEGER NOT NULL",
		"code_challenge_score INTEGER NOT NULL",
		"technical_interview_score INTEGER NOT NULL",
		"is_hired BOOLEAN NOT NULL",
		"FOREIGN KEY (candidate_key) REFERENCES dim_candidate (candidate_key)",
		"FOREIGN KEY (country_key) REFERENCES dim_country (country_key)",
		"FOREIGN KEY (date_key) REFERENCES dim_date (date_key)",
		"FOREIGN KEY (seniority_key) REFERENCES dim_seniority (seniority_key)",
		"FOREIGN KEY (technology_key) REFERENCES dim_technology (technology_key)",
	})...)
	return stmts
}

// createTable renders CREATE TABLE with a generated integer surrogate key.
func (d Dialect) createTable(table, key string, columns []string) []string {
	stmts, keyDef := d.IdentityColumn(key)
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s", table, keyDef)
	for _, col := range columns {
		ddl += ",\n\t" + col
	}
	ddl += "\n)"
	if d.tableOptions != "" {
		ddl += " " + d.tableOptions
	}
	return append(stmts, ddl)
}

// IdentityColumn renders a generated integer primary key column definition,
// with the statements it depends on. DuckDB has no auto-increment, so the key
// defaults to a sequence there.
func (d Dialect) IdentityColumn(key string) (prelude []string, column string) {
	if d.sequences {
		seq := "seq_" + key
		return []string{fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s START 1", seq)},
			fmt.Sprintf("%s %s DEFAULT nextval('%s')", key, d.keyType, seq)
	}
	return nil, key + " " + d.keyType
}

// TextType is the column type used for short strings.
func (d Dialect) TextType() string { return d.textType }

// TimestampType is the column type used for instants.
func (d Dialect) TimestampType() string { return d.timestampType }

// EnsureSchema creates any missing star schema table.
func EnsureSchema(ctx context.Context, db Execer, d Dialect, opts SchemaOptions) error {
	for _, stmt := range SchemaStatements(d, opts) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Queryer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// VerifySchema checks that every star schema table exists. Errors other than
// an undefined table are returned as they are.
func VerifySchema(ctx context.Context, db Queryer) error {
	var missing []string
	for _, table := range Tables() {
		rows, err := db.QueryContext(ctx, "SELECT 1 FROM "+table+" WHERE 1 = 0")
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !IsUndefinedTable(err) {
				return fmt.Errorf("verify schema: %s: %w", table, err)
			}
			missing = append(missing, table)
			continue
		}
		_ = rows.Close()
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrSchemaMissing, strings.Join(missing, ", "))
	}
	return nil
}

// IsUndefinedTable reports whether err is a driver's "table does not exist"
// error.
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == undefinedTableState
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == undefinedTableState
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlNoSuchTable
	}

	// sqlite and duckdb only report it in the message.
	msg := err.Error()
	return strings.Contains(msg, "no such table") ||
		(strings.Contains(msg, "Catalog Error") && strings.Contains(msg, "does not exist"))
}
