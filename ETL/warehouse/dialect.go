// Package warehouse holds the SQL differences between the supported warehouse
// engines and the star schema DDL.
package warehouse

import (
	"fmt"
	"strings"
	"time"
)

// Driver names accepted in configuration. Each maps to a database/sql driver
// registered by the package that imports it.
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverDuckDB   = "duckdb"
)

// Dialect describes how to talk to one warehouse engine.
type Dialect struct {
	name          string
	driver        string
	numbered      bool
	upsertNoop    bool
	sequences     bool
	copyIn        bool
	textType      string
	keyType       string
	timestampType string
	maxParams     int
	tableOptions  string
}

var dialects = map[string]Dialect{
	DriverPgx: {
		name: "postgres", driver: DriverPgx, numbered: true,
		textType: "TEXT", keyType: "SERIAL PRIMARY KEY", timestampType: "TIMESTAMPTZ",
		maxParams: 65535,
	},
	DriverPostgres: {
		name: "postgres", driver: DriverPostgres, numbered: true, copyIn: true,
		textType: "TEXT", keyType: "SERIAL PRIMARY KEY", timestampType: "TIMESTAMPTZ",
		maxParams: 65535,
	},
	DriverMySQL: {
		name: "mysql", driver: DriverMySQL, upsertNoop: true,
		textType: "VARCHAR(255)", keyType: "INT AUTO_INCREMENT PRIMARY KEY", timestampType: "DATETIME(6)",
		maxParams: 65535,
		// Binary collation: dimension values must compare byte for byte, as
		// the key maps read back from them do.
		tableOptions: "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin",
	},
	DriverSQLite: {
		name: "sqlite", driver: DriverSQLite,
		textType: "TEXT", keyType: "INTEGER PRIMARY KEY AUTOINCREMENT", timestampType: "TIMESTAMP",
		maxParams: 32766,
	},
	DriverDuckDB: {
		name: "duckdb", driver: DriverDuckDB, sequences: true,
		textType: "VARCHAR", keyType: "INTEGER PRIMARY KEY", timestampType: "TIMESTAMP",
		maxParams: 65535,
	},
}

// ForDriver returns the dialect for a configured driver name.
func ForDriver(driver string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported warehouse driver %q", driver)
	}
	return d, nil
}

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{DriverPgx, DriverPostgres, DriverMySQL, DriverSQLite, DriverDuckDB}
}

// Name is the engine family, e.g. "postgres" for both pgx and lib/pq.
func (d Dialect) Name() string { return d.name }

// Driver is the database/sql driver name.
func (d Dialect) Driver() string { return d.driver }

// SupportsCopyIn reports whether bulk loads can use COPY through lib/pq.
func (d Dialect) SupportsCopyIn() bool { return d.copyIn }

// TableOptions is appended to every CREATE TABLE statement.
func (d Dialect) TableOptions() string { return d.tableOptions }

// MaxParams is the bind parameter limit of a single statement.
func (d Dialect) MaxParams() int { return d.maxParams }

// Placeholder returns the n-th (1-based) bind parameter marker.
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Rebind rewrites '?' markers of a query to the dialect's placeholders.
// Markers inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteString(d.Placeholder(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// InsertSQL builds a multi-row INSERT for rows tuples of columns.
func (d Dialect) InsertSQL(table string, columns []string, rows int) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), d.valuesList(len(columns), rows))
}

// InsertIgnoreSQL builds a multi-row INSERT that skips rows colliding on the
// unique conflict columns. Any other error still fails the statement; MySQL
// gets a no-op ON DUPLICATE KEY UPDATE since INSERT IGNORE would also
// swallow truncation and type errors.
func (d Dialect) InsertIgnoreSQL(table string, columns, conflict []string, rows int) string {
	if d.upsertNoop {
		return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s = %s",
			d.InsertSQL(table, columns, rows), conflict[0], conflict[0])
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING",
		d.InsertSQL(table, columns, rows), strings.Join(conflict, ", "))
}

// BatchRows caps a requested batch size so that one statement stays under the
// bind parameter limit.
func (d Dialect) BatchRows(requested, columns int) int {
	limit := d.maxParams / columns
	if requested <= 0 || requested > limit {
		return limit
	}
	return requested
}

func (d Dialect) valuesList(columns, rows int) string {
	var b strings.Builder
	n := 0
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < columns; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			n++
			b.WriteString(d.Placeholder(n))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// NormalizeDate converts a date value scanned from any supported driver into
// a YYYY-MM-DD string.
func NormalizeDate(v any) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02"), nil
	case string:
		return normalizeDateString(t)
	case []byte:
		return normalizeDateString(string(t))
	default:
		return "", fmt.Errorf("unexpected date value %T", v)
	}
}

func normalizeDateString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return "", fmt.Errorf("unexpected date value %q", s)
	}
	if _, err := time.Parse("2006-01-02", s[:10]); err != nil {
		return "", fmt.Errorf("unexpected date value %q: %w", s, err)
	}
	return s[:10], nil
}
