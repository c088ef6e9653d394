package warehouse

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestForDriver(t *testing.T) {
	tests := []struct {
		driver   string
		name     string
		copyIn   bool
		expectOK bool
	}{
		{driver: "pgx", name: "postgres", expectOK: true},
		{driver: "postgres", name: "postgres", copyIn: true, expectOK: true},
		{driver: "MySQL", name: "mysql", expectOK: true},
		{driver: " sqlite ", name: "sqlite", expectOK: true},
		{driver: "duckdb", name: "duckdb", expectOK: true},
		{driver: "oracle", expectOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := ForDriver(tt.driver)
			if !tt.expectOK {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unsupported warehouse driver")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
			assert.Equal(t, tt.copyIn, d.SupportsCopyIn())
		})
	}
}

func TestDialect_Rebind(t *testing.T) {
	pg, _ := ForDriver(DriverPgx)
	my, _ := ForDriver(DriverMySQL)

	query := "SELECT * FROM t WHERE a = ? AND b = '?' AND c IN (?, ?)"
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = '?' AND c IN ($2, $3)", pg.Rebind(query))
	assert.Equal(t, query, my.Rebind(query))
}

func TestDialect_InsertIgnoreSQL(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{
			driver: DriverPgx,
			want:   "INSERT INTO dim_country (country) VALUES ($1), ($2) ON CONFLICT (country) DO NOTHING",
		},
		{
			driver: DriverSQLite,
			want:   "INSERT INTO dim_country (country) VALUES (?), (?) ON CONFLICT (country) DO NOTHING",
		},
		{
			driver: DriverMySQL,
			want:   "INSERT INTO dim_country (country) VALUES (?), (?) ON DUPLICATE KEY UPDATE country = country",
		},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := ForDriver(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.InsertIgnoreSQL(TableCountry, []string{"country"}, []string{"country"}, 2))
		})
	}
}

func TestDialect_InsertSQL_MultiColumn(t *testing.T) {
	d, _ := ForDriver(DriverPostgres)
	got := d.InsertSQL(TableDate, []string{"application_date", "year"}, 2)
	assert.Equal(t, "INSERT INTO dim_date (application_date, year) VALUES ($1, $2), ($3, $4)", got)
}

func TestDialect_BatchRows(t *testing.T) {
	d, _ := ForDriver(DriverSQLite)
	assert.Equal(t, 500, d.BatchRows(500, 9))
	assert.Equal(t, 32766/9, d.BatchRows(0, 9))
	assert.Equal(t, 32766/9, d.BatchRows(1_000_000, 9))
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    string
		wantErr bool
	}{
		{name: "time", in: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), want: "2023-05-01"},
		{name: "string", in: "2023-05-01", want: "2023-05-01"},
		{name: "datetime string", in: "2023-05-01 00:00:00 +0000 UTC", want: "2023-05-01"},
		{name: "bytes", in: []byte("2021-12-31"), want: "2021-12-31"},
		{name: "garbage", in: "yesterday", wantErr: true},
		{name: "int", in: int64(20230501), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchemaStatements(t *testing.T) {
	duck, _ := ForDriver(DriverDuckDB)
	stmts := SchemaStatements(duck, SchemaOptions{})
	joined := strings.Join(stmts, "\n")
	assert.Contains(t, joined, "CREATE SEQUENCE IF NOT EXISTS seq_candidate_key START 1")
	assert.Contains(t, joined, "DEFAULT nextval('seq_country_key')")
	assert.NotContains(t, joined, "UNIQUE (first_name, last_name, email)")

	my, _ := ForDriver(DriverMySQL)
	stmts = SchemaStatements(my, SchemaOptions{UniqueCandidates: true})
	assert.Contains(t, stmts[0], "UNIQUE (first_name, last_name, email)")
	assert.Contains(t, stmts[0], "ENGINE=InnoDB")
	assert.Len(t, stmts, len(Tables()))
	for _, stmt := range stmts {
		assert.True(t, strings.HasSuffix(stmt, "COLLATE=utf8mb4_bin"), stmt)
	}

	sqlite, _ := ForDriver(DriverSQLite)
	assert.NotContains(t, strings.Join(SchemaStatements(sqlite, SchemaOptions{}), "\n"), "ENGINE=")
}

func TestEnsureAndVerifySchema_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dw.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	d, _ := ForDriver(DriverSQLite)

	err = VerifySchema(ctx, db)
	require.ErrorIs(t, err, ErrSchemaMissing)
	assert.Contains(t, err.Error(), TableApplication)

	require.NoError(t, EnsureSchema(ctx, db, d, SchemaOptions{}))
	// Second call must be a no-op.
	require.NoError(t, EnsureSchema(ctx, db, d, SchemaOptions{}))
	assert.NoError(t, VerifySchema(ctx, db))
}
