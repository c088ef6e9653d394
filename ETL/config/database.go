package config

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"  // registers "pgx"
	_ "github.com/lib/pq"               // registers "postgres"
	_ "github.com/marcboeker/go-duckdb" // registers "duckdb"
	_ "modernc.org/sqlite"              // registers "sqlite"

	"github.com/jslozanod/etl-workshop-1/ETL/warehouse"
)

// ConnectWarehouse opens the configured warehouse, applies the pool settings
// and checks the connection. The caller owns the returned *sql.DB.
func ConnectWarehouse(ctx context.Context, cfg WarehouseConfig) (*sql.DB, warehouse.Dialect, error) {
	dialect, err := warehouse.ForDriver(cfg.Driver)
	if err != nil {
		return nil, warehouse.Dialect{}, err
	}

	dsn, err := DSN(cfg)
	if err != nil {
		return nil, warehouse.Dialect{}, err
	}

	db, err := sql.Open(dialect.Driver(), dsn)
	if err != nil {
		return nil, warehouse.Dialect{}, fmt.Errorf("open %s warehouse: %w", dialect.Driver(), err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, warehouse.Dialect{}, fmt.Errorf("ping %s warehouse: %w", dialect.Driver(), err)
	}
	return db, dialect, nil
}

// CloseWarehouse closes db, ignoring a nil handle.
func CloseWarehouse(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// DSN builds the driver-specific data source name.
func DSN(cfg WarehouseConfig) (string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case warehouse.DriverPgx, warehouse.DriverPostgres:
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		parts := []string{
			"host=" + quoteValue(cfg.Host),
			"port=" + strconv.Itoa(port),
			"dbname=" + quoteValue(cfg.Database),
			"sslmode=" + quoteValue(sslmode),
		}
		if cfg.User != "" {
			parts = append(parts, "user="+quoteValue(cfg.User))
		}
		if cfg.Password != "" {
			parts = append(parts, "password="+quoteValue(cfg.Password))
		}
		return strings.Join(parts, " "), nil

	case warehouse.DriverMySQL:
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		mc.DBName = cfg.Database
		mc.ParseTime = true
		// Over-long values fail instead of being truncated.
		mc.Params = map[string]string{"sql_mode": "'STRICT_ALL_TABLES'"}
		return mc.FormatDSN(), nil

	case warehouse.DriverSQLite:
		if cfg.Path == ":memory:" {
			return cfg.Path, nil
		}
		return "file:" + cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil

	case warehouse.DriverDuckDB:
		return cfg.Path, nil
	}
	return "", fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
}

// quoteValue quotes a libpq keyword/value when it is empty or holds
// spaces, quotes or backslashes.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
