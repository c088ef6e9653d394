package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load. A double
// underscore separates nesting levels: ETL_WAREHOUSE__PASSWORD sets
// warehouse.password.
const EnvPrefix = "ETL_"

// EnvConfigFile names the YAML file when no --config flag is given.
const EnvConfigFile = EnvPrefix + "CONFIG"

// DotEnvFile is read, when present, into the process environment.
const DotEnvFile = ".env"

// libpqEnv maps the standard PostgreSQL client variables onto config keys.
var libpqEnv = map[string]string{
	"PGHOST":     "warehouse.host",
	"PGPORT":     "warehouse.port",
	"PGUSER":     "warehouse.user",
	"PGPASSWORD": "warehouse.password",
	"PGDATABASE": "warehouse.database",
	"PGSSLMODE":  "warehouse.sslmode",
}

// flagKeys maps CLI flag names onto config keys. Changed flags missing here
// map to their name with dashes turned into underscores.
var flagKeys = map[string]string{
	"log-level":          "log_level",
	"log-format":         "log_format",
	"driver":             "warehouse.driver",
	"dsn-host":           "warehouse.host",
	"dsn-port":           "warehouse.port",
	"database":           "warehouse.database",
	"db-path":            "warehouse.path",
	"input":              "pipeline.input_path",
	"unique-candidates":  "load.unique_candidates",
	"single-transaction": "load.single_transaction",
	"batch-size":         "load.batch_size",
	"ensure-schema":      "load.ensure_schema",
	"output-dir":         "report.output_dir",
	"processed-dir":      "report.processed_dir",
	"countries":          "report.countries",
	"top-technologies":   "report.top_technologies",
	"compress":           "report.compress",
	"interval":           "report.interval",
	"addr":               "dashboard.addr",
	"refresh-interval":   "dashboard.refresh_interval",
	"metrics-textfile":   "metrics.textfile_path",
}

// Load builds a Config by layering, from low to high precedence:
//  1. defaults
//  2. YAML file: path, or ETL_CONFIG when path is empty
//  3. .env file in the working directory
//  4. PG* libpq variables
//  5. ETL_ variables
//  6. flags explicitly set on the command line
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("%w: defaults: %w", ErrLoadConfig, err)
	}

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Existing variables win over the .env file.
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, DotEnvFile, err)
	}

	if err := k.Load(env.Provider("PG", ".", func(s string) string {
		return libpqEnv[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("%w: libpq env: %w", ErrLoadConfig, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("%w: flags: %w", ErrLoadConfig, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLoadConfig, err)
	}
	cfg.Warehouse.Driver = strings.ToLower(strings.TrimSpace(cfg.Warehouse.Driver))
	cfg.Report.Countries = splitList(cfg.Report.Countries)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no file, environment or flags.
func Default() *Config {
	k := koanf.New(".")
	_ = k.Load(confmap.Provider(defaults(), "."), nil)

	var cfg Config
	_ = k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"})
	return &cfg
}

// envKey turns ETL_WAREHOUSE__MAX_OPEN_CONNS into warehouse.max_open_conns.
// The variable naming the config file is not a config key.
func envKey(s string) string {
	if s == EnvConfigFile {
		return ""
	}
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// splitList expands a single comma-separated value, as set from the
// environment, into its items.
func splitList(values []string) []string {
	if len(values) != 1 || !strings.Contains(values[0], ",") {
		return values
	}
	parts := strings.Split(values[0], ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
