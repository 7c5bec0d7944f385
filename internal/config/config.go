package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for configuration fields.
const (
	DefaultSchemaDir        = "./schema"
	DefaultMigrationsDir    = "./migrations"
	DefaultLockTimeout      = 5 * time.Second
	DefaultStatementTimeout = 30 * time.Second
	DefaultLogLevel         = "info"
)

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	DatabaseURL      string
	SchemaDir        string
	MigrationsDir    string
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	LogLevel         string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	SchemaDir        string `yaml:"schema_dir"`
	MigrationsDir    string `yaml:"migrations_dir"`
	LockTimeout      string `yaml:"lock_timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
	LogLevel         string `yaml:"log_level"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		SchemaDir:        DefaultSchemaDir,
		MigrationsDir:    DefaultMigrationsDir,
		LockTimeout:      DefaultLockTimeout,
		StatementTimeout: DefaultStatementTimeout,
		LogLevel:         DefaultLogLevel,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	if raw.DatabaseURL != "" {
		cfg.DatabaseURL = raw.DatabaseURL
	}

	if raw.SchemaDir != "" {
		cfg.SchemaDir = raw.SchemaDir
	}

	if raw.MigrationsDir != "" {
		cfg.MigrationsDir = raw.MigrationsDir
	}

	if raw.LockTimeout != "" {
		d, err := parseTimeout("lock_timeout", raw.LockTimeout)
		if err != nil {
			return nil, err
		}

		cfg.LockTimeout = d
	}

	if raw.StatementTimeout != "" {
		d, err := parseTimeout("statement_timeout", raw.StatementTimeout)
		if err != nil {
			return nil, err
		}

		cfg.StatementTimeout = d
	}

	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}

	return cfg, nil
}

func parseTimeout(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", field, value, err)
	}

	return d, nil
}

// MergeEnv overrides config fields from RECONCILE_* environment variables.
func MergeEnv(cfg *Config) {
	if v := os.Getenv("RECONCILE_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}

	if v := os.Getenv("RECONCILE_SCHEMA_DIR"); v != "" {
		cfg.SchemaDir = v
	}

	if v := os.Getenv("RECONCILE_MIGRATIONS_DIR"); v != "" {
		cfg.MigrationsDir = v
	}

	if v := os.Getenv("RECONCILE_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTimeout = d
		}
	}

	if v := os.Getenv("RECONCILE_STATEMENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StatementTimeout = d
		}
	}

	if v := os.Getenv("RECONCILE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
