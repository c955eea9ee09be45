// Package config loads the pipeline server configuration from a YAML or
// TOML file with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/meikuraledutech/pipeline/editor"
	"gopkg.in/yaml.v3"
)

// Supported store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config is the server configuration.
type Config struct {
	Listen      string `yaml:"listen" toml:"listen"`
	Driver      string `yaml:"driver" toml:"driver"`
	DatabaseURL string `yaml:"database_url" toml:"database_url"`
	LogLevel    string `yaml:"log_level" toml:"log_level"`

	Layout editor.LayoutConfig `yaml:"layout" toml:"layout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:   ":3000",
		Driver:   DriverPostgres,
		LogLevel: "info",
		Layout:   editor.DefaultLayoutConfig(),
	}
}

// Load reads the file at path, chosen by extension (.yaml, .yml or .toml),
// expands ${VAR} references, fills defaults and applies the DATABASE_URL,
// PIPELINE_LISTEN and PIPELINE_DRIVER overrides. An empty path yields the
// defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		expanded := interpolateEnv(string(data))

		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case ".toml":
			if _, err := toml.Decode(expanded, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		default:
			return nil, fmt.Errorf("config: unsupported file extension %q", ext)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("PIPELINE_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("PIPELINE_DRIVER"); v != "" {
		cfg.Driver = v
	}
}

func applyDefaults(cfg *Config) {
	defaults := Default()
	if cfg.Listen == "" {
		cfg.Listen = defaults.Listen
	}
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
}

func validate(cfg *Config) error {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("config: driver must be one of: postgres, sqlite (got %q)", cfg.Driver)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("config: database_url is not set (use DATABASE_URL)")
	}
	if m := envVarPattern.FindStringSubmatch(cfg.DatabaseURL); m != nil {
		return fmt.Errorf("config: database_url: environment variable ${%s} is not set", m[1])
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	l := cfg.Layout
	if l.NodeWidth < 0 || l.NodeHeight < 0 || l.RankSpacing < 0 || l.NodeSpacing < 0 {
		return fmt.Errorf("config: layout sizes must not be negative")
	}
	return nil
}
