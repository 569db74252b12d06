package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// AppConfig captures configuration for the server, registry storage, index defaults and seeding.
type AppConfig struct {
	Server        ServerConfig        `toml:"server" yaml:"server"`
	Paths         PathsConfig         `toml:"paths" yaml:"paths"`
	IndexDefaults IndexDefaultsConfig `toml:"index_defaults" yaml:"index_defaults"`
	Logging       LoggingConfig       `toml:"logging" yaml:"logging"`
	Metrics       MetricsConfig       `toml:"metrics" yaml:"metrics"`
	Seed          SeedConfig          `toml:"seed" yaml:"seed"`
}

// ServerConfig controls network settings.
type ServerConfig struct {
	Listen string `toml:"listen" yaml:"listen"`
}

// PathsConfig configures where index definitions are stored.
type PathsConfig struct {
	IndexDir string `toml:"index_dir" yaml:"index_dir"`
}

// IndexDefaultsConfig provides baseline settings used when new indexes are created.
type IndexDefaultsConfig struct {
	Tokenizer string `toml:"tokenizer" yaml:"tokenizer"`
}

// LoggingConfig toggles request logs and controls the slog handler.
type LoggingConfig struct {
	RequestLogs *bool  `toml:"request_logs" yaml:"request_logs"`
	Level       string `toml:"level" yaml:"level"`
	Format      string `toml:"format" yaml:"format"`
}

// MetricsConfig enables counters/telemetry endpoints.
type MetricsConfig struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

// SeedConfig optionally creates an index at startup and loads documents into it.
type SeedConfig struct {
	File      string   `toml:"file" yaml:"file"`
	Index     string   `toml:"index" yaml:"index"`
	Fields    []string `toml:"fields" yaml:"fields"`
	TagField  string   `toml:"tag_field" yaml:"tag_field"`
	Tokenizer string   `toml:"tokenizer" yaml:"tokenizer"`
}

// Enabled reports whether a seed file was configured.
func (s SeedConfig) Enabled() bool {
	return s.File != ""
}

// DefaultConfig returns the baseline configuration used when no file is supplied.
func DefaultConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{Listen: ":8080"},
		Paths:  PathsConfig{IndexDir: "data/indexes"},
		IndexDefaults: IndexDefaultsConfig{
			Tokenizer: "strict",
		},
		Logging: LoggingConfig{RequestLogs: boolPtr(true), Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: boolPtr(true)},
		Seed:    SeedConfig{Index: "default"},
	}
}

// Load reads the provided config path, merging it onto the defaults.
func Load(path string) (AppConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var fileCfg AppConfig
	switch ext {
	case ".toml":
		if err := toml.Unmarshal(content, &fileCfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &fileCfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return AppConfig{}, errors.New("config file must be .toml, .yaml, or .yml")
	}

	merged := mergeConfig(cfg, fileCfg)
	return merged, nil
}

// ApplyEnv overrides settings from FIELDSEARCH_* environment variables.
func ApplyEnv(cfg AppConfig, getenv func(string) string) AppConfig {
	if v := getenv("FIELDSEARCH_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := getenv("FIELDSEARCH_INDEX_PATH"); v != "" {
		cfg.Paths.IndexDir = v
	}
	if v := getenv("FIELDSEARCH_TOKENIZER"); v != "" {
		cfg.IndexDefaults.Tokenizer = v
	}
	if v := getenv("FIELDSEARCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := getenv("FIELDSEARCH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := getenv("FIELDSEARCH_SEED_FILE"); v != "" {
		cfg.Seed.File = v
	}
	return cfg
}

func mergeConfig(base, override AppConfig) AppConfig {
	if override.Server.Listen != "" {
		base.Server.Listen = override.Server.Listen
	}
	if override.Paths.IndexDir != "" {
		base.Paths.IndexDir = override.Paths.IndexDir
	}

	if override.IndexDefaults.Tokenizer != "" {
		base.IndexDefaults.Tokenizer = override.IndexDefaults.Tokenizer
	}

	if override.Logging.RequestLogs != nil {
		base.Logging.RequestLogs = override.Logging.RequestLogs
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Metrics.Enabled != nil {
		base.Metrics.Enabled = override.Metrics.Enabled
	}

	if override.Seed.File != "" {
		base.Seed.File = override.Seed.File
	}
	if override.Seed.Index != "" {
		base.Seed.Index = override.Seed.Index
	}
	if len(override.Seed.Fields) > 0 {
		base.Seed.Fields = override.Seed.Fields
	}
	if override.Seed.TagField != "" {
		base.Seed.TagField = override.Seed.TagField
	}
	if override.Seed.Tokenizer != "" {
		base.Seed.Tokenizer = override.Seed.Tokenizer
	}

	return base
}

func boolPtr(v bool) *bool {
	return &v
}
