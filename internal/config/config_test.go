package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != ":8080" || cfg.IndexDefaults.Tokenizer != "strict" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Metrics.Enabled == nil || !*cfg.Metrics.Enabled {
		t.Fatalf("metrics should default to enabled")
	}
}

func TestLoadTOMLMergesOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldsearch.toml")
	content := `
[server]
listen = ":9090"

[index_defaults]
tokenizer = "forward"

[metrics]
enabled = false

[seed]
file = "browsers.json"
fields = ["engine", "title"]
tag_field = "tag"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != ":9090" || cfg.IndexDefaults.Tokenizer != "forward" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Metrics.Enabled == nil || *cfg.Metrics.Enabled {
		t.Fatalf("expected metrics disabled")
	}
	if cfg.Paths.IndexDir != "data/indexes" || cfg.Logging.Format != "json" {
		t.Fatalf("unset values should keep defaults: %+v", cfg)
	}
	if !cfg.Seed.Enabled() || cfg.Seed.Index != "default" || len(cfg.Seed.Fields) != 2 || cfg.Seed.TagField != "tag" {
		t.Fatalf("unexpected seed config: %+v", cfg.Seed)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldsearch.yaml")
	content := `
logging:
  level: debug
  format: text
  request_logs: false
seed:
  index: browsers
  tokenizer: full
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Fatalf("logging overrides not applied: %+v", cfg.Logging)
	}
	if cfg.Logging.RequestLogs == nil || *cfg.Logging.RequestLogs {
		t.Fatalf("expected request logs disabled")
	}
	if cfg.Seed.Index != "browsers" || cfg.Seed.Tokenizer != "full" || cfg.Seed.Enabled() {
		t.Fatalf("unexpected seed config: %+v", cfg.Seed)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldsearch.ini")
	if err := os.WriteFile(path, []byte("listen=:1"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FIELDSEARCH_LISTEN":     ":7000",
		"FIELDSEARCH_TOKENIZER":  "reverse",
		"FIELDSEARCH_SEED_FILE":  "docs.yaml",
		"FIELDSEARCH_LOG_FORMAT": "text",
	}
	cfg := ApplyEnv(DefaultConfig(), func(key string) string { return env[key] })

	if cfg.Server.Listen != ":7000" || cfg.IndexDefaults.Tokenizer != "reverse" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Seed.File != "docs.yaml" || cfg.Logging.Format != "text" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Paths.IndexDir != "data/indexes" {
		t.Fatalf("unset env must not change values")
	}
}
