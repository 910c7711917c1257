package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}

	if cfg.WriteTimeout() != 10*time.Minute {
		t.Errorf("expected default write timeout 10m, got %s", cfg.WriteTimeout())
	}

	if cfg.Metrics.Backend != MetricsBackendMemory {
		t.Errorf("expected default metrics backend memory, got %s", cfg.Metrics.Backend)
	}

	if cfg.Training.DefaultMetricsVersion != "v1" {
		t.Errorf("expected default metrics version v1, got %s", cfg.Training.DefaultMetricsVersion)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9090

storage:
  model_dir: "/srv/models"

metrics:
  backend: sqlite
  sqlite_path: "/srv/metrics.db"

logging:
  level: "debug"
  format: "text"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}

	if cfg.Storage.ModelDir != "/srv/models" {
		t.Errorf("expected model dir /srv/models, got %s", cfg.Storage.ModelDir)
	}

	if cfg.Metrics.Backend != MetricsBackendSQLite {
		t.Errorf("expected sqlite backend, got %s", cfg.Metrics.Backend)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}

	// Check that defaults are preserved for unspecified values
	if cfg.Server.WriteTimeoutSec != 600 {
		t.Errorf("expected default write timeout 600, got %d", cfg.Server.WriteTimeoutSec)
	}
	if cfg.Prediction.CacheSize != 16 {
		t.Errorf("expected default cache size 16, got %d", cfg.Prediction.CacheSize)
	}
}

func TestLoadInvalid(t *testing.T) {
	configPath := writeConfig(t, `
metrics:
  backend: redis
`)

	if _, err := Load(configPath); err == nil {
		t.Error("expected validation error for unknown metrics backend")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	configPath := writeConfig(t, "server: [unclosed")

	if _, err := Load(configPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	// Empty path returns defaults
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Server.Port)
	}

	// A missing file is reported rather than hidden
	if _, err := LoadOrDefault("/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadOrDefaultFromEnv(t *testing.T) {
	configPath := writeConfig(t, "server:\n  port: 7070\n")
	t.Setenv(EnvConfigPath, configPath)

	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("expected port 7070 from %s, got %d", EnvConfigPath, cfg.Server.Port)
	}
}
