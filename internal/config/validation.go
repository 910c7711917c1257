package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

func (c *Config) Validate() error {
	var errs []error

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}

	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}

	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}

	if err := c.Training.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("training: %w", err))
	}

	if err := c.Prediction.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("prediction: %w", err))
	}

	if err := c.Monitor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("monitor: %w", err))
	}

	if err := c.Admission.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("admission: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	return errors.Join(errs...)
}

func (s *ServerConfig) Validate() error {
	var errs []error

	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", s.Port))
	}
	if s.ReadTimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("read_timeout_sec must be non-negative"))
	}
	if s.WriteTimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("write_timeout_sec must be non-negative"))
	}
	if s.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("max_body_bytes must be non-negative"))
	}
	if s.RateLimit.Enabled {
		if s.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must be positive"))
		}
		if s.RateLimit.Burst < 1 {
			errs = append(errs, fmt.Errorf("rate_limit.burst must be at least 1"))
		}
	}

	return errors.Join(errs...)
}

func (a *AuthConfig) Validate() error {
	if a.Enabled {
		if a.User == "" {
			return fmt.Errorf("user cannot be empty when auth is enabled")
		}
		if a.Password == "" {
			return fmt.Errorf("password cannot be empty when auth is enabled")
		}
	}
	return nil
}

func (s *StorageConfig) Validate() error {
	if s.ModelDir == "" {
		return fmt.Errorf("model_dir cannot be empty")
	}
	return nil
}

func (m *MetricsConfig) Validate() error {
	switch m.Backend {
	case MetricsBackendMemory:
		return nil
	case MetricsBackendSQLite:
		if m.SQLitePath == "" {
			return fmt.Errorf("sqlite_path cannot be empty with the sqlite backend")
		}
		if filepath.Ext(m.SQLitePath) == "" {
			return fmt.Errorf("sqlite_path must name a file, got %q", m.SQLitePath)
		}
		return nil
	}
	return fmt.Errorf("invalid metrics backend: %s (valid: memory, sqlite)", m.Backend)
}

func (t *TrainingConfig) Validate() error {
	var errs []error

	if t.MaxEpochs < 1 {
		errs = append(errs, fmt.Errorf("max_epochs must be at least 1"))
	}
	if t.DefaultMetricsVersion == "" {
		errs = append(errs, fmt.Errorf("default_metrics_version cannot be empty"))
	}

	return errors.Join(errs...)
}

func (p *PredictionConfig) Validate() error {
	if p.CacheSize < 0 {
		return fmt.Errorf("cache_size must be non-negative, got %d", p.CacheSize)
	}
	return nil
}

func (m *MonitorConfig) Validate() error {
	if m.IntervalMs < 100 {
		return fmt.Errorf("interval_ms must be at least 100, got %d", m.IntervalMs)
	}
	return nil
}

func (a *AdmissionConfig) Validate() error {
	var errs []error

	if a.MaxCPUPercent < 0 || a.MaxCPUPercent > 100 {
		errs = append(errs, fmt.Errorf("max_cpu_percent must be between 0 and 100, got %g", a.MaxCPUPercent))
	}
	if a.MaxMemoryPercent < 0 || a.MaxMemoryPercent > 100 {
		errs = append(errs, fmt.Errorf("max_memory_percent must be between 0 and 100, got %g", a.MaxMemoryPercent))
	}

	return errors.Join(errs...)
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", l.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[l.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", l.Format)
	}

	return nil
}
