package config

import "time"

type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Auth       AuthConfig       `yaml:"auth" json:"auth"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Training   TrainingConfig   `yaml:"training" json:"training"`
	Prediction PredictionConfig `yaml:"prediction" json:"prediction"`
	Monitor    MonitorConfig    `yaml:"monitor" json:"monitor"`
	Admission  AdmissionConfig  `yaml:"admission" json:"admission"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
	// ReadTimeoutSec bounds reading a request, body included.
	ReadTimeoutSec int `yaml:"read_timeout_sec" json:"read_timeout_sec"`
	// WriteTimeoutSec must cover a full synchronous training run.
	WriteTimeoutSec int             `yaml:"write_timeout_sec" json:"write_timeout_sec"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes" json:"max_body_bytes"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
	// PerClient keys the limiter by client IP.
	PerClient bool `yaml:"per_client" json:"per_client"`
}

type AuthConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"-"`
}

type StorageConfig struct {
	ModelDir string `yaml:"model_dir" json:"model_dir"`
}

// Metrics backends.
const (
	MetricsBackendMemory = "memory"
	MetricsBackendSQLite = "sqlite"
)

type MetricsConfig struct {
	// Backend is memory or sqlite.
	Backend    string `yaml:"backend" json:"backend"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
}

type TrainingConfig struct {
	MaxEpochs             int    `yaml:"max_epochs" json:"max_epochs"`
	DefaultMetricsVersion string `yaml:"default_metrics_version" json:"default_metrics_version"`
}

type PredictionConfig struct {
	// CacheSize is the number of decoded models kept in memory; 0 disables the cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

type MonitorConfig struct {
	// IntervalMs is the host sampling period behind /status.
	IntervalMs int `yaml:"interval_ms" json:"interval_ms"`
}

// AdmissionConfig refuses training runs while the host is saturated.
// A zero threshold disables that check.
type AdmissionConfig struct {
	Enabled          bool    `yaml:"enabled" json:"enabled"`
	MaxCPUPercent    float64 `yaml:"max_cpu_percent" json:"max_cpu_percent"`
	MaxMemoryPercent float64 `yaml:"max_memory_percent" json:"max_memory_percent"`
	MinFreeDiskMB    uint64  `yaml:"min_free_disk_mb" json:"min_free_disk_mb"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSec) * time.Second
}

func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalMs) * time.Millisecond
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSec) * time.Second
}
