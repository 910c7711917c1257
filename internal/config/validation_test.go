package config

import (
	"strings"
	"testing"
)

func TestValidateDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidateServerPort(t *testing.T) {
	tests := []struct {
		port    int
		wantErr bool
	}{
		{0, true},
		{-1, true},
		{65536, true},
		{1, false},
		{8080, false},
		{65535, false},
	}

	for _, tt := range tests {
		cfg := Default()
		cfg.Server.Port = tt.port
		err := cfg.Server.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("port %d: wantErr=%v, got %v", tt.port, tt.wantErr, err)
		}
	}
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*ServerConfig)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(s *ServerConfig) {},
			wantErr: false,
		},
		{
			name: "negative write timeout",
			modify: func(s *ServerConfig) {
				s.WriteTimeoutSec = -1
			},
			wantErr: true,
		},
		{
			name: "negative body limit",
			modify: func(s *ServerConfig) {
				s.MaxBodyBytes = -5
			},
			wantErr: true,
		},
		{
			name: "rate limit without rate",
			modify: func(s *ServerConfig) {
				s.RateLimit.Enabled = true
				s.RateLimit.RequestsPerSecond = 0
			},
			wantErr: true,
		},
		{
			name: "rate limit without burst",
			modify: func(s *ServerConfig) {
				s.RateLimit.Enabled = true
				s.RateLimit.Burst = 0
			},
			wantErr: true,
		},
		{
			name: "disabled rate limit ignores values",
			modify: func(s *ServerConfig) {
				s.RateLimit.RequestsPerSecond = 0
				s.RateLimit.Burst = 0
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg.Server)
			err := cfg.Server.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateLogging(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		wantErr bool
	}{
		{"debug", "json", false},
		{"info", "json", false},
		{"warn", "json", false},
		{"error", "json", false},
		{"info", "text", false},
		{"invalid", "json", true},
		{"info", "invalid", true},
	}

	for _, tt := range tests {
		cfg := Default()
		cfg.Logging.Level = tt.level
		cfg.Logging.Format = tt.format
		err := cfg.Logging.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("level=%s format=%s: wantErr=%v, got %v", tt.level, tt.format, tt.wantErr, err)
		}
	}
}

func TestValidateAuth(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		user     string
		password string
		wantErr  bool
	}{
		{"disabled no creds", false, "", "", false},
		{"enabled with creds", true, "admin", "secret", false},
		{"enabled no user", true, "", "secret", true},
		{"enabled no password", true, "admin", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.Enabled = tt.enabled
			cfg.Auth.User = tt.user
			cfg.Auth.Password = tt.password
			err := cfg.Auth.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateMetrics(t *testing.T) {
	tests := []struct {
		backend string
		path    string
		wantErr bool
	}{
		{"memory", "", false},
		{"sqlite", "metrics.db", false},
		{"sqlite", "", true},
		{"sqlite", "/var/lib/tabml", true},
		{"redis", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		cfg := Default()
		cfg.Metrics.Backend = tt.backend
		cfg.Metrics.SQLitePath = tt.path
		err := cfg.Metrics.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("backend=%q path=%q: wantErr=%v, got %v", tt.backend, tt.path, tt.wantErr, err)
		}
	}
}

func TestValidateTrainingAndPrediction(t *testing.T) {
	cfg := Default()
	cfg.Training.MaxEpochs = 0
	if err := cfg.Training.Validate(); err == nil {
		t.Error("expected error for max_epochs 0")
	}

	cfg = Default()
	cfg.Training.DefaultMetricsVersion = ""
	if err := cfg.Training.Validate(); err == nil {
		t.Error("expected error for empty default_metrics_version")
	}

	cfg = Default()
	cfg.Prediction.CacheSize = -1
	if err := cfg.Prediction.Validate(); err == nil {
		t.Error("expected error for negative cache_size")
	}

	cfg = Default()
	cfg.Prediction.CacheSize = 0
	if err := cfg.Prediction.Validate(); err != nil {
		t.Errorf("cache_size 0 disables the cache and is valid: %v", err)
	}
}

func TestValidateStorage(t *testing.T) {
	cfg := Default()
	cfg.Storage.ModelDir = ""
	if err := cfg.Storage.Validate(); err == nil {
		t.Error("expected error for empty model_dir")
	}
}

func TestValidateMonitor(t *testing.T) {
	cfg := Default()
	cfg.Monitor.IntervalMs = 50
	if err := cfg.Monitor.Validate(); err == nil {
		t.Error("expected error for interval_ms below 100")
	}

	cfg.Monitor.IntervalMs = 100
	if err := cfg.Monitor.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateAdmission(t *testing.T) {
	tests := []struct {
		name    string
		cpu     float64
		memory  float64
		wantErr bool
	}{
		{"disabled checks", 0, 0, false},
		{"typical", 90, 95, false},
		{"cpu above 100", 101, 95, true},
		{"negative memory", 0, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Admission.MaxCPUPercent = tt.cpu
			cfg.Admission.MaxMemoryPercent = tt.memory
			err := cfg.Admission.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"server:", "logging:"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}
