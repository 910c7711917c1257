package config

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 600,
			MaxBodyBytes:    10 << 20,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 50,
				Burst:             100,
				PerClient:         true,
			},
		},
		Auth: AuthConfig{
			Enabled:  false,
			User:     "",
			Password: "",
		},
		Storage: StorageConfig{
			ModelDir: "models",
		},
		Metrics: MetricsConfig{
			Backend:    MetricsBackendMemory,
			SQLitePath: "data/metrics.db",
		},
		Training: TrainingConfig{
			MaxEpochs:             1000,
			DefaultMetricsVersion: "v1",
		},
		Prediction: PredictionConfig{
			CacheSize: 16,
		},
		Monitor: MonitorConfig{
			IntervalMs: 5000,
		},
		Admission: AdmissionConfig{
			Enabled:          false,
			MaxCPUPercent:    0,
			MaxMemoryPercent: 95,
			MinFreeDiskMB:    100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
