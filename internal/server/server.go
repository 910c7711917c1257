// Package server exposes training, prediction, model listing and metrics over
// HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/haskel/tabml/internal/capacity"
	"github.com/haskel/tabml/internal/config"
	"github.com/haskel/tabml/internal/metrics"
	"github.com/haskel/tabml/internal/monitor"
	"github.com/haskel/tabml/internal/prediction"
	"github.com/haskel/tabml/internal/server/middleware"
	"github.com/haskel/tabml/internal/storage"
	"github.com/haskel/tabml/internal/training"
)

// Deps are the components the handlers call into. Monitor and Admission may
// be nil.
type Deps struct {
	Trainer   *training.Dispatcher
	Predictor *prediction.Service
	Models    *storage.ModelStore
	Metrics   metrics.Store
	Monitor   *monitor.Aggregator
	Admission *capacity.Guard
}

type Server struct {
	httpServer *http.Server
	deps       Deps
	config     atomic.Pointer[config.Config]
	logger     *slog.Logger
	version    string
	started    time.Time
	authConfig *middleware.AuthConfig
}

func New(cfg *config.Config, deps Deps, logger *slog.Logger, version string) *Server {
	logger = logger.With("component", "http")

	s := &Server{
		deps:       deps,
		logger:     logger,
		version:    version,
		started:    time.Now(),
		authConfig: middleware.NewAuthConfig(cfg.Auth.Enabled, cfg.Auth.User, cfg.Auth.Password),
	}

	s.config.Store(cfg)

	rl := cfg.Server.RateLimit
	handler := middleware.Chain(
		s.setupRoutes(),
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.NoStore(),
		middleware.Auth(s.authConfig, "/health"),
		middleware.RateLimit(middleware.RateLimitConfig{
			Enabled:           rl.Enabled,
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
			PerClient:         rl.PerClient,
		}),
		middleware.MaxBody(cfg.Server.MaxBodyBytes),
	)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// ReloadConfig applies the settings that can change without a restart.
// Listener, timeouts, limits, storage and training settings need a restart.
func (s *Server) ReloadConfig(cfg *config.Config) {
	s.authConfig.Update(cfg.Auth.Enabled, cfg.Auth.User, cfg.Auth.Password)
	if s.deps.Admission != nil {
		s.deps.Admission.UpdateThresholds(AdmissionThresholds(cfg.Admission))
	}
	s.config.Store(cfg)

	s.logger.Info("configuration reloaded", "auth_enabled", cfg.Auth.Enabled)
}

// AdmissionThresholds converts the admission config section. A disabled
// section yields zero thresholds, which admit everything.
func AdmissionThresholds(cfg config.AdmissionConfig) capacity.Thresholds {
	if !cfg.Enabled {
		return capacity.Thresholds{}
	}
	return capacity.Thresholds{
		MaxCPUPercent:    cfg.MaxCPUPercent,
		MaxMemoryPercent: cfg.MaxMemoryPercent,
		MinFreeDiskMB:    cfg.MinFreeDiskMB,
	}
}

// Config returns the configuration currently in effect.
func (s *Server) Config() *config.Config {
	return s.config.Load()
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
