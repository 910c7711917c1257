package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/tabml/internal/capacity"
	"github.com/haskel/tabml/internal/config"
	"github.com/haskel/tabml/internal/dataset"
	"github.com/haskel/tabml/internal/logger"
	"github.com/haskel/tabml/internal/metrics"
	"github.com/haskel/tabml/internal/monitor"
	"github.com/haskel/tabml/internal/prediction"
	"github.com/haskel/tabml/internal/server"
	"github.com/haskel/tabml/internal/storage"
	"github.com/haskel/tabml/internal/training"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tabml server",
	Long: `Start the tabml HTTP server in the foreground.

SIGHUP reloads the auth and admission settings from the config file; SIGINT and SIGTERM
shut the server down gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// openMetricsStore returns the configured metrics backend.
func openMetricsStore(cfg config.MetricsConfig) (metrics.Store, error) {
	switch cfg.Backend {
	case config.MetricsBackendSQLite:
		return metrics.NewSQLiteStore(cfg.SQLitePath)
	case config.MetricsBackendMemory, "":
		return metrics.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown metrics backend %q", cfg.Backend)
}

// service is the fully wired set of components behind the HTTP server.
type service struct {
	server     *server.Server
	aggregator *monitor.Aggregator
	metrics    metrics.Store
}

func buildService(cfg *config.Config, log *slog.Logger) (*service, error) {
	store, err := openMetricsStore(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics store: %w", err)
	}

	models := storage.NewModelStore(cfg.Storage.ModelDir, log)
	registry := training.NewDefaultRegistry(cfg.Training.MaxEpochs)
	trainer := training.NewDispatcher(registry, dataset.FileSource{}, models, store, cfg.Training.DefaultMetricsVersion, log)

	predictor, err := prediction.NewService(models, cfg.Prediction.CacheSize, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	agg := monitor.NewAggregator([]monitor.Monitor{
		monitor.NewCPUMonitor(),
		monitor.NewMemoryMonitor(),
		monitor.NewModelDirMonitor(models),
	}, cfg.MonitorInterval(), log)

	srv := server.New(cfg, server.Deps{
		Trainer:   trainer,
		Predictor: predictor,
		Models:    models,
		Metrics:   store,
		Monitor:   agg,
		Admission: capacity.NewGuard(agg, server.AdmissionThresholds(cfg.Admission)),
	}, log, Version)

	return &service{server: srv, aggregator: agg, metrics: store}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	log.Info("tabml starting",
		"version", Version,
		"config", cfgFile,
		"model_dir", cfg.Storage.ModelDir,
		"metrics_backend", cfg.Metrics.Backend,
	)

	svc, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.metrics.Close(); err != nil {
			log.Error("metrics store close error", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.aggregator.Start(ctx); err != nil {
		return fmt.Errorf("failed to start host monitor: %w", err)
	}

	sighupCh := make(chan os.Signal, 1)
	sigCh := make(chan os.Signal, 1)
	shutdownDone := make(chan struct{})

	signal.Notify(sighupCh, syscall.SIGHUP)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for {
			select {
			case <-sighupCh:
				log.Info("SIGHUP received, reloading configuration")

				newCfg, err := config.LoadOrDefault(cfgFile)
				if err != nil {
					log.Error("invalid configuration, reload aborted", "error", err)
					continue
				}
				svc.server.ReloadConfig(newCfg)
			case <-shutdownDone:
				return
			}
		}
	}()

	go func() {
		<-sigCh

		log.Info("shutdown signal received")

		signal.Stop(sighupCh)
		signal.Stop(sigCh)
		close(shutdownDone)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := svc.server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}

		svc.aggregator.Stop()
		cancel()
	}()

	log.Info("tabml ready", "addr", svc.server.Addr())

	if err := svc.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("tabml stopped")
	return nil
}
