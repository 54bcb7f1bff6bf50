// Package cli holds the start-up helpers shared by the binaries and the
// commands of the wealthwatch admin CLI.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wealthwatch/internal/backend"
	"wealthwatch/internal/config"
	"wealthwatch/internal/log"
	"wealthwatch/internal/services"
	"wealthwatch/internal/storage"
)

// SetupLogger builds the process logger writing text records to w and sets
// it as the slog default.
func SetupLogger(w io.Writer, level string) *log.Logger {
	logger := log.New(log.Config{
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(w, &slog.HandlerOptions{Level: log.ParseLevel(level)}),
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App is the set of services a binary works with.
type App struct {
	Config     *config.Config
	Logger     *log.Logger
	Store      storage.Store
	Ledger     *services.LedgerService
	Reports    *services.ReportService
	Reconciler *services.Reconciler

	cleanup backend.CleanupFunc
}

// OpenApp opens the configured backend and wires the services on top of it.
func OpenApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).Create(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", bcfg.Type, err)
	}

	ledger := services.NewLedgerService(res.Store, logger, services.LedgerOptions{
		AllowBudgetOverlap: cfg.AllowBudgetOverlap,
	})
	reports := services.NewReportService(res.Store, logger, services.ReportOptions{
		CacheSize: cfg.ReportCacheSize,
		CacheTTL:  cfg.ReportCacheTTL,
	})
	ledger.OnCommit(reports.Invalidate)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      res.Store,
		Ledger:     ledger,
		Reports:    reports,
		Reconciler: services.NewReconciler(res.Store, logger),
		cleanup:    res.Cleanup,
	}, nil
}

// Close releases the backend.
func (a *App) Close() error {
	if a == nil || a.cleanup == nil {
		return nil
	}
	return a.cleanup()
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals or when
// parent ends, and a channel that signals when cleanup has finished or
// timed out.
func GracefulShutdown(parent context.Context, logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
