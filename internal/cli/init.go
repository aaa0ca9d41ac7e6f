// Package cli provides the initialization shared by the spendtrack
// commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"spendtrack/internal/backend"
	"spendtrack/internal/cache"
	"spendtrack/internal/config"
	"spendtrack/internal/core"
	applog "spendtrack/internal/log"
	"spendtrack/internal/services"
)

// SetupLogger builds the application logger for level and installs it as the
// default. Unknown levels fall back to info.
func SetupLogger(level string, format string) *applog.Logger {
	lvl, err := applog.ParseLevel(level)
	cfg := applog.DefaultConfig()
	cfg.Level = lvl
	if format != "" {
		cfg.Format = format
	}
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info logging", "error", err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development. A missing file is
// not an error.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Runtime bundles the ledger service with the resources it was built from.
type Runtime struct {
	Service *services.LedgerService
	Caches  *cache.Manager
	Backend backend.Backend
	cleanup backend.CleanupFunc
}

// Bootstrap builds the backend through the factory and wires the ledger
// service with a summary cache.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	summaries := cache.NewLRUCache[[]core.CategorySummary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	caches := cache.NewManager()
	caches.Register(summaries)

	opts := services.Options{
		Ledger:          result.Backend.Ledger,
		Identity:        result.Backend.Identity,
		Remote:          result.Backend.Remote,
		DefaultCurrency: cfg.DefaultCurrency,
		SummaryCache:    summaries,
	}
	if result.Backend.Notifier != nil {
		opts.Notifier = result.Backend.Notifier
	}
	svc, err := services.NewLedgerService(opts)
	if err != nil {
		_ = result.Cleanup()
		return nil, err
	}
	return &Runtime{Service: svc, Caches: caches, Backend: result.Backend, cleanup: result.Cleanup}, nil
}

// Close stops the service, the cache cleanup and the backend, in that order.
func (r *Runtime) Close() error {
	_ = r.Service.Close()
	r.Caches.Stop()
	if r.cleanup == nil {
		return nil
	}
	return r.cleanup()
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a context bounded by timeout before the returned channel closes.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
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

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
