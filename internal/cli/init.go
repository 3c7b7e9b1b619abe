// Package cli provides common initialization used by cmd/expensetrack.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expensetrack/internal/backend"
	"expensetrack/internal/categories"
	"expensetrack/internal/config"
	applog "expensetrack/internal/log"
	"expensetrack/internal/services"
)

// LoadEnvFile loads the .env file for local use.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger installs the process logger described by cfg. A nil cfg
// gives the defaults.
func SetupLogger(cfg *config.Config) *slog.Logger {
	if cfg == nil {
		return applog.Setup(applog.DefaultConfig())
	}
	return applog.Setup(cfg.LogConfig())
}

// OpenStore creates the configured backend and loads the Record Store from it.
// The returned store owns the backend; closing the store releases it.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services.ExpenseStore, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}

	res, err := backend.NewFactory(applog.WithComponent(logger, applog.ComponentBackend)).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	store, err := services.OpenExpenseStore(ctx, res.Backend, logger)
	if err != nil {
		if res.Cleanup != nil {
			if cerr := res.Cleanup(); cerr != nil {
				logger.WarnContext(ctx, "Failed to close backend", applog.FieldError, cerr)
			}
		}
		return nil, fmt.Errorf("open %s backend at %s: %w", bcfg.Type, cfg.StoragePath(), err)
	}
	return store, nil
}

// OpenCategories loads the category catalog named by cfg.
func OpenCategories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*categories.Catalog, error) {
	return categories.Open(ctx, cfg.CategoriesFile, logger)
}

// InterruptContext returns a context cancelled on SIGINT or SIGTERM, so an
// in-flight save can stop retrying.
func InterruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
