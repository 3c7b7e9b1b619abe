package backend

import (
	"context"
	"fmt"
	"log/slog"

	applog "expensetrack/internal/log"
	"expensetrack/internal/storage/jsonfile"
	"expensetrack/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case FileBackend:
		return f.createFileBackend(ctx, config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createFileBackend(ctx context.Context, config Config) (*Result, error) {
	store, err := jsonfile.New(jsonfile.Config{Path: config.FilePath},
		applog.WithComponent(f.logger, applog.ComponentStorage))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file backend: %w", err)
	}

	f.logger.DebugContext(ctx, "Initialized file backend",
		applog.FieldBackend, config.Type,
		applog.FieldPath, config.FilePath)

	return &Result{
		Backend: store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := sqlite.Open(ctx, sqlite.Config{
		Path:        config.SQLiteDBPath,
		BusyRetries: config.SQLiteBusyRetries,
	}, applog.WithComponent(f.logger, applog.ComponentStorage))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite backend: %w", err)
	}

	f.logger.DebugContext(ctx, "Initialized SQLite backend",
		applog.FieldBackend, config.Type,
		applog.FieldPath, config.SQLiteDBPath,
		"busy_retries", config.SQLiteBusyRetries)

	return &Result{
		Backend: repo,
		Cleanup: repo.Close,
	}, nil
}
