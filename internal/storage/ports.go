package storage

import (
	"context"

	"expensetrack/internal/core"
)

// Ports for durable storage adapters.
type (
	// Backend persists the whole Record Set as a unit.
	Backend interface {
		// Load returns the stored Record Set. Absent storage yields an empty
		// set. Unparseable storage yields a *core.CorruptDataError and read
		// failures a *core.StorageIOError.
		Load(ctx context.Context) (core.RecordSet, error)

		// Save replaces the stored Record Set. On failure the previously
		// stored set must remain intact.
		Save(ctx context.Context, set core.RecordSet) error

		// Close releases any resources held by the backend.
		Close() error
	}

	// Describer is implemented by backends that can name their location for
	// logs and error messages.
	Describer interface {
		Location() string
	}
)
