package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	applog "expensetrack/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateSchema applies every pending migration to the database at r.path
// and logs the resulting schema version. A dirty version is reported as an
// error so that a half-applied migration is never written over.
//
// migrate closes the connection it is handed, so it gets one of its own.
func (r *Repository) migrateSchema(ctx context.Context) error {
	conn, err := sql.Open(driverName, r.path)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	driver, err := sqlitemigrate.WithInstance(conn, &sqlitemigrate.Config{})
	if err != nil {
		conn.Close()
		return fmt.Errorf("sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}
	r.logger.DebugContext(ctx, "sqlite schema ready", applog.FieldPath, r.path, "version", version)
	return nil
}
