// Package sqlite implements a storage backend that keeps the Record Set in a
// SQLite database. Every save replaces the full set inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go"
	"github.com/shopspring/decimal"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
	"expensetrack/internal/storage"
)

const driverName = "sqlite"

var _ storage.Backend = (*Repository)(nil)

// Config holds configuration for the SQLite backend.
type Config struct {
	// Path is the database file location.
	Path string
	// BusyRetries is the number of save attempts while the database is locked
	// by another process. Defaults to 3.
	BusyRetries uint
	// RetryDelay is the initial delay between attempts. Defaults to 100ms.
	RetryDelay time.Duration
}

type Repository struct {
	db         *sql.DB
	path       string
	attempts   uint
	retryDelay time.Duration
	logger     *slog.Logger
}

// Open creates the database directory, opens the database and applies
// migrations.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: empty path")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BusyRetries == 0 {
		cfg.BusyRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, &core.StorageIOError{Op: "create db directory", Path: cfg.Path, Err: err}
	}

	db, err := sql.Open(driverName, cfg.Path+"?_pragma=busy_timeout(2000)")
	if err != nil {
		return nil, &core.StorageIOError{Op: "open sqlite database", Path: cfg.Path, Err: err}
	}
	// A single connection keeps the whole-set transaction simple.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &core.StorageIOError{Op: "ping database", Path: cfg.Path, Err: err}
	}

	r := &Repository{
		db:         db,
		path:       cfg.Path,
		attempts:   cfg.BusyRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
	if err := r.migrateSchema(ctx); err != nil {
		db.Close()
		return nil, &core.StorageIOError{Op: "migrate", Path: cfg.Path, Err: err}
	}
	return r, nil
}

// Location returns the database file path.
func (r *Repository) Location() string {
	return r.path
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load reads every row in insertion order and validates it with the same
// rules as the JSON backend.
func (r *Repository) Load(ctx context.Context) (core.RecordSet, error) {
	var lastID int64
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'last_id'`).Scan(&lastID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return core.RecordSet{}, &core.StorageIOError{Op: "read last id", Path: r.path, Err: err}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount, date, category, description, legacy_id FROM expenses ORDER BY position`)
	if err != nil {
		return core.RecordSet{}, &core.StorageIOError{Op: "query expenses", Path: r.path, Err: err}
	}
	defer rows.Close()

	set := core.RecordSet{LastID: lastID, Expenses: []core.Expense{}}
	var normalized []int
	for i := 0; rows.Next(); i++ {
		var (
			id                                            int64
			amount, date, category, description, legacyID string
		)
		if err := rows.Scan(&id, &amount, &date, &category, &description, &legacyID); err != nil {
			return core.RecordSet{}, &core.CorruptDataError{Source: r.path, Index: i, Reason: "unreadable row", Err: err}
		}

		d, err := decimal.NewFromString(amount)
		if err != nil {
			return core.RecordSet{}, &core.CorruptDataError{Source: r.path, Index: i, Field: core.FieldAmount, Err: core.ErrInvalidAmount, Reason: fmt.Sprintf("got %q", amount)}
		}
		parsed, err := core.ParseDate(date)
		if err != nil {
			return core.RecordSet{}, &core.CorruptDataError{Source: r.path, Index: i, Field: core.FieldDate, Err: core.ErrInvalidDate, Reason: fmt.Sprintf("got %q", date)}
		}

		e := core.Expense{
			ID:          id,
			Amount:      core.NewMoney(d),
			Date:        parsed,
			Category:    core.NormalizeCategory(category),
			Description: description,
			LegacyID:    legacyID,
		}
		if e.Category != category {
			normalized = append(normalized, i)
		}
		set.Expenses = append(set.Expenses, e)
	}
	if err := rows.Err(); err != nil {
		return core.RecordSet{}, &core.StorageIOError{Op: "iterate expenses", Path: r.path, Err: err}
	}

	checked, err := core.CheckStored(r.path, set)
	if err != nil {
		return core.RecordSet{}, err
	}

	if len(normalized) > 0 {
		r.logger.DebugContext(ctx, "normalized stored categories",
			applog.FieldPath, r.path,
			"records", normalized)
	}

	r.logger.DebugContext(ctx, "loaded expenses from sqlite",
		applog.FieldPath, r.path,
		"count", len(checked.Expenses),
		"last_id", checked.LastID)
	return checked, nil
}

// Save replaces all rows and the id high-water mark in one transaction,
// retrying while another process holds the database lock.
func (r *Repository) Save(ctx context.Context, set core.RecordSet) error {
	err := retry.Do(
		func() error {
			return r.replaceAll(ctx, set)
		},
		retry.RetryIf(isBusy),
		retry.Attempts(r.attempts),
		retry.Delay(r.retryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			r.logger.WarnContext(ctx, "sqlite busy, retrying save", "attempt", n+1, applog.FieldError, err)
		}),
	)
	if err != nil {
		return &core.StorageIOError{Op: "write", Path: r.path, Err: err}
	}

	r.logger.DebugContext(ctx, "saved expenses to sqlite", applog.FieldPath, r.path, "count", len(set.Expenses))
	return nil
}

func (r *Repository) replaceAll(ctx context.Context, set core.RecordSet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO expenses (id, position, amount, date, category, description, legacy_id) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range set.Expenses {
		if _, err := stmt.ExecContext(ctx, e.ID, i, e.Amount.String(), e.Date.String(), e.Category, e.Description, e.LegacyID); err != nil {
			return fmt.Errorf("insert expense %d: %w", e.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('last_id', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		set.LastID); err != nil {
		return fmt.Errorf("update last id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	var serr *moderncsqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
