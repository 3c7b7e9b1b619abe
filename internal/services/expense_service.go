package services

import (
	"context"
	"fmt"
	"log/slog"

	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
	"expensetrack/internal/storage"
)

// ExpenseStore owns the in-memory Record Set for a session and keeps it in
// step with durable storage. The set is loaded once when the store is opened;
// every mutation persists the full set before it becomes visible.
//
// ExpenseStore is not safe for concurrent use.
type ExpenseStore struct {
	backend storage.Backend
	set     core.RecordSet
	logger  *slog.Logger
}

// OpenExpenseStore loads the Record Set from backend.
func OpenExpenseStore(ctx context.Context, backend storage.Backend, logger *slog.Logger) (*ExpenseStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ExpenseStore{
		backend: backend,
		logger:  applog.WithComponent(logger, applog.ComponentExpense),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory set with what is in durable storage. On
// error the previous in-memory set is kept.
func (s *ExpenseStore) Reload(ctx context.Context) error {
	set, err := s.backend.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load expenses",
			applog.FieldOperation, applog.OpLoad,
			applog.FieldError, err)
		return fmt.Errorf("load expenses: %w", err)
	}
	s.set = set
	s.logger.InfoContext(ctx, "Expenses loaded",
		applog.FieldOperation, applog.OpLoad,
		applog.FieldPath, s.location(),
		"count", len(set.Expenses),
		"last_id", set.LastID)
	return nil
}

func (s *ExpenseStore) location() string {
	if d, ok := s.backend.(storage.Describer); ok {
		return d.Location()
	}
	return ""
}

// List returns the records in insertion order. The slice is a copy.
func (s *ExpenseStore) List() []core.Expense {
	return s.set.Clone().Expenses
}

// Get returns the record with the given id.
func (s *ExpenseStore) Get(id int64) (core.Expense, error) {
	i := s.set.Index(id)
	if i < 0 {
		return core.Expense{}, &core.NotFoundError{ID: id}
	}
	return s.set.Expenses[i], nil
}

// Add validates in, assigns the next id and persists the set.
func (s *ExpenseStore) Add(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	next := s.set.Clone()
	e, err := in.Build(next.NextID())
	if err != nil {
		s.logValidation(ctx, applog.OpCreate, err)
		return core.Expense{}, err
	}
	next.Expenses = append(next.Expenses, e)
	next.LastID = e.ID

	if err := s.commit(ctx, applog.OpCreate, next); err != nil {
		return core.Expense{}, err
	}
	s.logger.InfoContext(ctx, "Expense added",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldID, e.ID,
		applog.FieldAmount, e.Amount.String(),
		applog.FieldCategory, e.Category)
	return e, nil
}

// Update applies the non-nil fields of patch to the record with the given id.
func (s *ExpenseStore) Update(ctx context.Context, id int64, patch core.ExpensePatch) (core.Expense, error) {
	i := s.set.Index(id)
	if i < 0 {
		return core.Expense{}, &core.NotFoundError{ID: id}
	}
	updated, err := patch.Apply(s.set.Expenses[i])
	if err != nil {
		s.logValidation(ctx, applog.OpUpdate, err)
		return core.Expense{}, err
	}
	if patch.IsEmpty() {
		return updated, nil
	}

	next := s.set.Clone()
	next.Expenses[i] = updated
	if err := s.commit(ctx, applog.OpUpdate, next); err != nil {
		return core.Expense{}, err
	}
	s.logger.InfoContext(ctx, "Expense updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldID, id,
		applog.FieldAmount, updated.Amount.String(),
		applog.FieldCategory, updated.Category)
	return updated, nil
}

// Delete removes the record with the given id. Its id is never reassigned.
func (s *ExpenseStore) Delete(ctx context.Context, id int64) error {
	i := s.set.Index(id)
	if i < 0 {
		return &core.NotFoundError{ID: id}
	}

	next := s.set.Clone()
	next.Expenses = append(next.Expenses[:i], next.Expenses[i+1:]...)
	if err := s.commit(ctx, applog.OpDelete, next); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Expense deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldID, id)
	return nil
}

// Close releases the backend.
func (s *ExpenseStore) Close() error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Close(); err != nil {
		return fmt.Errorf("close expense store: %w", err)
	}
	return nil
}

// commit persists next and only then makes it the current set.
func (s *ExpenseStore) commit(ctx context.Context, op string, next core.RecordSet) error {
	if err := s.backend.Save(ctx, next); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist expenses",
			applog.FieldOperation, op,
			applog.FieldError, err)
		return fmt.Errorf("save expenses: %w", err)
	}
	s.set = next
	return nil
}

func (s *ExpenseStore) logValidation(ctx context.Context, op string, err error) {
	s.logger.DebugContext(ctx, "Rejected invalid expense input",
		applog.FieldOperation, op,
		applog.FieldError, err)
}
