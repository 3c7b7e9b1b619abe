package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"expensetrack/internal/aggregate"
	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
	"expensetrack/internal/storage/jsonfile"
)

func newFileStore(t *testing.T, path string) *ExpenseStore {
	t.Helper()
	logger := applog.Discard()
	backend, err := jsonfile.New(jsonfile.Config{Path: path}, logger)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	store, err := OpenExpenseStore(context.Background(), backend, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustAdd(t *testing.T, s *ExpenseStore, amount, date, category string) core.Expense {
	t.Helper()
	e, err := s.Add(context.Background(), core.ExpenseInput{Amount: amount, Date: date, Category: category})
	if err != nil {
		t.Fatalf("add %s %s: %v", amount, category, err)
	}
	return e
}

func strPtr(s string) *string { return &s }

func TestAddTotalDeleteScenario(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "expenses.json")
	store := newFileStore(t, path)

	food := mustAdd(t, store, "12.50", "2024-03-01", "food")
	transport := mustAdd(t, store, "7.25", "2024-03-02", "transport")
	if food.ID != 1 || transport.ID != 2 {
		t.Fatalf("ids: got %d and %d, want 1 and 2", food.ID, transport.ID)
	}

	if got := aggregate.Total(store.List()).Display(); got != "19.75" {
		t.Fatalf("total: got %s, want 19.75", got)
	}

	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := aggregate.Total(store.List()).Display(); got != "7.25" {
		t.Fatalf("total after delete: got %s, want 7.25", got)
	}

	list := store.List()
	if len(list) != 1 || list[0].ID != 2 || list[0].Category != "transport" {
		t.Fatalf("unexpected list: %+v", list)
	}

	// A fresh store over the same file sees the same state.
	reopened := newFileStore(t, path)
	again := reopened.List()
	if len(again) != 1 || !again[0].Equal(list[0]) {
		t.Fatalf("reopened list: got %+v, want %+v", again, list)
	}
}

func TestAddRejectsInvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.json")
	store := newFileStore(t, path)
	mustAdd(t, store, "3.00", "2024-01-01", "food")

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	tests := []struct {
		name  string
		in    core.ExpenseInput
		field string
		want  error
	}{
		{"negative amount", core.ExpenseInput{Amount: "-5", Date: "2024-01-01", Category: "food"}, core.FieldAmount, core.ErrNegativeAmount},
		{"garbage amount", core.ExpenseInput{Amount: "ten", Date: "2024-01-01", Category: "food"}, core.FieldAmount, core.ErrInvalidAmount},
		{"bad date", core.ExpenseInput{Amount: "5", Date: "2024-13-01", Category: "food"}, core.FieldDate, core.ErrInvalidDate},
		{"empty category", core.ExpenseInput{Amount: "5", Date: "2024-01-01", Category: "  "}, core.FieldCategory, core.ErrEmptyCategory},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Add(context.Background(), tc.in)
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field || !errors.Is(err, tc.want) || !errors.Is(err, core.ErrValidation) {
				t.Errorf("got %v (field %q), want field %q and %v", err, verr.Field, tc.field, tc.want)
			}

			after, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(before, after) {
				t.Errorf("storage changed after rejected add")
			}
			if n := len(store.List()); n != 1 {
				t.Errorf("in-memory set changed: %d records", n)
			}
		})
	}
}

func TestMissingIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "expenses.json")
	store := newFileStore(t, path)
	mustAdd(t, store, "1", "2024-01-01", "food")

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	err = store.Delete(ctx, 9999)
	var nf *core.NotFoundError
	if !errors.As(err, &nf) || nf.ID != 9999 || !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("delete: expected NotFoundError for 9999, got %v", err)
	}
	if _, err := store.Update(ctx, 9999, core.ExpensePatch{Amount: strPtr("2")}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("storage changed after not-found rejection")
	}
}

func TestIDsAreNeverReused(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "expenses.json")
	store := newFileStore(t, path)

	mustAdd(t, store, "1", "2024-01-01", "a")
	second := mustAdd(t, store, "2", "2024-01-02", "b")
	if err := store.Delete(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	third := mustAdd(t, store, "3", "2024-01-03", "c")
	if third.ID != 3 {
		t.Fatalf("expected id 3 after deleting the newest record, got %d", third.ID)
	}

	// The high-water mark survives a restart too.
	if err := store.Delete(ctx, third.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	reopened := newFileStore(t, path)
	fourth := mustAdd(t, reopened, "4", "2024-01-04", "d")
	if fourth.ID != 4 {
		t.Fatalf("expected id 4 after reopen, got %d", fourth.ID)
	}

	seen := map[int64]bool{}
	for _, e := range reopened.List() {
		if seen[e.ID] {
			t.Fatalf("duplicate id %d", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "expenses.json")
	store := newFileStore(t, path)
	orig := mustAdd(t, store, "12.50", "2024-03-01", "food")

	updated, err := store.Update(ctx, orig.ID, core.ExpensePatch{
		Amount:      strPtr("13,10"),
		Description: strPtr(" dinner "),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != orig.ID || updated.Category != "food" || !updated.Date.Equal(orig.Date.Time) {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if !updated.Amount.Equal(core.MustMoney("13.10")) || updated.Description != "dinner" {
		t.Errorf("patched fields not applied: %+v", updated)
	}

	got, err := newFileStore(t, path).Get(orig.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !got.Equal(updated) {
		t.Errorf("persisted record: got %+v, want %+v", got, updated)
	}

	if _, err := store.Update(ctx, orig.ID, core.ExpensePatch{Amount: strPtr("-1")}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	current, _ := store.Get(orig.ID)
	if !current.Equal(updated) {
		t.Fatalf("rejected update changed the record: %+v", current)
	}
}

func TestUpdateEmptyPatchDoesNotWrite(t *testing.T) {
	backend := &fakeBackend{}
	store, err := OpenExpenseStore(context.Background(), backend, applog.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	e, err := store.Add(context.Background(), core.ExpenseInput{Amount: "1", Date: "2024-01-01", Category: "food"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	saves := backend.saves

	got, err := store.Update(context.Background(), e.ID, core.ExpensePatch{})
	if err != nil || !got.Equal(e) {
		t.Fatalf("empty patch: got %+v, %v", got, err)
	}
	if backend.saves != saves {
		t.Fatalf("empty patch should not persist")
	}
}

func TestListReturnsCopy(t *testing.T) {
	store := newFileStore(t, filepath.Join(t.TempDir(), "expenses.json"))
	mustAdd(t, store, "1", "2024-01-01", "food")

	list := store.List()
	list[0].Category = "mutated"
	if store.List()[0].Category != "food" {
		t.Fatalf("List must not expose internal state")
	}
}

// fakeBackend keeps the set in memory and can be told to fail.
type fakeBackend struct {
	set     core.RecordSet
	saves   int
	saveErr error
	loadErr error
}

func (f *fakeBackend) Load(context.Context) (core.RecordSet, error) {
	if f.loadErr != nil {
		return core.RecordSet{}, f.loadErr
	}
	return f.set.Clone(), nil
}

func (f *fakeBackend) Save(_ context.Context, set core.RecordSet) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.set = set.Clone()
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func TestFailedSaveLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	store, err := OpenExpenseStore(ctx, backend, applog.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	kept, err := store.Add(ctx, core.ExpenseInput{Amount: "5", Date: "2024-01-01", Category: "food"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	backend.saveErr = &core.StorageIOError{Op: "write", Path: "test", Err: errors.New("disk full")}

	if _, err := store.Add(ctx, core.ExpenseInput{Amount: "1", Date: "2024-01-02", Category: "bills"}); !errors.Is(err, core.ErrStorageIO) {
		t.Fatalf("add: expected ErrStorageIO, got %v", err)
	}
	if _, err := store.Update(ctx, kept.ID, core.ExpensePatch{Category: strPtr("other")}); !errors.Is(err, core.ErrStorageIO) {
		t.Fatalf("update: expected ErrStorageIO, got %v", err)
	}
	if err := store.Delete(ctx, kept.ID); !errors.Is(err, core.ErrStorageIO) {
		t.Fatalf("delete: expected ErrStorageIO, got %v", err)
	}

	list := store.List()
	if len(list) != 1 || !list[0].Equal(kept) {
		t.Fatalf("in-memory set changed after failed saves: %+v", list)
	}

	// The id consumed by the failed add is not burned.
	backend.saveErr = nil
	next, err := store.Add(ctx, core.ExpenseInput{Amount: "1", Date: "2024-01-02", Category: "bills"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if next.ID != 2 {
		t.Fatalf("expected id 2, got %d", next.ID)
	}
}

func TestOpenCorruptStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.json")
	if err := os.WriteFile(path, []byte(`[{"id": 1, "date": "2024-01-01", "category": "food"}]`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	backend, err := jsonfile.New(jsonfile.Config{Path: path}, applog.Discard())
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	_, err = OpenExpenseStore(context.Background(), backend, applog.Discard())
	var corrupt *core.CorruptDataError
	if !errors.As(err, &corrupt) || corrupt.Field != core.FieldAmount {
		t.Fatalf("expected CorruptDataError on amount, got %v", err)
	}
}

func TestReloadKeepsSetOnError(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{set: core.RecordSet{LastID: 1, Expenses: []core.Expense{
		{ID: 1, Amount: core.MustMoney("2"), Date: core.NewDate(2024, 1, 1), Category: "food"},
	}}}
	store, err := OpenExpenseStore(ctx, backend, applog.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	backend.loadErr = &core.CorruptDataError{Source: "test", Index: -1, Reason: "broken"}
	if err := store.Reload(ctx); !errors.Is(err, core.ErrCorruptData) {
		t.Fatalf("expected ErrCorruptData, got %v", err)
	}
	if len(store.List()) != 1 {
		t.Fatalf("failed reload replaced the set")
	}

	backend.loadErr = nil
	backend.set = core.RecordSet{LastID: 4, Expenses: []core.Expense{}}
	if err := store.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(store.List()) != 0 {
		t.Fatalf("reload did not pick up new state")
	}
	e, err := store.Add(ctx, core.ExpenseInput{Amount: "1", Date: "2024-01-01", Category: "food"})
	if err != nil || e.ID != 5 {
		t.Fatalf("expected id 5 after reload, got %d (%v)", e.ID, err)
	}
}
