// Package jsonfile implements the default storage backend: the Record Set as
// an indented JSON document, replaced atomically on every save.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
	"expensetrack/internal/storage"
)

var _ storage.Backend = (*Store)(nil)

// Store reads and writes a single JSON file.
type Store struct {
	path   string
	perm   os.FileMode
	logger *slog.Logger
}

// Config holds configuration for the JSON file backend.
type Config struct {
	// Path is the storage file location.
	Path string
	// Perm is the mode for newly written files. Defaults to 0o600.
	Perm os.FileMode
}

// document is the on-disk layout.
type document struct {
	LastID   int64        `json:"last_id"`
	Expenses []recordJSON `json:"expenses"`
}

// recordJSON uses pointers and raw values so that a missing field can be told
// apart from a zero value. Type is only read: files written by the older
// desktop tracker mark each record "Expense" or "Income".
type recordJSON struct {
	ID          json.RawMessage `json:"id"`
	LegacyID    string          `json:"legacy_id,omitempty"`
	Type        *string         `json:"type,omitempty"`
	Amount      json.RawMessage `json:"amount"`
	Date        *string         `json:"date"`
	Category    *string         `json:"category"`
	Description string          `json:"description,omitempty"`
}

// loadReport lists what decode changed while reading.
type loadReport struct {
	// renumbered counts records whose string id was replaced by an integer.
	renumbered int
	// normalized holds the positions of records whose category was rewritten.
	normalized []int
}

// New creates a JSON file backend. The file is not touched until Load or Save.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("jsonfile: empty path")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Perm == 0 {
		cfg.Perm = 0o600
	}
	return &Store{path: cfg.Path, perm: cfg.Perm, logger: logger}, nil
}

// Location returns the storage file path.
func (s *Store) Location() string {
	return s.path
}

// Load reads the Record Set. A missing or zero-length file is an empty set.
func (s *Store) Load(ctx context.Context) (core.RecordSet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.DebugContext(ctx, "storage file absent, starting empty", applog.FieldPath, s.path)
			return core.RecordSet{Expenses: []core.Expense{}}, nil
		}
		return core.RecordSet{}, &core.StorageIOError{Op: "read", Path: s.path, Err: err}
	}

	set, report, err := decode(s.path, data)
	if err != nil {
		return core.RecordSet{}, err
	}

	if report.renumbered > 0 {
		s.logger.InfoContext(ctx, "assigned integer ids to legacy records",
			applog.FieldPath, s.path,
			"count", report.renumbered,
			"last_id", set.LastID)
	}
	if len(report.normalized) > 0 {
		s.logger.DebugContext(ctx, "normalized stored categories",
			applog.FieldPath, s.path,
			"records", report.normalized)
	}
	s.logger.DebugContext(ctx, "loaded expenses from file",
		applog.FieldPath, s.path,
		"count", len(set.Expenses),
		"last_id", set.LastID)
	return set, nil
}

// Save writes the Record Set to a temporary file in the same directory and
// renames it over the target, so readers see either the old or the new file.
func (s *Store) Save(ctx context.Context, set core.RecordSet) error {
	data, err := encode(set)
	if err != nil {
		return &core.StorageIOError{Op: "encode", Path: s.path, Err: err}
	}

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &core.StorageIOError{Op: "create directory", Path: dir, Err: err}
		}
	}

	if err := renameio.WriteFile(s.path, data, s.perm, renameio.WithTempDir(filepath.Dir(s.path))); err != nil {
		return &core.StorageIOError{Op: "write", Path: s.path, Err: err}
	}

	s.logger.DebugContext(ctx, "saved expenses to file",
		applog.FieldPath, s.path,
		"count", len(set.Expenses),
		"bytes", len(data))
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (s *Store) Close() error {
	return nil
}

func encode(set core.RecordSet) ([]byte, error) {
	doc := document{LastID: set.LastID, Expenses: make([]recordJSON, 0, len(set.Expenses))}
	for _, e := range set.Expenses {
		date := e.Date.String()
		category := e.Category
		amount, err := e.Amount.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshaling amount of expense %d: %w", e.ID, err)
		}
		doc.Expenses = append(doc.Expenses, recordJSON{
			ID:          json.RawMessage(strconv.FormatInt(e.ID, 10)),
			LegacyID:    e.LegacyID,
			Amount:      amount,
			Date:        &date,
			Category:    &category,
			Description: e.Description,
		})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling json: %w", err)
	}
	return append(data, '\n'), nil
}

func decode(source string, data []byte) (core.RecordSet, loadReport, error) {
	var report loadReport
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return core.RecordSet{Expenses: []core.Expense{}}, report, nil
	}

	var doc document
	legacy := false
	switch trimmed[0] {
	case '[':
		// Bare array layout written by the older desktop tracker, whose ids
		// may be UUID strings.
		legacy = true
		if err := json.Unmarshal(trimmed, &doc.Expenses); err != nil {
			return core.RecordSet{}, report, &core.CorruptDataError{Source: source, Index: -1, Reason: "malformed json", Err: err}
		}
	case '{':
		var raw struct {
			LastID   *int64        `json:"last_id"`
			Expenses *[]recordJSON `json:"expenses"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return core.RecordSet{}, report, &core.CorruptDataError{Source: source, Index: -1, Reason: "malformed json", Err: err}
		}
		if raw.Expenses == nil {
			return core.RecordSet{}, report, &core.CorruptDataError{Source: source, Index: -1, Field: "expenses", Reason: "missing"}
		}
		doc.Expenses = *raw.Expenses
		if raw.LastID != nil {
			doc.LastID = *raw.LastID
		}
	default:
		return core.RecordSet{}, report, &core.CorruptDataError{Source: source, Index: -1, Reason: "expected a json object or array"}
	}

	set := core.RecordSet{LastID: doc.LastID, Expenses: make([]core.Expense, 0, len(doc.Expenses))}
	var pending []int
	seenLegacy := make(map[string]int)
	for i, r := range doc.Expenses {
		e, normalized, err := r.toExpense(source, i, legacy)
		if err != nil {
			return core.RecordSet{}, report, err
		}
		if normalized {
			report.normalized = append(report.normalized, i)
		}
		if e.ID == 0 {
			key := strings.ToLower(e.LegacyID)
			if prev, dup := seenLegacy[key]; dup {
				return core.RecordSet{}, report, &core.CorruptDataError{
					Source: source,
					Index:  i,
					Field:  core.FieldID,
					Reason: fmt.Sprintf("duplicate id %q (also at record %d)", e.LegacyID, prev),
				}
			}
			seenLegacy[key] = i
			pending = append(pending, i)
		} else if e.ID > set.LastID {
			set.LastID = e.ID
		}
		set.Expenses = append(set.Expenses, e)
	}

	// String ids get the next integers in file order, so the same file
	// always loads with the same ids.
	for _, i := range pending {
		set.LastID++
		set.Expenses[i].ID = set.LastID
	}
	report.renumbered = len(pending)

	checked, err := core.CheckStored(source, set)
	if err != nil {
		return core.RecordSet{}, report, err
	}
	return checked, report, nil
}

// toExpense converts one stored record. A string id, accepted only in the
// legacy layout, comes back as ID 0 with LegacyID set. normalized reports
// whether the stored category was rewritten.
func (r recordJSON) toExpense(source string, index int, legacy bool) (e core.Expense, normalized bool, err error) {
	missing := func(field string) error {
		return &core.CorruptDataError{Source: source, Index: index, Field: field, Reason: "missing"}
	}
	if len(r.ID) == 0 || string(r.ID) == "null" {
		return core.Expense{}, false, missing(core.FieldID)
	}
	if len(r.Amount) == 0 || string(r.Amount) == "null" {
		return core.Expense{}, false, missing(core.FieldAmount)
	}
	if r.Date == nil {
		return core.Expense{}, false, missing(core.FieldDate)
	}
	if r.Category == nil {
		return core.Expense{}, false, missing(core.FieldCategory)
	}
	if r.Type != nil && !strings.EqualFold(strings.TrimSpace(*r.Type), "expense") {
		return core.Expense{}, false, &core.CorruptDataError{
			Source: source,
			Index:  index,
			Field:  core.FieldType,
			Err:    core.ErrUnsupportedType,
			Reason: fmt.Sprintf("got %q", *r.Type),
		}
	}

	e.LegacyID = r.LegacyID
	if r.ID[0] == '"' {
		var id string
		if !legacy || json.Unmarshal(r.ID, &id) != nil {
			return core.Expense{}, false, &core.CorruptDataError{Source: source, Index: index, Field: core.FieldID, Err: core.ErrInvalidID, Reason: fmt.Sprintf("got %s", r.ID)}
		}
		if _, err := uuid.Parse(id); err != nil {
			return core.Expense{}, false, &core.CorruptDataError{Source: source, Index: index, Field: core.FieldID, Err: core.ErrInvalidLegacyID, Reason: fmt.Sprintf("got %q", id)}
		}
		e.LegacyID = id
	} else if err := json.Unmarshal(r.ID, &e.ID); err != nil {
		return core.Expense{}, false, &core.CorruptDataError{Source: source, Index: index, Field: core.FieldID, Err: core.ErrInvalidID, Reason: fmt.Sprintf("got %s", r.ID)}
	} else if e.ID <= 0 {
		return core.Expense{}, false, &core.CorruptDataError{Source: source, Index: index, Field: core.FieldID, Err: core.ErrInvalidID, Reason: fmt.Sprintf("got %d", e.ID)}
	}

	if err := e.Amount.UnmarshalJSON(r.Amount); err != nil {
		return core.Expense{}, false, &core.CorruptDataError{Source: source, Index: index, Field: core.FieldAmount, Err: core.ErrInvalidAmount, Reason: fmt.Sprintf("got %s", r.Amount)}
	}
	if e.Date, err = core.ParseDate(*r.Date); err != nil {
		return core.Expense{}, false, &core.CorruptDataError{Source: source, Index: index, Field: core.FieldDate, Err: core.ErrInvalidDate, Reason: fmt.Sprintf("got %q", *r.Date)}
	}

	e.Category = core.NormalizeCategory(*r.Category)
	e.Description = r.Description
	return e, e.Category != *r.Category, nil
}
