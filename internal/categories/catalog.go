// Package categories keeps the list of category names offered to the user.
// The catalog is advisory: records may carry any valid category.
package categories

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
)

var (
	ErrCategoryInUse   = errors.New("category is used by existing expenses")
	ErrUnknownCategory = errors.New("unknown category")
)

// Defaults seeds a catalog that has never been saved.
var Defaults = []string{"food", "transport", "entertainment", "shopping", "bills", "healthcare", "other"}

type Catalog struct {
	path   string
	names  []string
	logger *slog.Logger
}

// Open loads the catalog at path. A missing file yields the defaults and is
// only created on the first change.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("categories: empty path")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{path: path, logger: applog.WithComponent(logger, applog.ComponentCategories)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.names = dedupe(Defaults)
		c.logger.DebugContext(ctx, "category file absent, using defaults", applog.FieldPath, path)
		return c, nil
	case err != nil:
		return nil, &core.StorageIOError{Op: "read", Path: path, Err: err}
	}

	names, err := decode(path, data)
	if err != nil {
		return nil, err
	}
	c.names = names
	c.logger.DebugContext(ctx, "categories loaded", applog.FieldPath, path, "count", len(names))
	return c, nil
}

// List returns the category names in catalog order.
func (c *Catalog) List() []string {
	return append([]string(nil), c.names...)
}

// Contains reports whether name is in the catalog after normalization.
func (c *Catalog) Contains(name string) bool {
	return c.index(core.NormalizeCategory(name)) >= 0
}

// Add validates name and appends it. Adding an existing name changes nothing
// and reports false.
func (c *Catalog) Add(ctx context.Context, name string) (bool, error) {
	n := core.NormalizeCategory(name)
	if err := core.ValidateCategory(n); err != nil {
		return false, err
	}
	if c.index(n) >= 0 {
		return false, nil
	}
	next := append(c.List(), n)
	if err := c.commit(ctx, next); err != nil {
		return false, err
	}
	c.logger.InfoContext(ctx, "Category added", applog.FieldCategory, n)
	return true, nil
}

// Remove deletes name from the catalog. inUse reports whether any record
// still carries a category; such categories are kept.
func (c *Catalog) Remove(ctx context.Context, name string, inUse func(string) bool) error {
	n := core.NormalizeCategory(name)
	i := c.index(n)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, n)
	}
	if inUse != nil && inUse(n) {
		return fmt.Errorf("%w: %q", ErrCategoryInUse, n)
	}
	next := append(c.List()[:i:i], c.names[i+1:]...)
	if err := c.commit(ctx, next); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Category removed", applog.FieldCategory, n)
	return nil
}

func (c *Catalog) index(name string) int {
	for i, v := range c.names {
		if v == name {
			return i
		}
	}
	return -1
}

func (c *Catalog) commit(ctx context.Context, names []string) error {
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return &core.StorageIOError{Op: "encode", Path: c.path, Err: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &core.StorageIOError{Op: "create directory", Path: dir, Err: err}
	}
	if err := renameio.WriteFile(c.path, data, 0o600, renameio.WithTempDir(dir)); err != nil {
		c.logger.ErrorContext(ctx, "Failed to save categories", applog.FieldPath, c.path, applog.FieldError, err)
		return &core.StorageIOError{Op: "write", Path: c.path, Err: err}
	}
	c.names = names
	return nil
}

// decode accepts a JSON array of names or a plain list with one name per
// line, where blank lines and lines starting with '#' are skipped.
func decode(source string, data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []string{}, nil
	}
	var raw []string
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, &core.CorruptDataError{Source: source, Index: -1, Reason: "malformed json", Err: err}
		}
	} else {
		raw = readLines(trimmed)
	}

	for i, v := range raw {
		if err := core.ValidateCategory(core.NormalizeCategory(v)); err != nil {
			var verr *core.ValidationError
			if errors.As(err, &verr) {
				err = verr.Err
			}
			return nil, &core.CorruptDataError{Source: source, Index: i, Field: core.FieldCategory, Err: err}
		}
	}
	return dedupe(raw), nil
}

func readLines(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// dedupe normalizes names and drops repeats, keeping first occurrences in order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = core.NormalizeCategory(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
