package core

import (
	"errors"
	"fmt"
)

// Field names used in validation and corruption reports.
const (
	FieldID          = "id"
	FieldAmount      = "amount"
	FieldDate        = "date"
	FieldCategory    = "category"
	FieldDescription = "description"
	FieldLegacyID    = "legacy_id"
	FieldType        = "type"
)

// Error kinds. Every typed error below matches exactly one of these with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrCorruptData = errors.New("corrupt data")
	ErrStorageIO   = errors.New("storage i/o failed")
)

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrInvalidDate        = errors.New("invalid date, expected YYYY-MM-DD")
	ErrEmptyCategory      = errors.New("empty category")
	ErrCategoryTooLong    = fmt.Errorf("category too long (max %d characters)", MaxCategoryLength)
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrInvalidLegacyID    = errors.New("legacy id must be a UUID")
	ErrUnsupportedType    = errors.New("only expense records are tracked")
)

// ValidationError reports input that breaks a field constraint.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an id that is not in the Record Set.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("expense %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CorruptDataError reports durable storage that exists but does not hold a
// valid Record Set. Index is the offending record position, or -1 when the
// problem is with the document as a whole.
type CorruptDataError struct {
	Source string
	Index  int
	Field  string
	Reason string
	Err    error
}

func (e *CorruptDataError) Error() string {
	msg := "corrupt data in " + e.Source
	if e.Index >= 0 {
		msg += fmt.Sprintf(": record %d", e.Index)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptDataError) Unwrap() error { return e.Err }

func (e *CorruptDataError) Is(target error) bool { return target == ErrCorruptData }

// StorageIOError reports a failed read or write of durable storage.
type StorageIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageIOError) Unwrap() error { return e.Err }

func (e *StorageIOError) Is(target error) bool { return target == ErrStorageIO }
