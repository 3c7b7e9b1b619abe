package core

import (
	"errors"
	"fmt"
)

// CheckStored validates a Record Set read back from durable storage and
// normalizes LastID. Any record that breaks an invariant is reported as a
// CorruptDataError pointing at its position; nothing is dropped or repaired.
func CheckStored(source string, set RecordSet) (RecordSet, error) {
	seen := make(map[int64]int, len(set.Expenses))
	maxID := int64(0)
	for i, e := range set.Expenses {
		if err := e.Validate(); err != nil {
			corrupt := &CorruptDataError{Source: source, Index: i, Err: err}
			var verr *ValidationError
			if errors.As(err, &verr) {
				corrupt.Field = verr.Field
				corrupt.Err = verr.Err
			}
			return RecordSet{}, corrupt
		}
		if prev, dup := seen[e.ID]; dup {
			return RecordSet{}, &CorruptDataError{
				Source: source,
				Index:  i,
				Field:  FieldID,
				Reason: fmt.Sprintf("duplicate id %d (also at record %d)", e.ID, prev),
			}
		}
		seen[e.ID] = i
		if e.ID > maxID {
			maxID = e.ID
		}
	}
	if set.LastID < 0 {
		return RecordSet{}, &CorruptDataError{Source: source, Index: -1, Field: "last_id", Reason: "negative"}
	}
	if set.LastID < maxID {
		set.LastID = maxID
	}
	if set.Expenses == nil {
		set.Expenses = []Expense{}
	}
	return set, nil
}
