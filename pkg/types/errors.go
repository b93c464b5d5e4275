package types

import (
	"errors"
	"fmt"
)

// Synchronization errors. Typed errors below match these with errors.Is.
var (
	ErrProjectNotFound    = errors.New("project not found")
	ErrPossibleTruncation = errors.New("possible truncation")
	ErrFieldExtraction    = errors.New("field extraction failed")
	ErrStore              = errors.New("store error")
)

// Field set errors, returned when a synchronizer is constructed.
var (
	ErrNoDirectFields         = errors.New("field set has no direct fields")
	ErrNoIdentityField        = errors.New("field set has no identity field")
	ErrMultipleIdentityFields = errors.New("field set has more than one identity field")
	ErrDuplicateColumn        = errors.New("field set declares a column twice")
)

// ProjectNotFoundError reports that the remote has no project with the
// configured id.
type ProjectNotFoundError struct {
	ProjectID string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("no project with id %s", e.ProjectID)
}

func (e *ProjectNotFoundError) Is(target error) bool {
	return target == ErrProjectNotFound
}

// TruncationWarning reports that an unpaginated fetch returned at least
// Threshold records and may have been capped by the remote. It is a warning:
// the records that were returned are still processed.
type TruncationWarning struct {
	ProjectID string
	Count     int
	Threshold int
}

func (w *TruncationWarning) Error() string {
	return fmt.Sprintf("large unpaginated request for project %s may be truncated (fetched %d tasks, threshold %d)",
		w.ProjectID, w.Count, w.Threshold)
}

func (w *TruncationWarning) Is(target error) bool {
	return target == ErrPossibleTruncation
}

// FieldExtractionError reports that a field descriptor could not compute a
// value from a record.
type FieldExtractionError struct {
	Field    string
	RecordID string
	Err      error
}

func (e *FieldExtractionError) Error() string {
	return fmt.Sprintf("extracting field %s from record %s: %v", e.Field, e.RecordID, e.Err)
}

func (e *FieldExtractionError) Unwrap() error { return e.Err }

func (e *FieldExtractionError) Is(target error) bool {
	return target == ErrFieldExtraction
}

// StoreError wraps any failure reported by the relational sink.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}
