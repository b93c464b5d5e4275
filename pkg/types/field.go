package types

import (
	"context"
	"strings"
)

// SQL column types emitted by field descriptors.
// Booleans are stored as INTEGER 0/1.
const (
	ColumnText    = "TEXT"
	ColumnInteger = "INTEGER"
	ColumnReal    = "REAL"
)

// Column describes the single SQL column a direct field materializes.
type Column struct {
	Name     string
	Type     string
	NotNull  bool
	Identity bool // primary key and diff key; exactly one per field set
}

// Definition returns the "name TYPE [constraints]" fragment used in
// CREATE TABLE. The identity column always declares PRIMARY KEY so that
// INSERT OR REPLACE keys on it.
func (c Column) Definition() string {
	parts := []string{QuoteIdent(c.Name), c.Type}
	if c.NotNull || c.Identity {
		parts = append(parts, "NOT NULL")
	}
	if c.Identity {
		parts = append(parts, "PRIMARY KEY")
	}
	return strings.Join(parts, " ")
}

// Field is the part of a field descriptor shared by every kind: the remote
// attributes it needs, used to build the fetch projection.
type Field interface {
	RequiredAttributes() []string
}

// DirectField maps a remote attribute to exactly one column.
type DirectField interface {
	Field
	Column() Column
	// Value returns the SQL-bindable value for record. A missing or
	// malformed attribute is reported as an error.
	Value(record Record) (any, error)
}

// SideEffectField contributes no column. Apply is invoked once per record
// after the record's row has been upserted.
type SideEffectField interface {
	Field
	Apply(ctx context.Context, record Record) error
}

// QuoteIdent double-quotes an SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
