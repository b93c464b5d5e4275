// Package fields implements field descriptors: how one remote task
// attribute maps to zero or one SQL column.
package fields

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

// Extraction errors.
var (
	ErrMissingAttribute = errors.New("missing attribute")
	ErrUnexpectedType   = errors.New("unexpected attribute type")
)

// Compile-time interface checks.
var (
	_ types.DirectField     = ID{}
	_ types.DirectField     = String{}
	_ types.DirectField     = Bool{}
	_ types.DirectField     = Number{}
	_ types.DirectField     = Timestamp{}
	_ types.DirectField     = Reference{}
	_ types.SideEffectField = (*ProjectMemberships)(nil)
)

// ID is the identity field: the record's id attribute stored as the TEXT
// primary key.
type ID struct {
	ColumnName string // defaults to "id"
}

func (f ID) RequiredAttributes() []string { return []string{types.IDAttribute} }

func (f ID) Column() types.Column {
	return types.Column{Name: orDefault(f.ColumnName, types.IDAttribute), Type: types.ColumnText, Identity: true}
}

func (f ID) Value(record types.Record) (any, error) {
	id := record.ID()
	if id == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAttribute, types.IDAttribute)
	}
	return id, nil
}

// String stores a string attribute as TEXT. An absent or null attribute
// is stored as NULL unless Required is set.
type String struct {
	Attribute  string
	ColumnName string // defaults to Attribute
	Required   bool
}

func (f String) RequiredAttributes() []string { return []string{f.Attribute} }

func (f String) Column() types.Column {
	return types.Column{Name: orDefault(f.ColumnName, f.Attribute), Type: types.ColumnText, NotNull: f.Required}
}

func (f String) Value(record types.Record) (any, error) {
	v, err := lookup(record, f.Attribute, f.Required)
	if v == nil || err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, unexpected(f.Attribute, "string", v)
	}
	return s, nil
}

// Bool stores a boolean attribute as INTEGER 0/1, NULL when absent.
type Bool struct {
	Attribute  string
	ColumnName string
}

func (f Bool) RequiredAttributes() []string { return []string{f.Attribute} }

func (f Bool) Column() types.Column {
	return types.Column{Name: orDefault(f.ColumnName, f.Attribute), Type: types.ColumnInteger}
}

func (f Bool) Value(record types.Record) (any, error) {
	v, err := lookup(record, f.Attribute, false)
	if v == nil || err != nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, unexpected(f.Attribute, "bool", v)
	}
	return b, nil
}

// Number stores a numeric attribute as REAL, NULL when absent.
type Number struct {
	Attribute  string
	ColumnName string
}

func (f Number) RequiredAttributes() []string { return []string{f.Attribute} }

func (f Number) Column() types.Column {
	return types.Column{Name: orDefault(f.ColumnName, f.Attribute), Type: types.ColumnReal}
}

func (f Number) Value(record types.Record) (any, error) {
	v, err := lookup(record, f.Attribute, false)
	if v == nil || err != nil {
		return nil, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return nil, unexpected(f.Attribute, "number", v)
	}
}

// Timestamp stores an RFC 3339 timestamp normalized to UTC, or a plain
// YYYY-MM-DD date unchanged, as TEXT.
type Timestamp struct {
	Attribute  string
	ColumnName string
}

func (f Timestamp) RequiredAttributes() []string { return []string{f.Attribute} }

func (f Timestamp) Column() types.Column {
	return types.Column{Name: orDefault(f.ColumnName, f.Attribute), Type: types.ColumnText}
}

func (f Timestamp) Value(record types.Record) (any, error) {
	v, err := lookup(record, f.Attribute, false)
	if v == nil || err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return nil, unexpected(f.Attribute, "timestamp string", v)
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC().Format(time.RFC3339), nil
	}
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s: cannot parse %q as a timestamp", ErrUnexpectedType, f.Attribute, s)
}

// Reference stores one key of a nested object attribute, such as the name
// of a task's assignee or the id of its parent. Requested from the remote as
// "attribute.key".
type Reference struct {
	Attribute  string
	Key        string
	ColumnName string // defaults to attribute_key
}

func (f Reference) RequiredAttributes() []string { return []string{f.Attribute + "." + f.Key} }

func (f Reference) Column() types.Column {
	return types.Column{Name: orDefault(f.ColumnName, f.Attribute+"_"+f.Key), Type: types.ColumnText}
}

func (f Reference) Value(record types.Record) (any, error) {
	v, err := lookup(record, f.Attribute+"."+f.Key, false)
	if v == nil || err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// MembershipWriter records that a task belongs to a project.
type MembershipWriter interface {
	AddMembership(ctx context.Context, projectID, taskID string) error
}

// ProjectMemberships is a side-effect field: for every project a task
// belongs to, it records a (project, task) membership row. It contributes
// no column to the project table.
type ProjectMemberships struct {
	Writer MembershipWriter
}

func (f *ProjectMemberships) RequiredAttributes() []string { return []string{"projects.id"} }

func (f *ProjectMemberships) Apply(ctx context.Context, record types.Record) error {
	taskID := record.ID()
	if taskID == "" {
		return fmt.Errorf("%w: %s", ErrMissingAttribute, types.IDAttribute)
	}
	raw, ok := record["projects"]
	if !ok || raw == nil {
		return nil
	}
	projects, ok := raw.([]any)
	if !ok {
		return unexpected("projects", "list", raw)
	}
	for _, p := range projects {
		project, ok := p.(map[string]any)
		if !ok {
			return unexpected("projects", "list of objects", p)
		}
		projectID := types.Record(project).ID()
		if projectID == "" {
			return fmt.Errorf("%w: projects.%s", ErrMissingAttribute, types.IDAttribute)
		}
		if err := f.Writer.AddMembership(ctx, projectID, taskID); err != nil {
			return err
		}
	}
	return nil
}

// lookup resolves a dotted attribute path. A missing or null segment
// yields nil, or ErrMissingAttribute when required.
func lookup(record types.Record, path string, required bool) (any, error) {
	var cur any = map[string]any(record)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			if cur == nil {
				break
			}
			return nil, unexpected(path, "object", cur)
		}
		cur = m[part]
	}
	if cur == nil && required {
		return nil, fmt.Errorf("%w: %s", ErrMissingAttribute, path)
	}
	return cur, nil
}

func unexpected(attribute, want string, got any) error {
	return fmt.Errorf("%w: %s: want %s, got %T", ErrUnexpectedType, attribute, want, got)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
