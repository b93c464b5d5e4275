// Package workspace owns the tables shared by every project table in one
// database: today, the project membership table that backs cross-project
// queries.
package workspace

import (
	"context"

	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

// Membership table columns.
const (
	ColumnProjectID = "project_id"
	ColumnTaskID    = "task_id"
)

// Store is the part of the relational sink the workspace writes through.
type Store interface {
	EnsureTable(ctx context.Context, table string, columnDefs []string) error
	Upsert(ctx context.Context, table string, columns []string, values []any) error
}

// Workspace names and maintains the project membership table.
type Workspace struct {
	store            Store
	membershipsTable string
}

// New returns a Workspace writing memberships to membershipsTable, or to
// types.DefaultMembershipsTable when the name is empty.
func New(store Store, membershipsTable string) *Workspace {
	if membershipsTable == "" {
		membershipsTable = types.DefaultMembershipsTable
	}
	return &Workspace{store: store, membershipsTable: membershipsTable}
}

// ProjectMembershipsTableName returns the membership table name.
func (w *Workspace) ProjectMembershipsTableName() string {
	return w.membershipsTable
}

// CreateTables creates the membership table if it does not exist.
func (w *Workspace) CreateTables(ctx context.Context) error {
	return w.store.EnsureTable(ctx, w.membershipsTable, []string{
		types.Column{Name: ColumnProjectID, Type: types.ColumnText, NotNull: true}.Definition(),
		types.Column{Name: ColumnTaskID, Type: types.ColumnText, NotNull: true}.Definition(),
		"PRIMARY KEY (" + types.QuoteIdent(ColumnProjectID) + ", " + types.QuoteIdent(ColumnTaskID) + ")",
	})
}

// AddMembership records that taskID belongs to projectID. Recording the same
// pair twice is a no-op.
func (w *Workspace) AddMembership(ctx context.Context, projectID, taskID string) error {
	return w.store.Upsert(ctx, w.membershipsTable,
		[]string{ColumnProjectID, ColumnTaskID},
		[]any{projectID, taskID})
}
