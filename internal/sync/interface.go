package sync

import (
	"context"

	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

// Source is the remote record source. Implementations cache both results
// for their lifetime.
type Source interface {
	ProjectMetadata(ctx context.Context, projectID string) (types.Project, error)
	TaskSet(ctx context.Context, projectID string, projection []string, includeSubtasks bool) ([]types.Record, error)
	Warnings() []error
}

// Store is the relational sink. Failures are reported as *types.StoreError.
type Store interface {
	EnsureTable(ctx context.Context, table string, columnDefs []string) error
	Upsert(ctx context.Context, table string, columns []string, values []any) error
	SelectColumn(ctx context.Context, table, column string) ([]any, error)
	SelectColumns(ctx context.Context, table string, columns []string) ([][]any, error)
	SelectJoin(ctx context.Context, table string, join types.Join, filter types.Filter, columns []string) ([][]any, error)
	Delete(ctx context.Context, table, idColumn string, id any) error
}

// MembershipTable names and creates the table that records which tasks
// belong to which projects.
type MembershipTable interface {
	ProjectMembershipsTableName() string
	CreateTables(ctx context.Context) error
}
