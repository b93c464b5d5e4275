package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/asana2sql/internal/fields"
	"github.com/mesh-intelligence/asana2sql/internal/remote"
	"github.com/mesh-intelligence/asana2sql/internal/sqlite"
	"github.com/mesh-intelligence/asana2sql/internal/workspace"
	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

const projectID = "p1"

// fakeClient is a remote.Client over in-memory projects and tasks.
type fakeClient struct {
	projects   map[string]types.Record
	tasks      map[string][]types.Record
	subtasks   map[string][]types.Record
	taskFields []string
}

func (c *fakeClient) FetchProject(_ context.Context, id, _ string) (types.Record, error) {
	p, ok := c.projects[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return p, nil
}

func (c *fakeClient) FetchTasks(_ context.Context, id, fields string) ([]types.Record, error) {
	c.taskFields = append(c.taskFields, fields)
	ts, ok := c.tasks[id]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return append([]types.Record(nil), ts...), nil
}

func (c *fakeClient) FetchSubtasks(_ context.Context, id, _ string) ([]types.Record, error) {
	return c.subtasks[id], nil
}

func newClient(tasks ...types.Record) *fakeClient {
	return &fakeClient{
		projects: map[string]types.Record{projectID: {"id": projectID, "name": "Launch Plan", "archived": false}},
		tasks:    map[string][]types.Record{projectID: tasks},
	}
}

func task(id, name string, projects ...string) types.Record {
	r := types.Record{"id": id, "name": name, "completed": false}
	if len(projects) > 0 {
		ps := make([]any, len(projects))
		for i, p := range projects {
			ps[i] = map[string]any{"id": p}
		}
		r["projects"] = ps
	}
	return r
}

// recordingStore wraps a Store and logs every call in order.
type recordingStore struct {
	Store
	calls []string
}

func (r *recordingStore) EnsureTable(ctx context.Context, table string, defs []string) error {
	r.calls = append(r.calls, "ensure "+table)
	return r.Store.EnsureTable(ctx, table, defs)
}

func (r *recordingStore) Upsert(ctx context.Context, table string, cols []string, vals []any) error {
	r.calls = append(r.calls, fmt.Sprintf("upsert %s %v", table, vals[0]))
	return r.Store.Upsert(ctx, table, cols, vals)
}

func (r *recordingStore) Delete(ctx context.Context, table, col string, id any) error {
	r.calls = append(r.calls, fmt.Sprintf("delete %s %v", table, id))
	return r.Store.Delete(ctx, table, col, id)
}

type harness struct {
	client *fakeClient
	store  *sqlite.Backend
	ws     *workspace.Workspace
}

func newHarness(t *testing.T, client *fakeClient) *harness {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "asana.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Detach() })
	ws := workspace.New(store, "")
	require.NoError(t, ws.CreateTables(context.Background()))
	return &harness{client: client, store: store, ws: ws}
}

// synchronizer builds a fresh Synchronizer (and Source) per call, the way
// each run of the command line does.
func (h *harness) synchronizer(t *testing.T, cfg Config, store Store) *Synchronizer {
	t.Helper()
	if store == nil {
		store = h.store
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = projectID
	}
	s, err := New(cfg, remote.NewSource(h.client, nil), store, h.ws, fields.Default(h.ws), nil)
	require.NoError(t, err)
	return s
}

func (h *harness) sync(t *testing.T) Result {
	t.Helper()
	s := h.synchronizer(t, Config{}, nil)
	require.NoError(t, s.CreateTable(context.Background()))
	res, err := s.Synchronize(context.Background())
	require.NoError(t, err)
	return res
}

func (h *harness) storedIDs(t *testing.T) []any {
	t.Helper()
	ids, err := h.store.SelectColumn(context.Background(), "launch_plan", "id")
	require.NoError(t, err)
	return ids
}

func TestNew_FieldValidation(t *testing.T) {
	src := remote.NewSource(newClient(), nil)

	tests := []struct {
		name    string
		cfg     Config
		fields  []types.Field
		wantErr error
	}{
		{"empty project id", Config{}, fields.Default(nil), types.ErrProjectIDEmpty},
		{"no direct fields", Config{ProjectID: projectID}, []types.Field{&fields.ProjectMemberships{}}, types.ErrNoDirectFields},
		{"no identity", Config{ProjectID: projectID}, []types.Field{fields.String{Attribute: "name"}}, types.ErrNoIdentityField},
		{"two identities", Config{ProjectID: projectID}, []types.Field{fields.ID{}, fields.ID{ColumnName: "other"}}, types.ErrMultipleIdentityFields},
		{"duplicate column", Config{ProjectID: projectID}, []types.Field{fields.ID{}, fields.String{Attribute: "id"}}, types.ErrDuplicateColumn},
		{"unsupported field", Config{ProjectID: projectID}, []types.Field{fields.ID{}, bareField{}}, ErrUnsupportedField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, src, nil, nil, tt.fields, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type bareField struct{}

func (bareField) RequiredAttributes() []string { return []string{"x"} }

func TestIdentityNeedNotBeFirst(t *testing.T) {
	h := newHarness(t, newClient(task("A", "a")))
	fs := []types.Field{fields.String{Attribute: "name"}, fields.ID{}}
	s, err := New(Config{ProjectID: projectID}, remote.NewSource(h.client, nil), h.store, h.ws, fs, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx))
	_, err = s.Synchronize(ctx)
	require.NoError(t, err)

	ids, err := s.LocalIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"A"}, ids)
}

func TestTableName(t *testing.T) {
	h := newHarness(t, newClient())
	ctx := context.Background()

	name, err := h.synchronizer(t, Config{}, nil).TableName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "launch_plan", name)

	name, err = h.synchronizer(t, Config{TableName: "Custom Table"}, nil).TableName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "custom_table", name)
}

func TestCreateTable_SchemaFollowsDirectFieldsInOrder(t *testing.T) {
	h := newHarness(t, newClient())
	ctx := context.Background()

	fs := []types.Field{
		fields.ID{},
		&fields.ProjectMemberships{Writer: h.ws},
		fields.String{Attribute: "name"},
		fields.Bool{Attribute: "completed"},
	}
	s, err := New(Config{ProjectID: projectID}, remote.NewSource(h.client, nil), h.store, h.ws, fs, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateTable(ctx))

	assert.Equal(t, []string{"id", "name", "completed"}, s.Columns())

	rows, err := h.store.SelectColumns(ctx, "sqlite_master", []string{"name", "sql"})
	require.NoError(t, err)
	var ddl string
	for _, row := range rows {
		if row[0] == "launch_plan" {
			ddl = row[1].(string)
		}
	}
	assert.Contains(t, ddl, `"id" TEXT NOT NULL PRIMARY KEY,"name" TEXT,"completed" INTEGER`)
}

func TestRequiredAttributes_UnionWithoutDuplicates(t *testing.T) {
	h := newHarness(t, newClient(task("A", "a")))
	fs := []types.Field{
		fields.ID{},
		fields.String{Attribute: "name"},
		fields.String{Attribute: "name", ColumnName: "title"},
		fields.Reference{Attribute: "assignee", Key: "name"},
		&fields.ProjectMemberships{Writer: h.ws},
	}
	s, err := New(Config{ProjectID: projectID}, remote.NewSource(h.client, nil), h.store, h.ws, fs, nil)
	require.NoError(t, err)

	want := []string{"assignee.name", "id", "name", "projects.id"}
	assert.Equal(t, want, s.RequiredAttributes())

	_, err = s.Tasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"assignee.name,id,name,projects.id"}, h.client.taskFields)
}

func TestSynchronize_EmptyToPopulated(t *testing.T) {
	h := newHarness(t, newClient(task("A", "alpha"), task("B", "beta")))

	res := h.sync(t)

	assert.Equal(t, 2, res.Upserted)
	assert.Zero(t, res.Deleted)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "launch_plan", res.Table)
	assert.ElementsMatch(t, []any{"A", "B"}, h.storedIDs(t))
}

func TestSynchronize_DeletesStaleRows(t *testing.T) {
	client := newClient(task("A", "alpha"), task("B", "beta"), task("C", "gamma"))
	h := newHarness(t, client)
	h.sync(t)

	client.tasks[projectID] = []types.Record{task("A", "alpha v2"), task("C", "gamma")}
	rec := &recordingStore{Store: h.store}
	s := h.synchronizer(t, Config{}, rec)
	res, err := s.Synchronize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, 1, res.Deleted)
	assert.ElementsMatch(t, []any{"A", "C"}, h.storedIDs(t))
	assert.Equal(t, []string{
		"upsert launch_plan A",
		"upsert launch_plan C",
		"delete launch_plan B",
	}, rec.calls, "every upsert precedes every delete")

	rows, err := s.DBSelectAll(context.Background())
	require.NoError(t, err)
	for _, row := range rows {
		if row["id"] == "A" {
			assert.Equal(t, "alpha v2", row["name"], "changed rows are rewritten")
		}
	}
}

func TestSynchronize_IsIdempotent(t *testing.T) {
	h := newHarness(t, newClient(task("A", "alpha"), task("B", "beta")))
	ctx := context.Background()

	h.sync(t)
	first, err := h.synchronizer(t, Config{}, nil).DBSelectAll(ctx)
	require.NoError(t, err)

	res := h.sync(t)
	assert.Zero(t, res.Deleted)
	second, err := h.synchronizer(t, Config{}, nil).DBSelectAll(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, first, second)
}

func TestSynchronize_Converges(t *testing.T) {
	client := newClient(task("A", "a"), task("B", "b"), task("C", "c"))
	h := newHarness(t, client)
	h.sync(t)

	remoteStates := [][]types.Record{
		{task("B", "b"), task("D", "d")},
		{},
		{task("E", "e"), task("A", "a")},
	}
	for i, state := range remoteStates {
		t.Run(fmt.Sprintf("state %d", i), func(t *testing.T) {
			client.tasks[projectID] = state
			h.sync(t)

			s := h.synchronizer(t, Config{}, nil)
			remoteIDs, err := s.RemoteIDs(context.Background())
			require.NoError(t, err)
			local := make([]string, 0)
			for _, id := range h.storedIDs(t) {
				local = append(local, id.(string))
			}
			assert.ElementsMatch(t, remoteIDs, local)
		})
	}
}

func TestSynchronize_IncludesSubtasks(t *testing.T) {
	client := newClient(task("A", "parent"))
	sub := task("A1", "child")
	sub["parent"] = map[string]any{"id": "A"}
	client.subtasks = map[string][]types.Record{"A": {sub}}
	h := newHarness(t, client)
	ctx := context.Background()

	s := h.synchronizer(t, Config{IncludeSubtasks: true}, nil)
	tasks, err := s.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "A", tasks[0].ID())
	assert.Equal(t, "A1", tasks[1].ID())

	require.NoError(t, s.CreateTable(ctx))
	_, err = s.Synchronize(ctx)
	require.NoError(t, err)

	rows, err := s.DBSelectAll(ctx)
	require.NoError(t, err)
	parents := map[any]any{}
	for _, row := range rows {
		parents[row["id"]] = row["parent_id"]
	}
	assert.Equal(t, map[any]any{"A": nil, "A1": "A"}, parents)
}

func TestSynchronize_TruncationWarningStillProcessesAll(t *testing.T) {
	records := make([]types.Record, remote.TruncationThreshold)
	for i := range records {
		records[i] = task(fmt.Sprintf("T%03d", i), "t")
	}
	h := newHarness(t, newClient(records...))
	logger, hook := test.NewNullLogger()

	s, err := New(Config{ProjectID: projectID}, remote.NewSource(h.client, logger), h.store, h.ws, fields.Default(h.ws), logger)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx))
	res, err := s.Synchronize(ctx)
	require.NoError(t, err)

	assert.Equal(t, remote.TruncationThreshold, res.Upserted)
	assert.Len(t, h.storedIDs(t), remote.TruncationThreshold)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], types.ErrPossibleTruncation)
	assert.NotEmpty(t, hook.AllEntries())
}

func TestProjectNotFound_TouchesNothing(t *testing.T) {
	h := newHarness(t, newClient(task("A", "a")))
	h.client.projects = map[string]types.Record{}
	ctx := context.Background()

	for _, cfg := range []Config{{}, {TableName: "configured"}} {
		rec := &recordingStore{Store: h.store}
		s := h.synchronizer(t, cfg, rec)

		err := s.CreateTable(ctx)
		assert.ErrorIs(t, err, types.ErrProjectNotFound)
		_, err = s.Export(ctx)
		assert.ErrorIs(t, err, types.ErrProjectNotFound)
		_, err = s.Synchronize(ctx)
		assert.ErrorIs(t, err, types.ErrProjectNotFound)
		_, err = s.Tasks(ctx)
		assert.ErrorIs(t, err, types.ErrProjectNotFound)

		assert.Empty(t, rec.calls)
	}

	for _, table := range []string{"configured", "launch_plan"} {
		exists, err := h.store.TableExists(ctx, table)
		require.NoError(t, err)
		assert.False(t, exists)
	}
}

func TestCreateTable_CreatesMembershipTableOnlyForKnownProject(t *testing.T) {
	ctx := context.Background()
	client := newClient(task("A", "a"))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "asana.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Detach() })
	ws := workspace.New(store, "")

	missing, err := New(Config{ProjectID: "999"}, remote.NewSource(client, nil), store, ws, fields.Default(ws), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, missing.CreateTable(ctx), types.ErrProjectNotFound)
	exists, err := store.TableExists(ctx, ws.ProjectMembershipsTableName())
	require.NoError(t, err)
	assert.False(t, exists)

	known, err := New(Config{ProjectID: projectID}, remote.NewSource(client, nil), store, ws, fields.Default(ws), nil)
	require.NoError(t, err)
	require.NoError(t, known.CreateTable(ctx))
	for _, table := range []string{"launch_plan", ws.ProjectMembershipsTableName()} {
		exists, err := store.TableExists(ctx, table)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}
}

func TestTableName_RejectsMembershipTableName(t *testing.T) {
	ctx := context.Background()
	client := newClient(task("A", "a"))
	client.projects[projectID] = types.Record{"id": projectID, "name": "Project Memberships"}
	h := newHarness(t, client)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"derived from the project name", Config{}},
		{"configured", Config{TableName: "project memberships"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingStore{Store: h.store}
			s := h.synchronizer(t, tt.cfg, rec)

			_, err := s.TableName(ctx)
			assert.ErrorIs(t, err, ErrReservedTableName)
			assert.ErrorIs(t, s.CreateTable(ctx), ErrReservedTableName)
			_, err = s.Synchronize(ctx)
			assert.ErrorIs(t, err, ErrReservedTableName)
			assert.Empty(t, rec.calls)
		})
	}
}

func TestExport_UpsertsWithoutDeleting(t *testing.T) {
	client := newClient(task("A", "a"), task("B", "b"))
	h := newHarness(t, client)
	h.sync(t)

	client.tasks[projectID] = []types.Record{task("B", "b2"), task("C", "c")}
	s := h.synchronizer(t, Config{}, nil)
	res, err := s.Export(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Upserted)
	assert.Zero(t, res.Deleted)
	assert.ElementsMatch(t, []any{"A", "B", "C"}, h.storedIDs(t))
}

func TestSideEffectsRunAfterTheRowUpsert(t *testing.T) {
	h := newHarness(t, newClient(task("A", "a", projectID, "p2")))
	rec := &recordingStore{Store: h.store}
	ws := workspace.New(rec, "")
	s, err := New(Config{ProjectID: projectID}, remote.NewSource(h.client, nil), rec, ws, fields.Default(ws), nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx))
	rec.calls = nil
	_, err = s.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"upsert launch_plan A",
		"upsert project_memberships p1",
		"upsert project_memberships p2",
	}, rec.calls)
}

func TestDBSelectAllInProject(t *testing.T) {
	h := newHarness(t, newClient(
		task("A", "shared", projectID, "p2"),
		task("B", "only here", projectID),
		task("C", "elsewhere too", projectID, "p3"),
	))
	h.sync(t)
	ctx := context.Background()
	s := h.synchronizer(t, Config{}, nil)

	rows, err := s.DBSelectAllInProject(ctx, "p2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0]["id"])
	assert.Equal(t, "shared", rows[0]["name"])
	assert.Len(t, rows[0], len(s.Columns()), "only this table's columns")

	rows, err = s.DBSelectAllInProject(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rows, err = s.DBSelectAllInProject(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, rows)

	noMembers, err := New(Config{ProjectID: projectID}, remote.NewSource(h.client, nil), h.store, nil, fields.Default(nil), nil)
	require.NoError(t, err)
	_, err = noMembers.DBSelectAllInProject(ctx, "p2")
	assert.ErrorIs(t, err, ErrNoMembershipTable)
}

func TestFieldExtractionErrorAbortsThePass(t *testing.T) {
	bad := task("B", "b")
	bad["completed"] = "not a bool"
	h := newHarness(t, newClient(task("A", "a"), bad, task("C", "c")))
	ctx := context.Background()

	s := h.synchronizer(t, Config{}, nil)
	require.NoError(t, s.CreateTable(ctx))
	_, err := s.Synchronize(ctx)

	assert.ErrorIs(t, err, types.ErrFieldExtraction)
	assert.ErrorIs(t, err, fields.ErrUnexpectedType)
	var fe *types.FieldExtractionError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "completed", fe.Field)
	assert.Equal(t, "B", fe.RecordID)

	assert.Equal(t, []any{"A"}, h.storedIDs(t), "rows before the failure stay written")
}

func TestStoreErrorsPropagate(t *testing.T) {
	h := newHarness(t, newClient(task("A", "a")))
	boom := errors.New("disk full")
	s := h.synchronizer(t, Config{}, failingStore{Store: h.store, err: boom})
	require.NoError(t, s.CreateTable(context.Background()))

	_, err := s.Synchronize(context.Background())
	assert.ErrorIs(t, err, types.ErrStore)
	assert.ErrorIs(t, err, boom)
}

type failingStore struct {
	Store
	err error
}

func (f failingStore) Upsert(context.Context, string, []string, []any) error {
	return &types.StoreError{Op: "upsert", Table: "t", Err: f.err}
}
