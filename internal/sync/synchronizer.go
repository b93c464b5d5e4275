package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/asana2sql/internal/logging"
	"github.com/mesh-intelligence/asana2sql/internal/sqlite"
	"github.com/mesh-intelligence/asana2sql/internal/workspace"
	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

// Construction and query errors.
var (
	ErrUnsupportedField  = errors.New("field is neither a direct nor a side-effect field")
	ErrNoMembershipTable = errors.New("no membership table configured")
	ErrReservedTableName = errors.New("table name is reserved for the membership table")
)

// Config identifies the project a Synchronizer mirrors and where.
type Config struct {
	ProjectID       string
	TableName       string // optional; defaults to the project name
	IncludeSubtasks bool
}

// Result summarizes one Export or Synchronize pass.
type Result struct {
	RunID    string
	Table    string
	Upserted int
	Deleted  int
	Warnings []error
}

// Synchronizer mirrors one remote project into one table.
// It is not safe for concurrent use; independent tables use independent
// Synchronizers.
type Synchronizer struct {
	cfg         Config
	source      Source
	store       Store
	memberships MembershipTable
	logger      logrus.FieldLogger

	fields      []types.Field
	direct      []types.DirectField
	sideEffects []types.SideEffectField
	identity    types.DirectField

	tableName string
}

// New builds a Synchronizer. fields are split into direct fields, which
// define the table's columns in declaration order, and side-effect fields.
// Exactly one direct field must be the identity field. memberships may be
// nil when DBSelectAllInProject is not needed; a nil logger discards
// output.
func New(cfg Config, source Source, store Store, memberships MembershipTable, fields []types.Field, logger logrus.FieldLogger) (*Synchronizer, error) {
	if cfg.ProjectID == "" {
		return nil, types.ErrProjectIDEmpty
	}
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Synchronizer{
		cfg:         cfg,
		source:      source,
		store:       store,
		memberships: memberships,
		logger:      logger.WithField("project_id", cfg.ProjectID),
		fields:      fields,
	}

	seen := make(map[string]bool)
	for _, f := range fields {
		switch field := f.(type) {
		case types.DirectField:
			col := field.Column()
			if seen[col.Name] {
				return nil, fmt.Errorf("%w: %s", types.ErrDuplicateColumn, col.Name)
			}
			seen[col.Name] = true
			if col.Identity {
				if s.identity != nil {
					return nil, types.ErrMultipleIdentityFields
				}
				s.identity = field
			}
			s.direct = append(s.direct, field)
		case types.SideEffectField:
			s.sideEffects = append(s.sideEffects, field)
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedField, f)
		}
	}
	if len(s.direct) == 0 {
		return nil, types.ErrNoDirectFields
	}
	if s.identity == nil {
		return nil, types.ErrNoIdentityField
	}
	return s, nil
}

// ProjectID returns the id of the mirrored project.
func (s *Synchronizer) ProjectID() string {
	return s.cfg.ProjectID
}

// Project returns the project metadata, fetching it on first use.
func (s *Synchronizer) Project(ctx context.Context) (types.Project, error) {
	return s.source.ProjectMetadata(ctx, s.cfg.ProjectID)
}

// TableName returns the SQL-safe table name: the configured name if there
// is one, else the project's name. A name that collides with the membership
// table is rejected with ErrReservedTableName. The result is memoized.
func (s *Synchronizer) TableName(ctx context.Context) (string, error) {
	if s.tableName != "" {
		return s.tableName, nil
	}
	name := s.cfg.TableName
	if name == "" {
		p, err := s.Project(ctx)
		if err != nil {
			return "", err
		}
		name = p.Name
	}
	table := sqlite.SafeName(name)
	if s.memberships != nil && table == s.memberships.ProjectMembershipsTableName() {
		return "", fmt.Errorf("%w: %s", ErrReservedTableName, table)
	}
	s.tableName = table
	return s.tableName, nil
}

// Columns returns the column names of the direct fields in declaration
// order.
func (s *Synchronizer) Columns() []string {
	cols := make([]string, len(s.direct))
	for i, f := range s.direct {
		cols[i] = f.Column().Name
	}
	return cols
}

// RequiredAttributes returns the sorted union of every field's required
// remote attributes: the projection requested from the remote.
func (s *Synchronizer) RequiredAttributes() []string {
	set := make(map[string]struct{})
	for _, f := range s.fields {
		for _, a := range f.RequiredAttributes() {
			set[a] = struct{}{}
		}
	}
	attrs := make([]string, 0, len(set))
	for a := range set {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	return attrs
}

// Tasks returns the project's tasks, fetched once.
func (s *Synchronizer) Tasks(ctx context.Context) ([]types.Record, error) {
	if _, err := s.Project(ctx); err != nil {
		return nil, err
	}
	return s.source.TaskSet(ctx, s.cfg.ProjectID, s.RequiredAttributes(), s.cfg.IncludeSubtasks)
}

// Warnings returns the non-fatal warnings raised by the source.
func (s *Synchronizer) Warnings() []error {
	return s.source.Warnings()
}

// CreateTable creates the table from the direct fields' column definitions
// if it does not already exist, together with the membership table. Nothing
// is created unless the project exists.
func (s *Synchronizer) CreateTable(ctx context.Context) error {
	table, err := s.resolve(ctx)
	if err != nil {
		return err
	}
	if s.memberships != nil {
		if err := s.memberships.CreateTables(ctx); err != nil {
			return err
		}
	}
	defs := make([]string, len(s.direct))
	for i, f := range s.direct {
		defs[i] = f.Column().Definition()
	}
	return s.store.EnsureTable(ctx, table, defs)
}

// Export upserts every remote task without deleting anything.
func (s *Synchronizer) Export(ctx context.Context) (Result, error) {
	table, err := s.resolve(ctx)
	if err != nil {
		return Result{}, err
	}
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{RunID: newRunID(), Table: table}
	log := s.logger.WithFields(logrus.Fields{"run_id": res.RunID, "table": table})
	for _, task := range tasks {
		if err := s.insertOrReplace(ctx, table, task); err != nil {
			return res, err
		}
		res.Upserted++
	}
	res.Warnings = s.Warnings()
	log.WithField("upserted", res.Upserted).Info("export complete")
	return res, nil
}

// Synchronize converges the table to the remote task set: it upserts every
// remote task, then deletes every stored row whose identity the remote no
// longer reports.
func (s *Synchronizer) Synchronize(ctx context.Context) (Result, error) {
	table, err := s.resolve(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{RunID: newRunID(), Table: table}
	log := s.logger.WithFields(logrus.Fields{"run_id": res.RunID, "table": table})

	localIDs, err := s.LocalIDs(ctx)
	if err != nil {
		return res, err
	}
	remoteIDs, err := s.RemoteIDs(ctx)
	if err != nil {
		return res, err
	}
	remote := make(map[string]struct{}, len(remoteIDs))
	for _, id := range remoteIDs {
		remote[id] = struct{}{}
	}
	var stale []any
	for _, id := range localIDs {
		if _, ok := remote[idKey(id)]; !ok {
			stale = append(stale, id)
		}
	}
	log.WithFields(logrus.Fields{
		"local":  len(localIDs),
		"remote": len(remoteIDs),
		"stale":  len(stale),
	}).Debug("diffed identity sets")

	tasks, err := s.Tasks(ctx)
	if err != nil {
		return res, err
	}
	for _, task := range tasks {
		if err := s.insertOrReplace(ctx, table, task); err != nil {
			return res, err
		}
		res.Upserted++
	}

	idColumn := s.identity.Column().Name
	for _, id := range stale {
		if err := s.store.Delete(ctx, table, idColumn, id); err != nil {
			return res, err
		}
		res.Deleted++
	}

	res.Warnings = s.Warnings()
	log.WithFields(logrus.Fields{"upserted": res.Upserted, "deleted": res.Deleted}).Info("synchronize complete")
	return res, nil
}

// LocalIDs returns the identity values stored in the table.
func (s *Synchronizer) LocalIDs(ctx context.Context) ([]any, error) {
	table, err := s.TableName(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.SelectColumn(ctx, table, s.identity.Column().Name)
}

// RemoteIDs returns the identity values of the fetched remote tasks, as
// computed by the identity field.
func (s *Synchronizer) RemoteIDs(ctx context.Context) ([]string, error) {
	tasks, err := s.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		v, err := s.identity.Value(task)
		if err != nil {
			return nil, &types.FieldExtractionError{Field: s.identity.Column().Name, RecordID: task.ID(), Err: err}
		}
		ids = append(ids, idKey(v))
	}
	return ids, nil
}

// DBSelectAll returns every stored row as a column-name-to-value map.
func (s *Synchronizer) DBSelectAll(ctx context.Context) ([]map[string]any, error) {
	table, err := s.TableName(ctx)
	if err != nil {
		return nil, err
	}
	cols := s.Columns()
	rows, err := s.store.SelectColumns(ctx, table, cols)
	if err != nil {
		return nil, err
	}
	return zipRows(cols, rows), nil
}

// DBSelectAllInProject returns the stored rows whose tasks the membership
// table lists under projectID. Only this table's columns are returned.
func (s *Synchronizer) DBSelectAllInProject(ctx context.Context, projectID string) ([]map[string]any, error) {
	if s.memberships == nil {
		return nil, ErrNoMembershipTable
	}
	table, err := s.TableName(ctx)
	if err != nil {
		return nil, err
	}
	membershipTable := s.memberships.ProjectMembershipsTableName()
	cols := s.Columns()
	rows, err := s.store.SelectJoin(ctx, table,
		types.Join{Table: membershipTable, Left: s.identity.Column().Name, Right: workspace.ColumnTaskID},
		types.Filter{Table: membershipTable, Column: workspace.ColumnProjectID, Value: projectID},
		cols)
	if err != nil {
		return nil, err
	}
	return zipRows(cols, rows), nil
}

// resolve validates the project exists and returns the table name. Every
// mutating operation calls it before touching the store.
func (s *Synchronizer) resolve(ctx context.Context) (string, error) {
	if _, err := s.Project(ctx); err != nil {
		return "", err
	}
	return s.TableName(ctx)
}

// insertOrReplace writes one task's row, then applies the side-effect
// fields to it.
func (s *Synchronizer) insertOrReplace(ctx context.Context, table string, task types.Record) error {
	values := make([]any, len(s.direct))
	for i, f := range s.direct {
		v, err := f.Value(task)
		if err != nil {
			return &types.FieldExtractionError{Field: f.Column().Name, RecordID: task.ID(), Err: err}
		}
		values[i] = v
	}
	if err := s.store.Upsert(ctx, table, s.Columns(), values); err != nil {
		return err
	}
	for _, f := range s.sideEffects {
		if err := f.Apply(ctx, task); err != nil {
			return &types.FieldExtractionError{
				Field:    strings.Join(f.RequiredAttributes(), ","),
				RecordID: task.ID(),
				Err:      err,
			}
		}
	}
	return nil
}

func zipRows(cols []string, rows [][]any) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(cols))
		for j, c := range cols {
			m[c] = row[j]
		}
		out[i] = m
	}
	return out
}

// idKey normalizes an identity value for set comparison: stored values come
// back from SQLite typed by column affinity, remote ones as decoded.
func idKey(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

// newRunID generates a UUID v7 for a synchronization pass.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
