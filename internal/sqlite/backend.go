// Package sqlite implements the relational sink: schema creation, upserts,
// deletes and read-back against a SQLite database file.
//
// Every statement is parameterized; identifiers are double-quoted and record
// values are always bound. Each call is its own atomic unit; no transaction
// spans more than one statement.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/asana2sql/internal/logging"
	"github.com/mesh-intelligence/asana2sql/pkg/types"
)

// Lifecycle errors.
var (
	ErrDetached        = errors.New("sqlite backend is detached")
	ErrAlreadyAttached = errors.New("sqlite backend is already attached")
)

const (
	createTableTemplate = `CREATE TABLE IF NOT EXISTS %s (%s);`
	upsertTemplate      = `INSERT OR REPLACE INTO %s (%s) VALUES (%s);`
	selectTemplate      = `SELECT %s FROM %s;`
	selectJoinTemplate  = `SELECT %s FROM %s JOIN %s ON %s = %s WHERE %s = ?;`
	deleteTemplate      = `DELETE FROM %s WHERE %s = ?;`
	tableExistsQuery    = `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?;`
)

// Backend is the SQLite relational sink.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	path     string
	db       *sql.DB
	logger   logrus.FieldLogger
}

// NewBackend creates a detached backend. Call Attach to open a database.
// A nil logger discards output.
func NewBackend(logger logrus.FieldLogger) *Backend {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Backend{logger: logger}
}

// Open is NewBackend followed by Attach.
func Open(path string, logger logrus.FieldLogger) (*Backend, error) {
	b := NewBackend(logger)
	if err := b.Attach(path); err != nil {
		return nil, err
	}
	return b, nil
}

// Attach opens the database file at path, creating its directory if needed.
func (b *Backend) Attach(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return ErrAlreadyAttached
	}
	if path == "" {
		return types.ErrDatabaseEmpty
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("open %s: %w", path, err)
	}
	// Statements are serialized over one connection.
	db.SetMaxOpenConns(1)

	b.db = db
	b.path = path
	b.attached = true
	b.logger.WithField("database", path).Debug("sqlite backend attached")
	return nil
}

// Detach closes the database. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return err
	}
	b.db = nil
	b.attached = false
	return nil
}

// Path returns the attached database path.
func (b *Backend) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.path
}

// conn returns the open database or ErrDetached.
func (b *Backend) conn() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, ErrDetached
	}
	return b.db, nil
}

// EnsureTable creates table with the given column definitions unless it
// already exists. An existing table is never altered.
func (b *Backend) EnsureTable(ctx context.Context, table string, columnDefs []string) error {
	query := fmt.Sprintf(createTableTemplate, types.QuoteIdent(table), strings.Join(columnDefs, ","))
	return b.exec(ctx, "create table", table, query)
}

// Upsert inserts a row or replaces the row that collides with it on a
// uniqueness constraint.
func (b *Backend) Upsert(ctx context.Context, table string, columns []string, values []any) error {
	if len(columns) != len(values) {
		return &types.StoreError{Op: "upsert", Table: table,
			Err: fmt.Errorf("%d columns but %d values", len(columns), len(values))}
	}
	query := fmt.Sprintf(upsertTemplate, types.QuoteIdent(table), quoteAll(columns), placeholders(len(values)))
	return b.exec(ctx, "upsert", table, query, values...)
}

// Delete removes the row whose idColumn equals id.
func (b *Backend) Delete(ctx context.Context, table, idColumn string, id any) error {
	query := fmt.Sprintf(deleteTemplate, types.QuoteIdent(table), types.QuoteIdent(idColumn))
	return b.exec(ctx, "delete", table, query, id)
}

// SelectColumn returns the value of column for every row of table.
func (b *Backend) SelectColumn(ctx context.Context, table, column string) ([]any, error) {
	rows, err := b.SelectColumns(ctx, table, []string{column})
	if err != nil {
		return nil, err
	}
	values := make([]any, len(rows))
	for i, row := range rows {
		values[i] = row[0]
	}
	return values, nil
}

// SelectColumns returns the given columns for every row of table.
func (b *Backend) SelectColumns(ctx context.Context, table string, columns []string) ([][]any, error) {
	query := fmt.Sprintf(selectTemplate, quoteAll(columns), types.QuoteIdent(table))
	return b.query(ctx, "select", table, query, len(columns))
}

// SelectJoin returns the given columns of table for the rows that match a
// row of join.Table on table.join.Left = join.Table.join.Right and satisfy
// filter. Only columns of the primary table are returned.
func (b *Backend) SelectJoin(ctx context.Context, table string, join types.Join, filter types.Filter, columns []string) ([][]any, error) {
	qualified := make([]string, len(columns))
	for i, c := range columns {
		qualified[i] = qualify(table, c)
	}
	query := fmt.Sprintf(selectJoinTemplate,
		strings.Join(qualified, ","),
		types.QuoteIdent(table),
		types.QuoteIdent(join.Table),
		qualify(table, join.Left),
		qualify(join.Table, join.Right),
		qualify(filter.Table, filter.Column))
	return b.query(ctx, "select join", table, query, len(columns), filter.Value)
}

// TableExists reports whether table exists in the database.
func (b *Backend) TableExists(ctx context.Context, table string) (bool, error) {
	db, err := b.conn()
	if err != nil {
		return false, &types.StoreError{Op: "table exists", Table: table, Err: err}
	}
	var one int
	err = db.QueryRowContext(ctx, tableExistsQuery, table).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &types.StoreError{Op: "table exists", Table: table, Err: err}
	}
	return true, nil
}

func (b *Backend) exec(ctx context.Context, op, table, query string, args ...any) error {
	db, err := b.conn()
	if err != nil {
		return &types.StoreError{Op: op, Table: table, Err: err}
	}
	b.logger.WithFields(logrus.Fields{"table": table, "op": op}).Debug(query)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return &types.StoreError{Op: op, Table: table, Err: err}
	}
	return nil
}

func (b *Backend) query(ctx context.Context, op, table, query string, width int, args ...any) ([][]any, error) {
	db, err := b.conn()
	if err != nil {
		return nil, &types.StoreError{Op: op, Table: table, Err: err}
	}
	b.logger.WithFields(logrus.Fields{"table": table, "op": op}).Debug(query)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &types.StoreError{Op: op, Table: table, Err: err}
	}
	defer rows.Close()

	var result [][]any
	for rows.Next() {
		row := make([]any, width)
		ptrs := make([]any, width)
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &types.StoreError{Op: op, Table: table, Err: err}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StoreError{Op: op, Table: table, Err: err}
	}
	return result, nil
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = types.QuoteIdent(n)
	}
	return strings.Join(quoted, ",")
}

func qualify(table, column string) string {
	return types.QuoteIdent(table) + "." + types.QuoteIdent(column)
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
