// Package pgxrow feeds pgx result sets to rowgraph mappers, so nested
// objects can be materialized straight from a *pgx.Conn, *pgxpool.Pool or
// pgx.Tx without going through database/sql.
package pgxrow

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/go-mizu/rowgraph"
)

// Querier is the subset of *pgx.Conn, *pgxpool.Pool and pgx.Tx used here.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Row adapts the current row of a pgx.Rows to rowgraph.Row. Values are the
// ones decoded by pgx (Rows.Values); NULL is nil.
type Row struct {
	names  []string
	values []any
}

// NewRow returns a Row over the given field descriptions.
func NewRow(fields []pgconn.FieldDescription) *Row {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return &Row{names: names}
}

func (r *Row) FieldCount() int              { return len(r.names) }
func (r *Row) FieldName(ordinal int) string { return r.names[ordinal] }
func (r *Row) IsNull(ordinal int) bool      { return r.values[ordinal] == nil }
func (r *Row) Value(ordinal int) any        { return r.values[ordinal] }

// Next decodes the current row of rows into r.
func (r *Row) Next(rows pgx.Rows) error {
	vals, err := rows.Values()
	if err != nil {
		return err
	}
	if len(vals) != len(r.names) {
		return fmt.Errorf("pgxrow: got %d values for %d fields", len(vals), len(r.names))
	}
	r.values = vals
	return nil
}

// Collect maps every remaining row with m and closes rows. A nil m uses
// rowgraph.DefaultMapper[T].
func Collect[T any](rows pgx.Rows, m *rowgraph.Mapper[T]) ([]T, error) {
	defer rows.Close()
	if m == nil {
		m = rowgraph.DefaultMapper[T]()
	}

	var out []T
	r := NewRow(rows.FieldDescriptions())
	for rows.Next() {
		if err := r.Next(rows); err != nil {
			return nil, err
		}
		v, err := m.Map(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Query runs sql on q and maps every row into T with the default mapper.
func Query[T any](ctx context.Context, q Querier, sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return Collect[T](rows, nil)
}

// Get runs sql on q and maps the first row into T. It returns pgx.ErrNoRows
// when the result is empty.
func Get[T any](ctx context.Context, q Querier, sql string, args ...any) (T, error) {
	var out T
	err := first(ctx, q, sql, args, func(r *Row) (err error) {
		out, err = rowgraph.DefaultMapper[T]().Map(r)
		return err
	})
	return out, err
}

// Refresh runs sql on q and loads the first row into dst, keeping nested
// objects that already exist. It returns pgx.ErrNoRows when the result is
// empty.
func Refresh[T any](ctx context.Context, q Querier, dst *T, sql string, args ...any) error {
	if dst == nil {
		return rowgraph.ErrNilInstance
	}
	return first(ctx, q, sql, args, func(r *Row) error {
		return rowgraph.DefaultMapper[T]().Load(dst, r)
	})
}

func first(ctx context.Context, q Querier, sql string, args []any, fn func(*Row) error) error {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return pgx.ErrNoRows
	}
	r := NewRow(rows.FieldDescriptions())
	if err := r.Next(rows); err != nil {
		return err
	}
	if err := fn(r); err != nil {
		return err
	}
	rows.Close()
	return rows.Err()
}
