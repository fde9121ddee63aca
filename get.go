package rowgraph

import (
	"context"
	"database/sql"
)

// Get executes the SQL query and materializes the first row into a value of type T.
//
// It returns [sql.ErrNoRows] if the query yields no rows and does not enforce
// "exactly one row" beyond the first; if more rows exist, they are ignored.
// You should use LIMIT 1 (or an equivalent WHERE clause) when you require
// at-most-one row. Mapping rules are those of [Query].
//
// Example:
//
//	u, err := rowgraph.Get[User](ctx, db, `SELECT id, email FROM users WHERE id = $1`, 42)
//	if errors.Is(err, sql.ErrNoRows) {
//	    // handle not found
//	}
func Get[T any](ctx context.Context, q Querier, query string, args ...any) (T, error) {
	return getMapper[T]().Get(ctx, q, query, args...)
}

// Refresh executes the SQL query and loads the first row into the existing
// value at dst, keeping nested objects that are already present and
// overwriting only the members the row's columns map to.
//
// It returns [sql.ErrNoRows] if the query yields no rows; dst is untouched then.
func Refresh[T any](ctx context.Context, q Querier, dst *T, query string, args ...any) error {
	return getMapper[T]().Refresh(ctx, q, dst, query, args...)
}

// Get executes the SQL query and materializes the first row with m.
func (m *Mapper[T]) Get(ctx context.Context, q Querier, query string, args ...any) (out T, err error) {
	err = m.first(ctx, q, query, args, func(rec *Record) error {
		v, mapErr := m.Map(rec)
		out = v
		return mapErr
	})
	return out, err
}

// Refresh executes the SQL query and loads the first row into dst with m.
func (m *Mapper[T]) Refresh(ctx context.Context, q Querier, dst *T, query string, args ...any) error {
	if dst == nil {
		return ErrNilInstance
	}
	return m.first(ctx, q, query, args, func(rec *Record) error {
		return m.Load(dst, rec)
	})
}

func (m *Mapper[T]) first(ctx context.Context, q Querier, query string, args []any, fn func(*Record) error) (err error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	// Ensure Close error is propagated if no earlier error occurred.
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if !rows.Next() {
		if ne := rows.Err(); ne != nil {
			return ne
		}
		return sql.ErrNoRows
	}

	sc, err := newRowScanner(rows)
	if err != nil {
		return err
	}
	rec, err := sc.scan(rows)
	if err != nil {
		return err
	}
	return fn(rec)
}
