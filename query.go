package rowgraph

import (
	"context"
)

// Query executes the SQL query and materializes all result rows into a slice of T.
//
// T may be a struct, a pointer to struct, a string-keyed map, a primitive, or
// any type implementing [sql.Scanner]. Column names containing "$" build
// nested objects: "customer$name" sets Name on the value bound to the
// Customer field. Numeral names ("1", "2", ...) pass values to the
// constructor registered for the type, in ascending key order.
//
// Extra columns are ignored (and logged at warn level by mappers configured
// with WithLogger); missing columns leave zero values. Query uses a
// lazily-initialized, concurrency-safe default Mapper per T.
//
// Example:
//
//	// Given a *sql.DB (or *sql.Tx, *sql.Conn) in variable `db`:
//	type Address struct{ City string }
//	type User struct {
//	    ID      int64
//	    Email   string
//	    Address *Address
//	}
//
//	ctx := context.Background()
//	users, err := rowgraph.Query[User](ctx, db,
//	    `SELECT id, email, city AS "address$city" FROM users ORDER BY id`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, u := range users {
//	    fmt.Println(u.ID, u.Email, u.Address.City)
//	}
func Query[T any](ctx context.Context, q Querier, query string, args ...any) ([]T, error) {
	return getMapper[T]().Query(ctx, q, query, args...)
}

// Query executes the SQL query and materializes all result rows with m.
func (m *Mapper[T]) Query(ctx context.Context, q Querier, query string, args ...any) (out []T, err error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// Propagate rows.Close() error if nothing else failed.
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	sc, err := newRowScanner(rows)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		rec, scanErr := sc.scan(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		v, mapErr := m.Map(rec)
		if mapErr != nil {
			return nil, mapErr
		}
		out = append(out, v)
	}
	if ne := rows.Err(); ne != nil {
		return nil, ne
	}
	return out, nil
}
