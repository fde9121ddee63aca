package rowgraph

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
)

/* -------------------------------------------------------
   Special connector for rows.Next error simulation
--------------------------------------------------------*/

type errNextConnector struct{}

func (c *errNextConnector) Connect(context.Context) (driver.Conn, error) { return &errNextConn{}, nil }
func (c *errNextConnector) Driver() driver.Driver                        { return fakeDriver{} }

type errNextConn struct{}

func (c *errNextConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (c *errNextConn) Close() error                        { return nil }
func (c *errNextConn) Begin() (driver.Tx, error)           { return nil, driver.ErrSkip }
func (c *errNextConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return &errRows{}, nil
}

// errRows fails on first Next(); database/sql exposes it via rows.Err() after Next() returns false.
type errRows struct{}

func (e *errRows) Columns() []string { return []string{"a"} }
func (e *errRows) Close() error      { return nil }
func (e *errRows) Next(dest []driver.Value) error {
	return errors.New("driver next error")
}

/* -------------------------------------------------------
   Tests covering all get.go branches
--------------------------------------------------------*/

func TestGet_SuccessStruct(t *testing.T) {
	type Row struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	db := newTestDB(t, func(q string, _ []driver.NamedValue) ([]string, [][]driver.Value, error) {
		cols := []string{`"ID"`, "`NAME`"}
		rows := [][]driver.Value{{int64(7), []byte("alice")}}
		return cols, rows, nil
	})
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	got, err := Get[Row](ctx, db, "ok")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != 7 || got.Name != "alice" {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestGet_QueryError(t *testing.T) {
	wantErr := errors.New("boom")
	db := newTestDB(t, func(q string, _ []driver.NamedValue) ([]string, [][]driver.Value, error) {
		return nil, nil, wantErr
	})
	defer func() { _ = db.Close() }()

	_, err := Get[int64](context.Background(), db, "any")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestGet_NoRows_ReturnsErrNoRows(t *testing.T) {
	db := newTestDB(t, func(q string, _ []driver.NamedValue) ([]string, [][]driver.Value, error) {
		// No rows; columns present
		return []string{"id"}, [][]driver.Value{}, nil
	})
	defer func() { _ = db.Close() }()

	_, err := Get[int64](context.Background(), db, "empty")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestGet_NextError_SurfacedViaRowsErr(t *testing.T) {
	// Use dedicated connector that always returns errRows; handler is never called.
	db := sql.OpenDB(&errNextConnector{})
	defer func() { _ = db.Close() }()

	_, err := Get[struct {
		A int `db:"a"`
	}](context.Background(), db, "ignored")
	if err == nil || err.Error() != "driver next error" {
		t.Fatalf("expected driver next error, got %v", err)
	}
}

func TestGet_ScanError_PrimitiveTooManyColumns(t *testing.T) {
	// Two columns into primitive T cannot be compiled into a tree.
	db := newTestDB(t, func(q string, _ []driver.NamedValue) ([]string, [][]driver.Value, error) {
		return []string{"a", "b"}, [][]driver.Value{{1, 2}}, nil
	})
	defer func() { _ = db.Close() }()

	_, err := Get[int64](context.Background(), db, "multi")
	if err == nil {
		t.Fatal("expected error for multiple columns into primitive")
	}
}

func TestGet_UsesLazyMapperSingleton(t *testing.T) {
	before := getMapper[int64]()
	db := newTestDB(t, func(q string, _ []driver.NamedValue) ([]string, [][]driver.Value, error) {
		return []string{"n"}, [][]driver.Value{{int64(1)}}, nil
	})
	defer func() { _ = db.Close() }()

	_, err := Get[int64](context.Background(), db, "one")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	after := getMapper[int64]()
	if after == nil || before != after {
		t.Fatal("lazy mapper singleton not stable across Get")
	}
}

func TestGet_NestedStruct(t *testing.T) {
	type Address struct {
		City string
		Zip  *string
	}
	type Row struct {
		ID      int64 `db:"id"`
		Address *Address
	}
	db := newTestDB(t, func(q string, _ []driver.NamedValue) ([]string, [][]driver.Value, error) {
		cols := []string{"id", `"Address$City"`, "address$zip"}
		return cols, [][]driver.Value{{int64(3), "Oslo", nil}}, nil
	})
	defer func() { _ = db.Close() }()

	got, err := Get[Row](context.Background(), db, "nested")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.ID != 3 || got.Address == nil || got.Address.City != "Oslo" || got.Address.Zip != nil {
		t.Fatalf("unexpected row: %+v", got)
	}
}

/* -------------------------------------------------------
   Refresh
--------------------------------------------------------*/

func TestRefresh_KeepsNestedIdentity(t *testing.T) {
	type Stats struct {
		Visits int64 `db:"visits"`
		Label  string
	}
	type Page struct {
		Title string `db:"title"`
		Stats *Stats `db:"stats"`
	}
	db := newTestDB(t, func(q string, _ []driver.NamedValue) ([]string, [][]driver.Value, error) {
		return []string{"title", "stats$visits"}, [][]driver.Value{{"home", int64(99)}}, nil
	})
	defer func() { _ = db.Close() }()

	stats := &Stats{Visits: 1, Label: "kept"}
	page := Page{Title: "old", Stats: stats}
	if err := Refresh(context.Background(), db, &page, "refresh"); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if page.Title != "home" || page.Stats != stats || stats.Visits != 99 || stats.Label != "kept" {
		t.Fatalf("unexpected page: %+v stats: %+v", page, *page.Stats)
	}
}

func TestRefresh_NoRows(t *testing.T) {
	type Page struct {
		Title string `db:"title"`
	}
	db := newTestDB(t, func(q string, _ []driver.NamedValue) ([]string, [][]driver.Value, error) {
		return []string{"title"}, [][]driver.Value{}, nil
	})
	defer func() { _ = db.Close() }()

	page := Page{Title: "old"}
	err := Refresh(context.Background(), db, &page, "none")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if page.Title != "old" {
		t.Fatalf("page modified: %+v", page)
	}
}

func TestRefresh_NilDestination(t *testing.T) {
	db := newTestDB(t, func(q string, _ []driver.NamedValue) ([]string, [][]driver.Value, error) {
		t.Fatal("query must not run")
		return nil, nil, nil
	})
	defer func() { _ = db.Close() }()

	err := Refresh[struct{ A int }](context.Background(), db, nil, "q")
	if !errors.Is(err, ErrNilInstance) {
		t.Fatalf("expected ErrNilInstance, got %v", err)
	}
}
