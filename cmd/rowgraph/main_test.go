package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec(`
		CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT, city TEXT);
		INSERT INTO customers VALUES (1, 'ada', 'London'), (2, 'grace', NULL);
	`)
	require.NoError(t, err)
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryCommand_PrintsNestedJSON(t *testing.T) {
	path := seedDB(t)

	out, err := execute(t, "query", "--db", path,
		`SELECT id, name, city AS "address$city" FROM customers WHERE id >= ? ORDER BY id`, "1")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "ada", got[0]["name"])
	assert.Equal(t, map[string]any{"city": "London"}, got[0]["address"])
	assert.Nil(t, got[1]["address"])
}

func TestQueryCommand_Explain(t *testing.T) {
	path := seedDB(t)

	out, err := execute(t, "query", "--db", path, "--explain",
		`SELECT id, city AS "address$city" FROM customers`)
	require.NoError(t, err)
	assert.Contains(t, out, "<root>")
	assert.Contains(t, out, "id <- column 0")
	assert.Contains(t, out, "city <- column 1")

	_, err = execute(t, "query", "--db", path, "--explain", `SELECT id FROM customers WHERE id < 0`)
	assert.ErrorIs(t, err, errNoRows)
}

func TestQueryCommand_RequiresDB(t *testing.T) {
	_, err := execute(t, "query", "SELECT 1")
	assert.Error(t, err)
}

func TestQueryCommand_EmptyResultIsEmptyArray(t *testing.T) {
	path := seedDB(t)

	out, err := execute(t, "query", "--db", path, `SELECT id FROM customers WHERE id < 0`)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}
