// Command rowgraph runs a query against a SQLite database and prints the
// result rows as nested JSON, using "$" in column aliases to build nesting.
//
//	rowgraph query --db shop.db 'SELECT id, city AS "address$city" FROM customers'
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/go-mizu/rowgraph"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rowgraph",
		Short:         "Materialize SQL result rows into nested objects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newQueryCmd())
	return root
}

type queryOptions struct {
	db      string
	explain bool
	verbose bool
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:   "query [sql] [args...]",
		Short: "Run a query and print the rows as nested JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args[0], args[1:])
		},
	}
	cmd.Flags().StringVarP(&opts.db, "db", "d", "", "Path to the SQLite database")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Print the node tree built for the first row instead of the rows")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log unmapped columns and type conversions")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

var errNoRows = errors.New("query returned no rows")

func runQuery(ctx context.Context, stdout, stderr io.Writer, opts queryOptions, query string, params []string) error {
	db, err := sql.Open("sqlite", opts.db)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.db, err)
	}
	defer func() { _ = db.Close() }()

	level := slog.LevelError
	if opts.verbose {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	m := rowgraph.NewMapper[map[string]any](rowgraph.WithLogger(logger))

	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p
	}
	if opts.explain {
		return explainFirst(ctx, stdout, m, db, query, args)
	}

	out, err := m.Query(ctx, db, query, args...)
	if err != nil {
		return err
	}
	if out == nil {
		out = []map[string]any{}
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// explainFirst prints the node tree m builds for the first row of query.
func explainFirst(ctx context.Context, w io.Writer, m *rowgraph.Mapper[map[string]any], db *sql.DB, query string, args []any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return errNoRows
	}
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	vals := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = &vals[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	tree, err := m.Explain(rowgraph.NewRecord(cols, vals...))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, tree)
	return err
}
