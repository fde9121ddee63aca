package rowgraph

import (
	"database/sql"
	"fmt"
	"reflect"
)

// Row is a single result row: a flat, ordered set of named cells.
// Implementations are read forward-only, one row at a time.
type Row interface {
	FieldCount() int
	FieldName(ordinal int) string
	IsNull(ordinal int) bool
	Value(ordinal int) any
}

// Record is a slice-backed Row. A nil cell is NULL, including a typed nil
// pointer, map, slice or interface.
type Record struct {
	Columns []string
	Values  []any
}

// NewRecord returns a Record over the given columns and cell values.
func NewRecord(columns []string, values ...any) *Record {
	return &Record{Columns: columns, Values: values}
}

func (r *Record) FieldCount() int              { return len(r.Columns) }
func (r *Record) FieldName(ordinal int) string { return r.Columns[ordinal] }

func (r *Record) IsNull(ordinal int) bool {
	return ordinal >= len(r.Values) || isNilCell(r.Values[ordinal])
}

func (r *Record) Value(ordinal int) any {
	if ordinal >= len(r.Values) || isNilCell(r.Values[ordinal]) {
		return nil
	}
	return r.Values[ordinal]
}

func isNilCell(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// rowScanner reads *sql.Rows into a reusable Record.
type rowScanner struct {
	rec  Record
	dest []any
}

func newRowScanner(rows *sql.Rows) (*rowScanner, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("rowgraph: query returned zero columns")
	}
	s := &rowScanner{
		rec:  Record{Columns: cols, Values: make([]any, len(cols))},
		dest: make([]any, len(cols)),
	}
	for i := range s.dest {
		s.dest[i] = &s.rec.Values[i]
	}
	return s, nil
}

// scan reads the current row. The returned Record is overwritten by the next call.
func (s *rowScanner) scan(rows *sql.Rows) (*Record, error) {
	clear(s.rec.Values)
	if err := rows.Scan(s.dest...); err != nil {
		return nil, err
	}
	return &s.rec, nil
}

// ---------------- Column normalization (ASCII fast-path) ----------------

// normalizeColAscii strips one layer of identifier quoting. Case is kept so
// map records preserve column spelling; struct lookups fold case themselves.
func normalizeColAscii(s string) string {
	if l := len(s); l >= 2 {
		switch s[0] {
		case '"':
			if s[l-1] == '"' {
				s = s[1 : l-1]
			}
		case '`':
			if s[l-1] == '`' {
				s = s[1 : l-1]
			}
		case '[':
			if s[l-1] == ']' {
				s = s[1 : l-1]
			}
		}
	}
	return s
}

func toLowerAscii(s string) string {
	var need bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			need = true
			break
		}
	}
	if !need {
		return s
	}
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c = c + ('a' - 'A')
		}
		b[i] = c
	}
	return string(b)
}
