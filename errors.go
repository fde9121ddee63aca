package rowgraph

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/davecgh/go-spew/spew"
)

// ErrNilRow is returned when Map or Load is called without a row.
var ErrNilRow = errors.New("rowgraph: nil row")

// ErrNilInstance is returned when Load is given a nil destination.
var ErrNilInstance = errors.New("rowgraph: nil instance")

// ErrUnsupportedType is returned when the target type cannot be described by
// the configured binder (e.g. a struct binder given a channel type).
var ErrUnsupportedType = errors.New("rowgraph: unsupported target type")

// ErrAmbiguousArgument is returned while building a node tree when two
// columns under the same object resolve to the same constructor argument key.
var ErrAmbiguousArgument = errors.New("rowgraph: ambiguous constructor argument")

// ErrConstructorNotFound is returned when no registered constructor matches
// the number of constructor-argument columns.
var ErrConstructorNotFound = errors.New("rowgraph: constructor not found")

// ErrAmbiguousConstructor is returned when more than one registered
// constructor matches the number of constructor-argument columns.
var ErrAmbiguousConstructor = errors.New("rowgraph: ambiguous constructor")

// ErrInvalidConstructor is returned by Registry.Register for functions that do
// not return a struct (or pointer to struct), optionally followed by an error.
var ErrInvalidConstructor = errors.New("rowgraph: invalid constructor")

// ErrTypeMismatch reports that a value cannot be assigned to a member or
// passed to a constructor parameter without conversion. The evaluator inspects
// it to decide whether to attempt coercion.
var ErrTypeMismatch = errors.New("rowgraph: type mismatch")

// MappingError carries the member and type a row failed to materialize into.
type MappingError struct {
	Member string       // member or parameter name; empty for the root
	Type   reflect.Type // declared type of the member or parameter
	Value  any          // the offending cell value, if any
	Err    error
}

func (e *MappingError) Error() string {
	name := e.Member
	if name == "" {
		name = "<root>"
	}
	return fmt.Sprintf("rowgraph: map %s (%v) from %s: %v", name, e.Type, formatValue(e.Value), e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

var valueFormatter = spew.ConfigState{
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// formatValue renders a cell value with its dynamic type, e.g. (string)"1".
func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return valueFormatter.Sprintf("%#v", v)
}
