package rowgraph

import (
	"fmt"
	"reflect"
)

// MapBinder binds open-ended records: string-keyed maps. Every column name is
// a member, so numeral names become keys rather than constructor arguments.
// Nested groups become nested map[string]any values unless the map's element
// type is itself a string-keyed map.
type MapBinder struct{}

var _ Binder = MapBinder{}

func (MapBinder) Root(t reflect.Type) (*ComplexNode, error) {
	if !isMapRecord(t) {
		return nil, fmt.Errorf("%w: %s is not a string-keyed map", ErrUnsupportedType, t)
	}
	return NewComplexNode(t, nil), nil
}

func (MapBinder) SimpleMember(parent *ComplexNode, name string, ordinal int) *SimpleNode {
	return NewSimpleNode(ordinal, &mapKeyMember{key: name, typ: parent.typ.Elem()})
}

func (MapBinder) ComplexMember(parent *ComplexNode, name string) *ComplexNode {
	elem := parent.typ.Elem()
	m := &mapKeyMember{key: name, typ: elem}
	switch {
	case isMapRecord(elem):
		return NewComplexNode(elem, m)
	case elem.Kind() == reflect.Interface && elem.NumMethod() == 0:
		return NewComplexNode(recordType, m)
	}
	return nil
}

func (MapBinder) SimpleParam(int, Param) *SimpleNode { return nil }
func (MapBinder) ComplexParam(Param) *ComplexNode    { return nil }
func (MapBinder) Constructors(*ComplexNode) []*Constructor {
	return nil
}

func (MapBinder) New(n *ComplexNode) (reflect.Value, error) {
	return reflect.MakeMap(n.typ), nil
}

// mapKeyMember is one key of a string-keyed map.
type mapKeyMember struct {
	key string
	typ reflect.Type // map element type
}

func (m *mapKeyMember) Name() string       { return m.key }
func (m *mapKeyMember) Type() reflect.Type { return m.typ }

func (m *mapKeyMember) keyValue(obj reflect.Value) reflect.Value {
	return reflect.ValueOf(m.key).Convert(obj.Type().Key())
}

func (m *mapKeyMember) Get(obj reflect.Value) (reflect.Value, bool) {
	return loadable(obj.MapIndex(m.keyValue(obj)))
}

func (m *mapKeyMember) Set(obj reflect.Value, v any) error {
	rv, ok := assignableValue(v, m.typ)
	if !ok {
		return fmt.Errorf("%w: cannot assign %T to key %q (%s)", ErrTypeMismatch, v, m.key, m.typ)
	}
	obj.SetMapIndex(m.keyValue(obj), rv)
	return nil
}
