package rowgraph

import (
	"database/sql"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Binder describes a family of target types to the node builder: which
// members exist, how constructor parameters are bound and how instances are
// created. The builder and evaluator depend only on this interface.
//
// SimpleMember and ComplexMember return nil when name matches nothing; the
// builder then tries the name as a constructor argument key.
type Binder interface {
	Root(t reflect.Type) (*ComplexNode, error)
	SimpleMember(parent *ComplexNode, name string, ordinal int) *SimpleNode
	ComplexMember(parent *ComplexNode, name string) *ComplexNode
	SimpleParam(ordinal int, p Param) *SimpleNode
	ComplexParam(p Param) *ComplexNode
	Constructors(n *ComplexNode) []*Constructor
	New(n *ComplexNode) (reflect.Value, error)
}

// NewSimpleParamNode binds column ordinal to constructor parameter p.
func NewSimpleParamNode(ordinal int, p Param) *SimpleNode {
	return &SimpleNode{nodeBase: nodeBase{param: &p}, ordinal: ordinal}
}

// NewComplexParamNode returns a node building constructor parameter p from
// nested columns.
func NewComplexParamNode(typ reflect.Type, p Param) *ComplexNode {
	return &ComplexNode{nodeBase: nodeBase{param: &p}, typ: typ}
}

// StructBinder binds Go structs. Members are exported fields matched by
// `db:"name"` tag first, otherwise case-insensitively by field name; embedded
// structs and `db:",inline"` fields are flattened, `db:"-"` is skipped.
// Constructors come from Registry (the package registry when nil).
// Nodes of map type are delegated to MapBinder.
type StructBinder struct {
	Registry *Registry

	structIndexCache sync.Map // key: reflect.Type -> *fieldIndex
	maps             MapBinder
}

var _ Binder = (*StructBinder)(nil)

func (b *StructBinder) registry() *Registry {
	if b.Registry != nil {
		return b.Registry
	}
	return defaultRegistry
}

func (b *StructBinder) Root(t reflect.Type) (*ComplexNode, error) {
	if isMapRecord(t) {
		return b.maps.Root(t)
	}
	if !isStruct(t) || !isComposite(t) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Ptr {
		return nil, fmt.Errorf("%w: %s has more than one pointer level", ErrUnsupportedType, t)
	}
	return NewComplexNode(t, nil), nil
}

func (b *StructBinder) SimpleMember(parent *ComplexNode, name string, ordinal int) *SimpleNode {
	if isMapRecord(parent.typ) {
		return b.maps.SimpleMember(parent, name, ordinal)
	}
	f, ok := b.structIndex(parent.typ).byName[toLowerAscii(name)]
	if !ok {
		return nil
	}
	return NewSimpleNode(ordinal, f)
}

func (b *StructBinder) ComplexMember(parent *ComplexNode, name string) *ComplexNode {
	if isMapRecord(parent.typ) {
		return b.maps.ComplexMember(parent, name)
	}
	f, ok := b.structIndex(parent.typ).byName[toLowerAscii(name)]
	if !ok {
		return nil
	}
	switch {
	case isComposite(f.typ):
		return NewComplexNode(f.typ, f)
	case f.typ.Kind() == reflect.Interface && f.typ.NumMethod() == 0:
		return NewComplexNode(recordType, f)
	}
	return nil
}

func (b *StructBinder) SimpleParam(ordinal int, p Param) *SimpleNode {
	return NewSimpleParamNode(ordinal, p)
}

func (b *StructBinder) ComplexParam(p Param) *ComplexNode {
	if !isComposite(p.Type) {
		return nil
	}
	return NewComplexParamNode(p.Type, p)
}

func (b *StructBinder) Constructors(n *ComplexNode) []*Constructor {
	if isMapRecord(n.typ) {
		return nil
	}
	return b.registry().Constructors(n.typ)
}

// New runs the parameterless constructor when one is registered and falls
// back to the zero value otherwise.
func (b *StructBinder) New(n *ComplexNode) (reflect.Value, error) {
	if isMapRecord(n.typ) {
		return b.maps.New(n)
	}
	st := derefPtr(n.typ)
	if c := b.registry().Parameterless(st); c != nil {
		return c.call(nil)
	}
	return reflect.New(st).Elem(), nil
}

// ---------------- Struct indexing & tags ----------------

type fieldIndex struct {
	byName map[string]*fieldMember // lower-case column name -> field
}

func (b *StructBinder) structIndex(t reflect.Type) *fieldIndex {
	rt := derefPtr(t)
	if v, ok := b.structIndexCache.Load(rt); ok {
		return v.(*fieldIndex)
	}
	fi := buildStructIndex(rt)
	v, _ := b.structIndexCache.LoadOrStore(rt, &fi)
	return v.(*fieldIndex)
}

func buildStructIndex(rt reflect.Type) fieldIndex {
	idx := fieldIndex{byName: make(map[string]*fieldMember)}

	var walk func(t reflect.Type, base []int, forceInline bool)
	walk = func(t reflect.Type, base []int, forceInline bool) {
		t = derefPtr(t)
		if t.Kind() != reflect.Struct {
			return
		}
		n := t.NumField()
		for i := 0; i < n; i++ {
			sf := t.Field(i)
			if sf.PkgPath != "" && !sf.Anonymous { // unexported, non-anonymous
				continue
			}
			tag := sf.Tag.Get("db")
			name, inline, omit := parseTag(tag)
			if omit {
				continue
			}
			ft := sf.Type
			path := append(append([]int(nil), base...), i)

			if inline || (sf.Anonymous && (forceInline || tag == "")) {
				if isStruct(ft) {
					walk(ft, path, inline)
					continue
				}
			}
			if sf.PkgPath != "" { // unexported embedded non-struct
				continue
			}
			if name == "" {
				name = sf.Name
			}
			lc := toLowerAscii(name)
			if _, ok := idx.byName[lc]; !ok {
				idx.byName[lc] = &fieldMember{name: sf.Name, path: path, typ: ft}
			}
		}
	}
	walk(rt, nil, false)
	return idx
}

// parseTag supports: "-", "col", ",inline", "col,inline", "inline,col".
func parseTag(tag string) (name string, inline bool, omit bool) {
	if tag == "-" {
		return "", false, true
	}
	if tag == "" {
		return "", false, false
	}
	start := 0
	for i := 0; i <= len(tag); i++ {
		if i == len(tag) || tag[i] == ',' {
			part := tag[start:i]
			if part == "inline" {
				inline = true
			} else if part != "" && name == "" {
				name = part
			}
			start = i + 1
		}
	}
	return name, inline, false
}

// fieldMember is a struct field reached through an index path; intermediate
// embedded pointers are allocated on access.
type fieldMember struct {
	name string
	path []int
	typ  reflect.Type
}

func (f *fieldMember) Name() string       { return f.name }
func (f *fieldMember) Type() reflect.Type { return f.typ }

func (f *fieldMember) Get(obj reflect.Value) (reflect.Value, bool) {
	return loadable(fieldByPathAlloc(obj, f.path))
}

func (f *fieldMember) Set(obj reflect.Value, v any) error {
	rv, ok := assignableValue(v, f.typ)
	if !ok {
		return fmt.Errorf("%w: cannot assign %T to field %s (%s)", ErrTypeMismatch, v, f.name, f.typ)
	}
	fieldByPathAlloc(obj, f.path).Set(rv)
	return nil
}

// fieldByPathAlloc walks fpath from an addressable struct, allocating nil
// embedded pointers on the way. The final field itself is left untouched.
func fieldByPathAlloc(root reflect.Value, fpath []int) reflect.Value {
	v := root
	for _, i := range fpath {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}

// loadable returns the instance a member value can be loaded into in place.
func loadable(v reflect.Value) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() || v.Elem().Kind() != reflect.Struct {
			return reflect.Value{}, false
		}
		return v.Elem(), true
	case reflect.Struct:
		return v, v.CanSet()
	case reflect.Map:
		return v, !v.IsNil()
	}
	return reflect.Value{}, false
}

// ---------------- Type helpers ----------------

var (
	timeType    = reflect.TypeOf(time.Time{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	recordType  = reflect.TypeOf(map[string]any(nil))
)

func isStruct(t reflect.Type) bool { return derefPtr(t).Kind() == reflect.Struct }

func derefPtr(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func implementsScanner(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(scannerType)
}

// isMapRecord reports whether t is a string-keyed map.
func isMapRecord(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
}

// isComposite reports whether values of t are built from nested columns
// rather than read from a single cell.
func isComposite(t reflect.Type) bool {
	if isMapRecord(t) {
		return true
	}
	base := derefPtr(t)
	if base.Kind() != reflect.Struct || base == timeType {
		return false
	}
	return !implementsScanner(base)
}

// assignableValue returns v as a value of type t. nil becomes the zero value;
// a value assignable to t's element is boxed into a new pointer.
func assignableValue(v any, t reflect.Type) (reflect.Value, bool) {
	if v == nil {
		return reflect.Zero(t), true
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, true
	}
	if t.Kind() == reflect.Ptr && rv.Type().AssignableTo(t.Elem()) {
		p := reflect.New(t.Elem())
		p.Elem().Set(rv)
		return p, true
	}
	return reflect.Value{}, false
}

// finish turns an instance handle into a value of the declared type t.
func finish(h reflect.Value, t reflect.Type) any {
	if t.Kind() == reflect.Ptr && h.Kind() == reflect.Struct {
		return h.Addr().Interface()
	}
	return h.Interface()
}
