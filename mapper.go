package rowgraph

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Option configures a Mapper.
type Option func(*config)

type config struct {
	binder   Binder
	registry *Registry
	logger   *slog.Logger
}

// WithBinder sets the binder describing target types. The default is a
// StructBinder, which also handles string-keyed maps.
func WithBinder(b Binder) Option {
	return func(c *config) { c.binder = b }
}

// WithRegistry sets the constructor registry of the default StructBinder.
// It has no effect together with WithBinder.
func WithRegistry(r *Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithLogger sets the sink for warnings about unmapped columns and attempted
// type conversions. By default they are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Mapper materializes rows into values of type T.
//
// On the first row of each column layout the mapper groups the column names,
// builds a node tree with its binder and caches it; later rows with the same
// layout reuse the tree. Trees are built under sync.Once and converters are
// cached with compare-and-swap, so a Mapper is safe for concurrent use.
type Mapper[T any] struct {
	rt     reflect.Type
	binder Binder
	logger *slog.Logger
	eval   *evaluator

	planCache sync.Map // key: planKey -> *plan
}

// NewMapper returns a Mapper for T.
func NewMapper[T any](opts ...Option) *Mapper[T] {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.binder == nil {
		cfg.binder = &StructBinder{Registry: cfg.registry}
	}
	return &Mapper[T]{
		rt:     reflect.TypeOf((*T)(nil)).Elem(),
		binder: cfg.binder,
		logger: cfg.logger,
		eval:   &evaluator{binder: cfg.binder, logger: cfg.logger},
	}
}

// --- package-level lazy default mappers (used by Query/Get/Refresh) ---

var (
	defaultBinder     *StructBinder
	defaultBinderOnce sync.Once
	defaultMappers    sync.Map // key: reflect.Type -> *Mapper[T]
)

// DefaultMapper returns the shared Mapper for T used by Query, Get and
// Refresh. It binds with the package registry and discards log output.
func DefaultMapper[T any]() *Mapper[T] { return getMapper[T]() }

func getMapper[T any]() *Mapper[T] {
	defaultBinderOnce.Do(func() { defaultBinder = &StructBinder{} })
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if v, ok := defaultMappers.Load(rt); ok {
		return v.(*Mapper[T])
	}
	v, _ := defaultMappers.LoadOrStore(rt, NewMapper[T](WithBinder(defaultBinder)))
	return v.(*Mapper[T])
}

// ---------------- Planning & caches ----------------

type planKey struct {
	hash  uint64 // FNV-1a of normalized columns
	ncols int
}

type plan struct {
	once sync.Once
	cols []string // normalized column names the tree was built for
	root Node     // *ComplexNode, or *SimpleNode for scalar T
	err  error
}

// Map materializes row into a new T. It returns the zero T when T is a
// pointer or map type and every mapped cell is NULL.
func (m *Mapper[T]) Map(row Row) (T, error) {
	var out T
	if row == nil {
		return out, ErrNilRow
	}
	p, err := m.getPlan(row)
	if err != nil {
		return out, err
	}
	switch root := p.root.(type) {
	case *SimpleNode:
		err = m.eval.read(root, reflect.ValueOf(&out).Elem(), row)
		return out, err
	case *ComplexNode:
		v, err := m.eval.evaluate(root, row)
		if err != nil || v == nil {
			return out, err
		}
		return v.(T), nil
	}
	return out, nil
}

// Load overlays the mapped cells of row onto the existing value at dst.
// Nested objects already present are updated in place rather than replaced.
// A nil pointer or map at *dst is allocated first.
func (m *Mapper[T]) Load(dst *T, row Row) error {
	if dst == nil {
		return ErrNilInstance
	}
	if row == nil {
		return ErrNilRow
	}
	p, err := m.getPlan(row)
	if err != nil {
		return err
	}
	h := reflect.ValueOf(dst).Elem()
	root, ok := p.root.(*ComplexNode)
	if !ok {
		return m.eval.read(p.root, h, row)
	}
	switch h.Kind() {
	case reflect.Ptr:
		if h.IsNil() {
			h.Set(reflect.New(h.Type().Elem()))
		}
		h = h.Elem()
	case reflect.Map:
		if h.IsNil() {
			h.Set(reflect.MakeMap(h.Type()))
		}
	}
	return m.eval.load(root, h, row)
}

// Build compiles the node tree for row's column layout without evaluating
// the row. Use it to surface configuration errors before streaming rows.
func (m *Mapper[T]) Build(row Row) error {
	if row == nil {
		return ErrNilRow
	}
	_, err := m.getPlan(row)
	return err
}

// Explain returns a description of the node tree for row's column layout.
func (m *Mapper[T]) Explain(row Row) (string, error) {
	if row == nil {
		return "", ErrNilRow
	}
	p, err := m.getPlan(row)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	writeTree(&sb, p.root, 0)
	return sb.String(), nil
}

func (m *Mapper[T]) getPlan(row Row) (*plan, error) {
	cols := make([]string, row.FieldCount())
	if len(cols) == 0 {
		return nil, fmt.Errorf("rowgraph: row has zero columns")
	}
	for i := range cols {
		cols[i] = normalizeColAscii(row.FieldName(i))
	}
	key := layoutKey(cols)

	v, ok := m.planCache.Load(key)
	if !ok {
		v, _ = m.planCache.LoadOrStore(key, &plan{})
	}
	p := v.(*plan)
	p.once.Do(func() {
		p.cols = cols
		p.root, p.err = m.compile(cols)
	})
	if !slices.Equal(p.cols, cols) {
		// Hash collision with another layout: build this one uncached.
		q := &plan{cols: cols}
		q.root, q.err = m.compile(cols)
		return q, q.err
	}
	return p, p.err
}

// layoutKey hashes normalized column names.
func layoutKey(cols []string) planKey {
	h := fnv.New64a()
	for _, c := range cols {
		_, _ = h.Write([]byte(c))
		_, _ = h.Write([]byte{0})
	}
	return planKey{hash: h.Sum64(), ncols: len(cols)}
}

func (m *Mapper[T]) compile(cols []string) (Node, error) {
	if !isComposite(m.rt) {
		if len(cols) != 1 {
			return nil, fmt.Errorf("rowgraph: cannot map %d columns into %s; use a struct", len(cols), m.rt)
		}
		return NewSimpleNode(0, &rootMember{typ: m.rt}), nil
	}
	root, err := m.binder.Root(m.rt)
	if err != nil {
		return nil, err
	}
	if err := buildTree(m.binder, root, cols, m.logger); err != nil {
		return nil, err
	}
	return root, nil
}

// rootMember assigns a scalar root value directly.
type rootMember struct {
	typ reflect.Type
}

func (r *rootMember) Name() string       { return "" }
func (r *rootMember) Type() reflect.Type { return r.typ }

func (r *rootMember) Get(reflect.Value) (reflect.Value, bool) { return reflect.Value{}, false }

func (r *rootMember) Set(obj reflect.Value, v any) error {
	rv, ok := assignableValue(v, r.typ)
	if !ok {
		return fmt.Errorf("%w: cannot assign %T to %s", ErrTypeMismatch, v, r.typ)
	}
	obj.Set(rv)
	return nil
}
