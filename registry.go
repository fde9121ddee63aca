package rowgraph

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Constructor is a registered function building a struct type from
// positional arguments.
type Constructor struct {
	fn     reflect.Value
	out    reflect.Type // struct type produced (pointer stripped)
	params []Param
}

// Params are the declared parameters in order.
func (c *Constructor) Params() []Param { return c.params }

// Arity is the number of declared parameters.
func (c *Constructor) Arity() int { return len(c.params) }

func (c *Constructor) String() string {
	name := runtime.FuncForPC(c.fn.Pointer()).Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return fmt.Sprintf("%s/%d", name, len(c.params))
}

// call invokes the constructor and returns an addressable struct value.
// Arguments that are not assignable to their parameter yield ErrTypeMismatch
// without invoking the function.
func (c *Constructor) call(args []any) (reflect.Value, error) {
	in := make([]reflect.Value, len(c.params))
	for i, p := range c.params {
		v, ok := assignableValue(args[i], p.Type)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: argument %d (%s) of %s", ErrTypeMismatch, i, p.Type, c)
		}
		in[i] = v
	}
	out := c.fn.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return reflect.Value{}, out[1].Interface().(error)
	}
	return settle(out[0], c.out)
}

// settle copies a constructor result (S or *S) into an addressable S.
func settle(v reflect.Value, st reflect.Type) (reflect.Value, error) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("rowgraph: constructor for %s returned nil", st)
		}
		return v.Elem(), nil
	}
	h := reflect.New(st).Elem()
	h.Set(v)
	return h, nil
}

// Registry holds the constructors the struct binder may use, keyed by the
// struct type they produce. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type][]*Constructor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[reflect.Type][]*Constructor)}
}

var defaultRegistry = NewRegistry()

// RegisterConstructor adds constructors to the package-level registry used by
// mappers built without WithRegistry.
func RegisterConstructor(fns ...any) error {
	return defaultRegistry.Register(fns...)
}

// Register adds constructor functions. Each must return S, *S, (S, error) or
// (*S, error) for a struct type S. A zero-argument function becomes the
// type's parameterless constructor; only one may be registered per type.
func (r *Registry) Register(fns ...any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fn := range fns {
		c, err := newConstructor(fn)
		if err != nil {
			return err
		}
		if c.Arity() == 0 && r.parameterlessLocked(c.out) != nil {
			return fmt.Errorf("%w: second parameterless constructor for %s", ErrAmbiguousConstructor, c.out)
		}
		r.byType[c.out] = append(r.byType[c.out], c)
	}
	return nil
}

// Constructors returns the constructors registered for t (pointers stripped).
func (r *Registry) Constructors(t reflect.Type) []*Constructor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Constructor(nil), r.byType[derefPtr(t)]...)
}

// Parameterless returns the zero-argument constructor for t, or nil.
func (r *Registry) Parameterless(t reflect.Type) *Constructor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parameterlessLocked(derefPtr(t))
}

func (r *Registry) parameterlessLocked(st reflect.Type) *Constructor {
	for _, c := range r.byType[st] {
		if c.Arity() == 0 {
			return c
		}
	}
	return nil
}

func newConstructor(fn any) (*Constructor, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, fmt.Errorf("%w: %T is not a function", ErrInvalidConstructor, fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("%w: %s is variadic", ErrInvalidConstructor, ft)
	}
	switch {
	case ft.NumOut() == 1:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
	default:
		return nil, fmt.Errorf("%w: %s must return T or (T, error)", ErrInvalidConstructor, ft)
	}
	out := ft.Out(0)
	if out.Kind() == reflect.Ptr {
		out = out.Elem()
	}
	if out.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s does not build a struct", ErrInvalidConstructor, ft)
	}
	c := &Constructor{fn: fv, out: out, params: make([]Param, ft.NumIn())}
	for i := range c.params {
		c.params[i] = Param{Index: i, Name: fmt.Sprintf("arg%d", i), Type: ft.In(i)}
	}
	return c, nil
}

// resolveConstructor picks the unique constructor of the given arity.
func resolveConstructor(ctors []*Constructor, t reflect.Type, arity int) (*Constructor, error) {
	var found *Constructor
	for _, c := range ctors {
		if c.Arity() != arity {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %s has more than one constructor taking %d arguments", ErrAmbiguousConstructor, t, arity)
		}
		found = c
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s has no constructor taking %d arguments", ErrConstructorNotFound, t, arity)
	}
	return found, nil
}
