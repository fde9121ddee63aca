package rowgraph

import (
	"errors"
	"log/slog"
	"reflect"
)

// evaluator materializes node trees against rows.
type evaluator struct {
	binder Binder
	logger *slog.Logger
}

// evaluate computes the value of n for row r. A complex node whose
// contributing cells are all NULL evaluates to nil.
func (e *evaluator) evaluate(n Node, r Row) (any, error) {
	switch n := n.(type) {
	case *SimpleNode:
		if r.IsNull(n.ordinal) {
			return nil, nil
		}
		v := r.Value(n.ordinal)
		if conv := n.converter(); conv != nil {
			cv, err := conv(v)
			if err != nil {
				return nil, e.mappingError(n, v, err)
			}
			return cv, nil
		}
		return v, nil
	case *ComplexNode:
		if allCellsNull(n, r) {
			return nil, nil
		}
		h, err := e.create(n, r)
		if err != nil {
			return nil, err
		}
		if err := e.load(n, h, r); err != nil {
			return nil, err
		}
		v := finish(h, n.typ)
		if conv := n.converter(); conv != nil {
			cv, err := conv(v)
			if err != nil {
				return nil, e.mappingError(n, v, err)
			}
			return cv, nil
		}
		return v, nil
	}
	return nil, nil
}

// allCellsNull reports whether every cell contributing to n is NULL.
func allCellsNull(n Node, r Row) bool {
	switch n := n.(type) {
	case *SimpleNode:
		return r.IsNull(n.ordinal)
	case *ComplexNode:
		for _, a := range n.args {
			if !allCellsNull(a, r) {
				return false
			}
		}
		for _, p := range n.props {
			if !allCellsNull(p, r) {
				return false
			}
		}
	}
	return true
}

// create instantiates n: through the binder's parameterless path when n has
// no constructor, otherwise by evaluating the arguments in declared order and
// invoking the constructor. On a type mismatch the mismatching arguments get
// a cached converter and construction is retried once.
func (e *evaluator) create(n *ComplexNode, r Row) (reflect.Value, error) {
	if n.ctor == nil {
		h, err := e.binder.New(n)
		if err != nil {
			return reflect.Value{}, e.mappingError(n, nil, err)
		}
		return h, nil
	}

	args, err := e.evalArgs(n, r)
	if err != nil {
		return reflect.Value{}, err
	}
	h, err := n.ctor.call(args)
	if errors.Is(err, ErrTypeMismatch) && e.coerceArgs(n, args) {
		if args, err = e.evalArgs(n, r); err != nil {
			return reflect.Value{}, err
		}
		h, err = n.ctor.call(args)
	}
	if err != nil {
		return reflect.Value{}, e.mappingError(n, nil, err)
	}
	return h, nil
}

func (e *evaluator) evalArgs(n *ComplexNode, r Row) ([]any, error) {
	args := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := e.evaluate(a, r)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// coerceArgs caches converters for the arguments not assignable to their
// parameters. It declines when every argument is nil or when any argument
// already carries a converter, so a node is never coerced twice.
func (e *evaluator) coerceArgs(n *ComplexNode, args []any) bool {
	allNil := true
	for i, a := range n.args {
		if a.base().converter() != nil {
			return false
		}
		if args[i] != nil {
			allNil = false
		}
	}
	if allNil {
		return false
	}
	for i, a := range n.args {
		p := n.ctor.params[i]
		if !needsConversion(args[i], p.Type) {
			continue
		}
		e.logConversion(a, args[i], p.Type)
		a.base().cacheConverter(converterFor(p.Type, args[i]))
	}
	return true
}

// load assigns every property child of n into the instance h. Complex
// children without constructor arguments are loaded into the member's
// existing instance when it has one of the node's type; everything else is
// read and assigned, replacing what the member held.
func (e *evaluator) load(n *ComplexNode, h reflect.Value, r Row) error {
	for _, p := range n.props {
		if cn, ok := p.(*ComplexNode); ok && len(cn.args) == 0 {
			if cur, ok := cn.member.Get(h); ok && cur.Type() == derefPtr(cn.typ) {
				if err := e.load(cn, cur, r); err != nil {
					return err
				}
				continue
			}
		}
		if err := e.read(p, h, r); err != nil {
			return err
		}
	}
	return nil
}

// read evaluates p and assigns the result to its member on h. A simple
// member rejecting the value gets a cached converter and one more attempt.
func (e *evaluator) read(p Node, h reflect.Value, r Row) error {
	v, err := e.evaluate(p, r)
	if err != nil {
		return err
	}
	b := p.base()
	err = b.member.Set(h, v)
	if err == nil {
		return nil
	}
	if _, simple := p.(*SimpleNode); !simple || !errors.Is(err, ErrTypeMismatch) || b.converter() != nil {
		return e.mappingError(p, v, err)
	}

	t := b.member.Type()
	e.logConversion(p, v, t)
	conv := converterFor(t, v)
	b.cacheConverter(conv)
	cv, cerr := conv(v)
	if cerr != nil {
		return e.mappingError(p, v, cerr)
	}
	if err := b.member.Set(h, cv); err != nil {
		return e.mappingError(p, v, err)
	}
	return nil
}

func (e *evaluator) logConversion(n Node, v any, to reflect.Type) {
	e.logger.Warn("rowgraph: attempting type conversion",
		"member", n.base().label(),
		"from", formatValue(v),
		"to", to.String())
}

func (e *evaluator) mappingError(n Node, v any, err error) error {
	var me *MappingError
	if errors.As(err, &me) {
		return err
	}
	b := n.base()
	t := b.target()
	if t == nil {
		if cn, ok := n.(*ComplexNode); ok {
			t = cn.typ
		}
	}
	return &MappingError{Member: b.label(), Type: t, Value: v, Err: err}
}
