package rowgraph

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
)

// pendingArg is a constructor argument seen before the constructor is known.
// Exactly one of ordinal (>= 0) or sub is set.
type pendingArg struct {
	key     uint64
	ordinal int
	sub     *group
}

// builder turns a column layout into a node tree for one binder.
type builder struct {
	binder Binder
	layout *layout
	logger *slog.Logger
}

// buildTree builds the node tree for root from the column names.
func buildTree(b Binder, root *ComplexNode, names []string, logger *slog.Logger) error {
	bl := &builder{binder: b, layout: groupColumns(names), logger: logger}
	return bl.build(root, bl.layout.root)
}

// build fills n from group g: leaves become simple members or pending
// constructor arguments, child groups become complex members or pending
// complex arguments, and pending arguments are finally matched to the
// constructor whose arity equals their count.
func (bl *builder) build(n *ComplexNode, g *group) error {
	pending := make(map[uint64]pendingArg)
	addPending := func(p pendingArg, what string) error {
		if _, dup := pending[p.key]; dup {
			return fmt.Errorf("%w: key %q used twice under %s (%s)",
				ErrAmbiguousArgument, what, groupLabel(g), n.typ)
		}
		pending[p.key] = p
		return nil
	}

	for _, lf := range g.leaves {
		if sn := bl.binder.SimpleMember(n, lf.name, lf.ordinal); sn != nil {
			n.props = append(n.props, sn)
			continue
		}
		if key, ok := argKey(lf.name); ok {
			if err := addPending(pendingArg{key: key, ordinal: lf.ordinal}, lf.name); err != nil {
				return err
			}
			continue
		}
		bl.logger.Warn("rowgraph: unmapped column",
			"column", lf.ordinal,
			"name", lf.name,
			"group", groupLabel(g),
			"type", n.typ.String())
	}

	for _, cg := range bl.layout.children(g) {
		if cn := bl.binder.ComplexMember(n, cg.name); cn != nil {
			if err := bl.build(cn, cg); err != nil {
				return err
			}
			n.props = append(n.props, cn)
			continue
		}
		if key, ok := argKey(cg.name); ok {
			if err := addPending(pendingArg{key: key, ordinal: -1, sub: cg}, cg.name); err != nil {
				return err
			}
			continue
		}
		bl.logger.Warn("rowgraph: unmapped column group",
			"group", cg.path(),
			"type", n.typ.String())
	}

	if len(pending) == 0 {
		return nil
	}
	return bl.bindConstructor(n, pending)
}

func (bl *builder) bindConstructor(n *ComplexNode, pending map[uint64]pendingArg) error {
	ctor, err := resolveConstructor(bl.binder.Constructors(n), n.typ, len(pending))
	if err != nil {
		return err
	}
	keys := make([]uint64, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	n.ctor = ctor
	n.args = make([]Node, len(keys))
	for i, k := range keys {
		p := pending[k]
		param := ctor.params[i]
		if p.sub == nil {
			sn := bl.binder.SimpleParam(p.ordinal, param)
			if sn == nil {
				return fmt.Errorf("%w: %s cannot bind parameter %d of %s", ErrUnsupportedType, n.typ, i, ctor)
			}
			n.args[i] = sn
			continue
		}
		cn := bl.binder.ComplexParam(param)
		if cn == nil {
			return fmt.Errorf("%w: parameter %d (%s) of %s cannot be built from columns under %q",
				ErrUnsupportedType, i, param.Type, ctor, p.sub.path())
		}
		if err := bl.build(cn, p.sub); err != nil {
			return err
		}
		n.args[i] = cn
	}
	return nil
}

// argKey parses a constructor argument key: a non-negative decimal integer.
func argKey(name string) (uint64, bool) {
	k, err := strconv.ParseUint(name, 10, 64)
	return k, err == nil
}

func groupLabel(g *group) string {
	if g.depth == 0 {
		return "<root>"
	}
	return g.path()
}
