package rowgraph

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync/atomic"
)

// Converter turns a raw cell (or a built object) into a value assignable to
// its target. Converters are chosen by the coercion policy and cached on nodes.
type Converter func(v any) (any, error)

// Node is a compiled mapping instruction: either a *SimpleNode bound to one
// cell or a *ComplexNode building a nested object. The set is closed.
type Node interface {
	base() *nodeBase
}

type nodeBase struct {
	member Member // nil for the root and for constructor arguments
	param  *Param // non-nil for constructor arguments
	conv   atomic.Pointer[Converter]
}

func (b *nodeBase) base() *nodeBase { return b }

// Member returns the member the node assigns into, or nil.
func (b *nodeBase) Member() Member { return b.member }

func (b *nodeBase) converter() Converter {
	if p := b.conv.Load(); p != nil {
		return *p
	}
	return nil
}

// cacheConverter stores c unless a converter is already set. It reports
// whether c was stored.
func (b *nodeBase) cacheConverter(c Converter) bool {
	return b.conv.CompareAndSwap(nil, &c)
}

// target is the declared type the node's value must be assignable to.
func (b *nodeBase) target() reflect.Type {
	switch {
	case b.param != nil:
		return b.param.Type
	case b.member != nil:
		return b.member.Type()
	}
	return nil
}

func (b *nodeBase) label() string {
	switch {
	case b.param != nil:
		return b.param.Name
	case b.member != nil:
		return b.member.Name()
	}
	return ""
}

// SimpleNode binds one column to a member or constructor parameter.
type SimpleNode struct {
	nodeBase
	ordinal int
}

// NewSimpleNode binds column ordinal to member m.
func NewSimpleNode(ordinal int, m Member) *SimpleNode {
	return &SimpleNode{nodeBase: nodeBase{member: m}, ordinal: ordinal}
}

// Ordinal is the column the node reads.
func (n *SimpleNode) Ordinal() int { return n.ordinal }

// ComplexNode builds an object of type typ from constructor-argument and
// property children.
type ComplexNode struct {
	nodeBase
	typ   reflect.Type
	ctor  *Constructor
	args  []Node // declared parameter order
	props []Node
}

// NewComplexNode returns a node building typ and assigning it to member m
// (nil for roots and parameters).
func NewComplexNode(typ reflect.Type, m Member) *ComplexNode {
	return &ComplexNode{nodeBase: nodeBase{member: m}, typ: typ}
}

// Type is the declared type the node builds.
func (n *ComplexNode) Type() reflect.Type { return n.typ }

// Constructor is the resolved constructor, or nil when the node is a pure
// property bag.
func (n *ComplexNode) Constructor() *Constructor { return n.ctor }

// Args are the constructor-argument children in declared parameter order.
func (n *ComplexNode) Args() []Node { return n.args }

// Properties are the member-assigning children.
func (n *ComplexNode) Properties() []Node { return n.props }

// Param describes one declared constructor parameter.
type Param struct {
	Index int
	Name  string
	Type  reflect.Type
}

// Member is a settable member of a composite value: a struct field or a map key.
//
// Get returns the member's current value as an instance that can be loaded in
// place (an addressable struct or a non-nil map). ok is false when the member
// holds nil or cannot be loaded in place.
type Member interface {
	Name() string
	Type() reflect.Type
	Get(obj reflect.Value) (cur reflect.Value, ok bool)
	Set(obj reflect.Value, v any) error
}

// writeTree prints an indented description of n, one node per line.
func writeTree(w io.Writer, n Node, depth int) {
	pad := strings.Repeat("  ", depth)
	b := n.base()
	name := b.label()
	if name == "" {
		name = "<root>"
	}
	conv := ""
	if b.converter() != nil {
		conv = " (converted)"
	}
	switch n := n.(type) {
	case *SimpleNode:
		_, _ = fmt.Fprintf(w, "%s%s <- column %d%s\n", pad, name, n.ordinal, conv)
	case *ComplexNode:
		ctor := ""
		if n.ctor != nil {
			ctor = " via " + n.ctor.String()
		}
		_, _ = fmt.Fprintf(w, "%s%s: %v%s%s\n", pad, name, n.typ, ctor, conv)
		for _, a := range n.args {
			writeTree(w, a, depth+1)
		}
		for _, p := range n.props {
			writeTree(w, p, depth+1)
		}
	}
}
