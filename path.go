package rowgraph

import "strings"

// PathDelimiter separates nesting segments in a column name: "Bar$Foo" is
// member Foo of the object bound to member Bar.
const PathDelimiter = "$"

// leaf is one column inside a group.
type leaf struct {
	ordinal int
	name    string
}

// group collects the leaves that share a depth, a parent path and a name.
// The root group has depth 0 and an empty name.
type group struct {
	depth  int
	name   string
	parent string // full path of the enclosing group, "" for depth <= 1
	leaves []leaf
}

// path is the group's own full path, used as the parent key of its children.
func (g *group) path() string {
	if g.parent == "" {
		return g.name
	}
	return g.parent + PathDelimiter + g.name
}

type groupKey struct {
	depth  int
	parent string
	name   string
}

// layout is the grouping of one column-name list.
type layout struct {
	root   *group
	groups []*group // first-appearance order, root excluded
}

// groupColumns splits every column name on PathDelimiter and groups leaves by
// (depth, parent path, name). It only looks at names, never at values.
// Groups for intermediate segments that carry no leaves of their own are
// synthesized so deeper groups stay reachable from the root.
func groupColumns(names []string) *layout {
	l := &layout{root: &group{}}
	index := make(map[groupKey]*group)

	lookup := func(depth int, parent, name string) *group {
		if depth == 0 {
			return l.root
		}
		k := groupKey{depth: depth, parent: parent, name: name}
		if g, ok := index[k]; ok {
			return g
		}
		g := &group{depth: depth, name: name, parent: parent}
		index[k] = g
		l.groups = append(l.groups, g)
		return g
	}

	for ordinal, name := range names {
		segs := strings.Split(name, PathDelimiter)
		n := len(segs)
		// Make sure every ancestor exists, shallowest first.
		for d := 1; d < n-1; d++ {
			lookup(d, strings.Join(segs[:d-1], PathDelimiter), segs[d-1])
		}
		var g *group
		if n == 1 {
			g = l.root
		} else {
			g = lookup(n-1, strings.Join(segs[:n-2], PathDelimiter), segs[n-2])
		}
		g.leaves = append(g.leaves, leaf{ordinal: ordinal, name: segs[n-1]})
	}
	return l
}

// children returns the groups one level below g whose parent is g.
func (l *layout) children(g *group) []*group {
	p := ""
	if g != l.root {
		p = g.path()
	}
	var out []*group
	for _, c := range l.groups {
		if c.depth == g.depth+1 && c.parent == p {
			out = append(out, c)
		}
	}
	return out
}
