package archive

import (
	"fmt"
	"strings"
)

// Node is one entry of an archive tree: either a *Group or a *Leaf.
type Node interface {
	// Name returns the node's name within its parent group
	Name() string
	node()
}

// Group is an ordered mapping of child names to nodes.
type Group struct {
	name     string
	children []Node
	index    map[string]int
}

// NewGroup creates a group with the given children, in order.
// Duplicate child names are rejected by Add; NewGroup panics on them since
// it is meant for literal trees in code and tests.
func NewGroup(name string, children ...Node) *Group {
	g := &Group{name: name, index: make(map[string]int)}
	for _, c := range children {
		if err := g.Add(c); err != nil {
			panic(err)
		}
	}
	return g
}

func (g *Group) node() {}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Len returns the number of direct children.
func (g *Group) Len() int { return len(g.children) }

// Children returns the direct children in insertion order.
func (g *Group) Children() []Node {
	return append([]Node{}, g.children...)
}

// Child returns the direct child with the given name.
func (g *Group) Child(name string) (Node, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.children[i], true
}

// Add appends a child. Names must be unique within a group.
func (g *Group) Add(n Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil child in group %q", ErrMalformedTree, g.name)
	}
	if g.index == nil {
		g.index = make(map[string]int)
	}
	if _, exists := g.index[n.Name()]; exists {
		return fmt.Errorf("%w: duplicate name %q in group %q", ErrMalformedTree, n.Name(), g.name)
	}
	g.index[n.Name()] = len(g.children)
	g.children = append(g.children, n)
	return nil
}

// Lookup resolves a slash-separated path such as "design/nodes".
func (g *Group) Lookup(path string) (Node, bool) {
	var cur Node = g
	for _, part := range splitPath(path) {
		grp, ok := cur.(*Group)
		if !ok {
			return nil, false
		}
		next, ok := grp.Child(part)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Leaf is a named array.
type Leaf struct {
	name string
	data Array
}

// NewLeaf creates a leaf.
func NewLeaf(name string, data Array) *Leaf {
	return &Leaf{name: name, data: data}
}

func (l *Leaf) node() {}

// Name returns the leaf name.
func (l *Leaf) Name() string { return l.name }

// Array returns the leaf data.
func (l *Leaf) Array() Array { return l.data }

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
