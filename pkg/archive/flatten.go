package archive

import (
	"fmt"
	"strings"
)

// Key is the path of one leaf inside a group, e.g. (period1, A, electricity, demand).
type Key []string

// Append returns a new key with the segment appended. The receiver is not modified.
func (k Key) Append(segment string) Key {
	out := make(Key, len(k), len(k)+1)
	copy(out, k)
	return append(out, segment)
}

// String joins the segments with "/".
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Equal reports whether both keys have identical segments.
func (k Key) Equal(o Key) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if k[i] != o[i] {
			return false
		}
	}
	return true
}

// id is the map key for a Key. NUL never appears in archive names.
func (k Key) id() string {
	return strings.Join(k, "\x00")
}

// Entry is one flattened leaf.
type Entry struct {
	Key   Key
	Array Array
}

// FlatMap maps keys to arrays and remembers insertion order.
type FlatMap struct {
	order []Key
	items map[string]Array
}

// NewFlatMap creates an empty map.
func NewFlatMap() *FlatMap {
	return &FlatMap{items: make(map[string]Array)}
}

// Set stores an array. Re-setting a key keeps its original position.
func (m *FlatMap) Set(k Key, a Array) {
	id := k.id()
	if _, exists := m.items[id]; !exists {
		m.order = append(m.order, append(Key{}, k...))
	}
	m.items[id] = a
}

// Get returns the array stored under k.
func (m *FlatMap) Get(k Key) (Array, bool) {
	a, ok := m.items[k.id()]
	return a, ok
}

// Len returns the number of leaves.
func (m *FlatMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Keys returns the keys in insertion order.
func (m *FlatMap) Keys() []Key {
	if m == nil {
		return nil
	}
	out := make([]Key, len(m.order))
	for i, k := range m.order {
		out[i] = append(Key{}, k...)
	}
	return out
}

// Entries returns all leaves in insertion order.
func (m *FlatMap) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.order))
	for i, k := range m.order {
		out[i] = Entry{Key: append(Key{}, k...), Array: m.items[k.id()]}
	}
	return out
}

// Flatten walks n and returns every leaf keyed by prefix plus its path below n.
// The name of n itself is not part of the key when n is a group. Rank-0 leaves
// are stored as one-element arrays. Order follows traversal order.
func Flatten(n Node, prefix Key) (*FlatMap, error) {
	out := NewFlatMap()
	if g, ok := n.(*Group); ok && g != nil {
		if err := flattenGroup(out, g, prefix); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := visit(out, n, prefix); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenGroup(out *FlatMap, g *Group, prefix Key) error {
	for _, child := range g.children {
		if err := visit(out, child, prefix); err != nil {
			return err
		}
	}
	return nil
}

func visit(out *FlatMap, n Node, prefix Key) error {
	switch v := n.(type) {
	case *Group:
		if v == nil {
			return fmt.Errorf("%w: nil group under %q", ErrMalformedTree, prefix.String())
		}
		return flattenGroup(out, v, prefix.Append(v.name))
	case *Leaf:
		if v == nil {
			return fmt.Errorf("%w: nil leaf under %q", ErrMalformedTree, prefix.String())
		}
		if v.data.dtype == 0 {
			return fmt.Errorf("%w: leaf %q has no dtype", ErrMalformedTree, prefix.Append(v.name).String())
		}
		out.Set(prefix.Append(v.name), v.data.Materialize())
		return nil
	default:
		return fmt.Errorf("%w: unexpected node %T under %q", ErrMalformedTree, n, prefix.String())
	}
}

// Nest rebuilds a tree from a flat map. It is the inverse of Flatten for
// trees without empty groups.
func Nest(m *FlatMap) (*Group, error) {
	root := NewGroup("")
	for _, e := range m.Entries() {
		if len(e.Key) == 0 {
			return nil, fmt.Errorf("%w: empty key", ErrMalformedTree)
		}
		parent := root
		for _, seg := range e.Key[:len(e.Key)-1] {
			child, ok := parent.Child(seg)
			if !ok {
				g := NewGroup(seg)
				if err := parent.Add(g); err != nil {
					return nil, err
				}
				parent = g
				continue
			}
			g, ok := child.(*Group)
			if !ok {
				return nil, fmt.Errorf("%w: %q is both a leaf and a group", ErrMalformedTree, e.Key.String())
			}
			parent = g
		}
		if err := parent.Add(NewLeaf(e.Key[len(e.Key)-1], e.Array)); err != nil {
			return nil, err
		}
	}
	return root, nil
}
