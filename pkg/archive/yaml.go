package archive

import (
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadYAML parses a fixture tree. Mappings become groups in document order,
// sequences become rank-1 leaves and plain scalars become rank-0 leaves.
// Integers stay Int64 unless a sequence mixes in floats; strings are stored
// as byte strings; null is a float NaN.
func ReadYAML(r io.Reader) (*Group, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return NewGroup(""), nil
		}
		return nil, fmt.Errorf("failed to parse archive fixture: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return NewGroup(""), nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: fixture root must be a mapping (line %d)", ErrMalformedTree, root.Line)
	}
	return yamlGroup("", root)
}

func yamlGroup(name string, n *yaml.Node) (*Group, error) {
	g := NewGroup(name)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: non-scalar key at line %d", ErrMalformedTree, k.Line)
		}
		child, err := yamlNode(k.Value, v)
		if err != nil {
			return nil, err
		}
		if err := g.Add(child); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func yamlNode(name string, n *yaml.Node) (Node, error) {
	for n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.MappingNode:
		return yamlGroup(name, n)
	case yaml.SequenceNode:
		a, err := yamlSequence(n.Content)
		if err != nil {
			return nil, fmt.Errorf("leaf %q: %w", name, err)
		}
		return NewLeaf(name, a), nil
	case yaml.ScalarNode:
		a, err := yamlSequence([]*yaml.Node{n})
		if err != nil {
			return nil, fmt.Errorf("leaf %q: %w", name, err)
		}
		a.scalar = true
		return NewLeaf(name, a), nil
	default:
		return nil, fmt.Errorf("%w: unsupported node kind at line %d", ErrMalformedTree, n.Line)
	}
}

func yamlSequence(items []*yaml.Node) (Array, error) {
	var (
		floats  []float64
		ints    []int64
		texts   [][]byte
		isFloat bool
	)
	for _, it := range items {
		if it.Kind != yaml.ScalarNode {
			return Array{}, fmt.Errorf("%w: nested sequence at line %d", ErrMalformedTree, it.Line)
		}
		switch it.ShortTag() {
		case "!!int":
			v, err := strconv.ParseInt(it.Value, 0, 64)
			if err != nil {
				return Array{}, fmt.Errorf("%w: line %d: %v", ErrMalformedTree, it.Line, err)
			}
			ints = append(ints, v)
			floats = append(floats, float64(v))
		case "!!float":
			var f float64
			if err := it.Decode(&f); err != nil {
				return Array{}, fmt.Errorf("%w: line %d: %v", ErrMalformedTree, it.Line, err)
			}
			isFloat = true
			floats = append(floats, f)
		case "!!binary":
			b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(it.Value), ""))
			if err != nil {
				return Array{}, fmt.Errorf("%w: line %d: %v", ErrMalformedTree, it.Line, err)
			}
			texts = append(texts, b)
		case "!!null":
			isFloat = true
			floats = append(floats, math.NaN())
		default:
			texts = append(texts, []byte(it.Value))
		}
	}
	switch {
	case texts != nil && floats != nil:
		return Array{}, fmt.Errorf("%w: sequence mixes text and numbers", ErrMalformedTree)
	case texts != nil:
		return Array{dtype: Bytes, bytes: texts}, nil
	case isFloat:
		return Array{dtype: Float64, floats: floats}, nil
	case ints != nil:
		return Array{dtype: Int64, ints: ints}, nil
	default:
		return Array{dtype: Float64, floats: []float64{}}, nil
	}
}
