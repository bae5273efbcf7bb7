package archive

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixture = `
topology:
  nodes: [A, B]
  periods: [period0]
k_means_specs: {}
operation:
  energy_balance:
    period0:
      A:
        electricity:
          demand: [1, 2.5, 3]
          import: [0, 1]
design:
  networks:
    period0:
      power:
        "1":
          fromNode: !!binary QQ==
          size: 4
          nan: ~
`

func TestReadYAML_Structure(t *testing.T) {
	root, err := ReadYAML(strings.NewReader(fixture))
	require.NoError(t, err)

	var names []string
	for _, c := range root.Children() {
		names = append(names, c.Name())
	}
	require.Equal(t, []string{"topology", "k_means_specs", "operation", "design"}, names)

	kmeans, ok := root.Lookup("k_means_specs")
	require.True(t, ok)
	require.Equal(t, 0, kmeans.(*Group).Len())
}

func TestReadYAML_DTypes(t *testing.T) {
	root, err := ReadYAML(strings.NewReader(fixture))
	require.NoError(t, err)

	leaf := func(path string) Array {
		n, ok := root.Lookup(path)
		require.True(t, ok, path)
		return n.(*Leaf).Array()
	}

	nodes := leaf("topology/nodes")
	require.Equal(t, Bytes, nodes.DType())
	texts, err := nodes.Texts()
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, texts)

	demand := leaf("operation/energy_balance/period0/A/electricity/demand")
	require.Equal(t, Float64, demand.DType())

	imp := leaf("operation/energy_balance/period0/A/electricity/import")
	require.Equal(t, Int64, imp.DType())

	size := leaf("design/networks/period0/power/1/size")
	require.Equal(t, 0, size.Rank())
	require.Equal(t, Int64, size.DType())

	from := leaf("design/networks/period0/power/1/fromNode")
	require.Equal(t, Bytes, from.DType())
	require.Equal(t, [][]byte{[]byte("A")}, from.RawBytes())

	nan := leaf("design/networks/period0/power/1/nan")
	vals, err := nan.Floats()
	require.NoError(t, err)
	require.True(t, math.IsNaN(vals[0]))
}

func TestReadYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"root sequence", "[1, 2]"},
		{"mixed sequence", "x: [1, a]"},
		{"nested sequence", "x: [[1], [2]]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadYAML(strings.NewReader(tt.doc))
			require.ErrorIs(t, err, ErrMalformedTree)
		})
	}

	_, err := ReadYAML(strings.NewReader("x: [1, 2"))
	require.Error(t, err)
}

func TestReadYAML_Empty(t *testing.T) {
	root, err := ReadYAML(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, 0, root.Len())
}
