package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMismatch is returned when labels do not fit a table's dimensions
// or when columns disagree on row count.
var ErrSchemaMismatch = errors.New("table: schema mismatch")

// Column is the fixed-arity label of one table column.
type Column interface {
	comparable
	// Labels returns the dimension values in schema order.
	Labels() []string
}

// Schema names the dimensions of a table kind and parses labels into its
// column type.
type Schema[C Column] struct {
	Name       string
	Dimensions []string
	parse      func(labels []string) C
}

// NewSchema defines a table kind. parse receives exactly len(dims) labels.
func NewSchema[C Column](name string, dims []string, parse func(labels []string) C) Schema[C] {
	return Schema[C]{Name: name, Dimensions: dims, parse: parse}
}

// Parse converts labels into a column.
func (s Schema[C]) Parse(labels []string) (C, error) {
	var zero C
	if len(labels) != len(s.Dimensions) {
		return zero, fmt.Errorf("%w: %s expects %d dimensions (%s), got %d (%s)",
			ErrSchemaMismatch, s.Name, len(s.Dimensions), strings.Join(s.Dimensions, ", "),
			len(labels), strings.Join(labels, "/"))
	}
	return s.parse(labels), nil
}

// Dimension returns the position of a dimension, matched case-insensitively.
func (s Schema[C]) Dimension(name string) (int, bool) {
	for i, d := range s.Dimensions {
		if strings.EqualFold(d, name) {
			return i, true
		}
	}
	return 0, false
}

// EnergyBalanceColumn labels operation/energy_balance series.
type EnergyBalanceColumn struct {
	Period   string `json:"period"`
	Node     string `json:"node"`
	Carrier  string `json:"carrier"`
	Variable string `json:"variable"`
}

func (c EnergyBalanceColumn) Labels() []string {
	return []string{c.Period, c.Node, c.Carrier, c.Variable}
}

// TechnologyColumn labels technology operation series and technology design rows.
type TechnologyColumn struct {
	Period     string `json:"period"`
	Node       string `json:"node"`
	Technology string `json:"technology"`
	Variable   string `json:"variable"`
}

func (c TechnologyColumn) Labels() []string {
	return []string{c.Period, c.Node, c.Technology, c.Variable}
}

// NetworkColumn labels network design rows and raw network operation series.
type NetworkColumn struct {
	Period   string `json:"period"`
	Network  string `json:"network"`
	ArcID    string `json:"arc_id"`
	Variable string `json:"variable"`
}

func (c NetworkColumn) Labels() []string {
	return []string{c.Period, c.Network, c.ArcID, c.Variable}
}

// NetworkOperationColumn is a network operation series enriched with the
// arc's end points.
type NetworkOperationColumn struct {
	NetworkColumn
	FromNode string `json:"from_node"`
	ToNode   string `json:"to_node"`
}

func (c NetworkOperationColumn) Labels() []string {
	return append(c.NetworkColumn.Labels(), c.FromNode, c.ToNode)
}

var (
	EnergyBalance = NewSchema("energy_balance",
		[]string{"Period", "Node", "Carrier", "Variable"},
		func(l []string) EnergyBalanceColumn {
			return EnergyBalanceColumn{Period: l[0], Node: l[1], Carrier: l[2], Variable: l[3]}
		})

	TechnologyOperation = NewSchema("technology_operation",
		[]string{"Period", "Node", "Technology", "Variable"},
		parseTechnology)

	TechnologyDesign = NewSchema("technology_design",
		[]string{"Period", "Node", "Technology", "Variable"},
		parseTechnology)

	NetworkDesign = NewSchema("network_design",
		[]string{"Period", "Network", "Arc_ID", "Variable"},
		parseNetwork)

	NetworkOperationRaw = NewSchema("network_operation",
		[]string{"Period", "Network", "Arc_ID", "Variable"},
		parseNetwork)

	NetworkOperation = NewSchema("network_operation",
		[]string{"Period", "Network", "Arc_ID", "Variable", "FromNode", "ToNode"},
		func(l []string) NetworkOperationColumn {
			return NetworkOperationColumn{NetworkColumn: parseNetwork(l[:4]), FromNode: l[4], ToNode: l[5]}
		})
)

func parseTechnology(l []string) TechnologyColumn {
	return TechnologyColumn{Period: l[0], Node: l[1], Technology: l[2], Variable: l[3]}
}

func parseNetwork(l []string) NetworkColumn {
	return NetworkColumn{Period: l[0], Network: l[1], ArcID: l[2], Variable: l[3]}
}
