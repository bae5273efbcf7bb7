// Package results assembles a decoded archive into a Bundle: topology
// catalogs, cluster specs, the run summary and the five result tables.
package results

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nicktill/energyview/pkg/cluster"
	"github.com/nicktill/energyview/pkg/network"
	"github.com/nicktill/energyview/pkg/table"
)

// ErrUnknownTable is returned by Bundle.Table for names it does not serve.
var ErrUnknownTable = errors.New("results: unknown table")

// Table names served by Bundle.Table.
const (
	TableSummary             = "summary"
	TableEnergyBalance       = "energy_balance"
	TableTechnologyOperation = "technology_operation"
	TableTechnologyDesign    = "technology_design"
	TableNetworkDesign       = "network_design"
	TableNetworkOperation    = "network_operation"
	TableNetworkDesignView   = "network_design_view"
)

// TableNames lists every name Table accepts.
var TableNames = []string{
	TableSummary,
	TableEnergyBalance,
	TableTechnologyOperation,
	TableTechnologyDesign,
	TableNetworkDesign,
	TableNetworkDesignView,
	TableNetworkOperation,
}

// Topology is the catalog of names defining the system's scope.
type Topology struct {
	Nodes    []string `json:"nodes"`
	Carriers []string `json:"carriers"`
	Periods  []string `json:"periods"`
}

// Bundle is the decoded content of one archive. It is immutable once built
// and safe to share between readers.
type Bundle struct {
	source   string
	digest   string
	loadedAt time.Time

	topology            Topology
	clusters            cluster.Spec
	summary             *table.Wide
	energyBalance       *table.Table[table.EnergyBalanceColumn]
	technologyOperation *table.Table[table.TechnologyColumn]
	technologyDesign    *table.LongTable[table.TechnologyColumn]
	networkDesign       *table.LongTable[table.NetworkColumn]
	networkOperation    *table.Table[table.NetworkOperationColumn]
	arcs                *network.Catalog
}

// Source returns the archive name the bundle was read from.
func (b *Bundle) Source() string { return b.source }

// Digest returns the archive content identity.
func (b *Bundle) Digest() string { return b.digest }

// LoadedAt returns when the bundle was assembled.
func (b *Bundle) LoadedAt() time.Time { return b.loadedAt }

// Topology returns a copy of the name catalogs.
func (b *Bundle) Topology() Topology {
	return Topology{
		Nodes:    append([]string{}, b.topology.Nodes...),
		Carriers: append([]string{}, b.topology.Carriers...),
		Periods:  append([]string{}, b.topology.Periods...),
	}
}

// ClusterSpec returns a copy of the cluster assignments.
func (b *Bundle) ClusterSpec() cluster.Spec {
	out := make(cluster.Spec, len(b.clusters))
	for k, v := range b.clusters {
		out[k] = cluster.Period{Sequence: append([]int{}, v.Sequence...), Clustered: v.Clustered}
	}
	return out
}

func (b *Bundle) Summary() *table.Wide { return b.summary }

func (b *Bundle) EnergyBalance() *table.Table[table.EnergyBalanceColumn] { return b.energyBalance }

func (b *Bundle) TechnologyOperation() *table.Table[table.TechnologyColumn] {
	return b.technologyOperation
}

func (b *Bundle) TechnologyDesign() *table.LongTable[table.TechnologyColumn] {
	return b.technologyDesign
}

func (b *Bundle) NetworkDesign() *table.LongTable[table.NetworkColumn] { return b.networkDesign }

func (b *Bundle) NetworkOperation() *table.Table[table.NetworkOperationColumn] {
	return b.networkOperation
}

// Arcs returns the arc catalog derived from the network design.
func (b *Bundle) Arcs() *network.Catalog { return b.arcs }

// NetworkDesignView returns the per-arc design with one column per variable.
func (b *Bundle) NetworkDesignView() ([]network.DesignRow, error) {
	return network.DesignView(b.networkDesign, b.arcs)
}

// Table returns a table by name as a Frame.
func (b *Bundle) Table(name string) (table.Frame, error) {
	switch name {
	case TableSummary:
		return b.summary, nil
	case TableEnergyBalance:
		return b.energyBalance, nil
	case TableTechnologyOperation:
		return b.technologyOperation, nil
	case TableTechnologyDesign:
		return b.technologyDesign, nil
	case TableNetworkDesign:
		return b.networkDesign, nil
	case TableNetworkOperation:
		return b.networkOperation, nil
	case TableNetworkDesignView:
		rows, err := b.NetworkDesignView()
		if err != nil {
			return nil, err
		}
		return network.NewDesignFrame(rows), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
}

// Shape is the size of one table.
type Shape struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// Shapes reports the size of every table.
func (b *Bundle) Shapes() []Shape {
	var out []Shape
	for _, name := range TableNames {
		f, err := b.Table(name)
		if err != nil {
			continue
		}
		out = append(out, Shape{Name: name, Rows: f.Len(), Columns: len(f.Header())})
	}
	return out
}

// Variables in the energy balance that feed a node or draw from it.
var (
	SupplyVariables = []string{"generic_production", "technology_outputs", "network_inflow", "import"}
	DemandVariables = []string{"demand", "technology_inputs", "network_outflow", "export"}
)

// Balance returns the supply and demand columns of one node and carrier.
func (b *Bundle) Balance(node, carrier string) (supply, demand *table.Table[table.EnergyBalanceColumn]) {
	t := b.energyBalance.Where("Node", node).Where("Carrier", carrier)
	return t.Where("Variable", SupplyVariables...), t.Where("Variable", DemandVariables...)
}

// Technologies returns the distinct technologies installed at a node, sorted.
func (b *Bundle) Technologies(node string) []string {
	out := b.technologyOperation.Where("Node", node).Distinct("Technology")
	sort.Strings(out)
	return out
}

// Networks returns the distinct networks with operation data, sorted.
func (b *Bundle) Networks() []string {
	out := b.networkOperation.Distinct("Network")
	sort.Strings(out)
	return out
}
