// Package network joins per-arc design identifiers onto network operation
// series, which the archive keys by Arc_ID only.
package network

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nicktill/energyview/pkg/archive"
	"github.com/nicktill/energyview/pkg/table"
)

// ErrJoinKey is returned when operation data references an arc that has no
// design entry.
var ErrJoinKey = errors.New("network: unknown arc")

// Identifier variables stored per arc in design/networks.
const (
	FromNodeVariable = "fromNode"
	ToNodeVariable   = "toNode"
	NetworkVariable  = "network"
)

// Arc is one catalog entry.
type Arc struct {
	ArcID    string `json:"arc_id"`
	Network  string `json:"network"`
	FromNode string `json:"from_node"`
	ToNode   string `json:"to_node"`
}

// Catalog maps Arc_ID to its end points, one entry per Arc_ID.
type Catalog struct {
	order []string
	arcs  map[string]Arc
}

// NewCatalog builds a catalog. The first entry per Arc_ID wins.
func NewCatalog(arcs ...Arc) *Catalog {
	c := &Catalog{arcs: make(map[string]Arc)}
	for _, a := range arcs {
		if _, dup := c.arcs[a.ArcID]; dup {
			continue
		}
		c.order = append(c.order, a.ArcID)
		c.arcs[a.ArcID] = a
	}
	return c
}

// CatalogFromDesign collects the fromNode/toNode identifiers of every arc in
// the long network design table. The Network label of the first row seen for
// an arc is used when no network variable is stored.
func CatalogFromDesign(design *table.LongTable[table.NetworkColumn]) (*Catalog, error) {
	type partial struct {
		arc      Arc
		from, to bool
	}
	var order []string
	found := make(map[string]*partial)
	for _, r := range design.Rows() {
		id := r.Column.ArcID
		p, ok := found[id]
		if !ok {
			p = &partial{arc: Arc{ArcID: id, Network: r.Column.Network}}
			found[id] = p
			order = append(order, id)
		}
		switch r.Column.Variable {
		case FromNodeVariable:
			if !p.from {
				p.arc.FromNode = textOf(r.Value)
				p.from = true
			}
		case ToNodeVariable:
			if !p.to {
				p.arc.ToNode = textOf(r.Value)
				p.to = true
			}
		}
	}

	arcs := make([]Arc, 0, len(order))
	for _, id := range order {
		p := found[id]
		if !p.from || !p.to {
			return nil, fmt.Errorf("%w: arc %s has no %s/%s identifiers", archive.ErrMalformedTree, id, FromNodeVariable, ToNodeVariable)
		}
		arcs = append(arcs, p.arc)
	}
	return NewCatalog(arcs...), nil
}

func textOf(v archive.Value) string {
	if v.IsText {
		return v.Text
	}
	return v.String()
}

// Len returns the number of arcs.
func (c *Catalog) Len() int { return len(c.order) }

// Lookup returns the arc with the given id.
func (c *Catalog) Lookup(id string) (Arc, bool) {
	a, ok := c.arcs[id]
	return a, ok
}

// Arcs returns every arc in first-seen order.
func (c *Catalog) Arcs() []Arc {
	out := make([]Arc, len(c.order))
	for i, id := range c.order {
		out[i] = c.arcs[id]
	}
	return out
}

// Join attaches FromNode and ToNode to every operation series. Every Arc_ID
// must be in the catalog; an unknown one fails the join with ErrJoinKey.
func Join(c *Catalog, cols table.Columns[table.NetworkColumn]) (table.Columns[table.NetworkOperationColumn], error) {
	out := make(table.Columns[table.NetworkOperationColumn], 0, len(cols))
	for _, s := range cols {
		a, ok := c.Lookup(s.Column.ArcID)
		if !ok {
			return nil, fmt.Errorf("%w: %s in network %s, period %s", ErrJoinKey, s.Column.ArcID, s.Column.Network, s.Column.Period)
		}
		out = append(out, table.Series[table.NetworkOperationColumn]{
			Column: table.NetworkOperationColumn{
				NetworkColumn: s.Column,
				FromNode:      a.FromNode,
				ToNode:        a.ToNode,
			},
			Values: s.Values,
		})
	}
	return out, nil
}

// DesignRow is the pivoted design of one arc in one period.
type DesignRow struct {
	Period    string             `json:"period"`
	ArcID     string             `json:"arc_id"`
	Network   string             `json:"network"`
	FromNode  string             `json:"from_node"`
	ToNode    string             `json:"to_node"`
	Variables map[string]float64 `json:"variables"`
}

// DesignView pivots the long design table to one row per (Period, Arc_ID,
// Network) with the numeric variables as columns. Identifier variables are
// replaced by the catalog's FromNode and ToNode; other text variables are
// left out. Rows are ordered by period, then arc, then network.
func DesignView(design *table.LongTable[table.NetworkColumn], c *Catalog) ([]DesignRow, error) {
	type key struct{ period, arc, network string }
	rows := make(map[key]*DesignRow)
	for _, r := range design.Rows() {
		switch r.Column.Variable {
		case FromNodeVariable, ToNodeVariable, NetworkVariable:
			continue
		}
		k := key{r.Column.Period, r.Column.ArcID, r.Column.Network}
		row, ok := rows[k]
		if !ok {
			a, found := c.Lookup(r.Column.ArcID)
			if !found {
				return nil, fmt.Errorf("%w: %s", ErrJoinKey, r.Column.ArcID)
			}
			row = &DesignRow{
				Period:    k.period,
				ArcID:     k.arc,
				Network:   k.network,
				FromNode:  a.FromNode,
				ToNode:    a.ToNode,
				Variables: make(map[string]float64),
			}
			rows[k] = row
		}
		if r.Value.IsText {
			continue
		}
		row.Variables[r.Column.Variable] = r.Value.Number
	}

	out := make([]DesignRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		if out[i].ArcID != out[j].ArcID {
			return out[i].ArcID < out[j].ArcID
		}
		return out[i].Network < out[j].Network
	})
	return out, nil
}

// DesignFrame renders design rows with one column per variable.
type DesignFrame struct {
	rows      []DesignRow
	variables []string
}

// NewDesignFrame collects the variable names of all rows, sorted.
func NewDesignFrame(rows []DesignRow) *DesignFrame {
	seen := make(map[string]struct{})
	var vars []string
	for _, r := range rows {
		for v := range r.Variables {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				vars = append(vars, v)
			}
		}
	}
	sort.Strings(vars)
	return &DesignFrame{rows: rows, variables: vars}
}

func (f *DesignFrame) Header() []string {
	return append([]string{"Period", "Arc_ID", "Network", "FromNode", "ToNode"}, f.variables...)
}

func (f *DesignFrame) Len() int { return len(f.rows) }

func (f *DesignFrame) Row(i int) []string {
	r := f.rows[i]
	out := []string{r.Period, r.ArcID, r.Network, r.FromNode, r.ToNode}
	for _, v := range f.variables {
		val, ok := r.Variables[v]
		if !ok {
			out = append(out, "")
			continue
		}
		out = append(out, table.FormatNumber(val))
	}
	return out
}
