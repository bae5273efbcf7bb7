// Package table holds the tagged tables decoded from an archive: wide time
// series tables with a fixed-arity column label, long design tables and the
// Frame view used by exports.
package table

import (
	"encoding/json"
	"fmt"

	"github.com/nicktill/energyview/pkg/archive"
	"github.com/nicktill/energyview/pkg/timeindex"
)

// Series is one labeled column of values.
type Series[C Column] struct {
	Column C
	Values []float64
}

// Columns is an ordered set of series whose lengths may still differ, as
// read from the archive before cluster re-expansion.
type Columns[C Column] []Series[C]

// Build parses every flattened key with schema and converts the arrays to
// float series. Order follows the flat map.
func Build[C Column](flat *archive.FlatMap, schema Schema[C]) (Columns[C], error) {
	out := make(Columns[C], 0, flat.Len())
	for _, e := range flat.Entries() {
		col, err := schema.Parse(e.Key)
		if err != nil {
			return nil, err
		}
		vals, err := e.Array.Floats()
		if err != nil {
			return nil, fmt.Errorf("%s column %s: %w", schema.Name, e.Key, err)
		}
		out = append(out, Series[C]{Column: col, Values: vals})
	}
	return out, nil
}

// Table is an immutable wide table: one row per timestep, one column per
// label. Accessors return copies.
type Table[C Column] struct {
	schema Schema[C]
	cols   []Series[C]
	rows   int
	index  timeindex.Index
}

// New validates that all series share a row count and attaches the time
// index. An empty column set yields an empty table.
func New[C Column](schema Schema[C], cols Columns[C]) (*Table[C], error) {
	t := &Table[C]{schema: schema, cols: make([]Series[C], len(cols))}
	seen := make(map[C]struct{}, len(cols))
	for i, s := range cols {
		if i == 0 {
			t.rows = len(s.Values)
		} else if len(s.Values) != t.rows {
			return nil, fmt.Errorf("%w: %s column %v has %d rows, expected %d",
				ErrSchemaMismatch, schema.Name, s.Column.Labels(), len(s.Values), t.rows)
		}
		if _, dup := seen[s.Column]; dup {
			return nil, fmt.Errorf("%w: %s column %v appears twice", ErrSchemaMismatch, schema.Name, s.Column.Labels())
		}
		seen[s.Column] = struct{}{}
		t.cols[i] = Series[C]{Column: s.Column, Values: append([]float64{}, s.Values...)}
	}
	idx, err := timeindex.Synthesize(t.rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", schema.Name, err)
	}
	t.index = idx
	return t, nil
}

// Empty returns a table with no columns and no rows.
func Empty[C Column](schema Schema[C]) *Table[C] {
	return &Table[C]{schema: schema, index: timeindex.Index{}}
}

// Schema returns the table kind.
func (t *Table[C]) Schema() Schema[C] { return t.schema }

// Len returns the number of rows.
func (t *Table[C]) Len() int { return t.rows }

// Width returns the number of columns.
func (t *Table[C]) Width() int { return len(t.cols) }

// Index returns the time index.
func (t *Table[C]) Index() timeindex.Index {
	return append(timeindex.Index{}, t.index...)
}

// Columns returns the column labels in order.
func (t *Table[C]) Columns() []C {
	out := make([]C, len(t.cols))
	for i, s := range t.cols {
		out[i] = s.Column
	}
	return out
}

// Series returns a copy of column i.
func (t *Table[C]) Series(i int) Series[C] {
	s := t.cols[i]
	return Series[C]{Column: s.Column, Values: append([]float64{}, s.Values...)}
}

// Lookup returns the values of the column with the given label.
func (t *Table[C]) Lookup(c C) ([]float64, bool) {
	for _, s := range t.cols {
		if s.Column == c {
			return append([]float64{}, s.Values...), true
		}
	}
	return nil, false
}

// Value returns the cell at row, col.
func (t *Table[C]) Value(row, col int) float64 {
	return t.cols[col].Values[row]
}

// Select returns a table with the columns for which keep returns true.
func (t *Table[C]) Select(keep func(C) bool) *Table[C] {
	out := &Table[C]{schema: t.schema, rows: t.rows, index: t.index}
	for _, s := range t.cols {
		if keep(s.Column) {
			out.cols = append(out.cols, s)
		}
	}
	return out
}

// Where keeps columns whose dimension dim has one of the given values.
// An unknown dimension matches nothing.
func (t *Table[C]) Where(dim string, values ...string) *Table[C] {
	pos, ok := t.schema.Dimension(dim)
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	return t.Select(func(c C) bool {
		if !ok {
			return false
		}
		_, hit := allowed[c.Labels()[pos]]
		return hit
	})
}

// Distinct returns the distinct values of a dimension in column order.
func (t *Table[C]) Distinct(dim string) []string {
	pos, ok := t.schema.Dimension(dim)
	if !ok {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, s := range t.cols {
		v := s.Column.Labels()[pos]
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// MarshalJSON encodes the table. NaN cells are written as null.
func (t *Table[C]) MarshalJSON() ([]byte, error) {
	doc := struct {
		Schema     string          `json:"schema"`
		Dimensions []string        `json:"dimensions"`
		Rows       int             `json:"rows"`
		Columns    []columnJSONOut `json:"columns"`
	}{Schema: t.schema.Name, Dimensions: t.schema.Dimensions, Rows: t.rows}
	for _, s := range t.cols {
		doc.Columns = append(doc.Columns, columnJSONOut{Labels: s.Column.Labels(), Values: toJSONFloats(s.Values)})
	}
	return json.Marshal(doc)
}

type columnJSONOut struct {
	Labels []string    `json:"labels"`
	Values []jsonFloat `json:"values"`
}

// Decode restores a table encoded with MarshalJSON.
func Decode[C Column](schema Schema[C], data []byte) (*Table[C], error) {
	var doc struct {
		Schema  string `json:"schema"`
		Rows    int    `json:"rows"`
		Columns []struct {
			Labels []string    `json:"labels"`
			Values []jsonFloat `json:"values"`
		} `json:"columns"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s table: %w", schema.Name, err)
	}
	if doc.Schema != schema.Name {
		return nil, fmt.Errorf("%w: payload holds %q, expected %q", ErrSchemaMismatch, doc.Schema, schema.Name)
	}
	cols := make(Columns[C], 0, len(doc.Columns))
	for _, c := range doc.Columns {
		col, err := schema.Parse(c.Labels)
		if err != nil {
			return nil, err
		}
		cols = append(cols, Series[C]{Column: col, Values: fromJSONFloats(c.Values)})
	}
	if len(cols) == 0 {
		return Empty(schema), nil
	}
	return New(schema, cols)
}
