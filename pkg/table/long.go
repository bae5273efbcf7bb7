package table

import (
	"encoding/json"
	"fmt"

	"github.com/nicktill/energyview/pkg/archive"
)

// LongRow is one melted design value.
type LongRow[C Column] struct {
	Column C
	Value  archive.Value
}

// LongTable is a design table in long format: one row per entity, variable
// and element.
type LongTable[C Column] struct {
	schema Schema[C]
	rows   []LongRow[C]
}

// Melt turns every element of every flattened leaf into a row. Leaves are
// usually scalars, so most contribute one row.
func Melt[C Column](flat *archive.FlatMap, schema Schema[C]) (*LongTable[C], error) {
	t := &LongTable[C]{schema: schema}
	for _, e := range flat.Entries() {
		col, err := schema.Parse(e.Key)
		if err != nil {
			return nil, err
		}
		vals, err := e.Array.Values()
		if err != nil {
			return nil, fmt.Errorf("%s column %s: %w", schema.Name, e.Key, err)
		}
		for _, v := range vals {
			t.rows = append(t.rows, LongRow[C]{Column: col, Value: v})
		}
	}
	return t, nil
}

// NewLong builds a long table from rows.
func NewLong[C Column](schema Schema[C], rows []LongRow[C]) *LongTable[C] {
	return &LongTable[C]{schema: schema, rows: append([]LongRow[C]{}, rows...)}
}

// Schema returns the table kind.
func (t *LongTable[C]) Schema() Schema[C] { return t.schema }

// Len returns the number of rows.
func (t *LongTable[C]) Len() int { return len(t.rows) }

// Rows returns a copy of all rows.
func (t *LongTable[C]) Rows() []LongRow[C] {
	return append([]LongRow[C]{}, t.rows...)
}

// At returns row i.
func (t *LongTable[C]) At(i int) LongRow[C] { return t.rows[i] }

// Filter returns the rows for which keep returns true.
func (t *LongTable[C]) Filter(keep func(LongRow[C]) bool) *LongTable[C] {
	out := &LongTable[C]{schema: t.schema}
	for _, r := range t.rows {
		if keep(r) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Header returns the dimensions followed by "Value".
func (t *LongTable[C]) Header() []string {
	return append(append([]string{}, t.schema.Dimensions...), "Value")
}

// Row formats row i.
func (t *LongTable[C]) Row(i int) []string {
	r := t.rows[i]
	out := append(r.Column.Labels(), "")
	if r.Value.IsText {
		out[len(out)-1] = r.Value.Text
	} else {
		out[len(out)-1] = FormatNumber(r.Value.Number)
	}
	return out
}

type longRowJSON struct {
	Labels []string      `json:"labels"`
	Value  archive.Value `json:"value"`
}

// MarshalJSON encodes the table.
func (t *LongTable[C]) MarshalJSON() ([]byte, error) {
	doc := struct {
		Schema string        `json:"schema"`
		Rows   []longRowJSON `json:"rows"`
	}{Schema: t.schema.Name, Rows: make([]longRowJSON, len(t.rows))}
	for i, r := range t.rows {
		doc.Rows[i] = longRowJSON{Labels: r.Column.Labels(), Value: r.Value}
	}
	return json.Marshal(doc)
}

// DecodeLong restores a long table encoded with MarshalJSON.
func DecodeLong[C Column](schema Schema[C], data []byte) (*LongTable[C], error) {
	var doc struct {
		Schema string        `json:"schema"`
		Rows   []longRowJSON `json:"rows"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s table: %w", schema.Name, err)
	}
	if doc.Schema != schema.Name {
		return nil, fmt.Errorf("%w: payload holds %q, expected %q", ErrSchemaMismatch, doc.Schema, schema.Name)
	}
	t := &LongTable[C]{schema: schema, rows: make([]LongRow[C], len(doc.Rows))}
	for i, r := range doc.Rows {
		col, err := schema.Parse(r.Labels)
		if err != nil {
			return nil, err
		}
		t.rows[i] = LongRow[C]{Column: col, Value: r.Value}
	}
	return t, nil
}
