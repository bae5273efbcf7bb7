package table

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nicktill/energyview/pkg/archive"
)

// Wide is a table whose column labels have no fixed arity, such as the run
// summary. Cells may be numbers or texts.
type Wide struct {
	labels [][]string
	cells  [][]archive.Value
	rows   int
}

// WideFromFlat builds a wide table from every flattened leaf. All leaves must
// have the same length.
func WideFromFlat(flat *archive.FlatMap) (*Wide, error) {
	w := &Wide{}
	for i, e := range flat.Entries() {
		vals, err := e.Array.Values()
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", e.Key, err)
		}
		if err := w.add(e.Key, vals, i == 0); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// NewWide builds a wide table from labeled columns of equal length.
func NewWide(labels [][]string, cells [][]archive.Value) (*Wide, error) {
	if len(labels) != len(cells) {
		return nil, fmt.Errorf("%w: %d labels for %d columns", ErrSchemaMismatch, len(labels), len(cells))
	}
	w := &Wide{}
	for i := range labels {
		if err := w.add(labels[i], cells[i], i == 0); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *Wide) add(labels []string, vals []archive.Value, first bool) error {
	if first {
		w.rows = len(vals)
	} else if len(vals) != w.rows {
		return fmt.Errorf("%w: column %s has %d rows, expected %d",
			ErrSchemaMismatch, strings.Join(labels, LabelSeparator), len(vals), w.rows)
	}
	w.labels = append(w.labels, append([]string{}, labels...))
	w.cells = append(w.cells, append([]archive.Value{}, vals...))
	return nil
}

// Width returns the number of columns.
func (w *Wide) Width() int { return len(w.labels) }

// Len returns the number of rows.
func (w *Wide) Len() int { return w.rows }

// Labels returns the labels of column i.
func (w *Wide) Labels(i int) []string {
	return append([]string{}, w.labels[i]...)
}

// Cell returns the value at row, col.
func (w *Wide) Cell(row, col int) archive.Value { return w.cells[col][row] }

// Header collapses each column's labels with LabelSeparator.
func (w *Wide) Header() []string {
	out := make([]string, len(w.labels))
	for i, l := range w.labels {
		out[i] = strings.Join(l, LabelSeparator)
	}
	return out
}

// Row formats row i.
func (w *Wide) Row(i int) []string {
	out := make([]string, len(w.cells))
	for j, col := range w.cells {
		v := col[i]
		if v.IsText {
			out[j] = v.Text
		} else {
			out[j] = FormatNumber(v.Number)
		}
	}
	return out
}

type wideJSON struct {
	Labels [][]string        `json:"labels"`
	Cells  [][]archive.Value `json:"cells"`
}

// MarshalJSON encodes the table.
func (w *Wide) MarshalJSON() ([]byte, error) {
	return json.Marshal(wideJSON{Labels: w.labels, Cells: w.cells})
}

// UnmarshalJSON decodes a table written by MarshalJSON.
func (w *Wide) UnmarshalJSON(b []byte) error {
	var doc wideJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	out, err := NewWide(doc.Labels, doc.Cells)
	if err != nil {
		return err
	}
	*w = *out
	return nil
}
