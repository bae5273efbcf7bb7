package table

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/nicktill/energyview/pkg/archive"
)

// LabelSeparator joins multi-level column labels into one header cell.
const LabelSeparator = "/"

// Frame is a rectangular view of any table, as consumed by exports.
type Frame interface {
	// Header returns one name per column.
	Header() []string
	// Len returns the number of rows.
	Len() int
	// Row formats row i, one cell per header entry.
	Row(i int) []string
}

// FormatNumber renders a cell. NaN is an empty cell.
func FormatNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Header collapses each column's labels with LabelSeparator.
func (t *Table[C]) Header() []string {
	out := make([]string, len(t.cols))
	for i, s := range t.cols {
		out[i] = strings.Join(s.Column.Labels(), LabelSeparator)
	}
	return out
}

// Row formats row i.
func (t *Table[C]) Row(i int) []string {
	out := make([]string, len(t.cols))
	for j, s := range t.cols {
		out[j] = FormatNumber(s.Values[i])
	}
	return out
}

// Indexed prefixes a time table with its Hour, Day, Week, Month and Year
// columns.
type Indexed[C Column] struct {
	*Table[C]
}

// Header returns the time levels followed by the column labels.
func (x Indexed[C]) Header() []string {
	return append([]string{"Hour", "Day", "Week", "Month", "Year"}, x.Table.Header()...)
}

// Row formats row i with its time labels.
func (x Indexed[C]) Row(i int) []string {
	r := x.index[i]
	out := []string{
		strconv.Itoa(r.Hour), strconv.Itoa(r.Day), strconv.Itoa(r.Week),
		strconv.Itoa(r.Month), strconv.Itoa(r.Year),
	}
	return append(out, x.Table.Row(i)...)
}

// jsonFloat encodes NaN as null and the infinities as "+Inf" and "-Inf".
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) {
		return []byte("null"), nil
	}
	if name, ok := archive.NonFinite(v); ok {
		return json.Marshal(name)
	}
	return json.Marshal(v)
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = jsonFloat(math.NaN())
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		v, err := archive.ParseNonFinite(name)
		if err != nil {
			return err
		}
		*f = jsonFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

func toJSONFloats(v []float64) []jsonFloat {
	out := make([]jsonFloat, len(v))
	for i, x := range v {
		out[i] = jsonFloat(x)
	}
	return out
}

func fromJSONFloats(v []jsonFloat) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
