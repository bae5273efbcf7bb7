// Package aggregate downsamples time tables to a coarser time level.
//
// Each column is reduced independently per group of rows sharing a level
// value. A bucket keeps sum, count, min and max, so every method is served
// by a single pass:
//   - sum: NaN cells contribute nothing
//   - mean: NaN cells are left out of the denominator
//   - min/max: NaN cells are ignored
//
// A bucket with no valid cell yields 0 for sum and NaN for the rest.
package aggregate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nicktill/energyview/pkg/table"
	"github.com/nicktill/energyview/pkg/timeindex"
)

// Method is the reduction applied within a group.
type Method string

const (
	Sum  Method = "sum"
	Mean Method = "mean"
	Min  Method = "min"
	Max  Method = "max"
)

// ParseMethod accepts sum, mean (or avg), min and max.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sum":
		return Sum, nil
	case "mean", "avg", "average":
		return Mean, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	default:
		return "", fmt.Errorf("unknown aggregation method %q", s)
	}
}

// TimesliceLabel names the row label of an aggregated table.
const TimesliceLabel = "Timeslice"

type bucket struct {
	sum   float64
	count int
	min   float64
	max   float64
}

func (b *bucket) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	if b.count == 0 || v < b.min {
		b.min = v
	}
	if b.count == 0 || v > b.max {
		b.max = v
	}
	b.sum += v
	b.count++
}

func (b *bucket) value(m Method) float64 {
	switch m {
	case Sum:
		return b.sum
	case Mean:
		if b.count == 0 {
			return math.NaN()
		}
		return b.sum / float64(b.count)
	case Min:
		if b.count == 0 {
			return math.NaN()
		}
		return b.min
	default:
		if b.count == 0 {
			return math.NaN()
		}
		return b.max
	}
}

// Result is an aggregated table. Row r holds the group Timeslices()[r].
type Result[C table.Column] struct {
	level   timeindex.Level
	slices  []int
	columns []C
	methods []Method
	values  [][]float64
}

// Aggregate reduces every column of t with one method.
func Aggregate[C table.Column](t *table.Table[C], level timeindex.Level, method Method) (*Result[C], error) {
	return AggregateBy(t, level, func(C) Method { return method })
}

// AggregateMixed averages the columns for which meanIf returns true and sums
// the rest.
func AggregateMixed[C table.Column](t *table.Table[C], level timeindex.Level, meanIf func(C) bool) (*Result[C], error) {
	return AggregateBy(t, level, func(c C) Method {
		if meanIf(c) {
			return Mean
		}
		return Sum
	})
}

// AggregateBy picks the method per column.
func AggregateBy[C table.Column](t *table.Table[C], level timeindex.Level, pick func(C) Method) (*Result[C], error) {
	if level < timeindex.Hour || level > timeindex.Year {
		return nil, fmt.Errorf("unknown time level %v", level)
	}
	keys, groups := t.Index().Groups(level)
	r := &Result[C]{
		level:   level,
		slices:  keys,
		columns: t.Columns(),
		methods: make([]Method, t.Width()),
		values:  make([][]float64, t.Width()),
	}
	for j := 0; j < t.Width(); j++ {
		m := pick(r.columns[j])
		switch m {
		case Sum, Mean, Min, Max:
		default:
			return nil, fmt.Errorf("unknown aggregation method %q", m)
		}
		r.methods[j] = m
		out := make([]float64, len(groups))
		for g, rows := range groups {
			var b bucket
			for _, i := range rows {
				b.add(t.Value(i, j))
			}
			out[g] = b.value(m)
		}
		r.values[j] = out
	}
	return r, nil
}

// Level returns the level the rows were grouped by.
func (r *Result[C]) Level() timeindex.Level { return r.level }

// Timeslices returns the group keys in ascending order.
func (r *Result[C]) Timeslices() []int { return append([]int{}, r.slices...) }

// Columns returns the column labels.
func (r *Result[C]) Columns() []C { return append([]C{}, r.columns...) }

// Method returns the method used for column j.
func (r *Result[C]) Method(j int) Method { return r.methods[j] }

// Values returns a copy of column j.
func (r *Result[C]) Values(j int) []float64 { return append([]float64{}, r.values[j]...) }

// Value returns the cell at row, col.
func (r *Result[C]) Value(row, col int) float64 { return r.values[col][row] }

// Len returns the number of groups.
func (r *Result[C]) Len() int { return len(r.slices) }

// Header starts with the Timeslice column.
func (r *Result[C]) Header() []string {
	out := make([]string, 0, len(r.columns)+1)
	out = append(out, TimesliceLabel)
	for _, c := range r.columns {
		out = append(out, strings.Join(c.Labels(), table.LabelSeparator))
	}
	return out
}

// Row formats row i.
func (r *Result[C]) Row(i int) []string {
	out := make([]string, 0, len(r.columns)+1)
	out = append(out, strconv.Itoa(r.slices[i]))
	for _, col := range r.values {
		out = append(out, table.FormatNumber(col[i]))
	}
	return out
}

// StorageLevel matches columns whose Variable mentions "level", such as
// storage_level. Levels are states, so they are averaged rather than summed.
func StorageLevel[C table.Column](schema table.Schema[C]) func(C) bool {
	pos, ok := schema.Dimension("Variable")
	return func(c C) bool {
		return ok && strings.Contains(strings.ToLower(c.Labels()[pos]), "level")
	}
}
