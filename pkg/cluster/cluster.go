// Package cluster re-expands time series stored per representative period
// back to full chronological resolution.
package cluster

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nicktill/energyview/pkg/archive"
	"github.com/nicktill/energyview/pkg/table"
)

// SequenceVariable is the leaf name holding a period's assignment sequence.
const SequenceVariable = "sequence"

// ErrClusterExpansion is returned when a sequence cannot be applied.
var ErrClusterExpansion = errors.New("cluster: expansion failed")

// Period is the clustering of one period.
type Period struct {
	// Sequence maps each full-resolution timestep to its 1-based
	// representative period.
	Sequence []int
	// Clustered is max(Sequence), the number of stored representatives.
	Clustered int
}

// Spec holds the clustering per period. A nil or empty Spec means the
// archive was not clustered.
type Spec map[string]Period

// NewPeriod validates a sequence.
func NewPeriod(seq []int) (Period, error) {
	if len(seq) == 0 {
		return Period{}, fmt.Errorf("%w: empty sequence", ErrClusterExpansion)
	}
	max := 0
	for i, v := range seq {
		if v < 1 {
			return Period{}, fmt.Errorf("%w: sequence value %d at %d is below 1", ErrClusterExpansion, v, i)
		}
		if v > max {
			max = v
		}
	}
	if max > len(seq) {
		return Period{}, fmt.Errorf("%w: %d representatives for %d timesteps", ErrClusterExpansion, max, len(seq))
	}
	return Period{Sequence: append([]int{}, seq...), Clustered: max}, nil
}

// FromFlat reads every (period, "sequence") leaf of the k_means_specs group.
// Other leaves are ignored.
func FromFlat(flat *archive.FlatMap) (Spec, error) {
	spec := Spec{}
	for _, e := range flat.Entries() {
		if len(e.Key) != 2 || e.Key[1] != SequenceVariable {
			continue
		}
		raw, err := e.Array.Ints()
		if err != nil {
			return nil, fmt.Errorf("%w: period %s: %v", ErrClusterExpansion, e.Key[0], err)
		}
		seq := make([]int, len(raw))
		for i, v := range raw {
			seq[i] = int(v)
		}
		p, err := NewPeriod(seq)
		if err != nil {
			return nil, fmt.Errorf("period %s: %w", e.Key[0], err)
		}
		spec[e.Key[0]] = p
	}
	return spec, nil
}

// Empty reports whether no clustering is present.
func (s Spec) Empty() bool { return len(s) == 0 }

// Periods returns the clustered period names, sorted.
func (s Spec) Periods() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Expand gathers one compressed series to full length. A series whose length
// differs from Clustered is already full resolution and is returned as is.
func (p Period) Expand(values []float64) ([]float64, error) {
	if len(values) != p.Clustered {
		return values, nil
	}
	out := make([]float64, len(p.Sequence))
	for i, c := range p.Sequence {
		if c < 1 || c > len(values) {
			return nil, fmt.Errorf("%w: sequence value %d at %d out of range 1..%d", ErrClusterExpansion, c, i, len(values))
		}
		out[i] = values[c-1]
	}
	return out, nil
}

// Expand re-expands every series whose period is clustered. The period is the
// first label of each column. With an empty spec the input is returned
// unchanged.
func Expand[C table.Column](cols table.Columns[C], spec Spec) (table.Columns[C], error) {
	if spec.Empty() {
		return cols, nil
	}
	out := make(table.Columns[C], len(cols))
	for i, s := range cols {
		labels := s.Column.Labels()
		if len(labels) == 0 {
			return nil, fmt.Errorf("%w: column without a period", ErrClusterExpansion)
		}
		p, ok := spec[labels[0]]
		if !ok {
			return nil, fmt.Errorf("%w: no sequence for period %q", ErrClusterExpansion, labels[0])
		}
		vals, err := p.Expand(s.Values)
		if err != nil {
			return nil, fmt.Errorf("column %v: %w", labels, err)
		}
		out[i] = table.Series[C]{Column: s.Column, Values: vals}
	}
	return out, nil
}
