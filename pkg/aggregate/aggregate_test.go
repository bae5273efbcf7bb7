package aggregate

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicktill/energyview/pkg/table"
	"github.com/nicktill/energyview/pkg/timeindex"
)

func newTable(t *testing.T, series map[string][]float64, order ...string) *table.Table[table.TechnologyColumn] {
	t.Helper()
	var cols table.Columns[table.TechnologyColumn]
	for _, v := range order {
		cols = append(cols, table.Series[table.TechnologyColumn]{
			Column: table.TechnologyColumn{Period: "p0", Node: "A", Technology: "battery", Variable: v},
			Values: series[v],
		})
	}
	tbl, err := table.New(table.TechnologyOperation, cols)
	require.NoError(t, err)
	return tbl
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestAggregate_DayOfOnes(t *testing.T) {
	tbl := newTable(t, map[string][]float64{"x": constant(48, 1)}, "x")

	sum, err := Aggregate(tbl, timeindex.Day, Sum)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, sum.Timeslices())
	require.Equal(t, []float64{24, 24}, sum.Values(0))

	mean, err := Aggregate(tbl, timeindex.Day, Mean)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 1}, mean.Values(0))
}

func TestAggregate_HourIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = rng.NormFloat64()
	}
	tbl := newTable(t, map[string][]float64{"x": vals}, "x")

	for _, m := range []Method{Sum, Mean} {
		r, err := Aggregate(tbl, timeindex.Hour, m)
		require.NoError(t, err)
		require.Equal(t, 100, r.Len())
		require.Equal(t, vals, r.Values(0), "method %s", m)
		require.Equal(t, tbl.Index().Values(timeindex.Hour), r.Timeslices())
	}
}

func TestAggregate_MissingCells(t *testing.T) {
	vals := constant(24, 2)
	vals[0] = math.NaN()
	vals[1] = math.NaN()
	tbl := newTable(t, map[string][]float64{"x": vals, "y": constant(24, math.NaN())}, "x", "y")

	sum, err := Aggregate(tbl, timeindex.Day, Sum)
	require.NoError(t, err)
	require.Equal(t, 44.0, sum.Value(0, 0))
	require.Equal(t, 0.0, sum.Value(0, 1))

	mean, err := Aggregate(tbl, timeindex.Day, Mean)
	require.NoError(t, err)
	require.Equal(t, 2.0, mean.Value(0, 0))
	require.True(t, math.IsNaN(mean.Value(0, 1)))
}

func TestAggregate_MinMax(t *testing.T) {
	tbl := newTable(t, map[string][]float64{"x": {3, 1, 2}}, "x")

	lo, err := Aggregate(tbl, timeindex.Year, Min)
	require.NoError(t, err)
	require.Equal(t, []float64{1}, lo.Values(0))

	hi, err := Aggregate(tbl, timeindex.Year, Max)
	require.NoError(t, err)
	require.Equal(t, []float64{3}, hi.Values(0))
}

func TestAggregate_Month(t *testing.T) {
	tbl := newTable(t, map[string][]float64{"x": constant(744+24, 1)}, "x")
	r, err := Aggregate(tbl, timeindex.Month, Sum)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, r.Timeslices())
	require.Equal(t, []float64{744, 24}, r.Values(0))
}

func TestAggregateMixed_StorageLevels(t *testing.T) {
	tbl := newTable(t, map[string][]float64{
		"storage_level": {1, 2, 3, 4},
		"charge":        {1, 2, 3, 4},
	}, "storage_level", "charge")

	r, err := AggregateMixed(tbl, timeindex.Year, StorageLevel(table.TechnologyOperation))
	require.NoError(t, err)
	require.Equal(t, Mean, r.Method(0))
	require.Equal(t, Sum, r.Method(1))
	require.Equal(t, 2.5, r.Value(0, 0))
	require.Equal(t, 10.0, r.Value(0, 1))
}

func TestAggregate_EmptyTable(t *testing.T) {
	r, err := Aggregate(table.Empty(table.EnergyBalance), timeindex.Day, Sum)
	require.NoError(t, err)
	require.Equal(t, 0, r.Len())
	require.Equal(t, []string{TimesliceLabel}, r.Header())
}

func TestResult_Frame(t *testing.T) {
	tbl := newTable(t, map[string][]float64{"x": constant(48, 0.5)}, "x")
	r, err := Aggregate(tbl, timeindex.Day, Sum)
	require.NoError(t, err)

	var f table.Frame = r
	require.Equal(t, []string{"Timeslice", "p0/A/battery/x"}, f.Header())
	require.Equal(t, []string{"2", "12"}, f.Row(1))
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("AVG")
	require.NoError(t, err)
	require.Equal(t, Mean, m)

	_, err = ParseMethod("median")
	require.Error(t, err)
}
