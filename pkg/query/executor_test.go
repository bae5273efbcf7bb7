package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicktill/energyview/pkg/archive"
	"github.com/nicktill/energyview/pkg/results"
)

func series(n int, v float64) archive.Array {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = v
	}
	return archive.Float64s(vals...)
}

// testBundle has 48 hourly steps: two nodes in the energy balance, one
// battery and one arc.
func testBundle(t *testing.T) *results.Bundle {
	t.Helper()
	root := archive.NewGroup("",
		archive.NewGroup("topology", archive.NewLeaf("nodes", archive.Strings("A", "B"))),
		archive.NewGroup("design",
			archive.NewGroup("nodes", archive.NewGroup("0", archive.NewGroup("A", archive.NewGroup("battery",
				archive.NewLeaf("size", archive.ScalarFloat64(4)),
				archive.NewLeaf("capex", archive.ScalarFloat64(100)),
			)))),
			archive.NewGroup("networks", archive.NewGroup("0", archive.NewGroup("el", archive.NewGroup("1",
				archive.NewLeaf("fromNode", archive.ScalarString("A")),
				archive.NewLeaf("toNode", archive.ScalarString("B")),
				archive.NewLeaf("size", archive.ScalarFloat64(3)),
			)))),
		),
		archive.NewGroup("operation",
			archive.NewGroup("energy_balance", archive.NewGroup("0",
				archive.NewGroup("A", archive.NewGroup("electricity",
					archive.NewLeaf("demand", series(48, 1)),
					archive.NewLeaf("export", series(48, 2)),
					archive.NewLeaf("import", series(48, 3)),
				)),
				archive.NewGroup("B", archive.NewGroup("electricity",
					archive.NewLeaf("demand", series(48, 4)),
				)),
			)),
			archive.NewGroup("technology_operation", archive.NewGroup("0", archive.NewGroup("A", archive.NewGroup("battery",
				archive.NewLeaf("storage_level", series(48, 5)),
				archive.NewLeaf("charging", series(48, 1)),
			)))),
			archive.NewGroup("networks", archive.NewGroup("0", archive.NewGroup("el", archive.NewGroup("1",
				archive.NewLeaf("flow", series(48, 0.5)),
			)))),
		),
	)
	b, err := results.NewLoader().Load(context.Background(), archive.NewMemorySource("test", root))
	require.NoError(t, err)
	return b
}

func TestExecute_Selector(t *testing.T) {
	e := NewExecutor(testBundle(t))
	ctx := context.Background()

	r, err := e.Run(ctx, `energy_balance{Node="A", Variable=~"demand|export"}`)
	require.NoError(t, err)
	require.Equal(t, "energy_balance", r.Table)
	require.Nil(t, r.Level)
	require.Equal(t, 48, r.Frame.Len())
	require.Equal(t, []string{"Hour", "Day", "Week", "Month", "Year", "0/A/electricity/demand", "0/A/electricity/export"}, r.Frame.Header())
	require.Equal(t, []string{"25", "2", "1", "1", "1", "1", "2"}, r.Frame.Row(24))

	// dimension names are case-insensitive
	r, err = e.Run(ctx, `energy_balance{node!="A"}`)
	require.NoError(t, err)
	require.Equal(t, []string{"Hour", "Day", "Week", "Month", "Year", "0/B/electricity/demand"}, r.Frame.Header())
}

func TestExecute_Aggregation(t *testing.T) {
	e := NewExecutor(testBundle(t))
	ctx := context.Background()

	r, err := e.Run(ctx, `sum by (Day) (energy_balance{Node="A", Variable="demand"})`)
	require.NoError(t, err)
	require.NotNil(t, r.Level)
	require.Equal(t, "Day", r.Level.String())
	require.Equal(t, []string{"Timeslice", "0/A/electricity/demand"}, r.Frame.Header())
	require.Equal(t, 2, r.Frame.Len())
	require.Equal(t, []string{"1", "24"}, r.Frame.Row(0))
	require.Equal(t, []string{"2", "24"}, r.Frame.Row(1))

	// whole horizon without a by clause
	r, err = e.Run(ctx, `sum(energy_balance{Node="B"})`)
	require.NoError(t, err)
	require.Equal(t, 1, r.Frame.Len())
	require.Equal(t, []string{"1", "192"}, r.Frame.Row(0))

	// mixed averages storage levels and sums flows
	r, err = e.Run(ctx, `mixed by (Day) (technology_operation)`)
	require.NoError(t, err)
	require.Equal(t, []string{"Timeslice", "0/A/battery/storage_level", "0/A/battery/charging"}, r.Frame.Header())
	require.Equal(t, []string{"1", "5", "24"}, r.Frame.Row(0))

	r, err = e.Run(ctx, `avg by (Week) (network_operation{FromNode="A"})`)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "0.5"}, r.Frame.Row(0))
}

func TestExecute_DesignTables(t *testing.T) {
	e := NewExecutor(testBundle(t))
	ctx := context.Background()

	r, err := e.Run(ctx, `technology_design{Variable="size"}`)
	require.NoError(t, err)
	require.Equal(t, 1, r.Frame.Len())
	require.Equal(t, []string{"Period", "Node", "Technology", "Variable", "Value"}, r.Frame.Header())
	require.Equal(t, []string{"0", "A", "battery", "size", "4"}, r.Frame.Row(0))

	r, err = e.Run(ctx, `network_design{Variable!~"fromNode|toNode"}`)
	require.NoError(t, err)
	require.Equal(t, 1, r.Frame.Len())

	r, err = e.Run(ctx, `network_design_view`)
	require.NoError(t, err)
	require.Equal(t, 1, r.Frame.Len())
}

func TestExecute_Errors(t *testing.T) {
	e := NewExecutor(testBundle(t))
	ctx := context.Background()

	tests := []struct {
		query string
		want  error
	}{
		{`nope`, ErrUnknownTable},
		{`sum(nope)`, ErrUnknownTable},
		{`energy_balance{Technology="x"}`, ErrInvalid},
		{`summary{a="b"}`, ErrInvalid},
		{`sum(technology_design)`, ErrInvalid},
		{`sum by (Fortnight) (energy_balance)`, ErrInvalid},
		{`sum(sum(energy_balance))`, ErrInvalid},
		{`energy_balance{`, ErrSyntax},
	}
	for _, tt := range tests {
		_, err := e.Run(ctx, tt.query)
		require.ErrorIs(t, err, tt.want, tt.query)
	}
}

func TestExecute_CancelledContext(t *testing.T) {
	e := NewExecutor(testBundle(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, "energy_balance")
	require.ErrorIs(t, err, context.Canceled)
}
