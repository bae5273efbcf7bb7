package results

import (
	"fmt"
	"strings"

	"github.com/nicktill/energyview/pkg/aggregate"
	"github.com/nicktill/energyview/pkg/table"
	"github.com/nicktill/energyview/pkg/timeindex"
)

// MixedMethod averages storage levels and sums every other variable.
const MixedMethod = "mixed"

// TimeTables are the tables that carry a time index.
var TimeTables = []string{TableEnergyBalance, TableTechnologyOperation, TableNetworkOperation}

// IsTimeTable reports whether name carries a time index.
func IsTimeTable(name string) bool {
	for _, t := range TimeTables {
		if t == name {
			return true
		}
	}
	return false
}

// Indexed returns a time table with its Hour..Year columns prepended. Other
// tables are returned as Table does.
func (b *Bundle) Indexed(name string) (table.Frame, error) {
	switch name {
	case TableEnergyBalance:
		return table.Indexed[table.EnergyBalanceColumn]{Table: b.energyBalance}, nil
	case TableTechnologyOperation:
		return table.Indexed[table.TechnologyColumn]{Table: b.technologyOperation}, nil
	case TableNetworkOperation:
		return table.Indexed[table.NetworkOperationColumn]{Table: b.networkOperation}, nil
	default:
		return b.Table(name)
	}
}

// Aggregate reduces a time table to one row per key of level. method is an
// aggregate.Method name or MixedMethod.
func (b *Bundle) Aggregate(name string, level timeindex.Level, method string) (table.Frame, error) {
	switch name {
	case TableEnergyBalance:
		return AggregateTable(b.energyBalance, level, method)
	case TableTechnologyOperation:
		return AggregateTable(b.technologyOperation, level, method)
	case TableNetworkOperation:
		return AggregateTable(b.networkOperation, level, method)
	}
	if _, err := b.Table(name); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s has no time index", ErrUnknownTable, name)
}

// AggregateTable reduces t with an aggregate.Method name or MixedMethod.
func AggregateTable[C table.Column](t *table.Table[C], level timeindex.Level, method string) (table.Frame, error) {
	var (
		r   *aggregate.Result[C]
		err error
	)
	if strings.EqualFold(strings.TrimSpace(method), MixedMethod) {
		r, err = aggregate.AggregateMixed(t, level, aggregate.StorageLevel(t.Schema()))
	} else {
		var m aggregate.Method
		if m, err = aggregate.ParseMethod(method); err != nil {
			return nil, err
		}
		r, err = aggregate.Aggregate(t, level, m)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}
