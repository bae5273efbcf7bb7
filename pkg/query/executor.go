package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/nicktill/energyview/pkg/results"
	"github.com/nicktill/energyview/pkg/table"
	"github.com/nicktill/energyview/pkg/timeindex"
)

// Executor evaluates parsed queries against one bundle
type Executor struct {
	bundle *results.Bundle
}

// NewExecutor creates a new query executor
func NewExecutor(b *results.Bundle) *Executor {
	return &Executor{bundle: b}
}

// Result is the outcome of a query
type Result struct {
	Table string
	Frame table.Frame

	// Level is set for aggregations.
	Level  *timeindex.Level
	Method string
}

// Run parses and executes input.
func (e *Executor) Run(ctx context.Context, input string) (*Result, error) {
	expr, err := Parse(input)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, expr)
}

// Execute evaluates expr. Time tables come back with their Hour..Year
// columns; aggregations come back with one row per timeslice.
func (e *Executor) Execute(ctx context.Context, expr Expr) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch ex := expr.(type) {
	case *ParenExpr:
		return e.Execute(ctx, ex.Expr)
	case *Selector:
		f, err := e.selectFrame(ex)
		if err != nil {
			return nil, err
		}
		return &Result{Table: ex.Table, Frame: f}, nil
	case *AggregateExpr:
		return e.executeAggregate(ex)
	default:
		return nil, fmt.Errorf("%w: unsupported expression type %T", ErrInvalid, expr)
	}
}

func unwrapParens(expr Expr) Expr {
	for {
		p, ok := expr.(*ParenExpr)
		if !ok {
			return expr
		}
		expr = p.Expr
	}
}

func (e *Executor) executeAggregate(agg *AggregateExpr) (*Result, error) {
	sel, ok := unwrapParens(agg.Expr).(*Selector)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be applied to a table selector", ErrInvalid, agg.Op)
	}
	level := timeindex.Year
	if agg.Level != "" {
		var err error
		if level, err = timeindex.ParseLevel(agg.Level); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	b := e.bundle
	var (
		f   table.Frame
		err error
	)
	switch sel.Table {
	case results.TableEnergyBalance:
		f, err = aggregateSelection(b.EnergyBalance(), sel.Matchers, level, agg.Op)
	case results.TableTechnologyOperation:
		f, err = aggregateSelection(b.TechnologyOperation(), sel.Matchers, level, agg.Op)
	case results.TableNetworkOperation:
		f, err = aggregateSelection(b.NetworkOperation(), sel.Matchers, level, agg.Op)
	default:
		if _, terr := b.Table(sel.Table); terr != nil {
			return nil, terr
		}
		return nil, fmt.Errorf("%w: %s has no time index to aggregate", ErrInvalid, sel.Table)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Table: sel.Table, Frame: f, Level: &level, Method: agg.Op}, nil
}

func (e *Executor) selectFrame(sel *Selector) (table.Frame, error) {
	b := e.bundle
	switch sel.Table {
	case results.TableEnergyBalance:
		t, err := selectColumns(b.EnergyBalance(), sel.Matchers)
		if err != nil {
			return nil, err
		}
		return table.Indexed[table.EnergyBalanceColumn]{Table: t}, nil
	case results.TableTechnologyOperation:
		t, err := selectColumns(b.TechnologyOperation(), sel.Matchers)
		if err != nil {
			return nil, err
		}
		return table.Indexed[table.TechnologyColumn]{Table: t}, nil
	case results.TableNetworkOperation:
		t, err := selectColumns(b.NetworkOperation(), sel.Matchers)
		if err != nil {
			return nil, err
		}
		return table.Indexed[table.NetworkOperationColumn]{Table: t}, nil
	case results.TableTechnologyDesign:
		return selectRows(b.TechnologyDesign(), sel.Matchers)
	case results.TableNetworkDesign:
		return selectRows(b.NetworkDesign(), sel.Matchers)
	}

	f, err := b.Table(sel.Table)
	if err != nil {
		return nil, err
	}
	if len(sel.Matchers) > 0 {
		return nil, fmt.Errorf("%w: %s does not support matchers", ErrInvalid, sel.Table)
	}
	return f, nil
}

// predicate resolves matcher dimensions against schema.
func predicate[C table.Column](schema table.Schema[C], ms []*Matcher) (func(C) bool, error) {
	pos := make([]int, len(ms))
	for i, m := range ms {
		p, ok := schema.Dimension(m.Dimension)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no dimension %q (have %s)",
				ErrInvalid, schema.Name, m.Dimension, strings.Join(schema.Dimensions, ", "))
		}
		pos[i] = p
	}
	return func(c C) bool {
		labels := c.Labels()
		for i, m := range ms {
			if !m.Matches(labels[pos[i]]) {
				return false
			}
		}
		return true
	}, nil
}

func selectColumns[C table.Column](t *table.Table[C], ms []*Matcher) (*table.Table[C], error) {
	keep, err := predicate(t.Schema(), ms)
	if err != nil {
		return nil, err
	}
	return t.Select(keep), nil
}

func selectRows[C table.Column](t *table.LongTable[C], ms []*Matcher) (*table.LongTable[C], error) {
	keep, err := predicate(t.Schema(), ms)
	if err != nil {
		return nil, err
	}
	return t.Filter(func(r table.LongRow[C]) bool { return keep(r.Column) }), nil
}

func aggregateSelection[C table.Column](t *table.Table[C], ms []*Matcher, level timeindex.Level, op string) (table.Frame, error) {
	sel, err := selectColumns(t, ms)
	if err != nil {
		return nil, err
	}
	return results.AggregateTable(sel, level, op)
}
