package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicktill/energyview/pkg/config"
	"github.com/nicktill/energyview/pkg/export"
	"github.com/nicktill/energyview/pkg/query"
)

func newQueryCmd(opts *options) *cobra.Command {
	var (
		asJSON bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "query <archive> <expression>",
		Short: "Evaluate a selection or aggregation query",
		Long: `Evaluate a query against a decoded archive and print the result as
delimited text.

Example:
  energyview query run.h5 'energy_balance{Node="A", Variable=~"demand|export"}'
  energyview query run.h5 'sum by (Month) (technology_operation{Technology="battery"})'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Parse before decoding so syntax errors are reported immediately.
			if _, err := query.Parse(args[1]); err != nil {
				return err
			}
			b, cfg, err := opts.loadBundle(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			res, err := query.NewExecutor(b).Run(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return printJSON(w, query.NewResultData(res, limit))
			}
			if _, err := export.WriteCSV(w, res.Table, limitFrame(res, limit), cfg.DelimiterRune()); err != nil {
				return err
			}
			if limit > 0 && res.Frame.Len() > limit {
				printWarn(cmd.ErrOrStderr(), fmt.Sprintf("showing %d of %d rows", limit, res.Frame.Len()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().IntVar(&limit, "limit", config.QueryRowLimit, "maximum rows printed (0 = all)")
	return cmd
}

// limitedFrame keeps the first n rows of a result.
type limitedFrame struct {
	*query.Result
	n int
}

func limitFrame(r *query.Result, n int) limitedFrame {
	if n <= 0 || n > r.Frame.Len() {
		n = r.Frame.Len()
	}
	return limitedFrame{Result: r, n: n}
}

func (f limitedFrame) Header() []string   { return f.Frame.Header() }
func (f limitedFrame) Len() int           { return f.n }
func (f limitedFrame) Row(i int) []string { return f.Frame.Row(i) }
