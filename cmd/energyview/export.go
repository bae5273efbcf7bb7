package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nicktill/energyview/pkg/export"
)

func newExportCmd(opts *options) *cobra.Command {
	var (
		tableName string
		format    string
		out       string
		delimiter string
		level     string
		method    string
		withIndex bool
	)
	cmd := &cobra.Command{
		Use:   "export <archive>",
		Short: "Write one result table as CSV, JSON or XLSX",
		Long: `Decode an archive and write one of its tables. Time tables can be
aggregated to a coarser level (Day, Week, Month, Year) with --level.

Example:
  energyview export run.h5 --table energy_balance --out balance.csv
  energyview export run.h5 --table technology_operation --level Month --method mixed --format xlsx --out tech.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			b, cfg, err := opts.loadBundle(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			delim := cfg.DelimiterRune()
			if cmd.Flags().Changed("delimiter") {
				if delim, err = export.ParseDelimiter(delimiter); err != nil {
					return err
				}
			}

			frame, err := export.Frame(b, tableName, level, method, withIndex)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			res, err := export.Write(&buf, tableName, frame, f, delim)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			printOK(cmd.ErrOrStderr(), fmt.Sprintf("%s: %d rows x %d columns written to %s", res.Table, res.Rows, res.Columns, out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&tableName, "table", "t", "energy_balance", "table to export")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv, json or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", "", "CSV field separator (default from config, ;)")
	cmd.Flags().StringVar(&level, "level", "", "aggregate time tables to Hour, Day, Week, Month or Year")
	cmd.Flags().StringVar(&method, "method", "", "sum, mean, min, max or mixed (default sum)")
	cmd.Flags().BoolVar(&withIndex, "index", false, "include the time index columns")
	return cmd
}
