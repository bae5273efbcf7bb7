package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicktill/energyview/pkg/config"
	"github.com/nicktill/energyview/pkg/export"
	"github.com/nicktill/energyview/pkg/results"
)

func newPGExportCmd(opts *options) *cobra.Command {
	var (
		dsn    string
		tables []string
		prefix string
	)
	cmd := &cobra.Command{
		Use:   "pgexport <archive>",
		Short: "Copy result tables into PostgreSQL",
		Long: `Decode an archive and replace one Postgres table per result table.
The DSN defaults to $` + config.EnvPGDSN + ` or the config file.

Example:
  energyview pgexport run.h5 --dsn postgres://localhost/energy --tables technology_design,network_design`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, cfg, err := opts.loadBundle(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			if dsn == "" {
				dsn = cfg.PostgresDSN
			}
			if dsn == "" {
				return errors.New("no Postgres DSN: use --dsn or " + config.EnvPGDSN)
			}

			sink, err := export.OpenPostgres(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer sink.Close()

			w := cmd.ErrOrStderr()
			printSection(w, "Postgres export")
			for _, name := range tables {
				f, err := b.Table(name)
				if err != nil {
					return err
				}
				res, err := sink.Write(cmd.Context(), prefix+name, f)
				if err != nil {
					return fmt.Errorf("export of %s failed: %w", name, err)
				}
				printOK(w, fmt.Sprintf("%s: %d rows", res.Table, res.Rows))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string")
	cmd.Flags().StringSliceVar(&tables, "tables", results.TableNames, "tables to copy")
	cmd.Flags().StringVar(&prefix, "prefix", "energyview_", "prefix of the created table names")
	return cmd
}
