package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nicktill/energyview/pkg/results"
)

type inspectReport struct {
	Source   string           `json:"source"`
	Digest   string           `json:"digest"`
	Topology results.Topology `json:"topology"`
	Clusters map[string]int   `json:"clusters,omitempty"`
	Tables   []results.Shape  `json:"tables"`
	Networks []string         `json:"networks,omitempty"`
}

func newInspectCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Show the topology and table shapes of an archive",
		Long: `Decode an archive and print its node, carrier and period catalogs,
the clustered periods and the size of every result table.

Example:
  energyview inspect results/run.h5
  energyview inspect fixtures/small.yaml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, _, err := opts.loadBundle(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			report := inspectReport{
				Source:   b.Source(),
				Digest:   b.Digest(),
				Topology: b.Topology(),
				Tables:   b.Shapes(),
				Networks: b.Networks(),
			}
			spec := b.ClusterSpec()
			for _, p := range spec.Periods() {
				if report.Clusters == nil {
					report.Clusters = make(map[string]int)
				}
				report.Clusters[p] = spec[p].Clustered
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return printJSON(w, report)
			}
			printSection(w, "Archive")
			printField(w, "source", report.Source)
			printField(w, "digest", report.Digest)

			printSection(w, "Topology")
			printField(w, "nodes", strings.Join(report.Topology.Nodes, ", "))
			printField(w, "carriers", strings.Join(report.Topology.Carriers, ", "))
			printField(w, "periods", strings.Join(report.Topology.Periods, ", "))
			if len(report.Networks) > 0 {
				printField(w, "networks", strings.Join(report.Networks, ", "))
			}

			printSection(w, "Clusters")
			if len(report.Clusters) == 0 {
				printOK(w, "not clustered")
			}
			for _, p := range spec.Periods() {
				printField(w, p, fmt.Sprintf("%d representatives over %d steps", spec[p].Clustered, len(spec[p].Sequence)))
			}

			printSection(w, "Tables")
			for _, s := range report.Tables {
				printField(w, s.Name, fmt.Sprintf("%d rows x %d columns", s.Rows, s.Columns))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
