package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nicktill/energyview/pkg/cache/memory"
	"github.com/nicktill/energyview/pkg/config"
	"github.com/nicktill/energyview/pkg/server"
)

const fixture = `
topology:
  nodes: [A, B]
  carriers: [electricity]
  periods: [0]
k_means_specs:
  Period0:
    sequence: [1, 1, 2, 2]
operation:
  energy_balance:
    Period0:
      A:
        electricity:
          demand: [1, 3]
          import: [2, 2]
design:
  nodes:
    Period0:
      A:
        pv:
          size_max: 10
`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvPGDSN, "")
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--no-cache"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestInspect_Text(t *testing.T) {
	out, _, err := execute(t, "inspect", writeFixture(t))
	require.NoError(t, err)
	require.Contains(t, out, "=== Topology ===")
	require.Contains(t, out, "A, B")
	require.Contains(t, out, "2 representatives over 4 steps")
	require.Contains(t, out, "4 rows x 2 columns")
}

func TestInspect_JSON(t *testing.T) {
	out, _, err := execute(t, "inspect", "--json", writeFixture(t))
	require.NoError(t, err)

	var report inspectReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Equal(t, []string{"electricity"}, report.Topology.Carriers)
	require.Equal(t, map[string]int{"Period0": 2}, report.Clusters)
	require.NotEmpty(t, report.Digest)
}

func TestExport_CSVToStdout(t *testing.T) {
	out, _, err := execute(t, "export", writeFixture(t), "--table", "energy_balance", "--delimiter", ",")
	require.NoError(t, err)
	require.Equal(t, []string{
		"Period0/A/electricity/demand,Period0/A/electricity/import",
		"1,2",
		"1,2",
		"3,2",
		"3,2",
	}, strings.Split(strings.TrimSpace(out), "\n"))
}

func TestExport_AggregatedXLSXFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "daily.xlsx")
	_, stderr, err := execute(t, "export", writeFixture(t), "--table", "energy_balance",
		"--level", "Day", "--format", "xlsx", "--out", dest)
	require.NoError(t, err)
	require.Contains(t, stderr, "written to "+dest)

	f, err := excelize.OpenFile(dest)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestExport_Errors(t *testing.T) {
	path := writeFixture(t)

	_, _, err := execute(t, "export", path, "--table", "nope")
	require.Error(t, err)

	_, _, err = execute(t, "export", path, "--format", "pdf")
	require.Error(t, err)

	_, _, err = execute(t, "export", path, "--delimiter", ";;")
	require.Error(t, err)

	_, _, err = execute(t, "export", filepath.Join(t.TempDir(), "missing.h5"))
	require.Error(t, err)
}

func TestQuery(t *testing.T) {
	path := writeFixture(t)

	out, _, err := execute(t, "query", path, `sum by (Day) (energy_balance{Variable="demand"})`)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasSuffix(lines[1], ";8"), lines[1])

	out, stderr, err := execute(t, "query", "--limit", "1", path, `energy_balance{Variable="import"}`)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
	require.Contains(t, stderr, "showing 1 of 4 rows")

	out, _, err = execute(t, "query", "--json", path, `technology_design{Technology="pv"}`)
	require.NoError(t, err)
	require.Contains(t, out, `"total_rows": 1`)

	_, _, err = execute(t, "query", path, `sum by (Day) (`)
	require.Error(t, err)
}

func TestPGExport_NoDSN(t *testing.T) {
	_, _, err := execute(t, "pgexport", writeFixture(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no Postgres DSN")
}

func TestServe_InvalidPort(t *testing.T) {
	_, _, err := execute(t, "serve", "--port", "http")
	require.Error(t, err)
}

func TestSessions_AgainstServer(t *testing.T) {
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	srv, err := server.New(cfg, server.WithCache(memory.New()))
	require.NoError(t, err)
	defer srv.Close()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	out, _, err := execute(t, "sessions", "list", "--server", ts.URL)
	require.NoError(t, err)
	require.Contains(t, out, "no sessions")

	out, _, err = execute(t, "sessions", "load", "--server", ts.URL, writeFixture(t))
	require.NoError(t, err)
	require.Contains(t, out, "loaded")
	require.Equal(t, 1, srv.Sessions().Len())
	id := srv.Sessions().List()[0].ID

	out, _, err = execute(t, "sessions", "list", "--server", ts.URL)
	require.NoError(t, err)
	require.Contains(t, out, id)
	require.Contains(t, out, "run.yaml")

	_, _, err = execute(t, "sessions", "rm", "--server", ts.URL, id)
	require.NoError(t, err)
	require.Equal(t, 0, srv.Sessions().Len())

	_, _, err = execute(t, "sessions", "rm", "--server", ts.URL, id)
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}
