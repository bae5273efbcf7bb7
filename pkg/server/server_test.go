package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/energyview/pkg/cache/memory"
	"github.com/nicktill/energyview/pkg/config"
	"github.com/nicktill/energyview/pkg/query"
	"github.com/nicktill/energyview/pkg/results"
	"github.com/nicktill/energyview/pkg/tracing"
)

func hours(n int, v float64) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func fixture() string {
	return `
topology:
  nodes: [A, B]
  carriers: [electricity]
  periods: [0]
k_means_specs: {}
operation:
  energy_balance:
    Period0:
      A:
        electricity:
          demand: ` + hours(24, 2) + `
          import: ` + hours(24, 3) + `
  technology_operation:
    Period0:
      A:
        battery:
          storage_level: ` + hours(24, 5) + `
`
}

func writeArchive(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	s, err := New(cfg, WithCache(memory.New()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, &buf))
	return rr
}

func load(t *testing.T, h http.Handler, path string) SessionInfo {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/sessions", LoadRequest{Path: path})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var info SessionInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	return info
}

func TestServer_SessionLifecycle(t *testing.T) {
	s, h := newTestServer(t)
	info := load(t, h, writeArchive(t, fixture()))

	require.NotEmpty(t, info.ID)
	require.NotEmpty(t, info.Digest)
	require.Equal(t, []string{"A", "B"}, info.Topology.Nodes)
	require.Equal(t, 1, s.Sessions().Len())

	rr := do(t, h, http.MethodGet, "/v1/sessions/"+info.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), info.ID)

	rr = do(t, h, http.MethodDelete, "/v1/sessions/"+info.ID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/sessions/"+info.ID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, h, http.MethodDelete, "/v1/sessions/"+info.ID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_SessionContent(t *testing.T) {
	_, h := newTestServer(t)
	id := load(t, h, writeArchive(t, fixture())).ID
	base := "/v1/sessions/" + id

	rr := do(t, h, http.MethodGet, base+"/topology", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"carriers":["electricity"]`)

	var plain, indexed query.ResultData
	rr = do(t, h, http.MethodGet, base+"/tables/energy_balance?limit=5", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &plain))
	require.Equal(t, 24, plain.TotalRows)
	require.Len(t, plain.Rows, 5)
	require.True(t, plain.Truncated)

	rr = do(t, h, http.MethodGet, base+"/tables/energy_balance?index=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &indexed))
	require.Greater(t, len(indexed.Header), len(plain.Header))
	require.False(t, indexed.Truncated)

	rr = do(t, h, http.MethodGet, base+"/tables/nope", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(t, h, http.MethodGet, base+"/tables/energy_balance?limit=0", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, base+"/balance?node=A&carrier=electricity", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var balance struct {
		Supply       query.ResultData `json:"supply"`
		Demand       query.ResultData `json:"demand"`
		Technologies []string         `json:"technologies"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &balance))
	require.Len(t, balance.Supply.Header, 1)
	require.Len(t, balance.Demand.Header, 1)
	require.Equal(t, []string{"battery"}, balance.Technologies)

	rr = do(t, h, http.MethodGet, base+"/balance?node=A", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, base+"/query", query.Request{Query: `sum by (Day) (energy_balance{Node="A", Variable="demand"})`})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var qr query.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &qr))
	require.Equal(t, "success", qr.Status)
	require.Equal(t, 1, qr.Data.TotalRows)
	require.Contains(t, qr.Data.Rows[0], "48")

	rr = do(t, h, http.MethodGet, base+"/export/energy_balance", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 25)
	require.Contains(t, lines[0], ";")
}

func TestServer_LoadFailures(t *testing.T) {
	s, h := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/v1/sessions", LoadRequest{Path: filepath.Join(t.TempDir(), "missing.h5")})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/sessions", LoadRequest{})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// No energy balance group.
	noBalance := writeArchive(t, "topology:\n  nodes: [A]\n")
	rr = do(t, h, http.MethodPost, "/v1/sessions", LoadRequest{Path: noBalance})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())

	// Ragged series.
	ragged := writeArchive(t, `
topology:
  nodes: [A]
operation:
  energy_balance:
    Period0:
      A:
        electricity:
          demand: [1, 2, 3]
          import: [1, 2]
`)
	rr = do(t, h, http.MethodPost, "/v1/sessions", LoadRequest{Path: ragged})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())

	require.Equal(t, 0, s.Sessions().Len())
}

func TestServer_HealthCacheMetrics(t *testing.T) {
	_, h := newTestServer(t)
	info := load(t, h, writeArchive(t, fixture()))

	rr := do(t, h, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	require.Equal(t, "healthy", health.Status)
	require.Equal(t, 1, health.Sessions)

	rr = do(t, h, http.MethodGet, "/v1/cache", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var c CacheResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	require.True(t, c.Enabled)
	require.NotZero(t, c.Entries)
	require.Nil(t, c.Disk)

	rr = do(t, h, http.MethodDelete, "/v1/cache/"+info.Digest, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = do(t, h, http.MethodGet, "/v1/cache", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	require.Zero(t, c.Entries)

	rr = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, `energyview_loads_total{result="success"} 1`)
	require.Contains(t, body, "energyview_load_stage_duration_seconds")
}

func TestServer_DisabledCache(t *testing.T) {
	cfg := config.Default()
	cfg.CacheDisabled = true
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()
	h := s.Handler()

	load(t, h, writeArchive(t, fixture()))
	rr := do(t, h, http.MethodGet, "/v1/cache", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var c CacheResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	require.False(t, c.Enabled)
	require.Zero(t, c.Entries)
}

func TestServer_BadgerCache(t *testing.T) {
	cfg := config.Default()
	cfg.CacheDir = t.TempDir()
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()
	require.NotNil(t, s.badger)
	h := s.Handler()

	path := writeArchive(t, fixture())
	load(t, h, path)
	load(t, h, path)

	s.collectGarbage()
	require.True(t, s.gc.IsHealthy())

	rr := do(t, h, http.MethodGet, "/v1/cache", nil)
	var c CacheResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	require.NotNil(t, c.Disk)
	require.Equal(t, cfg.CacheDir, c.Disk.Path)

	rr = do(t, h, http.MethodGet, "/metrics", nil)
	require.Contains(t, rr.Body.String(), `energyview_cache_lookups_total{outcome="hit",table="energy_balance"} 1`)
}

func TestServer_ProgressStream(t *testing.T) {
	s, h := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub().Run(ctx)

	ts := httptest.NewServer(h)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, s.Hub().HasClients, time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(LoadRequest{Path: writeArchive(t, fixture())})
	resp, err := http.Post(ts.URL+"/v1/sessions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var percents []int
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var e Event
		require.NoError(t, conn.ReadJSON(&e))
		if e.Type == EventLoaded {
			break
		}
		require.Equal(t, EventProgress, e.Type)
		percents = append(percents, e.Percent)
	}
	require.Equal(t, []int{0, 20, 60, 80, 100}, percents)
}

func TestSessions_LimitAndSweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSessions(2)
	s.now = func() time.Time { return now }

	b := testBundle(t)
	_, err := s.Add("a", b)
	require.NoError(t, err)
	_, err = s.Add("b", b)
	require.NoError(t, err)
	_, err = s.Add("c", b)
	require.ErrorIs(t, err, ErrTooManySessions)
	_, err = s.Add("a", b)
	require.NoError(t, err, "replacing an existing session is not limited")

	now = now.Add(time.Hour)
	_, ok := s.Bundle("a")
	require.True(t, ok)

	now = now.Add(30 * time.Minute)
	require.Equal(t, 1, s.Sweep(time.Hour))
	_, ok = s.Info("b")
	require.False(t, ok)
	require.Equal(t, 0, s.Sweep(0))
	require.Equal(t, 1, s.Len())
}

func testBundle(t *testing.T) *results.Bundle {
	t.Helper()
	src, err := OpenSource(writeArchive(t, fixture()))
	require.NoError(t, err)
	b, err := results.NewLoader().Load(context.Background(), src)
	require.NoError(t, err)
	return b
}

func TestOpenSource(t *testing.T) {
	_, err := OpenSource(filepath.Join(t.TempDir(), "none.h5"))
	require.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = OpenSource(t.TempDir())
	require.ErrorIs(t, err, ErrSourceUnavailable)

	src, err := OpenSource(writeArchive(t, fixture()))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(src.Name(), "run.yaml"))

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("- 1\n- 2\n"), 0o644))
	_, err = OpenSource(bad)
	require.Error(t, err)

	h5 := filepath.Join(t.TempDir(), "run.h5")
	require.NoError(t, os.WriteFile(h5, nil, 0o644))
	src, err = OpenSource(h5)
	require.NoError(t, err)
	require.Equal(t, h5, src.Name())
}

func TestServer_LoadTrace(t *testing.T) {
	_, h := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/v1/sessions", LoadRequest{Path: writeArchive(t, fixture())})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := rr.Header().Get("X-Session-Id")
	require.NotEmpty(t, id)

	rr = do(t, h, http.MethodGet, "/v1/traces/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var tr tracing.Trace
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tr))
	require.Equal(t, id, tr.Session)
	require.Equal(t, "load", tr.RootSpan.Operation)
	require.Equal(t, tracing.SpanStatusOK, tr.RootSpan.Status)

	ops := map[string]bool{}
	for _, sp := range tr.Spans[1:] {
		ops[sp.Operation] = true
		if sp.ParentID != tr.RootSpan.SpanID {
			t.Errorf("span %s has parent %s, want %s", sp.Operation, sp.ParentID, tr.RootSpan.SpanID)
		}
	}
	require.True(t, ops[string(results.StageTopology)])
	require.True(t, ops[string(results.StageEnergyBalance)])

	// A failed load leaves a trace under the id it would have had.
	rr = do(t, h, http.MethodPost, "/v1/sessions", LoadRequest{Path: writeArchive(t, "topology:\n  nodes: [A]\n")})
	require.NotEqual(t, http.StatusCreated, rr.Code)
	failed := rr.Header().Get("X-Session-Id")
	require.NotEmpty(t, failed)

	rr = do(t, h, http.MethodGet, "/v1/traces/"+failed, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tr))
	require.Equal(t, tracing.SpanStatusError, tr.RootSpan.Status)
	require.NotEmpty(t, tr.RootSpan.Error)

	rr = do(t, h, http.MethodGet, "/v1/traces/unknown", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
