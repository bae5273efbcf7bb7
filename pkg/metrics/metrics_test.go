package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/energyview/pkg/archive"
	"github.com/nicktill/energyview/pkg/cache"
	"github.com/nicktill/energyview/pkg/cache/memory"
	"github.com/nicktill/energyview/pkg/export"
	"github.com/nicktill/energyview/pkg/results"
)

var (
	_ cache.Observer   = (*Metrics)(nil)
	_ results.Observer = (*Metrics)(nil)
)

func TestMetrics_CacheAndStages(t *testing.T) {
	m := New(nil)
	store := memory.New(memory.WithObserver(m))
	loader := results.NewLoader(results.WithCache(store), results.WithObserver(m))

	root := archive.NewGroup("",
		archive.NewGroup("topology", archive.NewLeaf("nodes", archive.Strings("A"))),
		archive.NewGroup("operation",
			archive.NewGroup("energy_balance",
				archive.NewGroup("Period0",
					archive.NewGroup("A",
						archive.NewGroup("electricity",
							archive.NewLeaf("demand", archive.Float64s(1, 2, 3, 4)),
						),
					),
				),
			),
		),
	)
	src := archive.NewMemorySource("m", root)
	for i := 0; i < 2; i++ {
		_, err := loader.Load(context.Background(), src)
		m.LoadDone(err)
		require.NoError(t, err)
	}

	require.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("energy_balance", "miss")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("energy_balance", "hit")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.loads.WithLabelValues("success")))
	require.Equal(t, 7, testutil.CollectAndCount(m.stageDuration))
}

func TestMetrics_ExportAndSessions(t *testing.T) {
	m := New(nil)
	m.Exported(&export.Result{Table: "energy_balance", Format: export.CSV, Rows: 24}, time.Millisecond)
	m.Exported(&export.Result{Table: "energy_balance", Format: export.CSV, Rows: 24}, time.Millisecond)
	m.SetSessions(3)
	m.LoadDone(errors.New("boom"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.exports.WithLabelValues("energy_balance", "csv")))
	require.Equal(t, 48.0, testutil.ToFloat64(m.exportRows))
	require.Equal(t, 3.0, testutil.ToFloat64(m.sessions))
	require.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("error")))
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/v1/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/abc", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/v1/sessions/{id}", "404")))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "energyview_http_requests_total"))
}
