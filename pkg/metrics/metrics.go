// Package metrics exposes Prometheus metrics for loads, cache lookups,
// exports and HTTP requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nicktill/energyview/pkg/export"
	"github.com/nicktill/energyview/pkg/results"
)

const (
	namespace = "energyview"

	resultSuccess = "success"
	resultError   = "error"
)

// Metrics implements cache.Observer and results.Observer.
type Metrics struct {
	gatherer prometheus.Gatherer

	loads         *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	exports       *prometheus.CounterVec
	exportRows    prometheus.Counter
	sessions      prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers the metrics with reg. A nil reg uses a fresh registry, which
// keeps tests independent.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Archive loads by result.",
		}, []string{"result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_stage_duration_seconds",
			Help:      "Duration of each load stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage", "result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Table cache lookups by table and outcome.",
		}, []string{"table", "outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Table exports by table and format.",
		}, []string{"table", "format"}),
		exportRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_rows_total",
			Help:      "Rows written by exports.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Loaded sessions.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		m.loads,
		m.stageDuration,
		m.cacheLookups,
		m.exports,
		m.exportRows,
		m.sessions,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// CacheHit implements cache.Observer.
func (m *Metrics) CacheHit(table string) {
	m.cacheLookups.WithLabelValues(table, "hit").Inc()
}

// CacheMiss implements cache.Observer.
func (m *Metrics) CacheMiss(table string) {
	m.cacheLookups.WithLabelValues(table, "miss").Inc()
}

// StageDone implements results.Observer.
func (m *Metrics) StageDone(stage results.Stage, elapsed time.Duration, err error) {
	m.stageDuration.WithLabelValues(string(stage), result(err)).Observe(elapsed.Seconds())
}

// LoadDone counts a finished load.
func (m *Metrics) LoadDone(err error) {
	m.loads.WithLabelValues(result(err)).Inc()
}

// Exported counts one export. It matches export.Handler.OnExport.
func (m *Metrics) Exported(r *export.Result, _ time.Duration) {
	m.exports.WithLabelValues(r.Table, string(r.Format)).Inc()
	m.exportRows.Add(float64(r.Rows))
}

// SetSessions records the number of loaded sessions.
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and durations by route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
