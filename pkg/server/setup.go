package server

import (
	"fmt"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nicktill/energyview/pkg/cache"
	badgercache "github.com/nicktill/energyview/pkg/cache/badger"
	"github.com/nicktill/energyview/pkg/config"
	"github.com/nicktill/energyview/pkg/export"
	"github.com/nicktill/energyview/pkg/metrics"
	"github.com/nicktill/energyview/pkg/query"
	"github.com/nicktill/energyview/pkg/results"
	"github.com/nicktill/energyview/pkg/server/monitor"
	"github.com/nicktill/energyview/pkg/tracing"
)

// Server owns the sessions, the table cache and the HTTP handlers.
type Server struct {
	cfg      config.Config
	cache    cache.Store
	badger   *badgercache.Store
	sessions *Sessions
	hub      *ProgressHub
	metrics  *metrics.Metrics
	storage  *monitor.StorageMonitor
	gc       *monitor.TaskMonitor
	sweep    *monitor.TaskMonitor
	traces   *tracing.Storage
	tracer   *tracing.Tracer
	open     SourceOpener
	logger   *log.Logger

	queryHandler  *query.Handler
	exportHandler *export.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithCache uses store instead of opening the configured cache.
func WithCache(store cache.Store) Option {
	return func(s *Server) { s.cache = store }
}

// WithSourceOpener replaces OpenSource.
func WithSourceOpener(open SourceOpener) Option {
	return func(s *Server) { s.open = open }
}

// WithRegistry registers metrics with reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.metrics = metrics.New(reg) }
}

// WithLogger sets the logger handed to loaders.
func WithLogger(lg *log.Logger) Option {
	return func(s *Server) { s.logger = lg }
}

// New creates a server from cfg. Unless WithCache is given, the cache is a
// BadgerDB store under cfg.CacheDir, or cache.Disabled when
// cfg.CacheDisabled is set.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		sessions: NewSessions(config.MaxSessions),
		hub:      NewProgressHub(),
		storage:  monitor.NewStorageMonitor(cfg.CacheDir, cfg.MaxCacheMB<<20),
		gc:       monitor.NewTaskMonitor("badger_gc", 3*config.BadgerGCInterval),
		sweep:    monitor.NewTaskMonitor("session_sweep", 3*config.SessionSweepInterval),
		open:     OpenSource,
	}
	s.traces = tracing.NewStorage(tracing.DefaultMaxTraces)
	s.tracer = tracing.NewTracer(s.traces)
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if s.cache == nil {
		store, err := InitializeCache(cfg, s.metrics)
		if err != nil {
			return nil, err
		}
		s.cache = store
		s.badger, _ = store.(*badgercache.Store)
	}

	s.queryHandler = query.NewHandler(s.sessions.Bundle, config.QueryRowLimit)
	log.Println("Query handler created")

	s.exportHandler = export.NewHandler(s.sessions.Bundle, cfg.DelimiterRune())
	s.exportHandler.OnExport(s.metrics.Exported)
	log.Printf("Export handler created (csv delimiter %q)", cfg.DelimiterRune())

	return s, nil
}

// InitializeCache opens the table cache described by cfg.
func InitializeCache(cfg config.Config, obs cache.Observer) (cache.Store, error) {
	if cfg.CacheDisabled {
		log.Println("Table cache disabled")
		return cache.Disabled{}, nil
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	log.Printf("Initializing BadgerDB table cache in %s...", cfg.CacheDir)
	store, err := badgercache.New(badgercache.Config{
		Path:        cfg.CacheDir,
		MaxMemoryMB: cfg.MaxCacheMB,
		TTL:         cfg.CacheTTL,
		Observer:    obs,
	})
	if err != nil {
		return nil, err
	}
	log.Println("BadgerDB table cache initialized successfully")
	return store, nil
}

// Loader builds a loader for one session, publishing its progress on the hub.
// Stage timings go to the metrics and to any extra observers.
func (s *Server) Loader(sessionID, source string, observers ...results.Observer) *results.Loader {
	return results.NewLoader(
		results.WithCache(s.cache),
		results.WithLogger(s.logger),
		results.WithObserver(append(results.Observers{s.metrics}, observers...)),
		results.WithRequiredGroups(s.cfg.RequiredGroups...),
		results.WithProgress(s.hub.Progress(sessionID, source)),
	)
}

// Sessions returns the session store.
func (s *Server) Sessions() *Sessions { return s.sessions }

// Hub returns the progress hub.
func (s *Server) Hub() *ProgressHub { return s.hub }

// Close releases the cache.
func (s *Server) Close() error {
	return s.cache.Close()
}
