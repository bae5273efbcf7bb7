package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/energyview/pkg/cache"
	"github.com/nicktill/energyview/pkg/config"
	"github.com/nicktill/energyview/pkg/httpx"
	"github.com/nicktill/energyview/pkg/query"
	"github.com/nicktill/energyview/pkg/results"
	"github.com/nicktill/energyview/pkg/server/monitor"
)

var startTime = time.Now()

// Version is reported by the health endpoint.
const Version = "1.0.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string               `json:"status"`
	Version  string               `json:"version"`
	Uptime   string               `json:"uptime"`
	Sessions int                  `json:"sessions"`
	Tasks    []monitor.TaskStatus `json:"tasks"`
}

// CacheResponse describes the table cache.
type CacheResponse struct {
	Enabled bool              `json:"enabled"`
	Entries uint64            `json:"entries"`
	Bytes   uint64            `json:"bytes"`
	Disk    *monitor.DirUsage `json:"disk,omitempty"`
}

// LoadRequest is the payload of POST /v1/sessions.
type LoadRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tasks := []monitor.TaskStatus{s.sweep.Status()}
	if s.badger != nil {
		tasks = append(tasks, s.gc.Status())
	}
	status, code := "healthy", http.StatusOK
	for _, t := range tasks {
		if !t.Healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	httpx.RespondJSON(w, code, HealthResponse{
		Status:   status,
		Version:  Version,
		Uptime:   time.Since(startTime).String(),
		Sessions: s.sessions.Len(),
		Tasks:    tasks,
	})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}
	_, disabled := s.cache.(cache.Disabled)
	resp := CacheResponse{Enabled: !disabled, Entries: stats.Entries, Bytes: stats.SizeBytes}
	if s.badger != nil {
		usage, err := s.storage.Usage()
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Disk = &usage
	}
	httpx.RespondJSON(w, http.StatusOK, resp)
}

// handleCacheInvalidate handles DELETE /v1/cache/{digest}
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	digest := mux.Vars(r)["digest"]
	if err := s.cache.Invalidate(r.Context(), digest); err != nil {
		httpx.RespondErr(w, err)
		return
	}
	log.Printf("Invalidated cached tables of %s", digest)
	w.WriteHeader(http.StatusNoContent)
}

// handleLoad handles POST /v1/sessions. The archive is decoded before the
// response is written; a failed load creates no session.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "path is required")
		return
	}

	src, err := s.open(req.Path)
	if err != nil {
		status := httpx.StatusFor(err)
		if errors.Is(err, ErrSourceUnavailable) {
			status = http.StatusBadRequest
		}
		httpx.RespondError(w, status, err)
		return
	}

	id := NewID()
	w.Header().Set("X-Session-Id", id)
	ctx, cancel := context.WithTimeout(r.Context(), config.LoadTimeout)
	defer cancel()

	var observers []results.Observer
	trace, err := s.tracer.Start(id, src.Name())
	if err != nil {
		log.Printf("⚠️  Load of %s is not traced: %v", src.Name(), err)
	} else {
		observers = append(observers, trace)
	}

	start := time.Now()
	b, err := s.Loader(id, src.Name(), observers...).Load(ctx, src)
	s.metrics.LoadDone(err)
	if trace != nil {
		if _, terr := trace.Finish(err); terr != nil {
			log.Printf("⚠️  Failed to store trace of %s: %v", id, terr)
		}
	}
	if err != nil {
		log.Printf("❌ Load of %s failed: %v", src.Name(), err)
		s.hub.Publish(Event{Type: EventLoadFailed, Session: id, Source: src.Name(), Error: err.Error()})
		httpx.RespondErr(w, err)
		return
	}

	info, err := s.sessions.Add(id, b)
	if err != nil {
		httpx.RespondError(w, http.StatusTooManyRequests, err)
		return
	}
	s.metrics.SetSessions(s.sessions.Len())
	s.hub.Publish(Event{Type: EventLoaded, Session: id, Source: src.Name(), Percent: 100})
	log.Printf("✅ Loaded %s as session %s in %v", src.Name(), id, time.Since(start).Round(time.Millisecond))

	httpx.RespondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": s.sessions.List(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	info, ok := s.sessions.Info(id)
	if !ok {
		respondUnknownSession(w, id)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, info)
}

// handleDeleteSession handles DELETE /v1/sessions/{id}, the reset of a
// session.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.sessions.Delete(id) {
		respondUnknownSession(w, id)
		return
	}
	s.metrics.SetSessions(s.sessions.Len())
	s.hub.Publish(Event{Type: EventDeleted, Session: id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) bundle(w http.ResponseWriter, r *http.Request) (*results.Bundle, bool) {
	id := mux.Vars(r)["id"]
	b, ok := s.sessions.Bundle(id)
	if !ok {
		respondUnknownSession(w, id)
	}
	return b, ok
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bundle(w, r)
	if !ok {
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"topology": b.Topology(),
		"clusters": b.ClusterSpec(),
		"networks": b.Networks(),
	})
}

// handleTable handles GET /v1/sessions/{id}/tables/{table}
// Query params:
//   - index: "true" to include the time columns of time tables
//   - limit: maximum rows returned (default: the query row limit)
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bundle(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["table"]
	q := r.URL.Query()

	limit := config.QueryRowLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpx.RespondErrorString(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	f, err := b.Table(name)
	if err == nil && q.Get("index") == "true" && results.IsTimeTable(name) {
		f, err = b.Indexed(name)
	}
	if err != nil {
		httpx.RespondErr(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, query.NewResultData(&query.Result{Table: name, Frame: f}, limit))
}

// handleBalance handles GET /v1/sessions/{id}/balance?node=&carrier=, the
// supply and demand split of one node and carrier.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bundle(w, r)
	if !ok {
		return
	}
	node, carrier := r.URL.Query().Get("node"), r.URL.Query().Get("carrier")
	if node == "" || carrier == "" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "node and carrier are required")
		return
	}
	supply, demand := b.Balance(node, carrier)
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"node":         node,
		"carrier":      carrier,
		"supply":       query.NewResultData(&query.Result{Table: results.TableEnergyBalance, Frame: supply}, config.QueryRowLimit),
		"demand":       query.NewResultData(&query.Result{Table: results.TableEnergyBalance, Frame: demand}, config.QueryRowLimit),
		"technologies": b.Technologies(node),
	})
}

// handleTrace handles GET /v1/traces/{id}, the stage timings of the load
// that created (or failed to create) a session.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tr, ok := s.traces.Get(id)
	if !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("no trace for %q", id))
		return
	}
	httpx.RespondJSON(w, http.StatusOK, tr)
}

func respondUnknownSession(w http.ResponseWriter, id string) {
	httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("unknown session %q", id))
}
