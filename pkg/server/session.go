package server

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nicktill/energyview/pkg/results"
)

// ErrTooManySessions is returned when the session limit is reached.
var ErrTooManySessions = errors.New("server: too many sessions")

// SessionInfo describes a loaded session.
type SessionInfo struct {
	ID       string           `json:"id"`
	Source   string           `json:"source"`
	Digest   string           `json:"digest"`
	LoadedAt time.Time        `json:"loaded_at"`
	LastUsed time.Time        `json:"last_used"`
	Tables   []results.Shape  `json:"tables"`
	Topology results.Topology `json:"topology"`
}

type session struct {
	id       string
	bundle   *results.Bundle
	lastUsed time.Time
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:       s.id,
		Source:   s.bundle.Source(),
		Digest:   s.bundle.Digest(),
		LoadedAt: s.bundle.LoadedAt(),
		LastUsed: s.lastUsed,
		Tables:   s.bundle.Shapes(),
		Topology: s.bundle.Topology(),
	}
}

// Sessions holds one bundle per loaded archive. Bundles are immutable, so a
// bundle handed out stays valid after its session is deleted.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*session
	max      int
	now      func() time.Time
}

// NewSessions creates a session store holding at most max sessions
// (unlimited when max <= 0).
func NewSessions(max int) *Sessions {
	return &Sessions{
		sessions: make(map[string]*session),
		max:      max,
		now:      time.Now,
	}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Add stores b under id.
func (s *Sessions) Add(id string, b *results.Bundle) (SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; !exists && s.max > 0 && len(s.sessions) >= s.max {
		return SessionInfo{}, ErrTooManySessions
	}
	sess := &session{id: id, bundle: b, lastUsed: s.now()}
	s.sessions[id] = sess
	return sess.info(), nil
}

// Bundle returns the bundle of a session and marks it used.
func (s *Sessions) Bundle(id string) (*results.Bundle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastUsed = s.now()
	return sess.bundle, true
}

// Info describes one session.
func (s *Sessions) Info(id string) (SessionInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return sess.info(), true
}

// List describes every session, oldest load first.
func (s *Sessions) List() []SessionInfo {
	s.mu.RLock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.info())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoadedAt.Equal(out[j].LoadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LoadedAt.Before(out[j].LoadedAt)
	})
	return out
}

// Delete drops a session. It reports whether the session existed.
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Sweep drops sessions unused for longer than idle and returns how many.
func (s *Sessions) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
