package tracing

import (
	"sort"
	"sync"
)

// DefaultMaxTraces bounds the traces kept in memory.
const DefaultMaxTraces = 256

// Storage keeps the latest trace per session, evicting the oldest traces
// beyond its capacity.
type Storage struct {
	mu     sync.RWMutex
	traces map[string]*Trace
	max    int
}

// NewStorage creates a storage keeping at most max traces (DefaultMaxTraces
// when max <= 0).
func NewStorage(max int) *Storage {
	if max <= 0 {
		max = DefaultMaxTraces
	}
	return &Storage{traces: make(map[string]*Trace), max: max}
}

// Store saves t as the trace of its session.
func (s *Storage) Store(t *Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[t.Session] = t
	if len(s.traces) > s.max {
		s.evict(len(s.traces) - s.max)
	}
}

func (s *Storage) evict(n int) {
	all := make([]*Trace, 0, len(s.traces))
	for _, t := range s.traces {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.Before(all[j].StartTime) })
	for _, t := range all[:n] {
		delete(s.traces, t.Session)
	}
}

// Get returns the trace of a session.
func (s *Storage) Get(session string) (*Trace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.traces[session]
	return t, ok
}

// Delete drops the trace of a session.
func (s *Storage) Delete(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.traces, session)
}

// Len returns the number of stored traces.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.traces)
}
