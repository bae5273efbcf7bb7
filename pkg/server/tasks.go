package server

import (
	"log"
	"sync"
	"time"

	"github.com/nicktill/energyview/pkg/config"
)

// RunBadgerGC runs BadgerDB value log garbage collection periodically to
// reclaim disk space left by expired and invalidated tables.
func (s *Server) RunBadgerGC(stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	if s.badger == nil {
		log.Println("Table cache is not BadgerDB, skipping GC")
		return
	}

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	log.Printf("BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)

	for {
		select {
		case <-ticker.C:
			s.collectGarbage()
		case <-stop:
			log.Println("Stopping BadgerDB GC scheduler")
			return
		}
	}
}

func (s *Server) collectGarbage() {
	start := time.Now()
	if err := s.badger.RunGC(config.BadgerGCDiscardRatio); err != nil {
		s.gc.RecordFailure(err)
		log.Printf("GC failed: %v", err)
		if status := s.gc.Status(); !status.Healthy {
			log.Printf("ALERT: BadgerDB GC has been failing! Consecutive errors: %d", status.ConsecutiveErrors)
		}
		return
	}
	s.gc.RecordSuccess()
	lsm, vlog := s.badger.Size()
	log.Printf("GC completed in %v (lsm %d bytes, vlog %d bytes)", time.Since(start).Round(time.Millisecond), lsm, vlog)
}

// RunSessionSweep drops sessions idle for longer than the configured
// session idle time.
func (s *Server) RunSessionSweep(stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	if s.cfg.SessionIdle <= 0 {
		log.Println("Session idle timeout disabled, skipping sweep")
		return
	}

	ticker := time.NewTicker(config.SessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepSessions()
		case <-stop:
			log.Println("Stopping session sweeper")
			return
		}
	}
}

func (s *Server) sweepSessions() int {
	n := s.sessions.Sweep(s.cfg.SessionIdle)
	s.sweep.RecordSuccess()
	if n > 0 {
		s.metrics.SetSessions(s.sessions.Len())
		log.Printf("Dropped %d idle sessions", n)
	}
	return n
}
