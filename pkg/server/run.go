package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/nicktill/energyview/pkg/config"
)

// ListenAndServe serves the API on the configured port until ctx is done,
// then stops the background tasks and shuts the HTTP server down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.hub.Run(ctx)
	}()
	log.Println("📡 WebSocket hub started for load progress streaming")

	stop := make(chan bool)
	wg.Add(2)
	go s.RunBadgerGC(stop, &wg)
	go s.RunSessionSweep(stop, &wg)

	srv := &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🌐 Server starting on http://localhost:%s", s.cfg.Port)
		log.Println("📡 API endpoints:")
		log.Println("   POST /v1/sessions                      - Load an archive")
		log.Println("   GET  /v1/sessions/{id}/tables/{table}  - Read a table")
		log.Println("   POST /v1/sessions/{id}/query           - Query a session")
		log.Println("   GET  /v1/sessions/{id}/export/{table}  - Export a table")
		log.Println("   GET  /metrics                          - Prometheus endpoint")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Println("🛑 Shutdown signal received...")
	case serveErr = <-errCh:
		log.Printf("❌ Server failed: %v", serveErr)
	}

	log.Println("⏸️  Stopping background tasks...")
	cancel()
	close(stop)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown warning: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("✅ All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("⚠️  Some background tasks did not stop in time")
	}
	return serveErr
}
