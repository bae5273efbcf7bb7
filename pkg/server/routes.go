package server

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Handler returns the HTTP handler of the server with access logging.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	s.SetupRoutes(router)
	return handlers.LoggingHandler(os.Stdout, handlers.RecoveryHandler()(router))
}

// SetupRoutes configures all HTTP routes for the server.
func (s *Server) SetupRoutes(router *mux.Router) {
	router.Use(corsMiddleware(s.cfg.Port))
	router.Use(s.metrics.Middleware)

	api := router.PathPrefix("/v1").Subrouter()

	// Sessions
	api.HandleFunc("/sessions", s.handleLoad).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Session content
	api.HandleFunc("/sessions/{id}/topology", s.handleTopology).Methods("GET")
	api.HandleFunc("/sessions/{id}/balance", s.handleBalance).Methods("GET")
	api.HandleFunc("/sessions/{id}/tables/{table}", s.handleTable).Methods("GET")
	api.HandleFunc("/sessions/{id}/query", s.queryHandler.HandleQuery).Methods("GET", "POST")
	api.HandleFunc("/sessions/{id}/export/{table}", s.exportHandler.HandleExport).Methods("GET")

	api.HandleFunc("/traces/{id}", s.handleTrace).Methods("GET")

	// Cache and health
	api.HandleFunc("/cache", s.handleCache).Methods("GET")
	api.HandleFunc("/cache/{digest}", s.handleCacheInvalidate).Methods("DELETE")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket for load progress
	api.HandleFunc("/ws", s.hub.HandleWebSocket).Methods("GET")

	router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:" + port: true,
		"http://127.0.0.1:" + port: true,
		"http://localhost:3000":    true,
		"http://127.0.0.1:3000":    true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
