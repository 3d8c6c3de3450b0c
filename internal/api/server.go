// Package api exposes the clean engine behind an HTTP front end, for
// deployments that trigger schema cleans remotely instead of from the
// CLI.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/orawipe/orawipe/internal/config"
	"github.com/orawipe/orawipe/internal/engine"
	"github.com/orawipe/orawipe/internal/ws"
)

// CleanFunc runs a clean; swapped out in tests.
type CleanFunc func(ctx context.Context, conn config.ConnectionConfig, protectedPattern string, req engine.Request, logger *slog.Logger, progress engine.Progress) (*engine.RunResult, error)

// Server is the REST API server.
type Server struct {
	logger           *slog.Logger
	port             int
	hub              *ws.Hub
	protectedPattern string
	clean            CleanFunc
	server           *http.Server
	devMode          bool
}

// Option configures the API server.
type Option func(*Server)

// WithHub sets the WebSocket hub for progress broadcasting.
func WithHub(hub *ws.Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithDevMode enables CORS for development.
func WithDevMode(dev bool) Option {
	return func(s *Server) {
		s.devMode = dev
	}
}

// New creates a new API server. protectedPattern is the schema
// protection regex applied to every request.
func New(logger *slog.Logger, port int, protectedPattern string, opts ...Option) *Server {
	s := &Server{
		logger:           logger,
		port:             port,
		protectedPattern: protectedPattern,
		clean:            engine.Clean,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	if s.devMode {
		handler = s.corsMiddleware(mux)
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: handler,
	}

	s.logger.Info("starting API server", "port", s.port, "dev_mode", s.devMode)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", requireMethod(http.MethodGet, s.handleHealth))
	mux.HandleFunc("/api/clean", requireMethod(http.MethodPost, s.handleClean))

	if s.hub != nil {
		mux.HandleFunc("/api/ws", s.hub.HandleWebSocket)
	}
}

// requireMethod rejects other methods with 405, matching the routing
// behavior of Go 1.22+ ServeMux method patterns on older toolchains.
func requireMethod(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func jsonResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errorResponse(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, ErrorResponse{Error: msg})
}
