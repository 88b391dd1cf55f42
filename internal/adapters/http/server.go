// Package http provides the status server for long-running commands.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/landsatlook/internal/application"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// Poller is the scene poller as seen by the server.
type Poller interface {
	TriggerPoll(ctx context.Context) (application.PollResult, error)
	LastResult() (application.PollResult, bool)
	Interval() time.Duration
}

// Config holds status server configuration.
type Config struct {
	Address      string
	Mode         string // watch or follow, reported by /health
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server exposes health, metrics and the download index over HTTP.
type Server struct {
	server  *http.Server
	router  *mux.Router
	index   output.DownloadIndex
	metrics http.Handler
	poller  Poller
	logger  *slog.Logger
	config  Config
	started time.Time
}

// NewServer creates a new status server. metrics and poller may be nil.
func NewServer(cfg Config, index output.DownloadIndex, metrics http.Handler, poller Poller, logger *slog.Logger) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if index == nil {
		index = output.NoOpIndex{}
	}

	s := &Server{
		index:   index,
		metrics: metrics,
		poller:  poller,
		logger:  logger,
		config:  cfg,
		started: time.Now(),
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/downloads", s.handleListDownloads).Methods(http.MethodGet)
	api.HandleFunc("/scenes/{sceneId}", s.handleGetScene).Methods(http.MethodGet)

	// Poll endpoint (only while following)
	if s.poller != nil {
		api.HandleFunc("/poll", s.handlePoll).Methods(http.MethodPost)
	}

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting status server", "address", s.config.Address)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down status server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"bytes", wrapped.written,
			"duration", time.Since(start),
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter records the status code and body size of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(p)
	rw.written += int64(n)
	return n, err
}
