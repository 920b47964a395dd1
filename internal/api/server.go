// Package api is an in-memory reference implementation of the collection
// backend's HTTP contract, used for local development and package tests.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/handlers"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/store"
)

// Server represents the REST API server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	port       int
	store      *store.Store
	sweeper    *Sweeper
	logger     *slog.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Port           int
	AllowedOrigins []string
	RequestTimeout time.Duration
	AccessLog      bool // log every request through chi's logger

	// SessionTTL expires sessions this long after creation; 0 keeps them
	// until logout. SweepInterval is how often expired ones are removed.
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		RequestTimeout: 30 * time.Second,
		SessionTTL:     12 * time.Hour,
		SweepInterval:  10 * time.Minute,
	}
}

// NewServer creates a server over st. A nil store serves the default
// catalog with no accounts.
func NewServer(cfg *Config, st *store.Store, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if st == nil {
		st = store.New(store.DefaultCatalog())
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router: chi.NewRouter(),
		port:   cfg.Port,
		store:  st,
		logger: logger.With("component", "api"),
	}

	if cfg.SessionTTL > 0 && cfg.SweepInterval > 0 {
		s.sweeper = NewSweeper(st, &SweeperConfig{
			Interval:   cfg.SweepInterval,
			SessionTTL: cfg.SessionTTL,
			OnSweep: func(removed int) {
				if removed > 0 {
					s.logger.Debug("Expired sessions removed", "count", removed)
				}
			},
		})
	}

	s.setupMiddleware(cfg)
	s.setupRoutes()

	return s
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware(cfg *Config) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	if cfg.AccessLog {
		s.router.Use(middleware.Logger)
	}
	s.router.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", handlers.CSRFHeaderName},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Use(jsonContentTypeMiddleware)
	s.router.Use(s.sessionMiddleware)
}

// jsonContentTypeMiddleware enforces application/json for requests with bodies.
func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}
			contentType := r.Header.Get("Content-Type")
			if contentType != "application/json" && !strings.HasPrefix(contentType, "application/json;") {
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the root handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store returns the backing store.
func (s *Server) Store() *store.Store {
	return s.store
}

// Start starts the API server in a goroutine.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if s.sweeper != nil {
		if err := s.sweeper.Start(); err != nil {
			return err
		}
	}

	go func() {
		s.logger.Info("API server starting", "port", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down API server")
	if s.sweeper != nil && s.sweeper.IsRunning() {
		_ = s.sweeper.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// Sweeper returns the session sweeper, or nil when sessions never expire.
func (s *Server) Sweeper() *Sweeper {
	return s.sweeper
}

// Port returns the port the server is configured to listen on.
func (s *Server) Port() int {
	return s.port
}
