// Package api exposes the control and observation surface over HTTP: health,
// observable pipeline state, start/stop, repository session operations,
// processing history and a server-sent-events stream of pipeline progress.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fluxlab/curator/internal/auth"
	"github.com/fluxlab/curator/internal/catalog"
	"github.com/fluxlab/curator/internal/events"
	"github.com/fluxlab/curator/internal/history"
	"github.com/fluxlab/curator/internal/pipeline"
	"github.com/fluxlab/curator/internal/session"
)

// Controller is the worker-control surface the server drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is the legacy single bearer token (admin/full access).
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
}

// Server is the HTTP API server.
type Server struct {
	config    Config
	control   Controller
	state     *pipeline.State
	session   *session.Session
	client    catalog.Client
	history   *history.Store // nil when history is disabled
	events    *events.Hub
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance.
func New(config Config, control Controller, state *pipeline.State, sess *session.Session,
	client catalog.Client, hist *history.Store, hub *events.Hub, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		control:   control,
		state:     state,
		session:   sess,
		client:    client,
		history:   hist,
		events:    hub,
		logger:    logger.With("component", "api"),
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.With(s.requireScopes("status:ro")).Get("/status", s.handleStatus)
		r.With(s.requireScopes("status:ro")).Get("/session", s.handleGetSession)

		r.With(s.requireScopes("control:rw")).Post("/control/start", s.handleStart)
		r.With(s.requireScopes("control:rw")).Post("/control/stop", s.handleStop)

		r.With(s.requireScopes("session:rw")).Post("/session/login", s.handleLogin)
		r.With(s.requireScopes("session:rw")).Post("/session/logout", s.handleLogout)
		r.With(s.requireScopes("session:rw")).Post("/session/context", s.handleSetContext)
		r.With(s.requireScopes("session:rw")).Post("/session/collection", s.handleSetCollection)

		r.With(s.requireScopes("status:ro")).Get("/projects", s.handleListProjects)
		r.With(s.requireScopes("status:ro")).Get("/collections/{collectionID}/items", s.handleListCollectionItems)
		r.With(s.requireScopes("status:ro")).Get("/tasks/{taskID}", s.handleTaskStatus)

		r.With(s.requireScopes("control:rw")).Patch("/records/{recordID}", s.handleUpdateRecord)
		r.With(s.requireScopes("control:rw")).Delete("/records/{recordID}", s.handleDeleteRecord)

		r.With(s.requireScopes("status:ro")).Get("/history/cycles", s.handleHistoryCycles)
		r.With(s.requireScopes("status:ro")).Get("/history/cycles/{cycleID}", s.handleHistoryCycleRecords)
		r.With(s.requireScopes("status:ro")).Get("/history/entries/{entryName}", s.handleHistoryEntry)

		r.With(s.requireScopes("events:ro")).Get("/events", s.handleEvents)
	})

	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearerToken(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		principal, ok := auth.Authenticate(token, s.config.APIKey, s.config.Tokens)
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

func (s *Server) requireScopes(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok || !auth.HasAnyScope(principal, scopes...) {
				s.writeError(w, http.StatusForbidden, "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
