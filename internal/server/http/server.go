// Package httpserver provides the HTTP REST API for the venue search service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/venue-search-service/internal/papersources"
	"github.com/helixir/venue-search-service/internal/session"
)

// Searcher runs one-shot searches, one result per query in input order.
type Searcher interface {
	SearchMany(ctx context.Context, queries []papersources.Query) []papersources.Result
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	searcher   Searcher
	engine     *session.Engine
	store      *session.Store
	validate   *validator.Validate
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address            string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	searcher Searcher,
	engine *session.Engine,
	store *session.Store,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		searcher: searcher,
		engine:   engine,
		store:    store,
		validate: newValidator(),
		logger:   logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter(cfg.CORSAllowedOrigins)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter(allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "X-Correlation-ID", llmKeyHeader},
			ExposedHeaders: []string{"X-Correlation-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(jsonContentTypeMiddleware)
	r.Use(s.requestLogMiddleware)

	r.Get("/healthz", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/venues", s.listVenues)
		r.Get("/search", s.basicSearch)

		r.Post("/sessions", s.createSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(s.sessionContextMiddleware)
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/intent", s.submitIntent)
			r.Put("/keywords", s.updateKeywords)
			r.Delete("/keywords", s.resetKeywords)
			r.Post("/scan", s.scanKeywords)
			r.Post("/confirm", s.confirmKeywords)
			r.Post("/back", s.goBack)
			r.Post("/reset", s.resetSession)
			r.Get("/results", s.getResults)
			r.Delete("/results/{index}", s.dismissResult)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.store.Len(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
