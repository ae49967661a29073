// Package api exposes the post and tag repositories over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iemanja/iemanjad/internal/http/response"
	"github.com/iemanja/iemanjad/internal/ratelimit"
	"github.com/iemanja/iemanjad/internal/store"
	"github.com/iemanja/iemanjad/internal/validation"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	tags      store.TagRepository
	posts     store.PostRepository
	db        Pinger
	validator *validation.Validator
	limiter   *ratelimit.KeyedRateLimiter
	router    *chi.Mux
	api       huma.API
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// limiter may be nil, in which case requests are not rate limited.
func NewServer(
	tags store.TagRepository,
	posts store.PostRepository,
	db Pinger,
	limiter *ratelimit.KeyedRateLimiter,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		tags:      tags,
		posts:     posts,
		db:        db,
		validator: validation.New(),
		limiter:   limiter,
		router:    chi.NewRouter(),
		logger:    logger,
	}

	s.setupMiddleware()

	config := huma.DefaultConfig("iemanjad API", "1.0.0")
	config.Info.Description = "Posts and the tags attached to them."
	RegisterErrorHandler()
	s.api = humachi.New(s.router, config)

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
		MaxAge:         300,
	}))
	s.router.Use(metricsMiddleware)
	if s.limiter != nil {
		s.router.Use(rateLimitMiddleware(s.limiter, s.logger))
	}

	s.router.NotFound(response.NotFound)
	s.router.MethodNotAllowed(response.MethodNotAllowed)
}

func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerTagRoutes()
	s.registerPostRoutes()

	s.router.Handle("/metrics", promhttp.Handler())
}
