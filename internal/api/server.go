// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

/*
Package api wires together the HTTP router, middleware chain, and all
handler sets into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/gateway are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/canvasa/gateway/internal/auth"
	"github.com/canvasa/gateway/internal/platform/config"
	"github.com/canvasa/gateway/internal/platform/constants"
	"github.com/canvasa/gateway/internal/platform/middleware"
	"github.com/canvasa/gateway/internal/web"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all handler sets served by the gateway.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Auth exposes the JSON auth surface under /api/v1/auth.
	Auth *auth.Handler

	// Web serves the HTML pages and browser-facing auth routes at the root.
	Web *web.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
//
// The route guard sits last in the chain so every page request is routed
// against live session state; the JSON API and health probes are mounted
// inside the guard's public prefixes.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, check middleware.SessionChecker, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(context))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)
	r.Use(middleware.Guard(middleware.GuardConfig{
		LandingPath: cfg.LandingPath,
		AppHomePath: cfg.AppHomePath,
		PublicPrefixes: []string{
			cfg.LandingPath,
			"/auth",
			"/api",
			"/health",
			"/ready",
		},
	}, check))

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// # Application API
	// The JSON auth surface under a versioned prefix.
	r.Route("/api/v1", func(api chi.Router) {
		api.Mount("/auth", h.Auth.Routes())
	})

	// # HTML Surface
	// Pages and browser auth flows live at the root.
	r.Mount("/", h.Web.Routes())

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
