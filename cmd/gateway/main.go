// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

// Command gateway is the entry point for the Canvasa web gateway.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to Redis (optional; memory fallback).
//  4. Construct the auth provider client and token inspector.
//  5. Assemble the auth core and begin the identity bootstrap.
//  6. Wire HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/canvasa/gateway/internal/api"
	"github.com/canvasa/gateway/internal/auth"
	"github.com/canvasa/gateway/internal/platform/config"
	"github.com/canvasa/gateway/internal/platform/constants"
	"github.com/canvasa/gateway/internal/platform/middleware"
	redisstore "github.com/canvasa/gateway/internal/platform/redis"
	"github.com/canvasa/gateway/internal/platform/sec"
	"github.com/canvasa/gateway/internal/provider"
	"github.com/canvasa/gateway/internal/web"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Canvasa] gateway_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	// A local .env is a development convenience; in production the variables
	// come from the orchestrator.
	if err := godotenv.Load(); err == nil {
		log.Info("dotenv_loaded")
	}

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("provider_url", cfg.ProviderURL),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Session Persistence ────────────────────────────────────────────
	// Redis keeps the operator session across restarts. Without it the
	// gateway still works; the session just dies with the process.
	var sessionStore provider.SessionStore = provider.NewMemorySessionStore()
	var checkCache func() error

	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		sessionStore = provider.NewRedisSessionStore(rdb, constants.AppName)
		checkCache = func() error {
			return redisstore.Ping(context.Background(), rdb)
		}
	} else {
		log.Warn("redis_not_configured", slog.String("effect", "session will not survive restarts"))
	}

	// ── 4. Auth Provider Client ───────────────────────────────────────────
	providerClient := provider.NewGoTrueClient(provider.GoTrueConfig{
		BaseURL:       cfg.ProviderURL,
		AnonKey:       cfg.ProviderAnonKey,
		RefreshMargin: cfg.RefreshMargin,
	}, sessionStore, log)
	defer providerClient.Close()

	inspector := sec.NewTokenInspector(cfg.ProviderJWTSecret)
	if !inspector.Verifying() {
		log.Warn("jwt_secret_not_configured", slog.String("effect", "access tokens are inspected without signature verification"))
	}

	// ── 5. Auth Core ──────────────────────────────────────────────────────
	core := auth.NewCore(providerClient, auth.CoreConfig{
		DedupWindow: cfg.DedupWindow,
		CacheMaxAge: cfg.UserCacheMaxAge,
		Gate: auth.GateConfig{
			InitialInterval: cfg.GateInitialInterval,
			MaxInterval:     cfg.GateMaxInterval,
			MaxAttempts:     cfg.GateMaxAttempts,
			Timeout:         cfg.GateTimeout,
		},
		Actions: auth.ActionsConfig{
			ExternalURL: cfg.ExternalURL,
			LandingPath: cfg.LandingPath,
			AppHomePath: cfg.AppHomePath,
			SettleDelay: cfg.SettleDelay,
			OTPCooldown: cfg.OTPCooldown,
		},
	}, log)
	defer core.Close()

	// Kick off the identity bootstrap; the readiness gate covers the window
	// until it settles.
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	core.Start(runCtx)
	if cfg.AutoRefresh {
		providerClient.StartAutoRefresh(runCtx)
	}

	// ── 6. Health Handlers ────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckCache: checkCache,
		CheckProvider: func() error {
			probeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return providerClient.Health(probeCtx)
		},
	}, log)

	// ── 7. Route Guard ────────────────────────────────────────────────────
	// Routing decisions come from the live provider session, with the token
	// inspector establishing validity locally.
	sessionCheck := middleware.SessionChecker(func(ctx context.Context) (*sec.AccessClaims, bool) {
		session, err := providerClient.GetSession(ctx)
		if err != nil || session == nil {
			return nil, false
		}
		claims, err := inspector.Inspect(session.AccessToken)
		if err != nil {
			return nil, false
		}
		return claims, true
	})

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(core),
		Web: web.NewHandler(core, web.Config{
			LandingPath: cfg.LandingPath,
			AppHomePath: cfg.AppHomePath,
		}, log),
	}

	server := api.NewServer(runCtx, cfg, log, sessionCheck, handlers)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
