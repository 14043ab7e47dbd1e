// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package auth

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/canvasa/gateway/internal/provider"
)

// CoreConfig groups the tuning knobs for the identity core.
type CoreConfig struct {
	// DedupWindow is how long identical provider events are dropped.
	DedupWindow time.Duration

	// CacheMaxAge is how long a completed fetch satisfies non-forced
	// bootstrap requests.
	CacheMaxAge time.Duration

	// Gate tunes the readiness poll.
	Gate GateConfig

	// Actions tunes the sign-in/sign-out facade.
	Actions ActionsConfig
}

// Core is the identity container: it owns the state store, the bootstrap
// machinery, and the subscription to the provider's event stream.
//
// One Core exists per process, constructed in cmd/gateway and injected
// into every consumer.
type Core struct {
	client provider.Client
	logger *slog.Logger

	store       *StateStore
	flag        *Flag
	dedup       *Deduplicator
	initializer *Initializer
	gate        *Gate
	actions     *Actions

	dedupWindow time.Duration
	unsubscribe func()
	closed      atomic.Bool
}

// NewCore wires the identity container and subscribes it to the provider
// event stream. Call [Core.Start] to kick off the first bootstrap and
// [Core.Close] on shutdown.
func NewCore(client provider.Client, cfg CoreConfig, logger *slog.Logger) *Core {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = time.Second
	}

	store := NewStateStore()
	flag := NewFlag()
	dedup := NewDeduplicator()

	core := &Core{
		client:      client,
		logger:      logger,
		store:       store,
		flag:        flag,
		dedup:       dedup,
		initializer: NewInitializer(client, store, flag, cfg.CacheMaxAge, logger),
		gate:        NewGate(flag, cfg.Gate, logger),
		actions:     NewActions(client, store, flag, dedup, cfg.Actions, logger),
		dedupWindow: cfg.DedupWindow,
	}

	core.unsubscribe = client.OnAuthStateChange(core.handleEvent)
	return core
}

// Start launches the initial bootstrap in the background. The readiness
// gate covers the window until it settles.
func (core *Core) Start(ctx context.Context) {
	go func() {
		if err := core.initializer.Initialize(ctx, false); err != nil {
			core.logger.Warn("auth_initial_bootstrap_canceled", slog.Any("error", err))
		}
	}()
}

// Close detaches the core from the provider event stream. Events arriving
// afterwards are dropped.
func (core *Core) Close() {
	core.closed.Store(true)
	if core.unsubscribe != nil {
		core.unsubscribe()
	}
}

// # Accessors

// State returns the current identity snapshot.
func (core *Core) State() State { return core.store.Snapshot() }

// Store exposes the state store for subscription.
func (core *Core) Store() *StateStore { return core.store }

// Gate returns the readiness gate.
func (core *Core) Gate() *Gate { return core.gate }

// Actions returns the sign-in/sign-out facade.
func (core *Core) Actions() *Actions { return core.actions }

// Initialize delegates to the single-flight initializer.
func (core *Core) Initialize(ctx context.Context, force bool) error {
	return core.initializer.Initialize(ctx, force)
}

// # Event Dispatch

// handleEvent is the single entry point for provider change events.
//
// Dedup runs synchronously so the baseline is recorded in arrival order;
// the re-initialization itself runs in its own goroutine, because events
// can be emitted from inside a fetch (a refresh during bootstrap) and a
// synchronous re-entry would wait on its own flight.
func (core *Core) handleEvent(event provider.Event) {
	if core.closed.Load() {
		core.logger.Debug("auth_event_dropped_after_close", slog.String("type", string(event.Type)))
		return
	}

	eventType := string(event.Type)
	sessionID := event.SessionID()

	if core.dedup.IsDuplicate(eventType, sessionID, core.dedupWindow) {
		core.logger.Debug("auth_event_duplicate_skipped",
			slog.String("type", eventType),
			slog.String("session_id", sessionID),
		)
		return
	}
	core.dedup.Record(eventType, sessionID)

	var force bool
	switch event.Type {
	case provider.EventInitialSession:
		force = false
	case provider.EventSignedIn, provider.EventTokenRefreshed, provider.EventUserUpdated, provider.EventSignedOut:
		force = true
	default:
		core.logger.Debug("auth_event_ignored", slog.String("type", eventType))
		return
	}

	core.logger.Info("auth_event_received",
		slog.String("type", eventType),
		slog.String("session_id", sessionID),
	)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := core.initializer.Initialize(ctx, force); err != nil {
			core.logger.Warn("auth_event_bootstrap_failed",
				slog.String("type", eventType),
				slog.Any("error", err),
			)
		}
	}()
}
