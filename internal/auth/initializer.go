// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/canvasa/gateway/internal/platform/errmsg"
	"github.com/canvasa/gateway/internal/provider"
)

// Flag tracks whether the identity bootstrap has reached a terminal state.
//
// The readiness [Gate] polls it; the [Initializer] sets it on every
// terminal path, success or failure, so waiters can never hang on an
// outcome that already happened.
type Flag struct {
	mu          sync.Mutex
	initialized bool
	settledAt   time.Time
}

// NewFlag creates an unset flag.
func NewFlag() *Flag {
	return &Flag{}
}

// Get reports whether bootstrap has reached a terminal state.
func (f *Flag) Get() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

// Set records the bootstrap outcome state.
func (f *Flag) Set(initialized bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = initialized
	if initialized {
		f.settledAt = time.Now()
	}
}

// SettledAt returns when the flag last became set, zero if it never has.
func (f *Flag) SettledAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settledAt
}

// # Initializer

// flight is one in-progress bootstrap run that concurrent callers join.
type flight struct {
	done chan struct{}
	err  error
}

// Initializer establishes the identity snapshot from the provider with
// single-flight semantics and a freshness cache.
//
// # Concurrency
//
// Exactly one fetch is ever in flight. Concurrent Initialize calls join it
// and observe the same outcome; a force request arriving mid-flight joins
// too (the running fetch is already as fresh as it gets).
type Initializer struct {
	client provider.Client
	store  *StateStore
	flag   *Flag
	logger *slog.Logger

	// cacheMaxAge is how long a completed fetch satisfies non-forced calls.
	cacheMaxAge time.Duration

	mu       sync.Mutex
	inflight *flight

	// now is swappable for tests.
	now func() time.Time
}

// NewInitializer wires an Initializer. cacheMaxAge <= 0 disables caching.
func NewInitializer(client provider.Client, store *StateStore, flag *Flag, cacheMaxAge time.Duration, logger *slog.Logger) *Initializer {
	return &Initializer{
		client:      client,
		store:       store,
		flag:        flag,
		logger:      logger,
		cacheMaxAge: cacheMaxAge,
		now:         time.Now,
	}
}

/*
Initialize establishes the identity snapshot.

Description: Resolves immediately on a fresh-enough previous fetch (unless
force is set), joins an already-running fetch, or performs a new one. The
outcome always lands in the StateStore; the returned error is reserved for
context cancellation — provider failures are terminal outcomes recorded in
state, not errors to the caller.

Parameters:
  - ctx: context.Context
  - force: bool (bypass the freshness cache)

Returns:
  - error: ctx.Err() when the caller's context ends before the fetch does
*/
func (init *Initializer) Initialize(ctx context.Context, force bool) error {
	init.mu.Lock()

	// ── 1. Join an in-flight run ──────────────────────────────────────────
	if running := init.inflight; running != nil {
		init.mu.Unlock()
		select {
		case <-running.done:
			return running.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// ── 2. Freshness cache ────────────────────────────────────────────────
	if !force && init.flag.Get() && init.cacheMaxAge > 0 {
		lastFetch := init.store.Snapshot().LastFetchTime
		if !lastFetch.IsZero() && init.now().Sub(lastFetch) < init.cacheMaxAge {
			init.mu.Unlock()
			init.logger.Debug("auth_bootstrap_cache_hit")
			return nil
		}
	}

	// ── 3. Fresh run ──────────────────────────────────────────────────────
	run := &flight{done: make(chan struct{})}
	init.inflight = run
	init.flag.Set(false)
	init.mu.Unlock()

	init.store.SetLoading(true)
	err := init.fetch(ctx)

	init.mu.Lock()
	init.inflight = nil
	run.err = err
	close(run.done)
	init.mu.Unlock()

	return err
}

// fetch performs one identity round trip and records its terminal outcome.
// The flag is set on every path.
func (init *Initializer) fetch(ctx context.Context) error {
	completedAt := init.now()

	// User first: authentication truth derives from the identity record,
	// never from the presence of tokens.
	user, err := init.client.GetUser(ctx)

	switch {
	case errors.Is(err, provider.ErrNoSession), err == nil && user == nil:
		init.store.SetAnonymous(completedAt)
		init.flag.Set(true)
		init.logger.Debug("auth_bootstrap_anonymous")
		return nil

	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The caller went away; nothing terminal happened. Record the
			// failure but surface the cancellation.
			init.store.SetFailure(errmsg.Normalize(err), completedAt)
			init.flag.Set(true)
			return ctxErr
		}
		init.store.SetFailure(errmsg.Normalize(err), completedAt)
		init.flag.Set(true)
		init.logger.Warn("auth_bootstrap_failed", slog.Any("error", err))
		return nil
	}

	// Session second; its absence or failure never invalidates the user.
	session, serr := init.client.GetSession(ctx)
	if serr != nil && !errors.Is(serr, provider.ErrNoSession) {
		init.logger.Warn("auth_session_fetch_failed", slog.Any("error", serr))
		session = nil
	}

	init.store.SetAuthenticated(user, session, completedAt)
	init.flag.Set(true)
	init.logger.Info("auth_bootstrap_complete", slog.String("user_id", user.ID))
	return nil
}
