// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package auth

import (
	"context"
	"log/slog"
	"time"
)

// GateConfig tunes the readiness poll.
type GateConfig struct {
	// InitialInterval is the first poll delay.
	InitialInterval time.Duration

	// MaxInterval caps the exponential backoff.
	MaxInterval time.Duration

	// MaxAttempts bounds the number of polls.
	MaxAttempts int

	// Timeout is the hard wall-clock bound on the whole wait.
	Timeout time.Duration
}

// Gate lets rendering surfaces wait for the identity bootstrap with a hard
// upper bound: a hung provider delays the page, it never blanks it.
type Gate struct {
	flag   *Flag
	cfg    GateConfig
	logger *slog.Logger
}

// NewGate wires a Gate. Zero config fields fall back to safe defaults.
func NewGate(flag *Flag, cfg GateConfig, logger *slog.Logger) *Gate {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 150 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 800 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &Gate{flag: flag, cfg: cfg, logger: logger}
}

// Ready reports whether the bootstrap has settled.
func (gate *Gate) Ready() bool {
	return gate.flag.Get()
}

/*
Wait blocks until the bootstrap settles, the bound is reached, or ctx ends.

Description: Polls the flag with exponential backoff. When both attempts
and wall clock run out, the gate force-releases: it sets the flag itself
and reports forced=true, so every later waiter passes immediately and the
surface renders with whatever state exists.

Parameters:
  - ctx: context.Context

Returns:
  - forced: bool, true when the gate released by bound rather than outcome
  - err: ctx.Err() when the caller's context ended first
*/
func (gate *Gate) Wait(ctx context.Context) (forced bool, err error) {
	if gate.flag.Get() {
		return false, nil
	}

	deadline := time.Now().Add(gate.cfg.Timeout)
	interval := gate.cfg.InitialInterval

	for attempt := 1; attempt <= gate.cfg.MaxAttempts; attempt++ {
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}

		if gate.flag.Get() {
			return false, nil
		}
		if time.Now().After(deadline) {
			break
		}

		interval *= 2
		if interval > gate.cfg.MaxInterval {
			interval = gate.cfg.MaxInterval
		}
	}

	// Bound reached: release everyone rather than hanging the surface.
	gate.flag.Set(true)
	gate.logger.Warn("auth_gate_forced_release",
		slog.Duration("timeout", gate.cfg.Timeout),
		slog.Int("max_attempts", gate.cfg.MaxAttempts),
	)
	return true, nil
}
