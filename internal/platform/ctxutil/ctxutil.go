// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

// Package ctxutil provides helpers for interacting with values stored in [context.Context].
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/canvasa/gateway/internal/platform/ctxkey"
	"github.com/canvasa/gateway/internal/platform/sec"
)

// # Request Tracing

// WithRequestID returns a new context with the provided request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if not found.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it returns the global default logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}

// # Identity & Access

// WithAuthClaims returns a new context with the inspected token claims attached.
func WithAuthClaims(ctx context.Context, claims *sec.AccessClaims) context.Context {
	return context.WithValue(ctx, ctxkey.KeyUser, claims)
}

// GetAuthClaims retrieves the [*sec.AccessClaims] from the [context.Context].
func GetAuthClaims(ctx context.Context) *sec.AccessClaims {
	claims, ok := ctx.Value(ctxkey.KeyUser).(*sec.AccessClaims)
	if !ok {
		return nil
	}
	return claims
}
