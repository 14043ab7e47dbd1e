// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package ctxutil_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/canvasa/gateway/internal/platform/ctxutil"
	"github.com/canvasa/gateway/internal/platform/sec"
)

/*
TestContext_RequestID verifies that Request IDs can be injected and retrieved.
*/
func TestContext_RequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "test-request-id"

	// 1. Initially should be empty
	assert.Empty(t, ctxutil.GetRequestID(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithRequestID(ctx, requestID)
	assert.Equal(t, requestID, ctxutil.GetRequestID(ctx))
}

/*
TestContext_Logger verifies that a custom logger can be stored in context.
*/
func TestContext_Logger(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 1. Initially should return the default logger
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithLogger(ctx, logger)
	assert.Equal(t, logger, ctxutil.GetLogger(ctx))
}

/*
TestContext_AuthClaims verifies that token claims can be stored in context.
*/
func TestContext_AuthClaims(t *testing.T) {
	ctx := context.Background()
	claims := &sec.AccessClaims{
		Email: "op@canvasa.app",
		Role:  "authenticated",
	}

	// 1. Initially should be nil
	assert.Nil(t, ctxutil.GetAuthClaims(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithAuthClaims(ctx, claims)
	retrieved := ctxutil.GetAuthClaims(ctx)

	assert.NotNil(t, retrieved)
	assert.Equal(t, "op@canvasa.app", retrieved.Email)
	assert.Equal(t, "authenticated", retrieved.Role)
}
