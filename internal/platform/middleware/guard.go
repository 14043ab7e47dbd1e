// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/canvasa/gateway/internal/platform/constants"
	"github.com/canvasa/gateway/internal/platform/ctxutil"
	"github.com/canvasa/gateway/internal/platform/sec"
)

// SessionChecker reports whether a live authenticated session currently
// exists. It consults the provider session directly, never a cached
// identity snapshot, so routing decisions cannot lag behind a sign-out.
type SessionChecker func(ctx context.Context) (*sec.AccessClaims, bool)

// GuardConfig controls the auth-aware routing middleware.
type GuardConfig struct {
	// LandingPath is where unauthenticated visitors are sent.
	LandingPath string

	// AppHomePath is where authenticated visitors are sent when they hit
	// the landing page.
	AppHomePath string

	// PublicPrefixes lists route prefixes reachable without a session.
	PublicPrefixes []string
}

// staticAssetPattern matches requests the guard must never interfere with.
var staticAssetPattern = regexp.MustCompile(`(^/(static|assets|favicon\.ico|robots\.txt))|(\.(ico|png|jpg|jpeg|gif|svg|css|js|map|woff2?)$)`)

/*
Guard is the auth-aware routing middleware for page requests.

# Flow
 1. Static assets and exact public prefixes pass through untouched.
 2. The session check runs against the provider token.
 3. No session on a protected route: redirect to the landing page.
 4. Valid session on the landing page: redirect to the app home.
 5. Otherwise the request proceeds with claims injected into the context.

Every guarded response carries a no-cache marker so intermediaries never
replay a routing decision made under different auth state.

# Failure Mode

A checker failure (provider unreachable, malformed token) counts as "no
session" rather than an error page, so the site degrades to its public
surface instead of going dark.
*/
func Guard(cfg GuardConfig, check SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			path := request.URL.Path

			// ── 1. Static Assets ──────────────────────────────────────────────
			if staticAssetPattern.MatchString(path) {
				next.ServeHTTP(writer, request)
				return
			}

			writer.Header().Set(constants.GuardCacheHeader, "no-cache")

			claims, authenticated := check(request.Context())

			// ── 2. Public Routes ──────────────────────────────────────────────
			if isPublicPath(path, cfg) {
				// An authenticated visitor on the landing page belongs in the app.
				if authenticated && path == cfg.LandingPath {
					http.Redirect(writer, request, cfg.AppHomePath, http.StatusTemporaryRedirect)
					return
				}
				next.ServeHTTP(writer, serveWithClaims(request, claims))
				return
			}

			// ── 3. Protected Routes ───────────────────────────────────────────
			if !authenticated {
				http.Redirect(writer, request, cfg.LandingPath, http.StatusTemporaryRedirect)
				return
			}

			next.ServeHTTP(writer, serveWithClaims(request, claims))
		})
	}
}

// isPublicPath reports whether path is reachable without a session.
func isPublicPath(path string, cfg GuardConfig) bool {
	if path == cfg.LandingPath {
		return true
	}
	for _, prefix := range cfg.PublicPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// serveWithClaims injects claims into the request context when present.
func serveWithClaims(request *http.Request, claims *sec.AccessClaims) *http.Request {
	if claims == nil {
		return request
	}
	return request.WithContext(ctxutil.WithAuthClaims(request.Context(), claims))
}
