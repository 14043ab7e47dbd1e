// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, and cross-cutting keys that are shared
between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Auth Bootstrap: dedup windows, fetch-cache ages, readiness backoff.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "canvasa-gateway"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Auth Bootstrap

const (
	// DefaultDedupWindow is how long an identical auth event (same type and
	// session id) is considered a duplicate of the previous one.
	DefaultDedupWindow = 1 * time.Second

	// DefaultUserCacheMaxAge is how long a completed identity fetch satisfies
	// subsequent non-forced bootstrap requests without a provider round trip.
	DefaultUserCacheMaxAge = 30 * time.Second

	// DefaultGateInitialInterval is the first readiness-poll backoff interval.
	DefaultGateInitialInterval = 150 * time.Millisecond

	// DefaultGateMaxInterval caps the readiness-poll backoff growth.
	DefaultGateMaxInterval = 800 * time.Millisecond

	// DefaultGateMaxAttempts bounds the number of readiness polls.
	DefaultGateMaxAttempts = 20

	// DefaultGateTimeout is the hard wall-clock bound for readiness waiting.
	DefaultGateTimeout = 3 * time.Second

	// DefaultSettleDelay is the pause after a confirmed sign-in before the
	// client is redirected, letting the session propagate to the guard.
	DefaultSettleDelay = 500 * time.Millisecond

	// DefaultOTPCooldown is the minimum interval between OTP send requests.
	DefaultOTPCooldown = 60 * time.Second

	// DefaultRefreshMargin is how long before access-token expiry the
	// background refresh loop renews the session.
	DefaultRefreshMargin = 60 * time.Second
)

// # Routing

const (
	// LandingPath is the public entry route (login surface).
	LandingPath = "/"

	// AppHomePath is where authenticated visitors land after sign-in.
	AppHomePath = "/onboarding"

	// CallbackPath receives the OAuth authorization-code redirect.
	CallbackPath = "/auth/callback"

	// GuardCacheHeader marks guarded responses as non-cacheable so stale
	// redirect decisions are never served after an auth transition.
	GuardCacheHeader = "X-Auth-Gateway-Cache"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderOrigin        = "Origin"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderAuthorization = "Authorization"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldSuccess = "success"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixSession      = "auth:session:"
	RedisPrefixPKCEVerifier = "auth:pkce_verifier:"
)

// # Session Store TTLs

const (
	// SessionStoreTTL bounds how long a persisted session survives without a
	// refresh. Matches the provider's refresh-token validity window.
	SessionStoreTTL = 30 * 24 * time.Hour

	// PKCEVerifierTTL bounds the OAuth round trip: the verifier is useless
	// after the authorization code has expired anyway.
	PKCEVerifierTTL = 10 * time.Minute
)
