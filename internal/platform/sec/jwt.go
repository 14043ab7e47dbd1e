// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

// Package sec provides access-token inspection for provider-issued JWTs.
//
// # Architecture
//
// The gateway never mints tokens; the external auth provider does. This
// package isolates the security-sensitive parsing code from the domain logic
// and is injected into the route guard via the [TokenInspector].
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims represents the payload embedded inside a provider access token.
//
// # Why inspect claims?
//
// The route guard can establish "a valid session exists" from the token alone,
// WITHOUT a provider round trip on every request. Field names follow the
// GoTrue token layout.
type AccessClaims struct {
	jwt.RegisteredClaims

	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// TokenInspector parses and optionally verifies provider access tokens.
//
// When constructed with the provider's shared JWT secret, signatures are
// verified (HS256). Without a secret only the claim structure and expiry are
// checked, which is sufficient for routing decisions but never for
// authorization.
type TokenInspector struct {
	secret []byte
}

// NewTokenInspector creates a TokenInspector. An empty secret enables
// unverified inspection mode.
func NewTokenInspector(secret string) *TokenInspector {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &TokenInspector{secret: key}
}

// Verifying reports whether signature verification is enabled.
func (inspector *TokenInspector) Verifying() bool {
	return len(inspector.secret) > 0
}

// Inspect parses tokenString and returns its claims.
//
// With a secret configured the signature is verified and the standard
// validity checks (exp, nbf) apply. Without one the token is parsed
// unverified and expiry is checked manually.
func (inspector *TokenInspector) Inspect(tokenString string) (*AccessClaims, error) {
	if inspector.Verifying() {
		token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
			}
			return inspector.secret, nil
		})
		if err != nil {
			return nil, fmt.Errorf("sec: invalid token: %w", err)
		}

		claims, ok := token.Claims.(*AccessClaims)
		if !ok || !token.Valid {
			return nil, fmt.Errorf("sec: invalid token claims")
		}
		return claims, nil
	}

	claims := &AccessClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("sec: malformed token: %w", err)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		return nil, fmt.Errorf("sec: token expired")
	}
	return claims, nil
}
