// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

/*
Package provider talks to the external GoTrue-compatible auth service.

The gateway never stores credentials or identities of its own: sign-in,
identity lookup, and session issuance are all delegated to the provider over
its REST API. This package exposes that surface behind the [Client]
interface, together with the client-side session lifecycle the rest of the
gateway builds on (restoration, refresh, change events).

Architecture:

  - Client: the provider operations the auth core consumes.
  - GoTrueClient: the REST implementation with PKCE and auto-refresh.
  - SessionStore: pluggable persistence so a session survives restarts.
*/
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoSession indicates no authenticated session exists. It is the
// expected anonymous outcome, not a failure.
var ErrNoSession = errors.New("provider: no active session")

// # Identity & Session

// Identity is the provider's user record.
type Identity struct {
	ID           string         `json:"id"`
	Aud          string         `json:"aud,omitempty"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at,omitempty"`
	LastSignInAt *time.Time     `json:"last_sign_in_at,omitempty"`
}

// Session is an issued token pair plus the identity it belongs to.
type Session struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    int64     `json:"expires_at"`
	User         *Identity `json:"user,omitempty"`
}

// ExpiresWithin reports whether the access token expires inside the margin.
// A session without an expiry is treated as already expired.
func (s *Session) ExpiresWithin(margin time.Duration) bool {
	if s == nil || s.ExpiresAt == 0 {
		return true
	}
	return time.Now().Add(margin).Unix() >= s.ExpiresAt
}

// UserID returns the id of the session's identity, or "" when unknown.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// # Change Events

// EventType identifies a session lifecycle transition.
type EventType string

const (
	// EventInitialSession fires once when a persisted session is restored.
	EventInitialSession EventType = "INITIAL_SESSION"

	// EventSignedIn fires after a successful verify or code exchange.
	EventSignedIn EventType = "SIGNED_IN"

	// EventTokenRefreshed fires when the refresh loop renews the tokens.
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"

	// EventSignedOut fires after the session has been discarded.
	EventSignedOut EventType = "SIGNED_OUT"

	// EventUserUpdated fires when the identity record changes server-side.
	EventUserUpdated EventType = "USER_UPDATED"
)

// Event is a session lifecycle notification delivered to subscribers.
type Event struct {
	Type EventType

	// Session is the session after the transition; nil for sign-out.
	Session *Session

	// Timestamp is when the client observed the transition.
	Timestamp time.Time
}

// SessionID returns the user id carried by the event's session, or "" when
// the event has none (sign-out, failed restore).
func (e Event) SessionID() string {
	return e.Session.UserID()
}

// # Client Interface

// OAuthRequest describes a third-party sign-in initiation.
type OAuthRequest struct {
	// Provider is the upstream identity provider name (e.g. "google").
	Provider string

	// RedirectTo is the absolute URL the provider sends the browser back to.
	RedirectTo string

	// QueryParams are passed through to the upstream provider (for Google:
	// access_type=offline, prompt=consent to obtain a refresh token).
	QueryParams map[string]string
}

// Client is the provider surface the auth core consumes.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// GetUser fetches the authoritative identity record for the current
	// session. Returns ErrNoSession when no session exists.
	GetUser(ctx context.Context) (*Identity, error)

	// GetSession returns the current session, restoring and refreshing it
	// as needed. Returns ErrNoSession when none exists.
	GetSession(ctx context.Context) (*Session, error)

	// SignInWithOAuth builds the provider authorize URL for a PKCE flow.
	SignInWithOAuth(ctx context.Context, req OAuthRequest) (string, error)

	// ExchangeCode completes the PKCE flow with the authorization code
	// returned to the callback route.
	ExchangeCode(ctx context.Context, code string) (*Session, error)

	// SignInWithOTP requests an email one-time passcode.
	SignInWithOTP(ctx context.Context, email string, createIfMissing bool) error

	// VerifyOTP redeems an email passcode for a session.
	VerifyOTP(ctx context.Context, email, code string) (*Session, error)

	// SignOut revokes the session provider-side and discards it locally.
	// Local state is cleared even when revocation fails.
	SignOut(ctx context.Context) error

	// OnAuthStateChange registers a handler for session lifecycle events
	// and returns its unsubscribe function.
	OnAuthStateChange(handler func(Event)) (unsubscribe func())
}

// # API Errors

// APIError is a non-2xx response from the provider. Its fields mirror the
// shapes GoTrue deployments actually return; any of them may be empty.
type APIError struct {
	Status    int    `json:"-"`
	Msg       string `json:"msg,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorDesc string `json:"error_description,omitempty"`
}

// Error returns the first populated message field.
func (e *APIError) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Message != "":
		return e.Message
	case e.ErrorDesc != "":
		return e.ErrorDesc
	case e.ErrorCode != "":
		return e.ErrorCode
	default:
		return fmt.Sprintf("provider: request failed with status %d", e.Status)
	}
}
