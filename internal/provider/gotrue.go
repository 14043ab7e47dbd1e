// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package provider

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// defaultHTTPTimeout bounds every provider round trip.
const defaultHTTPTimeout = 10 * time.Second

// GoTrueConfig holds the connection settings for a GoTrue-compatible
// provider endpoint.
type GoTrueConfig struct {
	// BaseURL is the provider root, e.g. "https://auth.example.com/auth/v1".
	BaseURL string

	// AnonKey is the public API key sent with every request.
	AnonKey string

	// RefreshMargin is how long before expiry the session is renewed.
	RefreshMargin time.Duration

	// HTTPClient overrides the default client (tests inject one here).
	HTTPClient *http.Client
}

// GoTrueClient implements [Client] against the GoTrue REST API.
//
// It owns exactly one session at a time: the gateway serves a single
// operator identity per process. All methods are safe for concurrent use;
// change-event handlers are invoked outside internal locks.
type GoTrueClient struct {
	cfg    GoTrueConfig
	http   *http.Client
	store  SessionStore
	logger *slog.Logger

	// mu guards session and restored.
	mu       sync.Mutex
	session  *Session
	restored bool

	// hmu guards the handler registry.
	hmu       sync.Mutex
	handlers  map[int64]func(Event)
	handlerID int64

	// refreshStop terminates the auto-refresh goroutine.
	refreshStop chan struct{}
	refreshOnce sync.Once
}

// NewGoTrueClient creates a provider client. The store must not be nil;
// use [NewMemorySessionStore] for storage-less deployments.
func NewGoTrueClient(cfg GoTrueConfig, store SessionStore, logger *slog.Logger) *GoTrueClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = 60 * time.Second
	}

	return &GoTrueClient{
		cfg:         cfg,
		http:        httpClient,
		store:       store,
		logger:      logger,
		handlers:    make(map[int64]func(Event)),
		refreshStop: make(chan struct{}),
	}
}

// # Session Lifecycle

/*
GetSession returns the current session.

Description: Serves the in-memory session when present, restoring it from
the session store on first use and transparently refreshing it when the
access token is inside the refresh margin.

Parameters:
  - context: context.Context

Returns:
  - *Session: The live session
  - error: ErrNoSession when anonymous, refresh failures otherwise
*/
func (client *GoTrueClient) GetSession(context context.Context) (*Session, error) {

	// ── 1. Restore (first call only) ──────────────────────────────────────
	restoredEvent := false

	client.mu.Lock()
	if client.session == nil && !client.restored {
		client.restored = true
		client.mu.Unlock()

		persisted, err := client.store.LoadSession(context)
		if err != nil {
			client.logger.Warn("session_restore_failed", slog.Any("error", err))
		}

		client.mu.Lock()
		if persisted != nil && client.session == nil {
			client.session = persisted
			restoredEvent = true
		}
	}

	current := client.session
	client.mu.Unlock()

	if restoredEvent {
		client.emit(Event{Type: EventInitialSession, Session: current, Timestamp: time.Now()})
	}

	if current == nil {
		return nil, ErrNoSession
	}

	// ── 2. Refresh when expiring ──────────────────────────────────────────
	if current.ExpiresWithin(client.cfg.RefreshMargin) {
		refreshed, err := client.refreshSession(context, current.RefreshToken)
		if err != nil {
			return nil, err
		}
		return refreshed, nil
	}

	copied := *current
	return &copied, nil
}

/*
GetUser fetches the authoritative identity record for the current session.

Description: This is a network call, never a cached read — callers own
their caching policy. Returns ErrNoSession when anonymous.

Parameters:
  - context: context.Context

Returns:
  - *Identity: The provider's user record
  - error: ErrNoSession or provider failures
*/
func (client *GoTrueClient) GetUser(context context.Context) (*Identity, error) {

	// An access token is required; resolving the session also restores or
	// refreshes it as needed.
	session, err := client.GetSession(context)
	if err != nil {
		return nil, err
	}

	identity := &Identity{}
	if err := client.do(context, http.MethodGet, "/user", nil, session.AccessToken, identity); err != nil {
		return nil, err
	}

	return identity, nil
}

/*
SignOut revokes the session provider-side and discards it locally.

Description: Local state is cleared even when the revocation call fails,
so sign-out is always effective from the gateway's point of view.

Parameters:
  - context: context.Context

Returns:
  - error: nil in all but storage-failure cases
*/
func (client *GoTrueClient) SignOut(context context.Context) error {

	client.mu.Lock()
	session := client.session
	client.session = nil
	client.restored = true
	client.mu.Unlock()

	// ── 1. Best-effort provider revocation ────────────────────────────────
	if session != nil {
		if err := client.do(context, http.MethodPost, "/logout", nil, session.AccessToken, nil); err != nil {
			client.logger.Warn("provider_logout_failed", slog.Any("error", err))
		}
	}

	// ── 2. Drop persisted state ───────────────────────────────────────────
	if err := client.store.DeleteSession(context); err != nil {
		client.logger.Warn("session_delete_failed", slog.Any("error", err))
	}
	if err := client.store.DeleteVerifier(context); err != nil {
		client.logger.Warn("verifier_delete_failed", slog.Any("error", err))
	}

	client.emit(Event{Type: EventSignedOut, Timestamp: time.Now()})
	return nil
}

// # Sign-In Flows

/*
SignInWithOAuth builds the provider authorize URL for a PKCE flow.

Description: Generates and persists a fresh PKCE verifier, then assembles
the /authorize URL the browser is redirected to. No session state changes
until the callback exchange.

Parameters:
  - context: context.Context
  - req: OAuthRequest

Returns:
  - string: Absolute authorize URL
  - error: Verifier storage failures
*/
func (client *GoTrueClient) SignInWithOAuth(context context.Context, req OAuthRequest) (string, error) {

	// ── 1. PKCE challenge ─────────────────────────────────────────────────
	verifier, challenge, err := newPKCEPair()
	if err != nil {
		return "", fmt.Errorf("provider: pkce generation failed: %w", err)
	}
	if err := client.store.SaveVerifier(context, verifier); err != nil {
		return "", fmt.Errorf("provider: pkce verifier storage failed: %w", err)
	}

	// ── 2. Authorize URL ──────────────────────────────────────────────────
	query := url.Values{}
	query.Set("provider", req.Provider)
	query.Set("redirect_to", req.RedirectTo)
	query.Set("code_challenge", challenge)
	query.Set("code_challenge_method", "s256")
	for key, value := range req.QueryParams {
		query.Set(key, value)
	}

	return client.cfg.BaseURL + "/authorize?" + query.Encode(), nil
}

/*
ExchangeCode completes the PKCE flow with the callback authorization code.

Parameters:
  - context: context.Context
  - code: string (authorization code from the callback query)

Returns:
  - *Session: The issued session
  - error: Missing-verifier or provider failures
*/
func (client *GoTrueClient) ExchangeCode(context context.Context, code string) (*Session, error) {

	// ── 1. Recover the verifier saved before the redirect ─────────────────
	verifier, err := client.store.LoadVerifier(context)
	if err != nil {
		return nil, fmt.Errorf("provider: pkce verifier load failed: %w", err)
	}
	if verifier == "" {
		return nil, fmt.Errorf("provider: no pkce verifier for code exchange")
	}

	// ── 2. Redeem the code ────────────────────────────────────────────────
	session := &Session{}
	payload := map[string]string{"auth_code": code, "code_verifier": verifier}
	if err := client.do(context, http.MethodPost, "/token?grant_type=pkce", payload, "", session); err != nil {
		return nil, err
	}

	_ = client.store.DeleteVerifier(context)

	client.adoptSession(context, session)
	client.emit(Event{Type: EventSignedIn, Session: session, Timestamp: time.Now()})
	return session, nil
}

/*
SignInWithOTP requests an email one-time passcode.

Parameters:
  - context: context.Context
  - email: string
  - createIfMissing: bool (provision an account on first sign-in)

Returns:
  - error: Provider failures
*/
func (client *GoTrueClient) SignInWithOTP(context context.Context, email string, createIfMissing bool) error {
	payload := map[string]any{"email": email, "create_user": createIfMissing}
	return client.do(context, http.MethodPost, "/otp", payload, "", nil)
}

/*
VerifyOTP redeems an email passcode for a session.

Parameters:
  - context: context.Context
  - email: string
  - code: string

Returns:
  - *Session: The issued session
  - error: Invalid-code or provider failures
*/
func (client *GoTrueClient) VerifyOTP(context context.Context, email, code string) (*Session, error) {
	session := &Session{}
	payload := map[string]string{"type": "email", "email": email, "token": code}
	if err := client.do(context, http.MethodPost, "/verify", payload, "", session); err != nil {
		return nil, err
	}

	client.adoptSession(context, session)
	client.emit(Event{Type: EventSignedIn, Session: session, Timestamp: time.Now()})
	return session, nil
}

// # Change Events

/*
OnAuthStateChange registers a handler for session lifecycle events.

Description: Handlers are invoked synchronously, outside internal locks, in
the order the transitions were observed.

Parameters:
  - handler: func(Event)

Returns:
  - func(): Unsubscribe function
*/
func (client *GoTrueClient) OnAuthStateChange(handler func(Event)) func() {
	client.hmu.Lock()
	client.handlerID++
	id := client.handlerID
	client.handlers[id] = handler
	client.hmu.Unlock()

	return func() {
		client.hmu.Lock()
		delete(client.handlers, id)
		client.hmu.Unlock()
	}
}

// emit delivers an event to all registered handlers.
func (client *GoTrueClient) emit(event Event) {
	client.hmu.Lock()
	snapshot := make([]func(Event), 0, len(client.handlers))
	for _, handler := range client.handlers {
		snapshot = append(snapshot, handler)
	}
	client.hmu.Unlock()

	for _, handler := range snapshot {
		handler(event)
	}
}

// # Auto Refresh

/*
StartAutoRefresh launches the background session renewal loop.

Description: The loop wakes shortly before the access token expires and
renews the session, emitting TOKEN_REFRESHED on success. It exits when the
context is canceled or [Close] is called.

Parameters:
  - context: context.Context
*/
func (client *GoTrueClient) StartAutoRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(client.refreshInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				client.maybeRefresh(ctx)
			case <-ctx.Done():
				return
			case <-client.refreshStop:
				return
			}
		}
	}()
}

// Close stops the auto-refresh loop. Safe to call more than once.
func (client *GoTrueClient) Close() {
	client.refreshOnce.Do(func() { close(client.refreshStop) })
}

// Health probes the provider's health endpoint. Used by the readiness probe.
func (client *GoTrueClient) Health(ctx context.Context) error {
	return client.do(ctx, http.MethodGet, "/health", nil, "", nil)
}

// refreshInterval derives the wake-up cadence from the refresh margin.
func (client *GoTrueClient) refreshInterval() time.Duration {
	interval := client.cfg.RefreshMargin / 2
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// maybeRefresh renews the session when it is inside the refresh margin.
func (client *GoTrueClient) maybeRefresh(ctx context.Context) {
	client.mu.Lock()
	session := client.session
	client.mu.Unlock()

	if session == nil || !session.ExpiresWithin(client.cfg.RefreshMargin) {
		return
	}

	if _, err := client.refreshSession(ctx, session.RefreshToken); err != nil {
		client.logger.Warn("session_auto_refresh_failed", slog.Any("error", err))
	}
}

// refreshSession redeems the refresh token for a new session and emits
// TOKEN_REFRESHED.
func (client *GoTrueClient) refreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrNoSession
	}

	session := &Session{}
	payload := map[string]string{"refresh_token": refreshToken}
	if err := client.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", payload, "", session); err != nil {
		return nil, err
	}

	client.adoptSession(ctx, session)
	client.emit(Event{Type: EventTokenRefreshed, Session: session, Timestamp: time.Now()})

	copied := *session
	return &copied, nil
}

// # Internals

// adoptSession installs a freshly issued session and persists it.
func (client *GoTrueClient) adoptSession(ctx context.Context, session *Session) {
	if session.ExpiresAt == 0 && session.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Unix() + session.ExpiresIn
	}

	client.mu.Lock()
	client.session = session
	client.restored = true
	client.mu.Unlock()

	if err := client.store.SaveSession(ctx, session); err != nil {
		client.logger.Warn("session_persist_failed", slog.Any("error", err))
	}
}

// do executes a provider request and decodes the response into out.
func (client *GoTrueClient) do(ctx context.Context, method, path string, payload any, bearer string, out any) error {

	// ── 1. Build the request ──────────────────────────────────────────────
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("provider: request encoding failed: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	request, err := http.NewRequestWithContext(ctx, method, client.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("provider: request build failed: %w", err)
	}

	request.Header.Set("apikey", client.cfg.AnonKey)
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		request.Header.Set("Authorization", "Bearer "+client.cfg.AnonKey)
	}

	// ── 2. Execute ────────────────────────────────────────────────────────
	response, err := client.http.Do(request)
	if err != nil {
		return fmt.Errorf("provider: request failed: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	// ── 3. Error decoding ─────────────────────────────────────────────────
	if response.StatusCode < 200 || response.StatusCode > 299 {
		apiErr := &APIError{Status: response.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(response.Body, 1<<16))
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, apiErr)
			if apiErr.Msg == "" && apiErr.Message == "" && apiErr.ErrorDesc == "" && apiErr.ErrorCode == "" {
				apiErr.Message = strings.TrimSpace(string(raw))
			}
		}
		return apiErr
	}

	// ── 4. Success decoding ───────────────────────────────────────────────
	if out != nil {
		if err := json.NewDecoder(response.Body).Decode(out); err != nil {
			return fmt.Errorf("provider: response decoding failed: %w", err)
		}
	}

	return nil
}

// newPKCEPair generates a verifier and its S256 challenge.
func newPKCEPair() (verifier, challenge string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}

	verifier = base64.RawURLEncoding.EncodeToString(raw)
	digest := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(digest[:])
	return verifier, challenge, nil
}
