// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/canvasa/gateway/internal/platform/errmsg"
	"github.com/canvasa/gateway/internal/provider"
)

// Result is the uniform outcome of every auth action. Actions never return
// raw errors to their callers: whatever happened is already normalized into
// a display-safe message.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	// RedirectURL is where the browser should go next, empty when the
	// caller stays on the current page.
	RedirectURL string `json:"redirect_url,omitempty"`
}

// failure builds an unsuccessful Result from any failure value.
func failure(value any) Result {
	return Result{Success: false, Message: errmsg.Normalize(value)}
}

// ActionsConfig tunes the action facade.
type ActionsConfig struct {
	// ExternalURL is the public origin used to build callback URLs.
	ExternalURL string

	// LandingPath and AppHomePath are the post-action destinations.
	LandingPath string
	AppHomePath string

	// SettleDelay is the pause after a confirmed sign-in before the
	// redirect target is handed back.
	SettleDelay time.Duration

	// OTPCooldown is the minimum interval between passcode requests.
	OTPCooldown time.Duration
}

// Actions is the sign-in/sign-out facade consumed by both the web shell
// and the JSON binding layer.
type Actions struct {
	client provider.Client
	store  *StateStore
	flag   *Flag
	dedup  *Deduplicator
	cfg    ActionsConfig
	logger *slog.Logger

	// otpLimiter enforces the resend cooldown across all surfaces.
	otpLimiter *rate.Limiter

	// sleep is swappable for tests.
	sleep func(context.Context, time.Duration)
}

// NewActions wires the action facade.
func NewActions(client provider.Client, store *StateStore, flag *Flag, dedup *Deduplicator, cfg ActionsConfig, logger *slog.Logger) *Actions {
	if cfg.LandingPath == "" {
		cfg.LandingPath = "/"
	}
	if cfg.AppHomePath == "" {
		cfg.AppHomePath = "/onboarding"
	}
	if cfg.OTPCooldown <= 0 {
		cfg.OTPCooldown = 60 * time.Second
	}

	return &Actions{
		client:     client,
		store:      store,
		flag:       flag,
		dedup:      dedup,
		cfg:        cfg,
		logger:     logger,
		otpLimiter: rate.NewLimiter(rate.Every(cfg.OTPCooldown), 1),
		sleep:      sleepWithContext,
	}
}

/*
LoginWithOAuth starts a third-party sign-in.

Description: Obtains the provider authorize URL for a PKCE flow. The store
is untouched — state only changes once the callback code is exchanged.

Parameters:
  - ctx: context.Context
  - providerName: string (e.g. "google")

Returns:
  - Result: RedirectURL set to the authorize URL on success
*/
func (actions *Actions) LoginWithOAuth(ctx context.Context, providerName string) Result {
	authorizeURL, err := actions.client.SignInWithOAuth(ctx, provider.OAuthRequest{
		Provider:   providerName,
		RedirectTo: actions.cfg.ExternalURL + "/auth/callback",
		QueryParams: map[string]string{
			// Ask for a refresh token and force the account chooser so a
			// stale upstream consent never silently reuses the wrong account.
			"access_type": "offline",
			"prompt":      "consent",
		},
	})
	if err != nil {
		actions.logger.Warn("oauth_start_failed", slog.String("provider", providerName), slog.Any("error", err))
		return failure(err)
	}

	return Result{
		Success:     true,
		Message:     "Redirecting to " + providerName,
		RedirectURL: authorizeURL,
	}
}

/*
CompleteOAuth finishes the third-party sign-in on the callback route.

Description: Exchanges the authorization code, installs the identity
optimistically, then waits the settle delay so the session reaches the
route guard before the browser follows the redirect.

Parameters:
  - ctx: context.Context
  - code: string (authorization code from the callback query)

Returns:
  - Result: RedirectURL set to the app home on success
*/
func (actions *Actions) CompleteOAuth(ctx context.Context, code string) Result {
	if strings.TrimSpace(code) == "" {
		return Result{Success: false, Message: "Missing authorization code"}
	}

	session, err := actions.client.ExchangeCode(ctx, code)
	if err != nil {
		actions.logger.Warn("oauth_exchange_failed", slog.Any("error", err))
		return failure(err)
	}
	if session == nil || session.User == nil {
		actions.logger.Warn("oauth_exchange_no_identity")
		return Result{Success: false, Message: "Sign-in did not return an identity"}
	}

	actions.adoptSession(session)
	actions.sleep(ctx, actions.cfg.SettleDelay)

	return Result{
		Success:     true,
		Message:     "Signed in successfully",
		RedirectURL: actions.cfg.AppHomePath,
	}
}

/*
SendOTP requests an email one-time passcode.

Description: An empty email short-circuits without a provider call; the
resend cooldown rejects rapid retries before they reach the provider.
First-time addresses are provisioned automatically.

Parameters:
  - ctx: context.Context
  - email: string

Returns:
  - Result: Message names the destination address on success
*/
func (actions *Actions) SendOTP(ctx context.Context, email string) Result {
	email = strings.TrimSpace(email)
	if email == "" {
		return Result{Success: false, Message: "Email is required"}
	}

	if !actions.otpLimiter.Allow() {
		return Result{Success: false, Message: "Please wait a moment before requesting another code"}
	}

	if err := actions.client.SignInWithOTP(ctx, email, true); err != nil {
		actions.logger.Warn("otp_send_failed", slog.Any("error", err))
		return failure(err)
	}

	return Result{Success: true, Message: "Verification code sent to " + email}
}

/*
VerifyOTP redeems an email passcode for a session.

Description: On failure the state store is untouched — the visitor stays
exactly where they were. On success the identity is installed
optimistically before the confirming provider event arrives, then the
settle delay runs before the redirect target is handed back.

Parameters:
  - ctx: context.Context
  - email: string
  - code: string

Returns:
  - Result: RedirectURL set to the app home on success
*/
func (actions *Actions) VerifyOTP(ctx context.Context, email, code string) Result {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" {
		return Result{Success: false, Message: "Email is required"}
	}
	if code == "" {
		return Result{Success: false, Message: "Verification code is required"}
	}

	session, err := actions.client.VerifyOTP(ctx, email, code)
	if err != nil {
		actions.logger.Warn("otp_verify_failed", slog.Any("error", err))
		return failure(err)
	}
	if session == nil || session.User == nil {
		actions.logger.Warn("otp_verify_no_identity")
		return Result{Success: false, Message: "Sign-in did not return an identity"}
	}

	actions.adoptSession(session)
	actions.sleep(ctx, actions.cfg.SettleDelay)

	return Result{
		Success:     true,
		Message:     "Signed in successfully",
		RedirectURL: actions.cfg.AppHomePath,
	}
}

/*
Logout signs the operator out.

Description: Revokes the session provider-side (best effort), then clears
the state store, the bootstrap flag, the event baseline, and the fetch
cache in one sweep. Idempotent: signing out while signed out succeeds.

Parameters:
  - ctx: context.Context

Returns:
  - Result: RedirectURL set to the landing page
*/
func (actions *Actions) Logout(ctx context.Context) Result {
	if err := actions.client.SignOut(ctx); err != nil {
		// Local clearing below still runs; a failed revocation must not
		// leave the operator visibly signed in.
		actions.logger.Warn("logout_revocation_failed", slog.Any("error", err))
	}

	actions.store.Clear()
	actions.flag.Set(false)
	actions.dedup.Reset()

	return Result{
		Success:     true,
		Message:     "Signed out",
		RedirectURL: actions.cfg.LandingPath,
	}
}

// adoptSession installs a freshly issued session as the current identity.
// Callers have already verified the session carries its user.
func (actions *Actions) adoptSession(session *provider.Session) {
	actions.store.SetAuthenticated(session.User, session, time.Now())
	actions.flag.Set(true)
}

// sleepWithContext pauses for d unless ctx ends first.
func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
