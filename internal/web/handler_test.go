// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package web_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasa/gateway/internal/auth"
	"github.com/canvasa/gateway/internal/platform/ctxutil"
	"github.com/canvasa/gateway/internal/platform/sec"
	"github.com/canvasa/gateway/internal/provider"
	"github.com/canvasa/gateway/internal/web"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient is a programmable provider for page-level tests.
type fakeClient struct {
	user        *provider.Identity
	session     *provider.Session
	authorize   string
	otpErr      error
	verifyErr   error
	exchangeErr error

	// getUser overrides the default lookup when set.
	getUser func(ctx context.Context) (*provider.Identity, error)
}

func (f *fakeClient) GetUser(ctx context.Context) (*provider.Identity, error) {
	if f.getUser != nil {
		return f.getUser(ctx)
	}
	if f.user == nil {
		return nil, provider.ErrNoSession
	}
	return f.user, nil
}

func (f *fakeClient) GetSession(context.Context) (*provider.Session, error) {
	if f.session == nil {
		return nil, provider.ErrNoSession
	}
	return f.session, nil
}

func (f *fakeClient) SignInWithOAuth(context.Context, provider.OAuthRequest) (string, error) {
	return f.authorize, nil
}

func (f *fakeClient) ExchangeCode(context.Context, string) (*provider.Session, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	f.user = sampleUser()
	f.session = sampleSession(f.user)
	return f.session, nil
}

func (f *fakeClient) SignInWithOTP(context.Context, string, bool) error {
	return f.otpErr
}

func (f *fakeClient) VerifyOTP(context.Context, string, string) (*provider.Session, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	f.user = sampleUser()
	f.session = sampleSession(f.user)
	return f.session, nil
}

func (f *fakeClient) SignOut(context.Context) error {
	f.user = nil
	f.session = nil
	return nil
}

func (f *fakeClient) OnAuthStateChange(func(provider.Event)) func() {
	return func() {}
}

func sampleUser() *provider.Identity {
	return &provider.Identity{
		ID:    "user-1",
		Email: "op@canvasa.app",
		UserMetadata: map[string]any{
			"name":       "Opal Rivera",
			"avatar_url": "https://cdn.example.com/avatar.png",
		},
	}
}

func sampleSession(user *provider.Identity) *provider.Session {
	return &provider.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		User:         user,
	}
}

func newWebFixture(t *testing.T, client *fakeClient) (*web.Handler, *auth.Core) {
	t.Helper()

	core := auth.NewCore(client, auth.CoreConfig{
		DedupWindow: time.Second,
		CacheMaxAge: time.Minute,
		Gate: auth.GateConfig{
			InitialInterval: 2 * time.Millisecond,
			MaxInterval:     10 * time.Millisecond,
			MaxAttempts:     20,
			Timeout:         200 * time.Millisecond,
		},
		Actions: auth.ActionsConfig{
			ExternalURL: "https://site.example.com",
			LandingPath: "/",
			AppHomePath: "/onboarding",
			SettleDelay: 0,
			OTPCooldown: time.Minute,
		},
	}, discardLogger())
	t.Cleanup(core.Close)

	return web.NewHandler(core, web.Config{LandingPath: "/", AppHomePath: "/onboarding"}, discardLogger()), core
}

func serve(handler *web.Handler, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler.Routes().ServeHTTP(recorder, request)
	return recorder
}

func postForm(handler *web.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(handler, request)
}

/*
TestLandingPage_RendersSignInSurface verifies the public page shows the
sign-in affordances and surfaces a query-string error inline.
*/
func TestLandingPage_RendersSignInSurface(t *testing.T) {
	handler, _ := newWebFixture(t, &fakeClient{})

	recorder := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "Continue with Google")
	assert.Contains(t, body, `action="/auth/otp/send"`)

	recorder = serve(handler, httptest.NewRequest(http.MethodGet, "/?error=Access+denied", nil))
	assert.Contains(t, recorder.Body.String(), "Access denied")
}

/*
TestOnboardingPage verifies the protected page renders the profile for a
settled authenticated state and bounces an anonymous visitor.
*/
func TestOnboardingPage(t *testing.T) {
	t.Run("authenticated_renders_profile", func(t *testing.T) {
		client := &fakeClient{user: sampleUser()}
		client.session = sampleSession(client.user)
		handler, core := newWebFixture(t, client)
		require.NoError(t, core.Initialize(context.Background(), false))

		recorder := serve(handler, httptest.NewRequest(http.MethodGet, "/onboarding", nil))

		require.Equal(t, http.StatusOK, recorder.Code)
		body := recorder.Body.String()
		assert.Contains(t, body, "Opal Rivera")
		assert.Contains(t, body, "op@canvasa.app")
		assert.Contains(t, body, `action="/auth/logout"`)
	})

	t.Run("anonymous_redirects_to_landing", func(t *testing.T) {
		handler, core := newWebFixture(t, &fakeClient{})
		require.NoError(t, core.Initialize(context.Background(), false))

		recorder := serve(handler, httptest.NewRequest(http.MethodGet, "/onboarding", nil))

		assert.Equal(t, http.StatusSeeOther, recorder.Code)
		assert.Equal(t, "/", recorder.Header().Get("Location"))
	})
}

/*
TestOnboardingPage_HungProviderRendersDegradedShell covers the visitor with
a live session whose identity fetch never completes: the gate force-releases
and the page must render (200) rather than redirect — a redirect to the
landing page would be bounced straight back by the route guard, looping the
browser for as long as the provider hangs. Later requests, which see the
already-settled flag without the forced signal, must render too.
*/
func TestOnboardingPage_HungProviderRendersDegradedShell(t *testing.T) {
	hang := make(chan struct{})
	defer close(hang)

	client := &fakeClient{
		getUser: func(ctx context.Context) (*provider.Identity, error) {
			select {
			case <-hang:
			case <-ctx.Done():
			}
			return nil, ctx.Err()
		},
	}
	client.session = sampleSession(sampleUser())
	handler, core := newWebFixture(t, client)

	core.Start(context.Background())

	// The guard admitted this request on a live session; carry its claims.
	claims := &sec.AccessClaims{Email: "op@canvasa.app"}
	request := httptest.NewRequest(http.MethodGet, "/onboarding", nil)
	request = request.WithContext(ctxutil.WithAuthClaims(request.Context(), claims))

	recorder := serve(handler, request)

	require.Equal(t, http.StatusOK, recorder.Code, "a hung bootstrap must render, never redirect")
	body := recorder.Body.String()
	assert.Contains(t, body, "couldn't confirm")
	assert.Contains(t, body, "op@canvasa.app")
	assert.Contains(t, body, `action="/auth/logout"`)

	// The gate is settled now, so this waiter is not the forcing one; the
	// unfinished bootstrap must still render.
	require.True(t, core.Gate().Ready())
	again := serve(handler, httptest.NewRequest(http.MethodGet, "/onboarding", nil))
	assert.Equal(t, http.StatusOK, again.Code)
	assert.Contains(t, again.Body.String(), "couldn't confirm")
}

/*
TestStartOAuth verifies the browser is sent to the provider authorize URL.
*/
func TestStartOAuth(t *testing.T) {
	handler, _ := newWebFixture(t, &fakeClient{
		authorize: "https://auth.example.com/authorize?provider=google",
	})

	recorder := serve(handler, httptest.NewRequest(http.MethodGet, "/auth/login/google", nil))

	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Location"), "auth.example.com/authorize")
	assert.Equal(t, "no-store", recorder.Header().Get("Cache-Control"))
}

/*
TestOAuthCallback covers the provider return leg: success into the app,
provider-reported denial back to the landing page with the message.
*/
func TestOAuthCallback(t *testing.T) {
	t.Run("success_redirects_to_app_home", func(t *testing.T) {
		handler, core := newWebFixture(t, &fakeClient{})

		recorder := serve(handler, httptest.NewRequest(http.MethodGet, "/auth/callback?code=auth-code-1", nil))

		assert.Equal(t, http.StatusSeeOther, recorder.Code)
		assert.Equal(t, "/onboarding", recorder.Header().Get("Location"))
		assert.True(t, core.State().IsAuthenticated)
	})

	t.Run("provider_denial_lands_with_error", func(t *testing.T) {
		handler, _ := newWebFixture(t, &fakeClient{})

		recorder := serve(handler, httptest.NewRequest(http.MethodGet,
			"/auth/callback?error=access_denied&error_description=User+declined", nil))

		assert.Equal(t, http.StatusSeeOther, recorder.Code)
		location, err := url.Parse(recorder.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/", location.Path)
		assert.Equal(t, "User declined", location.Query().Get("error"))
	})

	t.Run("exchange_failure_lands_with_error", func(t *testing.T) {
		handler, _ := newWebFixture(t, &fakeClient{
			exchangeErr: &provider.APIError{Status: 400, Msg: "invalid code"},
		})

		recorder := serve(handler, httptest.NewRequest(http.MethodGet, "/auth/callback?code=wrong", nil))

		location, err := url.Parse(recorder.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "invalid code", location.Query().Get("error"))
	})
}

/*
TestOTPForms walks the two-step passcode flow through the HTML forms.
*/
func TestOTPForms(t *testing.T) {
	t.Run("send_switches_to_code_entry", func(t *testing.T) {
		handler, _ := newWebFixture(t, &fakeClient{})

		recorder := postForm(handler, "/auth/otp/send", url.Values{"email": {"op@canvasa.app"}})

		require.Equal(t, http.StatusOK, recorder.Code)
		body := recorder.Body.String()
		assert.Contains(t, body, `action="/auth/otp/verify"`)
		assert.Contains(t, body, "op@canvasa.app")
	})

	t.Run("send_failure_stays_on_email_entry", func(t *testing.T) {
		handler, _ := newWebFixture(t, &fakeClient{
			otpErr: &provider.APIError{Status: 500, Msg: "mailer down"},
		})

		recorder := postForm(handler, "/auth/otp/send", url.Values{"email": {"op@canvasa.app"}})

		require.Equal(t, http.StatusOK, recorder.Code)
		body := recorder.Body.String()
		assert.Contains(t, body, "mailer down")
		assert.Contains(t, body, `action="/auth/otp/send"`)
	})

	t.Run("verify_success_redirects_to_app_home", func(t *testing.T) {
		handler, core := newWebFixture(t, &fakeClient{})

		recorder := postForm(handler, "/auth/otp/verify", url.Values{
			"email": {"op@canvasa.app"},
			"code":  {"482913"},
		})

		assert.Equal(t, http.StatusSeeOther, recorder.Code)
		assert.Equal(t, "/onboarding", recorder.Header().Get("Location"))
		assert.True(t, core.State().IsAuthenticated)
	})

	t.Run("verify_failure_keeps_code_entry_with_message", func(t *testing.T) {
		handler, _ := newWebFixture(t, &fakeClient{
			verifyErr: &provider.APIError{Status: 401, Msg: "Token has expired or is invalid"},
		})

		recorder := postForm(handler, "/auth/otp/verify", url.Values{
			"email": {"op@canvasa.app"},
			"code":  {"000000"},
		})

		require.Equal(t, http.StatusOK, recorder.Code)
		body := recorder.Body.String()
		assert.Contains(t, body, "Token has expired or is invalid")
		assert.Contains(t, body, `action="/auth/otp/verify"`)
	})
}

/*
TestLogout verifies the sign-out post clears state and lands on the public
page.
*/
func TestLogout(t *testing.T) {
	client := &fakeClient{user: sampleUser()}
	client.session = sampleSession(client.user)
	handler, core := newWebFixture(t, client)
	require.NoError(t, core.Initialize(context.Background(), false))
	require.True(t, core.State().IsAuthenticated)

	recorder := postForm(handler, "/auth/logout", url.Values{})

	assert.Equal(t, http.StatusSeeOther, recorder.Code)
	assert.Equal(t, "/", recorder.Header().Get("Location"))
	assert.False(t, core.State().IsAuthenticated)
}

/*
TestStaticAssets verifies the embedded stylesheet is served.
*/
func TestStaticAssets(t *testing.T) {
	handler, _ := newWebFixture(t, &fakeClient{})

	recorder := serve(handler, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "--accent")
}
