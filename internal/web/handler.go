// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

/*
Package web serves the HTML surface of the gateway: the public landing
page with its sign-in affordances, the protected app shell, and the
browser-facing auth endpoints (OAuth start/callback, passcode forms,
logout).

Architecture:

  - Handlers never talk to the auth provider directly; everything goes
    through the [auth.Actions] facade, so a provider failure renders as
    an inline message instead of an error page.
  - Protected pages wait on the readiness gate before rendering, so a
    first paint never shows a logged-out flash to a returning visitor.
  - Templates and static assets are embedded; the binary is the deploy
    artifact.
*/
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/canvasa/gateway/internal/auth"
	requestutil "github.com/canvasa/gateway/internal/platform/request"
	"github.com/canvasa/gateway/internal/platform/respond"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// # View Models

// landingView feeds the landing template.
type landingView struct {
	// Error is an inline failure message, shown in a flash box.
	Error string

	// Notice is an inline informational message (e.g. "code sent").
	Notice string

	// Email carries the address across the send/verify form pair.
	Email string

	// ShowCode switches the form from email entry to code entry.
	ShowCode bool
}

// onboardingView feeds the protected app-home template.
type onboardingView struct {
	Profile auth.DisplayProfile

	// Degraded is set when the readiness gate force-released before the
	// identity bootstrap settled; the page renders without profile chrome.
	Degraded bool
}

// # Handler Definition

// Config controls the routing targets of the HTML surface.
type Config struct {
	LandingPath string
	AppHomePath string
}

// Handler serves the HTML pages and browser-facing auth routes.
type Handler struct {
	core       *auth.Core
	cfg        Config
	logger     *slog.Logger
	landing    *template.Template
	onboarding *template.Template
}

// NewHandler parses the embedded templates and wires the auth core.
func NewHandler(core *auth.Core, cfg Config, logger *slog.Logger) *Handler {
	return &Handler{
		core:       core,
		cfg:        cfg,
		logger:     logger,
		landing:    template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/landing.html")),
		onboarding: template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/onboarding.html")),
	}
}

// Routes returns the chi router for the HTML surface, mounted at the root.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.landingPage)
	router.Get("/onboarding", handler.onboardingPage)

	router.Get("/auth/login/{provider}", handler.startOAuth)
	router.Get("/auth/callback", handler.oauthCallback)
	router.Post("/auth/otp/send", handler.sendOTP)
	router.Post("/auth/otp/verify", handler.verifyOTP)
	router.Post("/auth/logout", handler.logout)

	staticRoot, _ := fs.Sub(staticFS, "static")
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticRoot))))

	return router
}

// # Pages

// landingPage handles GET /. The route guard has already bounced
// authenticated visitors to the app home, so this always renders the
// public sign-in surface.
func (handler *Handler) landingPage(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	handler.renderLanding(writer, request, landingView{
		Error:  query.Get("error"),
		Notice: query.Get("notice"),
	})
}

// onboardingPage handles GET /onboarding, the post-sign-in destination.
//
// It waits on the readiness gate so the first paint reflects the settled
// auth state. A forced release with no identity renders the degraded
// shell rather than redirecting: the route guard admitted this request on
// a live session, so bouncing to the landing page would only be bounced
// straight back — a redirect loop against a provider that never answers.
func (handler *Handler) onboardingPage(writer http.ResponseWriter, request *http.Request) {
	forced, err := handler.core.Gate().Wait(request.Context())
	if err != nil {
		// Client went away mid-wait; nothing sensible to render.
		return
	}

	state := handler.core.State()
	if !state.IsAuthenticated {
		// Only a confirmed anonymous outcome (a completed, error-free fetch
		// that found no user) goes back to the landing page. A forced
		// release, an unfinished bootstrap, or a failed fetch renders the
		// degraded shell instead: the route guard admitted this request on
		// a live session, and redirecting would only be bounced straight
		// back — a loop against a provider that never answers. The forced
		// flag covers the waiter that hit the bound; the state checks cover
		// every request after it.
		if forced || state.LastFetchTime.IsZero() || state.Error != "" {
			view := onboardingView{Degraded: true}
			// The token claims carried by the guard still identify the
			// visitor even though the bootstrap never settled.
			if claims := requestutil.Claims(request); claims != nil {
				view.Profile.Email = claims.Email
			}
			handler.render(writer, request, handler.onboarding, view)
			return
		}
		respond.Redirect(writer, request, handler.cfg.LandingPath)
		return
	}

	handler.render(writer, request, handler.onboarding, onboardingView{
		Profile: auth.ProfileFor(state.User),
	})
}

// # Auth Flows

// startOAuth handles GET /auth/login/{provider}: it asks the provider for
// an authorize URL and sends the browser there.
func (handler *Handler) startOAuth(writer http.ResponseWriter, request *http.Request) {
	providerName := requestutil.Param(request, "provider")

	result := handler.core.Actions().LoginWithOAuth(request.Context(), providerName)
	if !result.Success {
		handler.redirectWithError(writer, request, result.Message)
		return
	}

	respond.Redirect(writer, request, result.RedirectURL)
}

// oauthCallback handles GET /auth/callback, the provider's return leg.
func (handler *Handler) oauthCallback(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	// The provider reports a denied or failed flow via query parameters
	// instead of a code.
	if providerError := query.Get("error_description"); providerError != "" {
		handler.redirectWithError(writer, request, providerError)
		return
	}
	if providerError := query.Get("error"); providerError != "" {
		handler.redirectWithError(writer, request, providerError)
		return
	}

	result := handler.core.Actions().CompleteOAuth(request.Context(), query.Get("code"))
	if !result.Success {
		handler.redirectWithError(writer, request, result.Message)
		return
	}

	respond.Redirect(writer, request, result.RedirectURL)
}

// sendOTP handles the email form post and re-renders the landing page in
// code-entry mode on success.
func (handler *Handler) sendOTP(writer http.ResponseWriter, request *http.Request) {
	email := strings.TrimSpace(request.FormValue("email"))

	result := handler.core.Actions().SendOTP(request.Context(), email)
	view := landingView{Email: email}
	if result.Success {
		view.Notice = result.Message
		view.ShowCode = true
	} else {
		view.Error = result.Message
	}

	handler.renderLanding(writer, request, view)
}

// verifyOTP handles the code form post. Success redirects into the app;
// failure re-renders the code form with the provider's message.
func (handler *Handler) verifyOTP(writer http.ResponseWriter, request *http.Request) {
	email := strings.TrimSpace(request.FormValue("email"))
	code := strings.TrimSpace(request.FormValue("code"))

	result := handler.core.Actions().VerifyOTP(request.Context(), email, code)
	if result.Success {
		respond.Redirect(writer, request, result.RedirectURL)
		return
	}

	handler.renderLanding(writer, request, landingView{
		Error:    result.Message,
		Email:    email,
		ShowCode: true,
	})
}

// logout handles POST /auth/logout and always lands on the public page.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	result := handler.core.Actions().Logout(request.Context())
	respond.Redirect(writer, request, result.RedirectURL)
}

// # Rendering

func (handler *Handler) renderLanding(writer http.ResponseWriter, request *http.Request, view landingView) {
	handler.render(writer, request, handler.landing, view)
}

// render executes the page template against the layout. Template failures
// are logged and answered with a bare 500; there is no error page to fall
// back to below this layer.
func (handler *Handler) render(writer http.ResponseWriter, request *http.Request, page *template.Template, view any) {
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.ExecuteTemplate(writer, "layout", view); err != nil {
		handler.logger.ErrorContext(request.Context(), "template_render_failed",
			slog.String("template", page.Name()),
			slog.Any("error", err),
		)
		http.Error(writer, "internal error", http.StatusInternalServerError)
	}
}

// redirectWithError sends the browser back to the landing page with the
// message in the query string, where landingPage renders it inline.
func (handler *Handler) redirectWithError(writer http.ResponseWriter, request *http.Request, message string) {
	target := handler.cfg.LandingPath + "?error=" + url.QueryEscape(message)
	respond.Redirect(writer, request, target)
}
