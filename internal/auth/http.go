// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/canvasa/gateway/internal/platform/request"
	"github.com/canvasa/gateway/internal/platform/respond"
	"github.com/canvasa/gateway/internal/platform/validate"
)

// Handler implements the JSON binding layer over the action facade.
//
// # Scope
//
// These endpoints exist for the canvas layer and programmatic clients; the
// HTML surfaces in internal/web consume the same facade directly. Action
// responses are always 200 with a Result body — failure is expressed in
// the Result, not the status code, because a failed sign-in is a normal
// outcome, not a transport error.
type Handler struct {
	core *Core
}

// NewHandler constructs a new [Handler] around the identity core.
func NewHandler(core *Core) *Handler {
	return &Handler{core: core}
}

// Routes returns a [chi.Router] with the auth binding endpoints.
//
// # Endpoints
//   - POST /otp/send   : Requests an email passcode.
//   - POST /otp/verify : Redeems a passcode for a session.
//   - POST /logout     : Signs the operator out.
//   - GET  /state      : Read-only identity projection.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/otp/send", handler.sendOTP)
	router.Post("/otp/verify", handler.verifyOTP)
	router.Post("/logout", handler.logout)
	router.Get("/state", handler.state)

	return router
}

// # Request Payloads

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

/*
sendOTP handles the passcode request binding.

POST /api/v1/auth/otp/send

Description: Validates the address, then delegates to the action facade.
The response is a Result envelope either way.

Request:
  - Body: sendOTPRequest (Email)

Responses:
  - 200: Result
  - 400: Malformed JSON or invalid email
*/
func (handler *Handler) sendOTP(writer http.ResponseWriter, request *http.Request) {
	payload := sendOTPRequest{}
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required("email", payload.Email).
		MaxLen("email", payload.Email, 254).
		Email("email", payload.Email).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result := handler.core.Actions().SendOTP(request.Context(), payload.Email)
	respond.OK(writer, result)
}

/*
verifyOTP handles the passcode redemption binding.

POST /api/v1/auth/otp/verify

Description: Validates both fields, then delegates to the action facade.
A wrong code comes back as a Result with Success=false and the provider's
message — state is untouched in that case.

Request:
  - Body: verifyOTPRequest (Email, Code)

Responses:
  - 200: Result (RedirectURL set on success)
  - 400: Malformed JSON or invalid fields
*/
func (handler *Handler) verifyOTP(writer http.ResponseWriter, request *http.Request) {
	payload := verifyOTPRequest{}
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required("email", payload.Email).
		MaxLen("email", payload.Email, 254).
		Email("email", payload.Email).
		Required("code", payload.Code).
		Digits("code", payload.Code).
		MinLen("code", payload.Code, 6).
		MaxLen("code", payload.Code, 6).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result := handler.core.Actions().VerifyOTP(request.Context(), payload.Email, payload.Code)
	respond.OK(writer, result)
}

/*
logout handles the sign-out binding.

POST /api/v1/auth/logout

Description: Always succeeds; signing out while signed out is a no-op.
The RedirectURL in the Result names the landing page for clients that
navigate.

Responses:
  - 200: Result
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	result := handler.core.Actions().Logout(request.Context())
	respond.OK(writer, result)
}

// statePayload is the read-only identity projection for the canvas layer.
// Tokens never appear here.
type statePayload struct {
	User            any            `json:"user"`
	Profile         DisplayProfile `json:"profile"`
	IsAuthenticated bool           `json:"is_authenticated"`
	IsLoading       bool           `json:"is_loading"`
	IsReady         bool           `json:"is_ready"`
	Error           string         `json:"error,omitempty"`
}

/*
state handles the identity projection read.

GET /api/v1/auth/state

Description: Returns the current snapshot without waiting for the gate;
IsReady tells the caller whether the bootstrap has settled.

Responses:
  - 200: statePayload
*/
func (handler *Handler) state(writer http.ResponseWriter, request *http.Request) {
	snapshot := handler.core.State()

	payload := statePayload{
		Profile:         ProfileFor(snapshot.User),
		IsAuthenticated: snapshot.IsAuthenticated,
		IsLoading:       snapshot.IsLoading,
		IsReady:         handler.core.Gate().Ready(),
		Error:           snapshot.Error,
	}
	if snapshot.User != nil {
		payload.User = snapshot.User
	}

	respond.OK(writer, payload)
}
