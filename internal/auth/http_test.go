// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasa/gateway/internal/auth"
	"github.com/canvasa/gateway/internal/provider"
)

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

/*
TestHTTPVerifyOTP_Validation verifies the binding rejects malformed fields
before the provider is ever called: passcodes are exactly six digits, and
an address longer than the RFC ceiling never leaves the process.
*/
func TestHTTPVerifyOTP_Validation(t *testing.T) {
	client := &stubClient{
		verifyOTPFn: func(context.Context, string, string) (*provider.Session, error) {
			t.Fatal("provider must not be called with invalid fields")
			return nil, nil
		},
	}
	core := newCoreFixture(client, time.Second)
	defer core.Close()
	routes := auth.NewHandler(core).Routes()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"code_too_short", `{"email":"op@canvasa.app","code":"4829"}`, "code"},
		{"code_too_long", `{"email":"op@canvasa.app","code":"4829131"}`, "code"},
		{"code_not_digits", `{"email":"op@canvasa.app","code":"48a913"}`, "code"},
		{"email_too_long", `{"email":"` + strings.Repeat("a", 250) + `@canvasa.app","code":"482913"}`, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := postJSON(t, routes, "/otp/verify", tt.body)

			require.Equal(t, http.StatusBadRequest, recorder.Code)

			var envelope struct {
				Code    string `json:"code"`
				Details []struct {
					Field string `json:"field"`
				} `json:"details"`
			}
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
			assert.Equal(t, "VALIDATION_ERROR", envelope.Code)
			require.NotEmpty(t, envelope.Details)
			assert.Equal(t, tt.field, envelope.Details[0].Field)
		})
	}
}

/*
TestHTTPVerifyOTP_Success verifies a well-formed redemption flows through
to the facade and comes back as a Result envelope.
*/
func TestHTTPVerifyOTP_Success(t *testing.T) {
	user := sampleIdentity()
	client := &stubClient{
		verifyOTPFn: func(context.Context, string, string) (*provider.Session, error) {
			return sampleSession(user), nil
		},
	}
	core := newCoreFixture(client, time.Second)
	defer core.Close()
	routes := auth.NewHandler(core).Routes()

	recorder := postJSON(t, routes, "/otp/verify", `{"email":"op@canvasa.app","code":"482913"}`)

	require.Equal(t, http.StatusOK, recorder.Code)

	var envelope struct {
		Data auth.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Success)
	assert.Equal(t, "/onboarding", envelope.Data.RedirectURL)
	assert.True(t, core.State().IsAuthenticated)
}
