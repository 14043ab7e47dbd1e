// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package auth_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/canvasa/gateway/internal/provider"
)

// stubClient is a scriptable provider.Client for core tests.
type stubClient struct {
	getUserFn    func(ctx context.Context) (*provider.Identity, error)
	getSessionFn func(ctx context.Context) (*provider.Session, error)
	signInOAuth  func(ctx context.Context, req provider.OAuthRequest) (string, error)
	exchangeFn   func(ctx context.Context, code string) (*provider.Session, error)
	sendOTPFn    func(ctx context.Context, email string, create bool) error
	verifyOTPFn  func(ctx context.Context, email, code string) (*provider.Session, error)
	signOutFn    func(ctx context.Context) error

	userCalls    atomic.Int64
	sessionCalls atomic.Int64

	mu        sync.Mutex
	handlers  []func(provider.Event)
	signedOut atomic.Int64
}

func (s *stubClient) GetUser(ctx context.Context) (*provider.Identity, error) {
	s.userCalls.Add(1)
	if s.getUserFn != nil {
		return s.getUserFn(ctx)
	}
	return nil, provider.ErrNoSession
}

func (s *stubClient) GetSession(ctx context.Context) (*provider.Session, error) {
	s.sessionCalls.Add(1)
	if s.getSessionFn != nil {
		return s.getSessionFn(ctx)
	}
	return nil, provider.ErrNoSession
}

func (s *stubClient) SignInWithOAuth(ctx context.Context, req provider.OAuthRequest) (string, error) {
	if s.signInOAuth != nil {
		return s.signInOAuth(ctx, req)
	}
	return "https://auth.example.com/authorize?provider=" + req.Provider, nil
}

func (s *stubClient) ExchangeCode(ctx context.Context, code string) (*provider.Session, error) {
	if s.exchangeFn != nil {
		return s.exchangeFn(ctx, code)
	}
	return nil, provider.ErrNoSession
}

func (s *stubClient) SignInWithOTP(ctx context.Context, email string, create bool) error {
	if s.sendOTPFn != nil {
		return s.sendOTPFn(ctx, email, create)
	}
	return nil
}

func (s *stubClient) VerifyOTP(ctx context.Context, email, code string) (*provider.Session, error) {
	if s.verifyOTPFn != nil {
		return s.verifyOTPFn(ctx, email, code)
	}
	return nil, provider.ErrNoSession
}

func (s *stubClient) SignOut(ctx context.Context) error {
	s.signedOut.Add(1)
	if s.signOutFn != nil {
		return s.signOutFn(ctx)
	}
	return nil
}

func (s *stubClient) OnAuthStateChange(handler func(provider.Event)) func() {
	s.mu.Lock()
	s.handlers = append(s.handlers, handler)
	index := len(s.handlers) - 1
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.handlers[index] = nil
		s.mu.Unlock()
	}
}

// emit delivers an event to all registered handlers, as the real client does.
func (s *stubClient) emit(event provider.Event) {
	s.mu.Lock()
	snapshot := append([]func(provider.Event){}, s.handlers...)
	s.mu.Unlock()

	for _, handler := range snapshot {
		if handler != nil {
			handler(event)
		}
	}
}
