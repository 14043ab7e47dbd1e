// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package provider

import (
	"context"
	"sync"
)

// SessionStore persists the session between gateway restarts, plus the PKCE
// verifier for the duration of an OAuth round trip.
//
// Absence is not an error: LoadSession returns (nil, nil) and LoadVerifier
// returns ("", nil) when nothing is stored.
type SessionStore interface {
	LoadSession(ctx context.Context) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context) error

	LoadVerifier(ctx context.Context) (string, error)
	SaveVerifier(ctx context.Context, verifier string) error
	DeleteVerifier(ctx context.Context) error
}

// MemorySessionStore keeps the session in process memory only. Suitable for
// tests and storage-less deployments where re-auth after restart is fine.
type MemorySessionStore struct {
	mu       sync.Mutex
	session  *Session
	verifier string
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

// LoadSession returns the stored session, or nil when absent.
func (store *MemorySessionStore) LoadSession(ctx context.Context) (*Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.session == nil {
		return nil, nil
	}
	copied := *store.session
	return &copied, nil
}

// SaveSession stores a copy of the session.
func (store *MemorySessionStore) SaveSession(ctx context.Context, session *Session) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if session == nil {
		store.session = nil
		return nil
	}
	copied := *session
	store.session = &copied
	return nil
}

// DeleteSession discards the stored session.
func (store *MemorySessionStore) DeleteSession(ctx context.Context) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.session = nil
	return nil
}

// LoadVerifier returns the stored PKCE verifier, or "" when absent.
func (store *MemorySessionStore) LoadVerifier(ctx context.Context) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.verifier, nil
}

// SaveVerifier stores the PKCE verifier.
func (store *MemorySessionStore) SaveVerifier(ctx context.Context, verifier string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.verifier = verifier
	return nil
}

// DeleteVerifier discards the PKCE verifier.
func (store *MemorySessionStore) DeleteVerifier(ctx context.Context) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.verifier = ""
	return nil
}
