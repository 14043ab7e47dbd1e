// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

/*
Package auth owns the gateway's identity bootstrap: the single source of
truth for "who is signed in right now", the machinery that establishes it
exactly once, and the actions that change it.

Architecture:

  - StateStore: atomic identity snapshot with change notification.
  - Deduplicator: suppresses provider event echoes.
  - Initializer: single-flight identity fetch with a freshness cache.
  - Gate: bounded readiness wait for rendering surfaces.
  - Actions: sign-in/sign-out facade returning display-safe results.
  - Core: the container wiring the above to the provider event stream.

Everything here is constructed once in cmd/gateway and injected; there is
no package-level state.
*/
package auth

import (
	"sync"
	"time"

	"github.com/canvasa/gateway/internal/provider"
)

// State is the identity snapshot consumers render from.
//
// # Invariants
//
// IsAuthenticated is derived from User and nothing else. A nil User always
// comes with a nil Session and IsAuthenticated == false, in the same
// transition — observers never see a half-cleared snapshot.
type State struct {
	// User is the provider's identity record, nil when anonymous.
	User *provider.Identity `json:"user"`

	// Session carries the token pair. Excluded from JSON projections so
	// tokens never leak through state endpoints.
	Session *provider.Session `json:"-"`

	// IsAuthenticated mirrors User != nil.
	IsAuthenticated bool `json:"is_authenticated"`

	// IsLoading is true while a bootstrap fetch is in flight.
	IsLoading bool `json:"is_loading"`

	// Error is the display-safe message of the last failed bootstrap,
	// empty when the last attempt succeeded.
	Error string `json:"error,omitempty"`

	// LastFetchTime is when the last fetch attempt completed. It moves
	// only on completed attempts — never on cache hits.
	LastFetchTime time.Time `json:"-"`
}

// StateStore holds the current [State] and notifies subscribers of every
// transition. All transitions are atomic multi-field updates.
type StateStore struct {
	mu    sync.RWMutex
	state State

	smu     sync.Mutex
	subs    map[int64]func(State)
	nextSub int64
}

// NewStateStore creates a store in the anonymous, not-yet-loaded state.
func NewStateStore() *StateStore {
	return &StateStore{subs: make(map[int64]func(State))}
}

// Snapshot returns a copy of the current state.
func (store *StateStore) Snapshot() State {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.state
}

// Subscribe registers an observer invoked after every transition with the
// new snapshot. It returns the unsubscribe function.
func (store *StateStore) Subscribe(observer func(State)) func() {
	store.smu.Lock()
	store.nextSub++
	id := store.nextSub
	store.subs[id] = observer
	store.smu.Unlock()

	return func() {
		store.smu.Lock()
		delete(store.subs, id)
		store.smu.Unlock()
	}
}

// # Transitions

// SetLoading marks a bootstrap fetch as in flight (or finished).
func (store *StateStore) SetLoading(loading bool) {
	store.transition(func(state *State) {
		state.IsLoading = loading
	})
}

// SetAuthenticated installs a fetched identity and its session as one
// atomic transition, clearing any previous error.
func (store *StateStore) SetAuthenticated(user *provider.Identity, session *provider.Session, fetchedAt time.Time) {
	store.transition(func(state *State) {
		state.User = user
		state.Session = session
		state.IsAuthenticated = user != nil
		state.IsLoading = false
		state.Error = ""
		state.LastFetchTime = fetchedAt

		// A vanished identity can never leave a dangling session behind.
		if user == nil {
			state.Session = nil
			state.IsAuthenticated = false
		}
	})
}

// SetAnonymous records a completed fetch that found no identity.
func (store *StateStore) SetAnonymous(fetchedAt time.Time) {
	store.SetAuthenticated(nil, nil, fetchedAt)
}

// SetFailure records a completed fetch that failed, clearing the identity
// and storing the display-safe message.
func (store *StateStore) SetFailure(message string, fetchedAt time.Time) {
	store.transition(func(state *State) {
		state.User = nil
		state.Session = nil
		state.IsAuthenticated = false
		state.IsLoading = false
		state.Error = message
		state.LastFetchTime = fetchedAt
	})
}

// Clear resets the store to its initial anonymous state, including the
// fetch timestamp, so the next bootstrap cannot be served from cache.
func (store *StateStore) Clear() {
	store.transition(func(state *State) {
		*state = State{}
	})
}

// transition applies mutate under the write lock and notifies subscribers
// with the resulting snapshot after the lock is released.
func (store *StateStore) transition(mutate func(*State)) {
	store.mu.Lock()
	mutate(&store.state)
	snapshot := store.state
	store.mu.Unlock()

	store.smu.Lock()
	observers := make([]func(State), 0, len(store.subs))
	for _, observer := range store.subs {
		observers = append(observers, observer)
	}
	store.smu.Unlock()

	for _, observer := range observers {
		observer(snapshot)
	}
}
