// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package auth_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasa/gateway/internal/auth"
	"github.com/canvasa/gateway/internal/provider"
)

func newCoreFixture(client *stubClient, dedupWindow time.Duration) *auth.Core {
	return auth.NewCore(client, auth.CoreConfig{
		DedupWindow: dedupWindow,
		CacheMaxAge: time.Minute,
		Gate: auth.GateConfig{
			InitialInterval: 2 * time.Millisecond,
			MaxInterval:     10 * time.Millisecond,
			MaxAttempts:     20,
			Timeout:         200 * time.Millisecond,
		},
		Actions: auth.ActionsConfig{
			ExternalURL: "https://site.example.com",
			SettleDelay: 0,
			OTPCooldown: time.Minute,
		},
	}, discardLogger())
}

func authenticatedStub() (*stubClient, *provider.Identity) {
	user := sampleIdentity()
	client := &stubClient{
		getUserFn: func(context.Context) (*provider.Identity, error) {
			return user, nil
		},
		getSessionFn: func(context.Context) (*provider.Session, error) {
			return sampleSession(user), nil
		},
	}
	return client, user
}

/*
TestCore_BootstrapThroughGate runs the fresh-visit scenario end to end:
Start, wait on the gate, observe the settled snapshot.
*/
func TestCore_BootstrapThroughGate(t *testing.T) {
	client, _ := authenticatedStub()
	core := newCoreFixture(client, time.Second)
	defer core.Close()

	core.Start(context.Background())

	forced, err := core.Gate().Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, forced)

	state := core.State()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "user-1", state.User.ID)
}

/*
TestCore_DuplicateEventSuppressed verifies an echoed SIGNED_IN inside the
window triggers no second fetch.
*/
func TestCore_DuplicateEventSuppressed(t *testing.T) {
	client, user := authenticatedStub()
	core := newCoreFixture(client, time.Second)
	defer core.Close()

	session := sampleSession(user)
	event := provider.Event{Type: provider.EventSignedIn, Session: session, Timestamp: time.Now()}

	client.emit(event)
	client.emit(event) // echo

	require.Eventually(t, func() bool {
		return core.State().IsAuthenticated
	}, time.Second, 5*time.Millisecond)

	// Give a would-be second dispatch time to run, then count.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), client.userCalls.Load())
}

/*
TestCore_DistinctEventsBothDispatch verifies different event types are not
mistaken for echoes of one another.
*/
func TestCore_DistinctEventsBothDispatch(t *testing.T) {
	client, user := authenticatedStub()
	core := newCoreFixture(client, time.Second)
	defer core.Close()

	session := sampleSession(user)
	client.emit(provider.Event{Type: provider.EventSignedIn, Session: session, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		return client.userCalls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	client.emit(provider.Event{Type: provider.EventTokenRefreshed, Session: session, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		return client.userCalls.Load() == 2
	}, time.Second, 5*time.Millisecond)
}

/*
TestCore_SignedOutEventClearsIdentity verifies the SIGNED_OUT transition
re-establishes the (now anonymous) truth from the provider.
*/
func TestCore_SignedOutEventClearsIdentity(t *testing.T) {
	user := sampleIdentity()
	var signedIn atomic.Bool
	signedIn.Store(true)
	client := &stubClient{
		getUserFn: func(context.Context) (*provider.Identity, error) {
			if signedIn.Load() {
				return user, nil
			}
			return nil, provider.ErrNoSession
		},
		getSessionFn: func(context.Context) (*provider.Session, error) {
			if signedIn.Load() {
				return sampleSession(user), nil
			}
			return nil, provider.ErrNoSession
		},
	}
	core := newCoreFixture(client, time.Second)
	defer core.Close()

	require.NoError(t, core.Initialize(context.Background(), false))
	require.True(t, core.State().IsAuthenticated)

	signedIn.Store(false)
	client.emit(provider.Event{Type: provider.EventSignedOut, Timestamp: time.Now()})

	require.Eventually(t, func() bool {
		return !core.State().IsAuthenticated
	}, time.Second, 5*time.Millisecond)
}

/*
TestCore_EventsDroppedAfterClose verifies the lifecycle gate: transitions
observed after Close never mutate state.
*/
func TestCore_EventsDroppedAfterClose(t *testing.T) {
	client, user := authenticatedStub()
	core := newCoreFixture(client, time.Second)

	core.Close()
	client.emit(provider.Event{Type: provider.EventSignedIn, Session: sampleSession(user), Timestamp: time.Now()})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), client.userCalls.Load())
	assert.False(t, core.State().IsAuthenticated)
}

/*
TestCore_InitialSessionUsesCache verifies INITIAL_SESSION is a non-forced
bootstrap: right after a completed fetch it is served from cache.
*/
func TestCore_InitialSessionUsesCache(t *testing.T) {
	client, user := authenticatedStub()
	core := newCoreFixture(client, time.Second)
	defer core.Close()

	require.NoError(t, core.Initialize(context.Background(), false))
	require.Equal(t, int64(1), client.userCalls.Load())

	client.emit(provider.Event{Type: provider.EventInitialSession, Session: sampleSession(user), Timestamp: time.Now()})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), client.userCalls.Load(), "restore echo must hit the fetch cache")
}

/*
TestCore_OptimisticUpdateThenConfirmingEvent covers both arrival orders of
the optimistic verify update and its confirming SIGNED_IN event; the end
state is authenticated either way.
*/
func TestCore_OptimisticUpdateThenConfirmingEvent(t *testing.T) {
	t.Run("action_first_event_second", func(t *testing.T) {
		client, user := authenticatedStub()
		client.verifyOTPFn = func(context.Context, string, string) (*provider.Session, error) {
			return sampleSession(user), nil
		}
		core := newCoreFixture(client, time.Second)
		defer core.Close()

		result := core.Actions().VerifyOTP(context.Background(), "op@canvasa.app", "482913")
		require.True(t, result.Success)
		assert.True(t, core.State().IsAuthenticated, "optimistic update is visible immediately")

		client.emit(provider.Event{Type: provider.EventSignedIn, Session: sampleSession(user), Timestamp: time.Now()})

		require.Eventually(t, func() bool {
			state := core.State()
			return state.IsAuthenticated && state.User.ID == "user-1"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("event_first_action_second", func(t *testing.T) {
		client, user := authenticatedStub()
		client.verifyOTPFn = func(context.Context, string, string) (*provider.Session, error) {
			return sampleSession(user), nil
		}
		core := newCoreFixture(client, time.Second)
		defer core.Close()

		client.emit(provider.Event{Type: provider.EventSignedIn, Session: sampleSession(user), Timestamp: time.Now()})

		result := core.Actions().VerifyOTP(context.Background(), "op@canvasa.app", "482913")
		require.True(t, result.Success)

		require.Eventually(t, func() bool {
			state := core.State()
			return state.IsAuthenticated && state.User.ID == "user-1"
		}, time.Second, 5*time.Millisecond)
	})
}

/*
TestCore_GateForceReleaseOnHungProvider verifies the rendering surface is
never blanked by a provider that hangs during bootstrap.
*/
func TestCore_GateForceReleaseOnHungProvider(t *testing.T) {
	hang := make(chan struct{})
	defer close(hang)

	client := &stubClient{
		getUserFn: func(ctx context.Context) (*provider.Identity, error) {
			select {
			case <-hang:
			case <-ctx.Done():
			}
			return nil, provider.ErrNoSession
		},
	}
	core := newCoreFixture(client, time.Second)
	defer core.Close()

	core.Start(context.Background())

	forced, err := core.Gate().Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, forced)
	assert.False(t, core.State().IsAuthenticated)
}
