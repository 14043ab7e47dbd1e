// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasa/gateway/internal/auth"
	"github.com/canvasa/gateway/internal/provider"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newInitializerFixture(client *stubClient, cacheMaxAge time.Duration) (*auth.Initializer, *auth.StateStore, *auth.Flag) {
	store := auth.NewStateStore()
	flag := auth.NewFlag()
	return auth.NewInitializer(client, store, flag, cacheMaxAge, discardLogger()), store, flag
}

/*
TestInitializer_AuthenticatedOutcome verifies the happy path: user fetched
first, session attached, flag settled.
*/
func TestInitializer_AuthenticatedOutcome(t *testing.T) {
	user := sampleIdentity()
	client := &stubClient{
		getUserFn: func(context.Context) (*provider.Identity, error) {
			return user, nil
		},
		getSessionFn: func(context.Context) (*provider.Session, error) {
			return sampleSession(user), nil
		},
	}
	initializer, store, flag := newInitializerFixture(client, time.Minute)

	require.NoError(t, initializer.Initialize(context.Background(), false))

	snapshot := store.Snapshot()
	assert.True(t, snapshot.IsAuthenticated)
	assert.Equal(t, "user-1", snapshot.User.ID)
	assert.NotNil(t, snapshot.Session)
	assert.False(t, snapshot.IsLoading)
	assert.False(t, snapshot.LastFetchTime.IsZero())
	assert.True(t, flag.Get())
}

/*
TestInitializer_AnonymousOutcome verifies a missing session is a terminal
success, not a failure: no error in state, flag settled.
*/
func TestInitializer_AnonymousOutcome(t *testing.T) {
	client := &stubClient{}
	initializer, store, flag := newInitializerFixture(client, time.Minute)

	require.NoError(t, initializer.Initialize(context.Background(), false))

	snapshot := store.Snapshot()
	assert.Nil(t, snapshot.User)
	assert.False(t, snapshot.IsAuthenticated)
	assert.Empty(t, snapshot.Error)
	assert.False(t, snapshot.LastFetchTime.IsZero())
	assert.True(t, flag.Get())
}

/*
TestInitializer_ProviderFailureSettles verifies the terminal guarantee: a
provider failure records the message, settles the flag, and resolves the
call instead of erroring it.
*/
func TestInitializer_ProviderFailureSettles(t *testing.T) {
	client := &stubClient{
		getUserFn: func(context.Context) (*provider.Identity, error) {
			return nil, &provider.APIError{Status: 500, Msg: "upstream exploded"}
		},
	}
	initializer, store, flag := newInitializerFixture(client, time.Minute)

	require.NoError(t, initializer.Initialize(context.Background(), false))

	snapshot := store.Snapshot()
	assert.False(t, snapshot.IsAuthenticated)
	assert.Equal(t, "upstream exploded", snapshot.Error)
	assert.True(t, flag.Get(), "flag must settle on failure paths too")
}

/*
TestInitializer_SessionFailureIsNonFatal verifies a session fetch failure
after a successful user fetch keeps the user.
*/
func TestInitializer_SessionFailureIsNonFatal(t *testing.T) {
	user := sampleIdentity()
	client := &stubClient{
		getUserFn: func(context.Context) (*provider.Identity, error) {
			return user, nil
		},
		getSessionFn: func(context.Context) (*provider.Session, error) {
			return nil, errors.New("session endpoint down")
		},
	}
	initializer, store, _ := newInitializerFixture(client, time.Minute)

	require.NoError(t, initializer.Initialize(context.Background(), false))

	snapshot := store.Snapshot()
	assert.True(t, snapshot.IsAuthenticated)
	assert.Nil(t, snapshot.Session)
	assert.Empty(t, snapshot.Error)
}

/*
TestInitializer_SingleFlight verifies concurrent callers share one fetch:
all resolve, exactly one network round trip happens.
*/
func TestInitializer_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	user := sampleIdentity()
	client := &stubClient{
		getUserFn: func(context.Context) (*provider.Identity, error) {
			<-release
			return user, nil
		},
		getSessionFn: func(context.Context) (*provider.Session, error) {
			return sampleSession(user), nil
		},
	}
	initializer, store, _ := newInitializerFixture(client, time.Minute)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			errs[slot] = initializer.Initialize(context.Background(), false)
		}(i)
	}

	// Let the stragglers join the in-flight run, then release the fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), client.userCalls.Load(), "joiners must not trigger extra fetches")
	assert.True(t, store.Snapshot().IsAuthenticated)
}

/*
TestInitializer_CacheHit verifies a fresh-enough previous fetch satisfies a
non-forced call with no network and no LastFetchTime movement.
*/
func TestInitializer_CacheHit(t *testing.T) {
	user := sampleIdentity()
	client := &stubClient{
		getUserFn: func(context.Context) (*provider.Identity, error) {
			return user, nil
		},
		getSessionFn: func(context.Context) (*provider.Session, error) {
			return sampleSession(user), nil
		},
	}
	initializer, store, _ := newInitializerFixture(client, time.Minute)

	require.NoError(t, initializer.Initialize(context.Background(), false))
	firstFetch := store.Snapshot().LastFetchTime

	require.NoError(t, initializer.Initialize(context.Background(), false))

	assert.Equal(t, int64(1), client.userCalls.Load())
	assert.Equal(t, firstFetch, store.Snapshot().LastFetchTime, "cache hits must not move the fetch time")
}

/*
TestInitializer_ForceBypassesCache verifies force always refetches.
*/
func TestInitializer_ForceBypassesCache(t *testing.T) {
	user := sampleIdentity()
	client := &stubClient{
		getUserFn: func(context.Context) (*provider.Identity, error) {
			return user, nil
		},
		getSessionFn: func(context.Context) (*provider.Session, error) {
			return sampleSession(user), nil
		},
	}
	initializer, _, _ := newInitializerFixture(client, time.Minute)

	require.NoError(t, initializer.Initialize(context.Background(), false))
	require.NoError(t, initializer.Initialize(context.Background(), true))

	assert.Equal(t, int64(2), client.userCalls.Load())
}

/*
TestInitializer_StaleCacheRefetches verifies an aged-out fetch goes back to
the network on the next non-forced call.
*/
func TestInitializer_StaleCacheRefetches(t *testing.T) {
	user := sampleIdentity()
	client := &stubClient{
		getUserFn: func(context.Context) (*provider.Identity, error) {
			return user, nil
		},
		getSessionFn: func(context.Context) (*provider.Session, error) {
			return sampleSession(user), nil
		},
	}
	initializer, _, _ := newInitializerFixture(client, 20*time.Millisecond)

	require.NoError(t, initializer.Initialize(context.Background(), false))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, initializer.Initialize(context.Background(), false))

	assert.Equal(t, int64(2), client.userCalls.Load())
}

/*
TestInitializer_CanceledJoinReturnsContextError verifies a joiner whose
context ends before the shared fetch completes gets ctx.Err back.
*/
func TestInitializer_CanceledJoinReturnsContextError(t *testing.T) {
	release := make(chan struct{})
	client := &stubClient{
		getUserFn: func(context.Context) (*provider.Identity, error) {
			<-release
			return nil, provider.ErrNoSession
		},
	}
	initializer, _, _ := newInitializerFixture(client, time.Minute)

	go func() { _ = initializer.Initialize(context.Background(), false) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	joinErr := make(chan error, 1)
	go func() { joinErr <- initializer.Initialize(ctx, false) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-joinErr, context.Canceled)
	close(release)
}
