// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/canvasa/gateway/internal/platform/constants"
)

// RedisSessionStore implements SessionStore using Redis, so a signed-in
// session survives gateway restarts.
type RedisSessionStore struct {
	client *redis.Client

	// namespace distinguishes multiple gateway deployments sharing one
	// Redis instance.
	namespace string
}

// NewRedisSessionStore creates a Redis-backed SessionStore.
func NewRedisSessionStore(client *redis.Client, namespace string) *RedisSessionStore {
	if namespace == "" {
		namespace = "default"
	}
	return &RedisSessionStore{client: client, namespace: namespace}
}

/*
LoadSession retrieves the persisted session.

Description: Returns (nil, nil) when no session is stored or the entry
has expired.

Parameters:
  - context: context.Context

Returns:
  - *Session: The persisted session, or nil
  - error: Connectivity or decoding errors
*/
func (store *RedisSessionStore) LoadSession(context context.Context) (*Session, error) {

	// Use constants for key prefix
	key := store.sessionKey()

	// Get the session payload from Redis
	raw, err := store.client.Get(context, key).Bytes()

	// Handle errors
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis_session_load_failed: %w", err)
	}

	// Decode the stored payload
	session := &Session{}
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, fmt.Errorf("redis_session_decode_failed: %w", err)
	}

	return session, nil
}

/*
SaveSession persists the session with the refresh-window TTL.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Encoding or storage failures
*/
func (store *RedisSessionStore) SaveSession(context context.Context, session *Session) error {
	if session == nil {
		return store.DeleteSession(context)
	}

	// Encode the session payload
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redis_session_encode_failed: %w", err)
	}

	// Set the session with TTL
	if err := store.client.Set(context, store.sessionKey(), raw, constants.SessionStoreTTL).Err(); err != nil {
		return fmt.Errorf("redis_session_save_failed: %w", err)
	}

	// Return nil on success
	return nil
}

/*
DeleteSession removes the persisted session.

Parameters:
  - context: context.Context

Returns:
  - error: Deletion failures
*/
func (store *RedisSessionStore) DeleteSession(context context.Context) error {
	if err := store.client.Del(context, store.sessionKey()).Err(); err != nil {
		return fmt.Errorf("redis_session_delete_failed: %w", err)
	}
	return nil
}

/*
LoadVerifier retrieves the PKCE verifier for the in-flight OAuth round trip.

Description: Returns ("", nil) when no verifier is stored.

Parameters:
  - context: context.Context

Returns:
  - string: The stored verifier, or ""
  - error: Connectivity errors
*/
func (store *RedisSessionStore) LoadVerifier(context context.Context) (string, error) {
	verifier, err := store.client.Get(context, store.verifierKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis_verifier_load_failed: %w", err)
	}
	return verifier, nil
}

/*
SaveVerifier stores the PKCE verifier with a short TTL bounding the OAuth
round trip.

Parameters:
  - context: context.Context
  - verifier: string

Returns:
  - error: Storage failures
*/
func (store *RedisSessionStore) SaveVerifier(context context.Context, verifier string) error {
	if err := store.client.Set(context, store.verifierKey(), verifier, constants.PKCEVerifierTTL).Err(); err != nil {
		return fmt.Errorf("redis_verifier_save_failed: %w", err)
	}
	return nil
}

/*
DeleteVerifier removes the PKCE verifier after the exchange completed.

Parameters:
  - context: context.Context

Returns:
  - error: Deletion failures
*/
func (store *RedisSessionStore) DeleteVerifier(context context.Context) error {
	if err := store.client.Del(context, store.verifierKey()).Err(); err != nil {
		return fmt.Errorf("redis_verifier_delete_failed: %w", err)
	}
	return nil
}

// sessionKey builds the namespaced session key.
func (store *RedisSessionStore) sessionKey() string {
	return constants.RedisPrefixSession + store.namespace
}

// verifierKey builds the namespaced PKCE verifier key.
func (store *RedisSessionStore) verifierKey() string {
	return constants.RedisPrefixPKCEVerifier + store.namespace
}
