// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

/*
Package uuid provides time-ordered unique identifiers for the platform.

It wraps the standard UUID library to specifically generate Version 7 values,
which are naturally ordered by creation time.

Advantages:

  - Sortable: Naturally ordered by creation time (millisecond precision).
  - Greppable: Correlated log lines sort chronologically by request id.
  - Compact: 128-bit storage, compatible with standard 'uuid' types.

This is the ID type for request correlation across the gateway.
*/
package uuid

import "github.com/google/uuid"

// # Generators

// New generates a new UUIDv7 string.
func New() string {

	// Create a new version 7 UUID (time-sortable)
	id, err := uuid.NewV7()

	// entropy failure is an unrecoverable system-level error
	if err != nil {
		panic("uuidv7: failed to generate UUID: " + err.Error())
	}

	// Convert the UUID to a string
	return id.String()
}
