// Copyright (c) 2026 Canvasa. All rights reserved.
// Author: dev@canvasa.app

package auth

import (
	"sync"
	"time"
)

// Deduplicator suppresses rapid-fire echoes of the same provider event.
//
// Providers deliver the same transition more than once in quick succession
// (restore + refresh races, multiple subscribers upstream). Only the single
// most recent event is remembered — this is a debounce against immediate
// echoes, not an event log.
type Deduplicator struct {
	mu sync.Mutex

	lastType      string
	lastSessionID string
	lastSeen      time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{now: time.Now}
}

/*
IsDuplicate reports whether an incoming event repeats the recorded one
within maxAge.

Description: Events match when the type is identical and the session ids
agree. Only an empty INCOMING session id is a wildcard: providers omit the
session on some transitions, and those must still be deduplicated against
their session-carrying twin. A recorded empty id never matches a provided
one — an event that names its session is more specific than the baseline
and must pass.

Parameters:
  - eventType: string
  - sessionID: string ("" matches any recorded id)
  - maxAge: time.Duration

Returns:
  - bool: true when the event should be dropped
*/
func (d *Deduplicator) IsDuplicate(eventType, sessionID string, maxAge time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastType == "" {
		return false
	}
	if d.lastType != eventType {
		return false
	}
	if sessionID != "" && sessionID != d.lastSessionID {
		return false
	}

	return d.now().Sub(d.lastSeen) < maxAge
}

// Record stores the event as the new comparison baseline, replacing the
// previous record entirely.
func (d *Deduplicator) Record(eventType, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastType = eventType
	d.lastSessionID = sessionID
	d.lastSeen = d.now()
}

// Reset forgets the recorded event. Called on sign-out so a fresh sign-in
// is never mistaken for an echo of the previous one.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastType = ""
	d.lastSessionID = ""
	d.lastSeen = time.Time{}
}
