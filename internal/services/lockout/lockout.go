// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package lockout tracks failed verification attempts and locks keys that
// exceed a threshold.
package lockout

import (
	"context"
	"time"
)

// State is the current lockout envelope for a key.
type State struct {
	LockedUntil *time.Time
	FailedCount int
}

// Locked reports whether the key is locked at now.
func (s State) Locked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// Store persists lockout state.
type Store interface {
	Get(ctx context.Context, key string) (State, error)
	// RecordFailure increments the failure count and sets LockedUntil once
	// the count reaches threshold.
	RecordFailure(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (State, error)
	Clear(ctx context.Context, key string) error
}
