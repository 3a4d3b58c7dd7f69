// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Lockout tracks failed OTP verifications for a key.
type Lockout struct { //nolint:govet // fieldalignment: readability over optimization
	Key         string     `db:"key"`
	FailedCount int        `db:"failed_count"`
	LockedUntil *time.Time `db:"locked_until"`
	UpdatedAt   time.Time  `db:"updated_at"`
}
