// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// OTPChallenge is the pending one-time code for an email. There is at most one per email.
type OTPChallenge struct { //nolint:govet // fieldalignment: readability over optimization
	Email     string    `db:"email" json:"email"`
	CodeHash  string    `db:"code_hash" json:"-"` // bcrypt hash
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the challenge is no longer valid at now.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ConsumeResult is the outcome of an attempt to consume a challenge.
type ConsumeResult int

const (
	// ConsumeMissing means no challenge was stored for the email.
	ConsumeMissing ConsumeResult = iota
	// ConsumeRejected means a challenge existed but did not match; it is kept.
	ConsumeRejected
	// ConsumeAccepted means the challenge matched and was deleted.
	ConsumeAccepted
)
