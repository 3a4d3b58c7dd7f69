// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package otp issues and validates one-time email codes.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/bulletcraft/bulletcraft/internal/models"
	"github.com/bulletcraft/bulletcraft/internal/services/lockout"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the number of decimal digits in a code.
	CodeLength = 6
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxAttempts is the number of failed verifications before lockout.
	DefaultMaxAttempts = 5
	// DefaultLockoutWindow is how long an email stays locked.
	DefaultLockoutWindow = 15 * time.Minute
	// bcryptCost is the cost factor for hashing codes at rest.
	bcryptCost = bcrypt.MinCost
)

var (
	// ErrInvalidOrExpired covers a missing challenge, a wrong code and an expired code alike.
	ErrInvalidOrExpired = errors.New("invalid or expired otp")
	// ErrLocked is returned while an email is locked after too many failed attempts.
	ErrLocked = errors.New("too many failed attempts")
)

var codeSpace = big.NewInt(1_000_000)

// Store persists challenges. Implemented by repository.Repository.
type Store interface {
	UpsertOTPChallenge(ctx context.Context, email, codeHash string, expiresAt, createdAt time.Time) error
	DeleteOTPChallenge(ctx context.Context, email string) error
	ConsumeOTPChallenge(ctx context.Context, email string, match func(models.OTPChallenge) bool) (models.ConsumeResult, error)
}

// Options configures a Manager.
type Options struct {
	TTL           time.Duration
	MaxAttempts   int
	LockoutWindow time.Duration
}

// Manager issues and validates challenges.
type Manager struct {
	store    Store
	lockouts lockout.Store
	now      func() time.Time
	opts     Options
}

// NewManager creates a Manager. Zero option values fall back to the defaults.
func NewManager(store Store, lockouts lockout.Store, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.LockoutWindow <= 0 {
		opts.LockoutWindow = DefaultLockoutWindow
	}
	return &Manager{
		store:    store,
		lockouts: lockouts,
		now:      time.Now,
		opts:     opts,
	}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// TTL returns the validity window of issued codes.
func (m *Manager) TTL() time.Duration {
	return m.opts.TTL
}

// Issue generates a code for email and stores it, superseding any earlier
// challenge. The plaintext code is returned for delivery only.
func (m *Manager) Issue(ctx context.Context, email string) (string, time.Time, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", time.Time{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcryptCost)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to hash code: %w", err)
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.opts.TTL)
	if err := m.store.UpsertOTPChallenge(ctx, email, string(hash), expiresAt, now); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store challenge: %w", err)
	}

	slog.InfoContext(ctx, "otp_issued", "email", email, "expires_at", expiresAt)
	return code, expiresAt, nil
}

// Validate checks code against the stored challenge for email and consumes
// it on success. A challenge can be consumed once; concurrent callers with
// the same code see exactly one success. Only a wrong code against a live
// challenge counts toward the lockout.
func (m *Manager) Validate(ctx context.Context, email, code string) error {
	now := m.now()
	key := lockoutKey(email)

	state, err := m.lockouts.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read lockout state: %w", err)
	}
	if state.Locked(now) {
		slog.WarnContext(ctx, "otp_verify_blocked", "email", email, "locked_until", state.LockedUntil)
		return ErrLocked
	}

	expired := false
	result, err := m.store.ConsumeOTPChallenge(ctx, email, func(c models.OTPChallenge) bool {
		if c.Expired(now) {
			expired = true
			return false
		}
		return bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) == nil
	})
	if err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}

	switch {
	case result == models.ConsumeAccepted:
		if err := m.lockouts.Clear(ctx, key); err != nil {
			slog.ErrorContext(ctx, "failed to clear lockout", "email", email, "error", err)
		}
		return nil
	case result == models.ConsumeMissing, expired:
		slog.InfoContext(ctx, "otp_verify_failed", "email", email, "reason", "no live challenge")
		return ErrInvalidOrExpired
	default:
		return m.recordFailure(ctx, email, key, now)
	}
}

func (m *Manager) recordFailure(ctx context.Context, email, key string, now time.Time) error {
	state, err := m.lockouts.RecordFailure(ctx, key, now, m.opts.MaxAttempts, m.opts.LockoutWindow)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	slog.InfoContext(ctx, "otp_verify_failed", "email", email, "failed_count", state.FailedCount)

	if !state.Locked(now) {
		return ErrInvalidOrExpired
	}

	// The current code is burned; the user has to request a new one after the lock.
	if err := m.store.DeleteOTPChallenge(ctx, email); err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	slog.WarnContext(ctx, "otp_lockout_triggered", "email", email, "locked_until", state.LockedUntil)
	return ErrLocked
}

// GenerateCode returns a uniformly random CodeLength-digit decimal string.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

func lockoutKey(email string) string {
	return "otp:" + email
}
