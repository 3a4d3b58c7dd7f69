// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bulletcraft/bulletcraft/internal/models"
	"github.com/bulletcraft/bulletcraft/internal/services/lockout"
)

// staleFailureAge bounds how long unlocked failure counts are remembered.
const staleFailureAge = 24 * time.Hour

// LockoutStore keeps lockout state in the otp_lockouts table.
type LockoutStore struct {
	repo *Repository
}

// Lockouts returns a lockout.Store backed by the database.
func (r *Repository) Lockouts() *LockoutStore {
	return &LockoutStore{repo: r}
}

func (s *LockoutStore) Get(ctx context.Context, key string) (lockout.State, error) {
	var row models.Lockout
	err := s.repo.db.GetContext(ctx, &row, `SELECT * FROM otp_lockouts WHERE key = ?`, key)
	if err != nil {
		if err = wrapError(err); errors.Is(err, ErrNotFound) {
			return lockout.State{}, nil
		}
		return lockout.State{}, err
	}
	return lockout.State{FailedCount: row.FailedCount, LockedUntil: row.LockedUntil}, nil
}

func (s *LockoutStore) RecordFailure(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (lockout.State, error) {
	tx, err := s.repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return lockout.State{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var row models.Lockout
	err = tx.GetContext(ctx, &row, `SELECT * FROM otp_lockouts WHERE key = ?`, key)
	if err != nil && !errors.Is(wrapError(err), ErrNotFound) {
		return lockout.State{}, err
	}

	count := row.FailedCount
	expiredLock := row.LockedUntil != nil && !row.LockedUntil.After(now)
	stale := row.LockedUntil == nil && now.Sub(row.UpdatedAt) > staleFailureAge
	if expiredLock || stale {
		count = 0
	}
	count++

	state := lockout.State{FailedCount: count}
	if count >= threshold {
		lockedUntil := now.Add(window).UTC()
		state.LockedUntil = &lockedUntil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO otp_lockouts (key, failed_count, locked_until, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   failed_count = excluded.failed_count,
		   locked_until = excluded.locked_until,
		   updated_at = excluded.updated_at`,
		key, state.FailedCount, state.LockedUntil, now.UTC())
	if err != nil {
		return lockout.State{}, err
	}

	if err := tx.Commit(); err != nil {
		return lockout.State{}, fmt.Errorf("commit: %w", err)
	}
	return state, nil
}

func (s *LockoutStore) Clear(ctx context.Context, key string) error {
	_, err := s.repo.db.ExecContext(ctx, `DELETE FROM otp_lockouts WHERE key = ?`, key)
	return err
}

var _ lockout.Store = (*LockoutStore)(nil)
