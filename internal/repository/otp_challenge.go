// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bulletcraft/bulletcraft/internal/models"
)

// UpsertOTPChallenge stores a challenge for the email, replacing any existing one.
func (r *Repository) UpsertOTPChallenge(ctx context.Context, email, codeHash string, expiresAt, createdAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO otp_challenges (email, code_hash, expires_at, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(email) DO UPDATE SET
		   code_hash = excluded.code_hash,
		   expires_at = excluded.expires_at,
		   created_at = excluded.created_at`,
		email, codeHash, expiresAt, createdAt)
	return err
}

// GetOTPChallenge retrieves the challenge for an email.
func (r *Repository) GetOTPChallenge(ctx context.Context, email string) (*models.OTPChallenge, error) {
	var challenge models.OTPChallenge
	err := r.db.GetContext(ctx, &challenge, `SELECT * FROM otp_challenges WHERE email = ?`, email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &challenge, nil
}

// DeleteOTPChallenge deletes the challenge for an email. Deleting a missing challenge is not an error.
func (r *Repository) DeleteOTPChallenge(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE email = ?`, email)
	return err
}

// ConsumeOTPChallenge loads the challenge for email and deletes it if match
// returns true, all inside one write transaction. Concurrent callers are
// serialized, so a challenge is accepted at most once and later callers see
// ConsumeMissing. match must not use the repository.
func (r *Repository) ConsumeOTPChallenge(ctx context.Context, email string, match func(models.OTPChallenge) bool) (models.ConsumeResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ConsumeMissing, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var challenge models.OTPChallenge
	err = tx.GetContext(ctx, &challenge, `SELECT * FROM otp_challenges WHERE email = ?`, email)
	if err != nil {
		if err = wrapError(err); errors.Is(err, ErrNotFound) {
			return models.ConsumeMissing, nil
		}
		return models.ConsumeMissing, err
	}

	if !match(challenge) {
		return models.ConsumeRejected, nil
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM otp_challenges WHERE email = ?`, email)
	if err != nil {
		return models.ConsumeMissing, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.ConsumeMissing, err
	}
	if n != 1 {
		return models.ConsumeMissing, nil
	}

	if err := tx.Commit(); err != nil {
		return models.ConsumeMissing, fmt.Errorf("commit: %w", err)
	}
	return models.ConsumeAccepted, nil
}
