// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package identity maps a verified email address to a stable user.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bulletcraft/bulletcraft/internal/metrics"
	"github.com/bulletcraft/bulletcraft/internal/models"
	"github.com/bulletcraft/bulletcraft/internal/repository"
	"github.com/google/uuid"
)

// Store persists users. Implemented by repository.Repository.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Resolver finds or creates users by email.
type Resolver struct {
	store   Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewResolver creates a Resolver. m may be nil.
func NewResolver(store Store, m *metrics.Metrics) *Resolver {
	return &Resolver{store: store, metrics: m, now: time.Now}
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Resolve returns the user owning email, creating it on first sight.
// An existing user is returned unchanged; name only applies on creation.
func (r *Resolver) Resolve(ctx context.Context, email, name string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}

	user, err := r.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user = &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		// Lost the race to a concurrent first login.
		existing, err := r.store.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		return existing, nil
	}

	r.metrics.UserCreated()
	slog.InfoContext(ctx, "user_created", "user_id", user.ID, "email", email)
	return user, nil
}
