// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"github.com/bulletcraft/bulletcraft/internal/ctxkeys"
	"github.com/bulletcraft/bulletcraft/internal/models"
	"github.com/bulletcraft/bulletcraft/internal/services/session"
)

// SetUser stores the authenticated user in the context.
func SetUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxkeys.User{}, user)
}

// GetUser returns the authenticated user from the context, or nil if not authenticated.
func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(ctxkeys.User{}).(*models.User); ok {
		return user
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUser(ctx) != nil
}

// SetClaims stores verified session claims in the context.
func SetClaims(ctx context.Context, claims *session.Claims) context.Context {
	return context.WithValue(ctx, ctxkeys.Claims{}, claims)
}

// GetClaims returns the session claims from the context, or nil.
func GetClaims(ctx context.Context) *session.Claims {
	if claims, ok := ctx.Value(ctxkeys.Claims{}).(*session.Claims); ok {
		return claims
	}
	return nil
}
