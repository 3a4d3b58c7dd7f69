// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware provides Echo middleware for the API.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bulletcraft/bulletcraft/internal/auth"
	"github.com/bulletcraft/bulletcraft/internal/httpmsg"
	"github.com/bulletcraft/bulletcraft/internal/models"
	"github.com/bulletcraft/bulletcraft/internal/repository"
	"github.com/bulletcraft/bulletcraft/internal/services/session"
	"github.com/labstack/echo/v4"
)

// TokenParser verifies session tokens.
type TokenParser interface {
	Parse(token string) (*session.Claims, error)
}

// UserLoader loads the user a token was issued for.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// RequireSession rejects requests without a valid bearer token and stores
// the claims and user in the request context.
func RequireSession(tokens TokenParser, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized(c)
			}

			claims, err := tokens.Parse(token)
			if err != nil {
				return unauthorized(c)
			}

			ctx := c.Request().Context()
			user, err := users.GetUserByID(ctx, claims.UserID())
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return unauthorized(c)
				}
				slog.ErrorContext(ctx, "failed to load session user", "user_id", claims.UserID(), "error", err)
				return httpmsg.Write(c, http.StatusInternalServerError, httpmsg.InternalError)
			}

			ctx = auth.SetClaims(ctx, claims)
			ctx = auth.SetUser(ctx, user)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c echo.Context) error {
	return httpmsg.Write(c, http.StatusUnauthorized, httpmsg.Unauthorized)
}
