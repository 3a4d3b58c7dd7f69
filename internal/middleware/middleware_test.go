// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bulletcraft/bulletcraft/internal/auth"
	"github.com/bulletcraft/bulletcraft/internal/httpmsg"
	"github.com/bulletcraft/bulletcraft/internal/i18n"
	"github.com/bulletcraft/bulletcraft/internal/middleware"
	"github.com/bulletcraft/bulletcraft/internal/models"
	"github.com/bulletcraft/bulletcraft/internal/services/session"
	"github.com/bulletcraft/bulletcraft/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedEcho(t *testing.T) (*echo.Echo, *session.Issuer, *models.User) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "a@b.com")
	issuer, err := session.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		u := auth.GetUser(c.Request().Context())
		claims := auth.GetClaims(c.Request().Context())
		return c.String(http.StatusOK, u.ID+"|"+claims.Email)
	}, middleware.RequireSession(issuer, repo))
	return e, issuer, user
}

func TestRequireSession(t *testing.T) {
	e, issuer, user := newProtectedEcho(t)
	token, _, err := issuer.Issue(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID+"|a@b.com", rec.Body.String())
}

func TestRequireSession_Rejects(t *testing.T) {
	e, issuer, _ := newProtectedEcho(t)
	unknown, _, err := issuer.Issue(&models.User{ID: "ghost", Email: "ghost@b.com"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-token"},
		{"unknown user", "Bearer " + unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
		})
	}
}

type failingLoader struct{}

func (failingLoader) GetUserByID(context.Context, string) (*models.User, error) {
	return nil, errors.New("db down")
}

func TestRequireSession_LoaderError(t *testing.T) {
	issuer, err := session.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	token, _, err := issuer.Issue(&models.User{ID: "u1", Email: "a@b.com"})
	require.NoError(t, err)

	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, middleware.RequireSession(issuer, failingLoader{}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"`+httpmsg.InternalError+`"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	e := echo.New()
	e.Use(middleware.Locale())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, i18n.GetLocale(c.Request().Context()))
	})

	tests := []struct {
		header string
		want   string
	}{
		{"de-DE,de;q=0.9", "de"},
		{"en-US", "en"},
		{"fr", "en"},
		{"", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Language", tt.header)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}
