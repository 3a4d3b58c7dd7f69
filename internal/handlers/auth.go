// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bulletcraft/bulletcraft/internal/auth"
	"github.com/bulletcraft/bulletcraft/internal/httpmsg"
	"github.com/bulletcraft/bulletcraft/internal/metrics"
	"github.com/bulletcraft/bulletcraft/internal/models"
	"github.com/bulletcraft/bulletcraft/internal/services/email"
	"github.com/bulletcraft/bulletcraft/internal/services/identity"
	"github.com/bulletcraft/bulletcraft/internal/services/otp"
	"github.com/bulletcraft/bulletcraft/internal/services/session"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for OTP login.
type AuthHandlers struct {
	otp      *otp.Manager
	users    *identity.Resolver
	sessions *session.Issuer
	sender   email.Sender
	metrics  *metrics.Metrics
}

// NewAuth creates a new AuthHandlers instance. m may be nil.
func NewAuth(otpManager *otp.Manager, users *identity.Resolver, sessions *session.Issuer, sender email.Sender, m *metrics.Metrics) *AuthHandlers {
	return &AuthHandlers{
		otp:      otpManager,
		users:    users,
		sessions: sessions,
		sender:   sender,
		metrics:  m,
	}
}

// SendOTPRequest is the request body for requesting a code.
type SendOTPRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// VerifyOTPRequest is the request body for verifying a code.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
	Name  string `json:"name"`
}

// AuthResponse is returned after a successful verification.
type AuthResponse struct {
	User    *models.User `json:"user"`
	Token   string       `json:"token"`
	Message string       `json:"message"`
}

// UserResponse wraps the current user.
type UserResponse struct {
	User *models.User `json:"user"`
}

// SendOTP issues a code for the given email and delivers it.
func (h *AuthHandlers) SendOTP(c echo.Context) error {
	var req SendOTPRequest
	if err := c.Bind(&req); err != nil {
		return httpmsg.Write(c, http.StatusBadRequest, httpmsg.InvalidBody)
	}

	addr := identity.NormalizeEmail(req.Email)
	if addr == "" {
		return httpmsg.Write(c, http.StatusBadRequest, httpmsg.EmailRequired)
	}

	ctx := c.Request().Context()
	code, _, err := h.otp.Issue(ctx, addr)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue otp", "email", addr, "error", err)
		return httpmsg.Write(c, http.StatusInternalServerError, httpmsg.InternalError)
	}
	h.metrics.OTPIssued()

	if err := h.sender.SendOTP(ctx, addr, strings.TrimSpace(req.Name), code, h.otp.TTL()); err != nil {
		slog.ErrorContext(ctx, "failed to send otp", "email", addr, "error", err)
		return httpmsg.Write(c, http.StatusInternalServerError, httpmsg.SendFailed)
	}

	return httpmsg.Write(c, http.StatusOK, httpmsg.OTPSent)
}

// VerifyOTP checks a code and, on success, returns the user and a session token.
func (h *AuthHandlers) VerifyOTP(c echo.Context) error {
	var req VerifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return httpmsg.Write(c, http.StatusBadRequest, httpmsg.InvalidBody)
	}

	addr := identity.NormalizeEmail(req.Email)
	if addr == "" || strings.TrimSpace(req.OTP) == "" {
		return httpmsg.Write(c, http.StatusBadRequest, httpmsg.FieldsRequired)
	}

	ctx := c.Request().Context()
	if err := h.otp.Validate(ctx, addr, req.OTP); err != nil {
		switch {
		case errors.Is(err, otp.ErrInvalidOrExpired):
			h.metrics.Verification(metrics.ResultInvalid)
			return httpmsg.Write(c, http.StatusUnauthorized, httpmsg.InvalidOTP)
		case errors.Is(err, otp.ErrLocked):
			h.metrics.Verification(metrics.ResultLocked)
			return httpmsg.Write(c, http.StatusTooManyRequests, httpmsg.TooManyAttempts)
		default:
			h.metrics.Verification(metrics.ResultError)
			slog.ErrorContext(ctx, "failed to validate otp", "email", addr, "error", err)
			return httpmsg.Write(c, http.StatusInternalServerError, httpmsg.InternalError)
		}
	}
	h.metrics.Verification(metrics.ResultSuccess)

	user, err := h.users.Resolve(ctx, addr, req.Name)
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve user", "email", addr, "error", err)
		return httpmsg.Write(c, http.StatusInternalServerError, httpmsg.InternalError)
	}

	token, _, err := h.sessions.Issue(user)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue session", "user_id", user.ID, "error", err)
		return httpmsg.Write(c, http.StatusInternalServerError, httpmsg.InternalError)
	}

	slog.InfoContext(ctx, "user_authenticated", "user_id", user.ID)
	return c.JSON(http.StatusOK, AuthResponse{
		User:    user,
		Token:   token,
		Message: httpmsg.Authenticated,
	})
}

// Me returns the user of the current session.
func (h *AuthHandlers) Me(c echo.Context) error {
	user := auth.GetUser(c.Request().Context())
	if user == nil {
		return httpmsg.Write(c, http.StatusUnauthorized, httpmsg.Unauthorized)
	}
	return c.JSON(http.StatusOK, UserResponse{User: user})
}
