// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package httpmsg holds the {"message": ...} body shared by handlers and
// middleware, together with the messages the API returns.
package httpmsg

import (
	"github.com/labstack/echo/v4"
)

// Response messages.
const (
	InvalidBody     = "Invalid request body"
	InternalError   = "Internal server error"
	Unauthorized    = "Unauthorized"
	EmailRequired   = "Email is required"
	OTPSent         = "OTP sent successfully"
	SendFailed      = "Failed to send OTP"
	FieldsRequired  = "Email and OTP are required"
	InvalidOTP      = "Invalid or expired OTP"
	TooManyAttempts = "Too many attempts, please request a new OTP later"
	Authenticated   = "Authentication successful"
)

// Response is the body of every non-success API response.
type Response struct {
	Message string `json:"message"`
}

// Write sends a {"message": ...} response with the given status code.
func Write(c echo.Context, statusCode int, message string) error {
	return c.JSON(statusCode, Response{Message: message})
}
