// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package httpmsg_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bulletcraft/bulletcraft/internal/httpmsg"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, httpmsg.Write(c, http.StatusUnauthorized, httpmsg.Unauthorized))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Unauthorized"}`, rec.Body.String())
}
