// ABOUTME: Tests for the bearer-token echo middleware
// ABOUTME: Covers header auth, query-param fallback, and rejection paths

package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthedEcho(t *testing.T, verifier TokenVerifier) *echo.Echo {
	t.Helper()
	e := echo.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.Use(Middleware(verifier, logger))
	e.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, Subject(c))
	})
	return e
}

func TestMiddleware_ValidHeader(t *testing.T) {
	verifier := NewJWTVerifier([]byte("secret"))
	token, err := verifier.Generate("user-1", time.Hour)
	require.NoError(t, err)

	e := newAuthedEcho(t, verifier)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestMiddleware_QueryParamFallback(t *testing.T) {
	verifier := NewJWTVerifier([]byte("secret"))
	token, err := verifier.Generate("ws-user", time.Hour)
	require.NoError(t, err)

	e := newAuthedEcho(t, verifier)
	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ws-user", rec.Body.String())
}

func TestMiddleware_Rejections(t *testing.T) {
	verifier := NewJWTVerifier([]byte("secret"))
	e := newAuthedEcho(t, verifier)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
