// ABOUTME: Echo middleware enforcing bearer-token authentication
// ABOUTME: WebSocket upgrades may pass the token as a query parameter

package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const subjectContextKey = "auth.subject"

// extractBearerToken pulls a bearer token from the Authorization header.
// Returns the token and an error message (empty on success).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Middleware returns an echo middleware that verifies bearer tokens.
// Browsers cannot set headers on WebSocket upgrades, so those requests
// may carry the token in a "token" query parameter instead.
func Middleware(verifier TokenVerifier, logger *slog.Logger) echo.MiddlewareFunc {
	log := logger.With("component", "auth")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, errMsg := extractBearerToken(c.Request().Header.Get("Authorization"))
			if errMsg != "" {
				if qt := c.QueryParam("token"); qt != "" {
					token, errMsg = qt, ""
				}
			}
			if errMsg != "" {
				return echo.NewHTTPError(http.StatusUnauthorized, errMsg)
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				log.Warn("rejected request", "path", c.Path(), "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(subjectContextKey, subject)
			return next(c)
		}
	}
}

// Subject returns the authenticated subject for a request, if any.
func Subject(c echo.Context) string {
	subject, _ := c.Get(subjectContextKey).(string)
	return subject
}
