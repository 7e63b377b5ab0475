package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/veilwork/authd/internal/apperror"
)

// contextKeyEmail is the Echo context key holding the verified account email
// for the current request. Set once by RequireAuth; handlers read it through
// CurrentEmail instead of re-verifying the token.
const contextKeyEmail = "auth_email"

// TokenVerifier is the verification contract the middleware depends on.
// Satisfied by *token.Issuer.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RequireAuth returns middleware that verifies the session token and injects
// the account email into the request context. Requests without a valid token
// get 401. The sub-reason (missing, malformed, expired) is never exposed.
func RequireAuth(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c)
			if tok == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			email, err := verifier.Verify(tok)
			if err != nil {
				return apperror.NewUnauthorized("authentication required")
			}

			c.Set(contextKeyEmail, email)
			return next(c)
		}
	}
}

// CurrentEmail returns the verified account email for the current request,
// or "" when the request did not pass RequireAuth.
func CurrentEmail(c echo.Context) string {
	email, _ := c.Get(contextKeyEmail).(string)
	return email
}

// extractToken reads the session token from the "jwt" cookie, falling back
// to an Authorization bearer header for non-browser clients.
func extractToken(c echo.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authz := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}

	return ""
}
