// Package token issues and verifies the signed session tokens that prove a
// prior successful login. Tokens are stateless HS256 JWTs carrying the
// account email as subject plus issued-at and expiry timestamps. Nothing is
// stored server-side; expiry is enforced by timestamp comparison during
// verification.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every verification failure: malformed
// token, signature mismatch, or elapsed expiry. Collapsing the sub-reasons
// into one error keeps callers from leaking an oracle to clients; the
// detailed cause is still available via errors.Unwrap for server-side logs.
var ErrInvalidToken = errors.New("invalid or expired token")

// Issuer creates and verifies session tokens with a process-wide secret key.
// It holds no mutable state and is safe for concurrent use.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates a token issuer signing with the given secret. ttl is the
// fixed validity window applied to every issued token.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl}
}

// claims embeds the registered JWT claims; the account email travels in the
// standard "sub" claim, so no custom fields are needed.
type claims struct {
	jwt.RegisteredClaims
}

// Issue creates a signed token for the given account email. The token
// carries subject, issued-at, and expiry (now + ttl).
func (i *Issuer) Issue(email string) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// TTL returns the validity window applied to issued tokens. Used by the
// HTTP layer to align the cookie max-age with token expiry.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Verify parses and validates a token, returning the subject email.
// Any failure -- bad signature, malformed input, expired -- returns an
// error wrapping ErrInvalidToken.
func (i *Issuer) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Subject == "" {
		return "", ErrInvalidToken
	}

	return c.Subject, nil
}
