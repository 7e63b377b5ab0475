package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	iss := NewIssuer([]byte("test-secret"), 24*time.Hour)

	tok, err := iss.Issue("alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	email, err := iss.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", email)
}

func TestIssue_ExpirySetFromTTL(t *testing.T) {
	t.Parallel()

	ttl := 24 * time.Hour
	iss := NewIssuer([]byte("test-secret"), ttl)

	tok, err := iss.Issue("alice@example.com")
	require.NoError(t, err)

	// Decode without verification to inspect the embedded expiry.
	var c claims
	_, _, err = jwt.NewParser().ParseUnverified(tok, &c)
	require.NoError(t, err)

	wantExpiry := time.Now().Add(ttl)
	require.WithinDuration(t, wantExpiry, c.ExpiresAt.Time, time.Minute)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	iss := NewIssuer([]byte("test-secret"), -1*time.Second)

	tok, err := iss.Issue("alice@example.com")
	require.NoError(t, err)

	_, err = iss.Verify(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewIssuer([]byte("right-secret"), time.Hour).Issue("alice@example.com")
	require.NoError(t, err)

	_, err = NewIssuer([]byte("wrong-secret"), time.Hour).Verify(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	iss := NewIssuer([]byte("test-secret"), time.Hour)

	for _, input := range []string{
		"",
		"not.a.jwt",
		"eyJhbGciOiJub25lIn0.eyJzdWIiOiJ4In0.",
	} {
		_, err := iss.Verify(input)
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) = %v, want ErrInvalidToken", input, err)
		}
	}
}

func TestVerify_RejectsForeignSigningMethod(t *testing.T) {
	t.Parallel()

	// A token signed with "none" must never validate, even with a matching
	// payload shape.
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewIssuer([]byte("test-secret"), time.Hour).Verify(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}
