package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClaims(sub string, exp time.Time) Claims {
	return Claims{
		Email:        "ada@example.org",
		UserMetadata: map[string]any{"user_name": "ada"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, testClaims("user-1", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	claims, err := ParseToken(secret, issued)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "ada@example.org", claims.Email)
	assert.Equal(t, "ada", claims.UserMetadata["user_name"])
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, testClaims("user-1", time.Now().Add(-time.Minute)))
	require.NoError(t, err)

	_, err = ParseToken(secret, issued)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseTokenRejectsBadInput(t *testing.T) {
	secret := []byte("secret")
	other, err := IssueToken([]byte("other"), testClaims("user-1", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	noSubject, err := IssueToken(secret, testClaims("", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	noExpiry, err := IssueToken(secret, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}})
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, testClaims("user-1", time.Now().Add(time.Hour))).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"wrong secret": other,
		"no subject":   noSubject,
		"no expiry":    noExpiry,
		"alg none":     none,
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(secret, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
