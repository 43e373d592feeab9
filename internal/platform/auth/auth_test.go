package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, c jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestVerifierAcceptsValidToken(t *testing.T) {
	v, err := NewVerifier("s3cret")
	require.NoError(t, err)

	tok := sign(t, "s3cret", jwt.MapClaims{
		"uid":   "user-1",
		"email": "a@b.c",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "a@b.c", p.Email)
}

func TestVerifierIgnoresExtraClaims(t *testing.T) {
	v, err := NewVerifier("s3cret")
	require.NoError(t, err)

	tok := sign(t, "s3cret", jwt.MapClaims{
		"uid":            "user-2",
		"email_verified": true,
		"exp":            time.Now().Add(time.Hour).Unix(),
	})

	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-2", p.UserID)
	assert.Empty(t, p.Email)
}

func TestVerifierRejects(t *testing.T) {
	v, err := NewVerifier("s3cret")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"wrong secret", sign(t, "other", jwt.MapClaims{"uid": "u"}), ErrInvalidToken},
		{"expired", sign(t, "s3cret", jwt.MapClaims{"uid": "u", "exp": time.Now().Add(-time.Hour).Unix()}), ErrInvalidToken},
		{"no uid", sign(t, "s3cret", jwt.MapClaims{"email": "a@b.c"}), ErrInvalidToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.True(t, errors.Is(err, tt.want), "err = %v, want %v", err, tt.want)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/loads", nil)
	r.Header.Set("Authorization", "Basic xyz")
	assert.Equal(t, "", TokenFromRequest(r))
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier("  ")
	assert.Error(t, err)
}
