package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("s3cret")
	now := time.Now()

	signed, err := tokens.GenerateJWT("user-1", "auth-1", now, now.Add(time.Hour))
	require.NoError(t, err)

	claims, err := tokens.ValidateJWT(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "auth-1", claims.ID)
}

func TestValidateJWTRejects(t *testing.T) {
	tokens := NewTokens("s3cret")
	now := time.Now()

	t.Run("expired", func(t *testing.T) {
		signed, err := tokens.GenerateJWT("user-1", "auth-1", now.Add(-2*time.Hour), now.Add(-time.Hour))
		require.NoError(t, err)
		_, err = tokens.ValidateJWT(signed)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		signed, err := NewTokens("other").GenerateJWT("user-1", "auth-1", now, now.Add(time.Hour))
		require.NoError(t, err)
		_, err = tokens.ValidateJWT(signed)
		assert.Error(t, err)
	})

	t.Run("missing session id", func(t *testing.T) {
		signed, err := tokens.GenerateJWT("user-1", "", now, now.Add(time.Hour))
		require.NoError(t, err)
		_, err = tokens.ValidateJWT(signed)
		assert.Error(t, err)
	})

	t.Run("unsigned", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1", ID: "auth-1"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tokens.ValidateJWT(signed)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.ValidateJWT("not-a-token")
		assert.Error(t, err)
	})
}

func TestNewState(t *testing.T) {
	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}

func TestGoogleAuthCodeURL(t *testing.T) {
	p := NewGoogleProvider("client-id", "client-secret", "http://localhost/cb")
	u := p.AuthCodeURL("xyz")
	assert.Contains(t, u, "accounts.google.com")
	assert.Contains(t, u, "state=xyz")
	assert.Contains(t, u, "client_id=client-id")
}
