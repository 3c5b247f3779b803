package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken("sess-1", "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "sess-1", claims.Subject)
}

func TestTokenTTLDefault(t *testing.T) {
	tm := NewTokenManager("test-secret", 0)
	_, expiresAt, err := tm.GenerateToken("sess-1", "user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)
}

func TestTokenWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken("sess-1", "user-1")
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", 60).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenRejectsForeignSigningMethod(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{SessionID: "sess-1"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager("test-secret", 60).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenGarbage(t *testing.T) {
	_, err := NewTokenManager("test-secret", 60).ParseToken("not-a-token")
	assert.Error(t, err)
}
