package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", "saladas-service", time.Hour)

	token, err := svc.Generate(42)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.NotEmpty(t, token.TokenID)

	claims, err := svc.Validate(token.AccessToken)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, token.TokenID, claims.ID)
}

func TestJWTRejectsForeignSecret(t *testing.T) {
	token, err := NewJWTService("one", "saladas-service", time.Hour).Generate(1)
	require.NoError(t, err)

	_, err = NewJWTService("two", "saladas-service", time.Hour).Validate(token.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	svc := NewJWTService("secret", "saladas-service", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := svc.Generate(1)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Validate(token.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestBcryptHasher(t *testing.T) {
	h := &BcryptHasher{cost: bcrypt.MinCost}

	hash, err := h.Hash("s3nha")
	require.NoError(t, err)

	assert.True(t, h.Check("s3nha", hash))
	assert.False(t, h.Check("wrong", hash))
}
