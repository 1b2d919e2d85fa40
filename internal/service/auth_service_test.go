package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"saladas-service/internal/auth"
	"saladas-service/internal/models"
	"saladas-service/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionScopeStore(t *testing.T) {
	sess := storeSession(3)

	id, err := sess.ScopeStore(0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	id, err = sess.ScopeStore(3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	_, err = sess.ScopeStore(4)
	assert.ErrorIs(t, err, ErrForbiddenStore)

	orphan := &Session{User: models.User{Profile: models.ProfileStore}}
	_, err = orphan.ScopeStore(0)
	assert.ErrorIs(t, err, ErrNoStore)

	admin := roleSession(models.ProfileAdmin)
	id, err = admin.ScopeStore(9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	_, err = admin.ScopeStore(0)
	assert.True(t, IsValidation(err))
}

func TestSessionHasProfile(t *testing.T) {
	sess := roleSession(models.ProfileProduction)
	assert.True(t, sess.HasProfile(models.ProfileProduction, models.ProfileAdmin))
	assert.False(t, sess.HasProfile(models.ProfileStore))
}

type authFixture struct {
	svc    *AuthService
	users  *MockUserRepository
	tokens *MockTokenIssuer
	hasher *MockPasswordChecker
	kv     *memoryKV
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users:  new(MockUserRepository),
		tokens: new(MockTokenIssuer),
		hasher: new(MockPasswordChecker),
		kv:     newMemoryKV(),
	}
	f.svc = NewAuthService(f.users, f.tokens, f.hasher, f.kv)
	f.svc.now = fixedNow
	return f
}

func TestLogin(t *testing.T) {
	f := newAuthFixture()
	user := &models.User{ID: 7, Email: "loja@saladas.test", PasswordHash: "hash", Profile: models.ProfileStore,
		StoreID: sql.NullInt64{Int64: 3, Valid: true}}
	f.users.On("GetUserByEmail", mock.Anything, "loja@saladas.test").Return(user, nil)
	f.hasher.On("Check", "secret", "hash").Return(true)
	f.tokens.On("Generate", int64(7)).Return(&auth.Token{AccessToken: "tok", TokenType: "Bearer"}, nil)

	resp, err := f.svc.Login(context.Background(), " loja@saladas.test ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.Token.AccessToken)
	assert.Equal(t, models.ProfileStore, resp.User.Profile)
}

func TestLoginRejected(t *testing.T) {
	f := newAuthFixture()
	f.users.On("GetUserByEmail", mock.Anything, "nobody@saladas.test").Return(nil, store.ErrNotFound)
	f.users.On("GetUserByEmail", mock.Anything, "loja@saladas.test").Return(&models.User{ID: 7, PasswordHash: "hash", Profile: models.ProfileStore}, nil)
	f.users.On("GetUserByEmail", mock.Anything, "ghost@saladas.test").Return(&models.User{ID: 8, PasswordHash: "hash", Profile: "visitante"}, nil)
	f.hasher.On("Check", "wrong", "hash").Return(false)
	f.hasher.On("Check", "secret", "hash").Return(true)

	_, err := f.svc.Login(context.Background(), "nobody@saladas.test", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "loja@saladas.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "ghost@saladas.test", "secret")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	f.tokens.AssertNotCalled(t, "Generate", mock.Anything)
}

func claimsFor(userID, tokenID string) *auth.Claims {
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		ID:        tokenID,
		ExpiresAt: jwt.NewNumericDate(fixedNow().Add(time.Hour)),
	}}
}

func TestAuthenticateLooksUpProfile(t *testing.T) {
	f := newAuthFixture()
	f.tokens.On("Validate", "tok").Return(claimsFor("7", "jti-1"), nil)
	f.users.On("GetUserByID", mock.Anything, int64(7)).Return(&models.User{ID: 7, Profile: models.ProfileProduction}, nil)

	sess, err := f.svc.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, models.ProfileProduction, sess.Profile())
	assert.Equal(t, "jti-1", sess.TokenID)
	assert.Equal(t, fixedNow().Add(time.Hour), sess.ExpiresAt)
}

func TestAuthenticateAfterLogout(t *testing.T) {
	f := newAuthFixture()
	f.tokens.On("Validate", "tok").Return(claimsFor("7", "jti-1"), nil)
	f.users.On("GetUserByID", mock.Anything, int64(7)).Return(&models.User{ID: 7, Profile: models.ProfileAdmin}, nil)

	sess, err := f.svc.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(context.Background(), sess))

	_, err = f.svc.Authenticate(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	f := newAuthFixture()
	f.tokens.On("Validate", "tok").Return(claimsFor("7", "jti-1"), nil)
	f.users.On("GetUserByID", mock.Anything, int64(7)).Return(nil, store.ErrNotFound)

	_, err := f.svc.Authenticate(context.Background(), "tok")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAuthenticateInvalidToken(t *testing.T) {
	f := newAuthFixture()
	f.tokens.On("Validate", "bad").Return(nil, auth.ErrInvalidToken)

	_, err := f.svc.Authenticate(context.Background(), "bad")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
