package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"saladas-service/internal/auth"
	"saladas-service/internal/models"
	"saladas-service/internal/store"
	"saladas-service/internal/util"

	"go.uber.org/zap"
)

// TokenIssuer signs and verifies access tokens
type TokenIssuer interface {
	Generate(userID int64) (*auth.Token, error)
	Validate(token string) (*auth.Claims, error)
}

// PasswordChecker compares a password with its stored hash
type PasswordChecker interface {
	Check(password, hash string) bool
}

// Session is an authenticated user whose profile was read from the database
type Session struct {
	User      models.User
	TokenID   string
	ExpiresAt time.Time
}

// Profile returns the session's access profile
func (s *Session) Profile() models.Profile {
	return s.User.Profile
}

// HasProfile reports whether the session's profile is one of allowed
func (s *Session) HasProfile(allowed ...models.Profile) bool {
	for _, p := range allowed {
		if s.User.Profile == p {
			return true
		}
	}
	return false
}

// ScopeStore resolves which store an operation acts on. Store users are
// pinned to their own store; other profiles must name one.
func (s *Session) ScopeStore(requested int64) (int64, error) {
	if s.User.Profile == models.ProfileStore {
		if !s.User.StoreID.Valid {
			return 0, ErrNoStore
		}
		if requested != 0 && requested != s.User.StoreID.Int64 {
			return 0, ErrForbiddenStore
		}
		return s.User.StoreID.Int64, nil
	}
	if requested <= 0 {
		return 0, invalid("store_id", "store is required")
	}
	return requested, nil
}

// AuthService handles sign in, sign out and session lookup
type AuthService struct {
	users   UserRepository
	tokens  TokenIssuer
	hasher  PasswordChecker
	revoked TokenRevoker
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(users UserRepository, tokens TokenIssuer, hasher PasswordChecker, revoked TokenRevoker) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		revoked: revoked,
		logger:  util.GetLogger(),
		now:     time.Now,
	}
}

// LoginResponse is returned after a successful sign in
type LoginResponse struct {
	Token *auth.Token  `json:"token"`
	User  *models.User `json:"user"`
}

// Login checks credentials and issues a token
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !s.hasher.Check(password, user.PasswordHash) {
		s.logger.Info("Rejected sign in", zap.Int64("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}
	if !user.Profile.Valid() {
		return nil, ErrProfileNotFound
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("User signed in",
		zap.Int64("user_id", user.ID),
		zap.String("profile", string(user.Profile)))
	return &LoginResponse{Token: token, User: user}, nil
}

// Logout revokes the session's token until it expires
func (s *AuthService) Logout(ctx context.Context, sess *Session) error {
	ctx, span := util.StartSpan(ctx, "AuthService.Logout")
	defer span.End()

	ttl := sess.ExpiresAt.Sub(s.now())
	if err := s.revoked.RevokeToken(ctx, sess.TokenID, ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.logger.Info("User signed out", zap.Int64("user_id", sess.User.ID))
	return nil
}

// Authenticate turns a bearer token into a Session. The profile comes from
// the users table on every call, never from the token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Authenticate")
	defer span.End()

	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoked.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.Profile.Valid() {
		return nil, ErrProfileNotFound
	}

	sess := &Session{User: *user, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}
