package core

import (
	"context"
	"time"

	"go.uber.org/zap"
	"lawly.io/sow-wizard/internal/auth"
	"lawly.io/sow-wizard/internal/store"
)

type AccountStore interface {
	GetOrCreateUser(ctx context.Context, externalUserID, email string) (*store.User, error)
	EnsureProfile(ctx context.Context, userID string) error
	CreateAuthSession(ctx context.Context, userID string, ttl time.Duration) (*store.AuthSession, error)
	GetAuthSession(ctx context.Context, id string) (*store.AuthSession, error)
	RevokeAuthSession(ctx context.Context, id string) error
}

// SignIn is the outcome of a successful sign-in.
type SignIn struct {
	User      *store.User
	Token     string
	ExpiresAt time.Time
}

// AuthService issues and checks session tokens backed by server-side auth sessions.
type AuthService struct {
	accounts AccountStore
	tokens   *auth.Tokens
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewAuthService(accounts AccountStore, tokens *auth.Tokens, ttl time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   tokens,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// SignIn records the external identity, makes sure the user has a profile and
// opens a new auth session.
func (s *AuthService) SignIn(ctx context.Context, externalUserID, email string) (*SignIn, error) {
	user, err := s.accounts.GetOrCreateUser(ctx, externalUserID, email)
	if err != nil {
		return nil, storeError("get or create user", err)
	}
	if err := s.accounts.EnsureProfile(ctx, user.ID); err != nil {
		return nil, storeError("ensure profile", err)
	}
	as, err := s.accounts.CreateAuthSession(ctx, user.ID, s.ttl)
	if err != nil {
		return nil, storeError("create auth session", err)
	}
	token, err := s.tokens.GenerateJWT(user.ID, as.ID, as.CreatedAt, as.ExpiresAt)
	if err != nil {
		return nil, err
	}
	s.logger.Info("User signed in", zap.String("user_id", user.ID), zap.String("external_user_id", externalUserID))
	return &SignIn{User: user, Token: token, ExpiresAt: as.ExpiresAt}, nil
}

// Authenticate resolves a token to its user id. Bad, expired or revoked tokens
// yield ErrUnauthorized; store failures yield a StoreError.
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.ValidateJWT(token)
	if err != nil {
		return "", ErrUnauthorized
	}
	as, err := s.accounts.GetAuthSession(ctx, claims.ID)
	if err != nil {
		return "", storeError("get auth session", err)
	}
	if as == nil || as.UserID != claims.Subject || !as.Active(s.now()) {
		return "", ErrUnauthorized
	}
	return as.UserID, nil
}

// SignOut revokes the auth session behind token. A token that does not validate
// has nothing to revoke and is not an error.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.tokens.ValidateJWT(token)
	if err != nil {
		return nil
	}
	if err := s.accounts.RevokeAuthSession(ctx, claims.ID); err != nil {
		return storeError("revoke auth session", err)
	}
	s.logger.Info("User signed out", zap.String("user_id", claims.Subject))
	return nil
}
