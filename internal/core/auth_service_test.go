package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"lawly.io/sow-wizard/internal/auth"
	"lawly.io/sow-wizard/internal/store"
)

func newTestAuthService(t *testing.T) (*AuthService, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewAuthService(s, auth.NewTokens("test-secret"), time.Hour, zap.NewNop()), s
}

func TestSignInAndAuthenticate(t *testing.T) {
	svc, s := newTestAuthService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, "google:123", "ada@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	userID, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, userID)

	profile, err := s.GetProfile(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, profile, "sign-in bootstraps the profile")
	assert.False(t, profile.HasSeenWelcome)

	again, err := svc.SignIn(ctx, "google:123", "")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID, "same identity maps to the same user")
	assert.NotEqual(t, res.Token, again.Token)
}

func TestSignInKeepsWelcomeFlag(t *testing.T) {
	svc, s := newTestAuthService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, "google:123", "ada@example.com")
	require.NoError(t, err)
	_, err = s.SetWelcomeSeen(ctx, res.User.ID)
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "google:123", "ada@example.com")
	require.NoError(t, err)
	profile, err := s.GetProfile(ctx, res.User.ID)
	require.NoError(t, err)
	assert.True(t, profile.HasSeenWelcome)
}

func TestAuthenticateRejects(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, "google:123", "ada@example.com")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "not-a-token")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown auth session", func(t *testing.T) {
		now := time.Now()
		token, err := auth.NewTokens("test-secret").GenerateJWT(res.User.ID, "missing", now, now.Add(time.Hour))
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("subject mismatch", func(t *testing.T) {
		claims, err := auth.NewTokens("test-secret").ValidateJWT(res.Token)
		require.NoError(t, err)
		now := time.Now()
		token, err := auth.NewTokens("test-secret").GenerateJWT("someone-else", claims.ID, now, now.Add(time.Hour))
		require.NoError(t, err)
		_, err = svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("expired server side", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
		defer func() { svc.now = func() time.Time { return time.Now().UTC() } }()
		_, err := svc.Authenticate(ctx, res.Token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestSignOutRevokes(t *testing.T) {
	svc, _ := newTestAuthService(t)
	ctx := context.Background()

	res, err := svc.SignIn(ctx, "google:123", "ada@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, res.Token))
	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, svc.SignOut(ctx, res.Token), "signing out twice is fine")
	require.NoError(t, svc.SignOut(ctx, ""))
	require.NoError(t, svc.SignOut(ctx, "garbage"))
}

type failingAccounts struct {
	AccountStore
}

func (failingAccounts) GetAuthSession(ctx context.Context, id string) (*store.AuthSession, error) {
	return nil, errors.New("database is locked")
}

func TestAuthenticateStoreError(t *testing.T) {
	tokens := auth.NewTokens("test-secret")
	svc := NewAuthService(failingAccounts{}, tokens, time.Hour, zap.NewNop())
	now := time.Now()
	token, err := tokens.GenerateJWT("u1", "s1", now, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}
