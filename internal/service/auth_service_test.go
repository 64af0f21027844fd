package service

import (
	"context"
	"testing"
	"time"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/repository/memory"
	"collabnotes-server/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const authSecret = "auth-service-test-secret"

func newAuthService() *AuthService {
	return NewAuthService(memory.NewUserRepository(), authSecret, 15*time.Minute, 24*time.Hour, fixedClock())
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, &domain.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
	}))

	resp, err := svc.Login(ctx, &domain.LoginRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Empty(t, resp.User.Password)
	assert.Equal(t, int64(900), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, resp.User.ID, claims.UserID)

	_, err = svc.ValidateToken(resp.RefreshToken)
	require.Error(t, err, "refresh tokens are not access tokens")
}

func TestAuthService_RegisterDuplicates(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	req := &domain.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "correct-horse"}
	require.NoError(t, svc.Register(ctx, req))

	err := svc.Register(ctx, &domain.RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "correct-horse"})
	require.ErrorIs(t, err, ErrConflict)

	err = svc.Register(ctx, &domain.RegisterRequest{Username: "alice", Email: "other@example.com", Password: "correct-horse"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, &domain.RegisterRequest{Username: "alice", Email: "a@example.com", Password: "correct-horse"}))

	_, err := svc.Login(ctx, &domain.LoginRequest{Username: "alice", Password: "wrong-horse"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &domain.LoginRequest{Username: "nobody", Password: "correct-horse"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_RefreshToken(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, &domain.RegisterRequest{Username: "alice", Email: "a@example.com", Password: "correct-horse"}))

	login, err := svc.Login(ctx, &domain.LoginRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)

	tok, err := svc.RefreshToken(ctx, &domain.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)

	claims, err := jwt.ValidateTokenOfType(tok.AccessToken, authSecret, jwt.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	_, err = svc.RefreshToken(ctx, &domain.RefreshTokenRequest{RefreshToken: login.AccessToken})
	require.ErrorIs(t, err, ErrInvalidCredentials, "an access token cannot be used to refresh")
}
