package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-triage/internal/auth"
	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/repository/memory"
)

func newAuthService(t *testing.T) (*AuthService, *auth.TokenManager, *memory.Store) {
	t.Helper()
	s := memory.NewStore()
	tokens := auth.NewTokenManager("test-secret", 30)
	svc := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, s.Users(), tokens)
	return svc, tokens, s
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	svc, tokens, _ := newAuthService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, registered.Token)

	login, err := svc.Login(ctx, " alice ", "s3cret")
	require.NoError(t, err)
	claims, err := tokens.ParseToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, login.ExpiresAt.After(login.User.CreatedAt))
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _, s := newAuthService(t)
	ctx := context.Background()
	registered, err := svc.Register(ctx, "alice", "", "s3cret")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.Equal(t, http.StatusUnauthorized, httpStatus(err))

	_, err = svc.Login(ctx, "bob", "s3cret")
	assert.Equal(t, http.StatusUnauthorized, httpStatus(err))

	_, err = svc.Login(ctx, "", "")
	assert.Equal(t, http.StatusBadRequest, httpStatus(err))

	disabled := *registered.User
	disabled.Active = false
	s.UpdateUser(disabled)
	_, err = svc.Login(ctx, "alice", "s3cret")
	assert.Equal(t, http.StatusForbidden, httpStatus(err))
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	svc, _, _ := newAuthService(t)
	_, err := svc.Register(context.Background(), "alice", "", "pw")
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), "alice", "", "pw")
	assert.Equal(t, http.StatusConflict, httpStatus(err))
}
