package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rentcrm/internal/config"
	"rentcrm/internal/domain"
	"rentcrm/internal/repository"
	"rentcrm/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(t *testing.T, cfg config.AuthConfig) *AuthService {
	t.Helper()
	if cfg.LoginAttempts == 0 {
		cfg.LoginAttempts = 3
	}
	if cfg.LoginWindow == 0 {
		cfg.LoginWindow = 60
	}
	cfg.BcryptCost = bcrypt.MinCost
	tokens := security.NewTokenManager("0123456789abcdef0123456789abcdef", "rentcrm", time.Hour)
	return NewAuthService(setupDB(t), repository.NewMemorySessionStore(), tokens, cfg, nil)
}

func TestAuthService_RegisterLoginVerifyLogout(t *testing.T) {
	s := newAuthService(t, config.AuthConfig{AllowSignup: true})
	ctx := context.Background()

	agent, err := s.Register(ctx, "Sam", "Sam@Example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", agent.Email)
	assert.NotEqual(t, "correct horse", agent.PasswordHash)

	_, err = s.Register(ctx, "Sam 2", "sam@example.com", "correct horse")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	res, err := s.Login(ctx, "SAM@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, agent.ID, res.Agent.ID)

	identity, err := s.VerifyIdentity(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, identity.AgentID)
	assert.Equal(t, "Sam", identity.AgentName)
	assert.NotEmpty(t, identity.TokenID)

	me, err := s.Me(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "Sam", me.Name)

	require.NoError(t, s.Logout(ctx, identity))
	_, err = s.VerifyIdentity(ctx, res.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	ctx := context.Background()

	closed := newAuthService(t, config.AuthConfig{})
	_, err := closed.Register(ctx, "Sam", "sam@example.com", "correct horse")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	s := newAuthService(t, config.AuthConfig{AllowSignup: true})
	_, err = s.Register(ctx, "", "sam@example.com", "correct horse")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.Register(ctx, "Sam", "not-an-email", "correct horse")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.Register(ctx, "Sam", "sam@example.com", "short")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuthService_LoginFailures(t *testing.T) {
	s := newAuthService(t, config.AuthConfig{AllowSignup: true, LoginAttempts: 3})
	ctx := context.Background()

	_, err := s.Register(ctx, "Sam", "sam@example.com", "correct horse")
	require.NoError(t, err)

	_, err = s.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = s.Login(ctx, "sam@example.com", "wrong password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = s.Login(ctx, "sam@example.com", "wrong password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = s.Login(ctx, "sam@example.com", "wrong password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = s.Login(ctx, "sam@example.com", "correct horse")
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthService_VerifyRejectsGarbage(t *testing.T) {
	s := newAuthService(t, config.AuthConfig{})
	_, err := s.VerifyIdentity(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.ErrorIs(t, s.Logout(context.Background(), domain.Identity{}), domain.ErrUnauthorized)
	_, err = s.Me(context.Background(), domain.Identity{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	return m.Called(ctx, tokenID, ttl).Error(0)
}

func (m *mockSessionStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestAuthService_SessionStoreFailures(t *testing.T) {
	store := new(mockSessionStore)
	tokens := security.NewTokenManager("0123456789abcdef0123456789abcdef", "rentcrm", time.Hour)
	cfg := config.AuthConfig{AllowSignup: true, LoginAttempts: 5, LoginWindow: 60, BcryptCost: bcrypt.MinCost}
	s := NewAuthService(setupDB(t), store, tokens, cfg, nil)
	ctx := context.Background()

	_, err := s.Register(ctx, "Sam", "sam@example.com", "correct horse")
	require.NoError(t, err)

	store.On("CheckRateLimit", mock.Anything, "login:sam@example.com", 5, time.Minute).Return(false, errors.New("redis down"))
	res, err := s.Login(ctx, "sam@example.com", "correct horse")
	require.NoError(t, err)

	store.On("IsRevoked", mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	_, err = s.VerifyIdentity(ctx, res.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	store.AssertExpectations(t)
}
