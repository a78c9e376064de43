package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"rentcrm/internal/config"
	"rentcrm/internal/domain"
	"rentcrm/internal/models"
	"rentcrm/internal/security"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Agent     *models.Agent `json:"agent"`
}

// AuthService handles agent accounts and session tokens. It implements
// domain.IdentityVerifier.
type AuthService struct {
	agents   domain.AgentRepository
	sessions domain.SessionStore
	tokens   security.TokenManager
	cfg      config.AuthConfig
	logger   *zerolog.Logger
	now      func() time.Time
}

var _ domain.IdentityVerifier = (*AuthService)(nil)

func NewAuthService(agents domain.AgentRepository, sessions domain.SessionStore, tokens security.TokenManager, cfg config.AuthConfig, logger *zerolog.Logger) *AuthService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AuthService{
		agents:   agents,
		sessions: sessions,
		tokens:   tokens,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.Agent, error) {
	if !s.cfg.AllowSignup {
		return nil, domain.ErrUnauthorized
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validationf("name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, domain.Validationf("invalid email")
	}

	hash, err := security.HashPassword(password, s.cfg.BcryptCost)
	if errors.Is(err, security.ErrWeakPassword) {
		return nil, domain.Validationf("%s", err.Error())
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	agent := &models.Agent{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        strings.ToLower(addr.Address),
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.agents.CreateAgent(ctx, agent); err != nil {
		return nil, err
	}

	s.logger.Info().Str("agent_id", agent.ID).Msg("Agent registered")
	return agent, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	allowed, err := s.sessions.CheckRateLimit(ctx, "login:"+email, s.cfg.LoginAttempts, time.Duration(s.cfg.LoginWindow)*time.Second)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Login throttling unavailable")
	} else if !allowed {
		return nil, domain.ErrTooManyAttempts
	}

	agent, err := s.agents.GetAgentByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !agent.IsActive {
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := security.CheckPassword(agent.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	token, claims, err := s.tokens.GenerateAccessToken(agent.ID, agent.Name, agent.Email)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, Agent: agent}, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, identity domain.Identity) error {
	if identity.TokenID == "" {
		return domain.ErrUnauthorized
	}
	return s.sessions.RevokeToken(ctx, identity.TokenID, identity.ExpiresAt.Sub(s.now()))
}

func (s *AuthService) VerifyIdentity(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized
	}

	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Revocation check failed")
		return domain.Identity{}, domain.ErrUnauthorized
	}
	if revoked {
		return domain.Identity{}, domain.ErrUnauthorized
	}

	identity := domain.Identity{
		AgentID:   claims.AgentID(),
		AgentName: claims.AgentName,
		TokenID:   claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

func (s *AuthService) Me(ctx context.Context, identity domain.Identity) (*models.Agent, error) {
	if identity.AgentID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.agents.GetAgentByID(ctx, identity.AgentID)
}
