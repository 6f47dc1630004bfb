package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/qr-attribution-service/internal/auth"
	"github.com/spec-kit/qr-attribution-service/internal/config"
	"github.com/spec-kit/qr-attribution-service/internal/domain"
	"github.com/spec-kit/qr-attribution-service/internal/repository"
	apperrors "github.com/spec-kit/qr-attribution-service/pkg/util"
)

// AgentService coordinates agent registration and login for the console.
type AgentService struct {
	agents     repository.AgentRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAgentService builds the service.
func NewAgentService(cfg config.Config, agents repository.AgentRepository) *AgentService {
	return &AgentService{
		agents:     agents,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Register creates a new agent account.
func (s *AgentService) Register(ctx context.Context, email, displayName, password string) (*domain.Agent, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	if _, err := s.agents.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	agent := &domain.Agent{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// Login authenticates an agent and issues an access token.
func (s *AgentService) Login(ctx context.Context, email, password string) (*domain.Agent, string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	agent, err := s.agents.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(agent.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(agent.ID, agent.Email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return agent, token, exp, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AgentService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
