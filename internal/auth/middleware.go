package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
	"github.com/spec-kit/qr-attribution-service/internal/repository"
	apperrors "github.com/spec-kit/qr-attribution-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated agent.
type Principal struct {
	Agent *domain.Agent
}

// Middleware validates bearer tokens and loads the agent principal.
type Middleware struct {
	tokens *TokenManager
	agents repository.AgentRepository
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, agents repository.AgentRepository) *Middleware {
	return &Middleware{tokens: tokens, agents: agents}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	agent, err := m.agents.GetByID(c.Context(), claims.AgentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("agent not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{Agent: agent})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated agent.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
