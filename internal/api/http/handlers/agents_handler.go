package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/qr-attribution-service/internal/api/dto"
	"github.com/spec-kit/qr-attribution-service/internal/service"
)

// AgentsHandler exposes console auth endpoints.
type AgentsHandler struct {
	agents *service.AgentService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(agents *service.AgentService) *AgentsHandler {
	return &AgentsHandler{agents: agents}
}

// Register handles POST /api/v1/agents/register.
func (h *AgentsHandler) Register(c *fiber.Ctx) error {
	var req dto.AgentRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		return fiber.NewError(http.StatusBadRequest, "email, display_name and password required")
	}

	agent, err := h.agents.Register(c.UserContext(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"agent": fiber.Map{
				"id":           agent.ID,
				"email":        agent.Email,
				"display_name": agent.DisplayName,
			},
		},
	})
}

// Login handles POST /api/v1/agents/login.
func (h *AgentsHandler) Login(c *fiber.Ctx) error {
	var req dto.AgentLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	agent, token, exp, err := h.agents.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"agent": fiber.Map{
				"id":           agent.ID,
				"email":        agent.Email,
				"display_name": agent.DisplayName,
			},
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}
