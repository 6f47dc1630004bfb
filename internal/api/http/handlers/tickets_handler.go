package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/qr-attribution-service/internal/api/dto"
	"github.com/spec-kit/qr-attribution-service/internal/auth"
	"github.com/spec-kit/qr-attribution-service/internal/service"
)

// TicketsHandler exposes console ticket operations for agents.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

func agent(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Agent == nil {
		return nil, fiber.NewError(http.StatusUnauthorized, "agent required")
	}
	return principal, nil
}

// Create handles POST /api/v1/tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	result, err := h.tickets.Create(c.UserContext(), service.Requester{
		Identity:    req.RequesterIdentity,
		DisplayName: req.RequesterName,
		Email:       req.RequesterEmail,
		CRMID:       req.CRMID,
	}, req.Message, service.TicketMetadata{
		ProductTag: req.ProductTag,
		Channel:    req.Channel,
		Subject:    req.Subject,
	})
	if err != nil {
		return err
	}

	resp := dto.CreateTicketResponse{
		TicketID:   result.TicketID,
		ExternalID: result.ExternalID,
		Provider:   result.Provider,
		Fallback:   result.Err != nil,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// List handles GET /api/v1/tickets?requester_identity=...
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	identity := c.Query("requester_identity")
	if identity == "" {
		return fiber.NewError(http.StatusBadRequest, "requester_identity required")
	}

	tickets, err := h.tickets.ListByRequester(c.UserContext(), identity, c.QueryInt("limit", 20), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}

	out := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, dto.TicketFromDomain(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Get handles GET /api/v1/tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.tickets.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// Messages handles GET /api/v1/tickets/:id/messages.
func (h *TicketsHandler) Messages(c *fiber.Ctx) error {
	messages, err := h.tickets.FetchMessages(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	out := make([]dto.TicketMessageResponse, 0, len(messages))
	for _, msg := range messages {
		out = append(out, dto.TicketMessageResponse{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Body:      msg.Body,
			Metadata:  msg.Metadata,
			CreatedAt: msg.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": out})
}

// Claim handles POST /api/v1/tickets/:id/claim.
func (h *TicketsHandler) Claim(c *fiber.Ctx) error {
	principal, err := agent(c)
	if err != nil {
		return err
	}

	var req dto.ClaimTicketRequest
	_ = c.BodyParser(&req)

	name := req.AgentName
	if name == "" {
		name = principal.Agent.DisplayName
	}
	if err := h.tickets.Claim(c.UserContext(), c.Params("id"), principal.Agent.ID, name); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "claimed"}})
}

// AddNote handles POST /api/v1/tickets/:id/notes.
func (h *TicketsHandler) AddNote(c *fiber.Ctx) error {
	principal, err := agent(c)
	if err != nil {
		return err
	}

	var req dto.AddNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := h.tickets.AddNote(c.UserContext(), c.Params("id"), principal.Agent.ID, req.Note); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"status": "noted"}})
}

// Transfer handles POST /api/v1/tickets/:id/transfer.
func (h *TicketsHandler) Transfer(c *fiber.Ctx) error {
	principal, err := agent(c)
	if err != nil {
		return err
	}

	var req dto.TransferTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := h.tickets.Transfer(c.UserContext(), c.Params("id"), principal.Agent.ID, req.TargetTeam, req.Reason); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "escalated"}})
}

// Close handles POST /api/v1/tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	if _, err := agent(c); err != nil {
		return err
	}
	if err := h.tickets.Close(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "closed"}})
}
