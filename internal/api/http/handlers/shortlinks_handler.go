package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/qr-attribution-service/internal/api/dto"
	"github.com/spec-kit/qr-attribution-service/internal/domain"
	"github.com/spec-kit/qr-attribution-service/internal/service"
)

// ShortLinksHandler exposes QR short link issuance and lookup.
type ShortLinksHandler struct {
	links *service.ShortLinkService
}

// NewShortLinksHandler constructs handler.
func NewShortLinksHandler(links *service.ShortLinkService) *ShortLinksHandler {
	return &ShortLinksHandler{links: links}
}

// Create handles POST /api/v1/shortlinks.
func (h *ShortLinksHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateShortLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	link, err := h.links.Issue(c.UserContext(), service.IssueInput{
		TargetPhone: req.TargetPhone,
		Category:    req.Category,
		ProductID:   req.ProductID,
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.toResponse(link)})
}

// Get handles GET /api/v1/shortlinks/:code.
func (h *ShortLinksHandler) Get(c *fiber.Ctx) error {
	link, err := h.links.Resolve(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.toResponse(link)})
}

func (h *ShortLinksHandler) toResponse(link *domain.ShortLink) dto.ShortLinkResponse {
	return dto.ShortLinkResponse{
		ID:           link.ID,
		ShortCode:    link.ShortCode,
		ShortURL:     h.links.ShortURL(link),
		WhatsAppURL:  service.WhatsAppURL(link),
		TargetPhone:  link.TargetPhone,
		PrefillText:  link.PrefillText,
		SessionToken: link.SessionToken,
		Metadata:     link.Metadata,
		CreatedAt:    link.CreatedAt,
	}
}
