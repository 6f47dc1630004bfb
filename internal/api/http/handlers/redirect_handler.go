package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/qr-attribution-service/internal/service"
)

// RedirectHandler records a scan and forwards the visitor to WhatsApp.
type RedirectHandler struct {
	scans *service.ScanService
}

// NewRedirectHandler constructs handler.
func NewRedirectHandler(scans *service.ScanService) *RedirectHandler {
	return &RedirectHandler{scans: scans}
}

// Redirect handles GET /r/:code.
func (h *RedirectHandler) Redirect(c *fiber.Ctx) error {
	_, link, err := h.scans.Record(c.UserContext(), c.Params("code"), service.ScanInput{
		ClientIP:  c.IP(),
		UserAgent: c.Get("User-Agent"),
		UTMSource: c.Query("utm_source"),
		UTMMedium: c.Query("utm_medium"),
	})
	if err != nil {
		return err
	}
	return c.Redirect(service.WhatsAppURL(link), http.StatusFound)
}
