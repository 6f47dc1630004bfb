package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/qr-attribution-service/internal/dedup"
	"github.com/spec-kit/qr-attribution-service/internal/domain"
	"github.com/spec-kit/qr-attribution-service/internal/service"
)

// WebhookHandler receives inbound WhatsApp messages from the channel
// provider, attributes them to QR scans, and opens tickets when the
// message carries support intent.
type WebhookHandler struct {
	attribution *service.AttributionService
	tickets     *service.TicketService
	dedupStore  dedup.Store
	authToken   string
	logger      *zap.Logger
}

// NewWebhookHandler constructs handler. An empty authToken disables
// signature validation.
func NewWebhookHandler(attribution *service.AttributionService, tickets *service.TicketService, dedupStore dedup.Store, authToken string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		attribution: attribution,
		tickets:     tickets,
		dedupStore:  dedupStore,
		authToken:   authToken,
		logger:      logger,
	}
}

var supportKeywords = []string{"help", "support", "issue", "problem", "broken", "refund", "complaint"}

func hasSupportIntent(body string) bool {
	lower := strings.ToLower(body)
	for _, kw := range supportKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// WhatsApp handles POST /webhook/whatsapp.
func (h *WebhookHandler) WhatsApp(c *fiber.Ctx) error {
	if h.authToken != "" && !h.validSignature(c) {
		return fiber.NewError(http.StatusForbidden, "invalid signature")
	}

	messageSid := c.FormValue("MessageSid")
	from := c.FormValue("From")
	profileName := c.FormValue("ProfileName")

	if messageSid == "" || from == "" {
		return fiber.NewError(http.StatusBadRequest, "MessageSid and From required")
	}

	fields := service.ParsePrefill(c.FormValue("Body"))
	msg := domain.InboundMessage{
		ProviderMessageID: messageSid,
		SenderIdentity:    strings.TrimPrefix(from, "whatsapp:"),
		Body:              c.FormValue("Body"),
		SessionToken:      fields["session"],
		ReceivedAt:        time.Now(),
	}

	if h.dedupStore != nil {
		seen, err := h.dedupStore.Seen(c.UserContext(), msg.ProviderMessageID)
		if err != nil {
			h.logger.Warn("dedup check failed, processing anyway",
				zap.String("message_sid", msg.ProviderMessageID), zap.Error(err))
		} else if seen {
			return c.JSON(fiber.Map{"status": "duplicate"})
		}
	}

	if msg.SessionToken != "" {
		if _, err := h.attribution.Match(c.UserContext(), msg.SessionToken, msg.SenderIdentity); err != nil {
			h.logger.Warn("attribution failed",
				zap.String("message_sid", msg.ProviderMessageID), zap.Error(err))
		}
	}

	if strings.TrimSpace(msg.Body) == "" || !hasSupportIntent(msg.Body) {
		return c.JSON(fiber.Map{"status": "received"})
	}

	result, err := h.tickets.Create(c.UserContext(), service.Requester{
		Identity:    msg.SenderIdentity,
		DisplayName: profileName,
	}, msg.Body, service.TicketMetadata{
		ProductTag: fields["product_id"],
		Channel:    "whatsapp",
		SessionID:  msg.SessionToken,
	})
	if err != nil {
		return err
	}

	resp := fiber.Map{
		"status":    "ticket_created",
		"ticket_id": result.TicketID,
		"provider":  result.Provider,
	}
	if result.Err != nil {
		resp["fallback"] = true
	}
	return c.JSON(resp)
}

// validSignature checks the X-Twilio-Signature header: base64 of
// HMAC-SHA1 over the full request URL followed by the POST params
// concatenated as name+value in lexicographic name order.
func (h *WebhookHandler) validSignature(c *fiber.Ctx) bool {
	provided := c.Get("X-Twilio-Signature")
	if provided == "" {
		return false
	}

	args := c.Request().PostArgs()
	keys := make([]string, 0, args.Len())
	values := make(map[string]string, args.Len())
	args.VisitAll(func(key, value []byte) {
		keys = append(keys, string(key))
		values[string(key)] = string(value)
	})
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(c.BaseURL())
	sb.WriteString(c.OriginalURL())
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteString(values[key])
	}

	mac := hmac.New(sha1.New, []byte(h.authToken))
	mac.Write([]byte(sb.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(provided))
}
