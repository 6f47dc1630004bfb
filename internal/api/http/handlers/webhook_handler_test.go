package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/qr-attribution-service/internal/dedup"
	"github.com/spec-kit/qr-attribution-service/internal/domain"
	"github.com/spec-kit/qr-attribution-service/internal/events"
	"github.com/spec-kit/qr-attribution-service/internal/provider"
	"github.com/spec-kit/qr-attribution-service/internal/service"
)

func TestHasSupportIntent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"plain greeting", "hi there", false},
		{"help keyword", "I need HELP with my order", true},
		{"support keyword", "contacting support about billing", true},
		{"refund keyword", "where is my refund?", true},
		{"prefill only", "qr:category=shoes|session=tok1", false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := hasSupportIntent(tc.body); got != tc.want {
				t.Fatalf("hasSupportIntent(%q) = %v, want %v", tc.body, got, tc.want)
			}
		})
	}
}

type stubLinkRepo struct {
	byToken map[string]*domain.ShortLink
}

func (s *stubLinkRepo) Create(_ context.Context, link *domain.ShortLink) error {
	return nil
}

func (s *stubLinkRepo) GetByShortCode(_ context.Context, _ string) (*domain.ShortLink, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubLinkRepo) GetBySessionToken(_ context.Context, token string) (*domain.ShortLink, error) {
	link, ok := s.byToken[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return link, nil
}

type stubScanRepo struct {
	scans []*domain.Scan
}

func (s *stubScanRepo) Create(_ context.Context, scan *domain.Scan) error {
	scan.ID = int64(len(s.scans) + 1)
	s.scans = append(s.scans, scan)
	return nil
}

func (s *stubScanRepo) LatestUnmatched(_ context.Context, shortLinkID string) (*domain.Scan, error) {
	for i := len(s.scans) - 1; i >= 0; i-- {
		if s.scans[i].ShortLinkID == shortLinkID && !s.scans[i].Matched {
			return s.scans[i], nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubScanRepo) MarkMatched(_ context.Context, scanID int64, identity string, at time.Time) (bool, error) {
	for _, scan := range s.scans {
		if scan.ID == scanID && !scan.Matched {
			scan.Matched = true
			scan.MatchedAt = &at
			scan.MatchedIdentity = &identity
			return true, nil
		}
	}
	return false, nil
}

type stubTicketRepo struct {
	tickets map[string]*domain.Ticket
}

func (s *stubTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = fmt.Sprintf("ticket-%d", len(s.tickets)+1)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	s.tickets[ticket.ID] = ticket
	return nil
}

func (s *stubTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket, nil
}

func (s *stubTicketRepo) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) error {
	ticket, ok := s.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.Status = status
	return nil
}

func (s *stubTicketRepo) ListByRequester(_ context.Context, identity string, _, _ int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.RequesterIdentity == identity {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

type stubMessageRepo struct {
	messages []domain.TicketMessage
}

func (s *stubMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	msg.ID = int64(len(s.messages) + 1)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *stubMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	var out []domain.TicketMessage
	for _, msg := range s.messages {
		if msg.TicketID == ticketID {
			out = append(out, msg)
		}
	}
	return out, nil
}

// webhookFixture wires the webhook handler into a fiber app backed by
// in-memory collaborators, the way main wires the real thing.
type webhookFixture struct {
	app      *fiber.App
	links    *stubLinkRepo
	scans    *stubScanRepo
	tickets  *stubTicketRepo
	messages *stubMessageRepo
}

func newWebhookFixture(authToken string) *webhookFixture {
	f := &webhookFixture{
		links:    &stubLinkRepo{byToken: make(map[string]*domain.ShortLink)},
		scans:    &stubScanRepo{},
		tickets:  &stubTicketRepo{tickets: make(map[string]*domain.Ticket)},
		messages: &stubMessageRepo{},
	}

	logger := zap.NewNop()
	attribution := service.NewAttributionService(f.links, f.scans, events.NewInMemoryDispatcher(), logger)
	ticketSvc := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  f.tickets,
		MessageRepo: f.messages,
		Provider:    provider.NewLocalOnly(),
		Dispatcher:  events.NewInMemoryDispatcher(),
		Logger:      logger,
	})
	handler := NewWebhookHandler(attribution, ticketSvc, dedup.NewMemoryStore(5*time.Minute), authToken, logger)

	f.app = fiber.New()
	f.app.Post("/webhook/whatsapp", handler.WhatsApp)
	return f
}

func (f *webhookFixture) post(t *testing.T, form url.Values, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return resp.StatusCode, body
}

// twilioSignature reproduces the provider's signing scheme: HMAC-SHA1
// over the full URL plus the POST params as name+value in sorted name
// order, base64 encoded.
func twilioSignature(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(fullURL)
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteString(form.Get(key))
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(sb.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func inboundForm(messageSid, from, body string) url.Values {
	form := url.Values{}
	form.Set("MessageSid", messageSid)
	form.Set("From", from)
	form.Set("Body", body)
	form.Set("ProfileName", "Jordan")
	return form
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"missing header", nil},
		{"wrong signature", map[string]string{"X-Twilio-Signature": "bm90LXRoZS1yaWdodC1zaWc="}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newWebhookFixture("tok-secret")
			status, _ := f.post(t, inboundForm("SM1", "whatsapp:+15550001111", "hello"), tc.headers)
			if status != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", status)
			}
			if len(f.tickets.tickets) != 0 {
				t.Fatal("unsigned request must not be processed")
			}
		})
	}
}

func TestWebhookAcceptsValidSignature(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture("tok-secret")
	form := inboundForm("SM1", "whatsapp:+15550001111", "hello")
	sig := twilioSignature("tok-secret", "http://example.com/webhook/whatsapp", form)

	status, body := f.post(t, form, map[string]string{"X-Twilio-Signature": sig})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["status"] != "received" {
		t.Fatalf("status field = %v, want received", body["status"])
	}
}

func TestWebhookRequiresMessageSidAndFrom(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture("")
	form := url.Values{}
	form.Set("Body", "help")

	status, _ := f.post(t, form, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestWebhookDuplicateDeliveryAnsweredWithoutSecondTicket(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture("")
	form := inboundForm("SM-dup", "whatsapp:+15550001111", "help with my order")

	status, body := f.post(t, form, nil)
	if status != http.StatusOK || body["status"] != "ticket_created" {
		t.Fatalf("first delivery: status=%d body=%v", status, body)
	}
	if len(f.tickets.tickets) != 1 {
		t.Fatalf("tickets = %d, want 1", len(f.tickets.tickets))
	}

	status, body = f.post(t, form, nil)
	if status != http.StatusOK || body["status"] != "duplicate" {
		t.Fatalf("redelivery: status=%d body=%v", status, body)
	}
	if len(f.tickets.tickets) != 1 {
		t.Fatalf("redelivery opened a second ticket: %d", len(f.tickets.tickets))
	}
}

func TestWebhookAttributesScanAndOpensTicket(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture("")
	f.links.byToken["tok123"] = &domain.ShortLink{
		ID:           "link-1",
		ShortCode:    "abc1234",
		SessionToken: "tok123",
	}
	scan := &domain.Scan{ShortLinkID: "link-1"}
	if err := f.scans.Create(context.Background(), scan); err != nil {
		t.Fatalf("seed scan: %v", err)
	}

	form := inboundForm("SM2", "whatsapp:+15550002222",
		"qr:category=shirts|product_id=TSHIRT-042|session=tok123|help with my order")

	status, body := f.post(t, form, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["status"] != "ticket_created" {
		t.Fatalf("status field = %v, want ticket_created", body["status"])
	}

	if !scan.Matched {
		t.Fatal("scan should be matched after attributed inbound message")
	}
	if scan.MatchedIdentity == nil || *scan.MatchedIdentity != "+15550002222" {
		t.Fatalf("matched identity = %v, want sender without whatsapp prefix", scan.MatchedIdentity)
	}

	ticketID, _ := body["ticket_id"].(string)
	ticket, err := f.tickets.GetByID(context.Background(), ticketID)
	if err != nil {
		t.Fatalf("ticket %q not stored: %v", ticketID, err)
	}
	if ticket.RequesterIdentity != "+15550002222" {
		t.Fatalf("requester = %q", ticket.RequesterIdentity)
	}
	if ticket.ProductTag == nil || *ticket.ProductTag != "TSHIRT-042" {
		t.Fatalf("product tag = %v", ticket.ProductTag)
	}

	msgs, _ := f.messages.ListByTicket(context.Background(), ticketID)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].Metadata["session_id"] != "tok123" {
		t.Fatalf("message metadata = %v", msgs[0].Metadata)
	}
}

func TestWebhookWithoutSupportIntentOnlyAttributes(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture("")
	f.links.byToken["tok9"] = &domain.ShortLink{ID: "link-9", ShortCode: "zzz9999", SessionToken: "tok9"}
	scan := &domain.Scan{ShortLinkID: "link-9"}
	if err := f.scans.Create(context.Background(), scan); err != nil {
		t.Fatalf("seed scan: %v", err)
	}

	form := inboundForm("SM3", "whatsapp:+15550003333", "qr:category=shoes|session=tok9|hi there")

	status, body := f.post(t, form, nil)
	if status != http.StatusOK || body["status"] != "received" {
		t.Fatalf("status=%d body=%v", status, body)
	}
	if !scan.Matched {
		t.Fatal("attribution should run even without support intent")
	}
	if len(f.tickets.tickets) != 0 {
		t.Fatalf("tickets = %d, want 0", len(f.tickets.tickets))
	}
}
