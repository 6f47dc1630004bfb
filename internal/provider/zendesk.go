package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spec-kit/qr-attribution-service/internal/config"
	"github.com/spec-kit/qr-attribution-service/internal/domain"
)

// Zendesk talks to the Zendesk v2 ticket API with basic auth
// ("email/token" + API token).
type Zendesk struct {
	baseURL  string
	email    string
	apiToken string
	http     *http.Client
}

// NewZendesk builds a Zendesk client from configuration. BaseURL is
// derived from the subdomain unless overridden (tests point it at a
// local server).
func NewZendesk(cfg config.ProviderConfig) *Zendesk {
	baseURL := cfg.ZendeskBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.zendesk.com", cfg.ZendeskSubdomain)
	}
	return &Zendesk{
		baseURL:  baseURL,
		email:    cfg.ZendeskEmail,
		apiToken: cfg.ZendeskAPIToken,
		http:     &http.Client{Timeout: cfg.Timeout()},
	}
}

// Name implements Client.
func (z *Zendesk) Name() domain.TicketProvider {
	return domain.ProviderZendesk
}

// CreateTicket implements Client.
func (z *Zendesk) CreateTicket(ctx context.Context, payload TicketPayload) (string, error) {
	body := map[string]any{
		"ticket": map[string]any{
			"subject": payload.Subject,
			"comment": map[string]any{"body": payload.Body},
			"requester": map[string]any{
				"name":  payload.RequesterName,
				"phone": payload.RequesterPhone,
			},
			"tags":        payload.Tags,
			"external_id": payload.CRMID,
		},
	}
	var resp struct {
		Ticket struct {
			ID int64 `json:"id"`
		} `json:"ticket"`
	}
	if err := z.do(ctx, http.MethodPost, "/api/v2/tickets.json", body, &resp); err != nil {
		return "", err
	}
	return strconv.FormatInt(resp.Ticket.ID, 10), nil
}

// GetComments implements Client.
func (z *Zendesk) GetComments(ctx context.Context, externalID string) ([]Comment, error) {
	var resp struct {
		Comments []struct {
			AuthorID  int64     `json:"author_id"`
			Body      string    `json:"body"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"comments"`
	}
	path := fmt.Sprintf("/api/v2/tickets/%s/comments.json", externalID)
	if err := z.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	comments := make([]Comment, 0, len(resp.Comments))
	for _, c := range resp.Comments {
		comments = append(comments, Comment{
			Author:    domain.AgentSender(strconv.FormatInt(c.AuthorID, 10)),
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
		})
	}
	return comments, nil
}

// AddPrivateNote implements Client.
func (z *Zendesk) AddPrivateNote(ctx context.Context, externalID, note string) error {
	body := map[string]any{
		"ticket": map[string]any{
			"comment": map[string]any{"body": note, "public": false},
		},
	}
	path := fmt.Sprintf("/api/v2/tickets/%s.json", externalID)
	return z.do(ctx, http.MethodPut, path, body, nil)
}

// UpdateStatus implements Client. Claimed and escalated tickets stay
// "open" on the Zendesk side; only closure is mirrored as a terminal
// state.
func (z *Zendesk) UpdateStatus(ctx context.Context, externalID string, status domain.TicketStatus) error {
	external := "open"
	if status == domain.TicketStatusClosed {
		external = "closed"
	}
	body := map[string]any{
		"ticket": map[string]any{"status": external},
	}
	path := fmt.Sprintf("/api/v2/tickets/%s.json", externalID)
	return z.do(ctx, http.MethodPut, path, body, nil)
}

func (z *Zendesk) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, z.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(z.email+"/token", z.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := z.http.Do(req)
	if err != nil {
		return wrapTransportErr("zendesk", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyStatus("zendesk", resp.StatusCode, readBody(resp))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
