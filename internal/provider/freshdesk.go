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

// Freshdesk status codes per its v2 API.
const (
	freshdeskStatusOpen   = 2
	freshdeskStatusClosed = 5
)

// Freshdesk talks to the Freshdesk v2 ticket API with basic auth
// (API key + literal "X" password).
type Freshdesk struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewFreshdesk builds a Freshdesk client from configuration.
func NewFreshdesk(cfg config.ProviderConfig) *Freshdesk {
	baseURL := cfg.FreshdeskBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s", cfg.FreshdeskDomain)
	}
	return &Freshdesk{
		baseURL: baseURL,
		apiKey:  cfg.FreshdeskAPIKey,
		http:    &http.Client{Timeout: cfg.Timeout()},
	}
}

// Name implements Client.
func (f *Freshdesk) Name() domain.TicketProvider {
	return domain.ProviderFreshdesk
}

// CreateTicket implements Client.
func (f *Freshdesk) CreateTicket(ctx context.Context, payload TicketPayload) (string, error) {
	body := map[string]any{
		"subject":     payload.Subject,
		"description": payload.Body,
		"phone":       payload.RequesterPhone,
		"name":        payload.RequesterName,
		"priority":    2,
		"status":      freshdeskStatusOpen,
		"tags":        payload.Tags,
	}
	if payload.RequesterEmail != "" {
		body["email"] = payload.RequesterEmail
	}
	if payload.CRMID != "" {
		body["custom_fields"] = map[string]any{"cf_crm_id": payload.CRMID}
	}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := f.do(ctx, http.MethodPost, "/api/v2/tickets", body, &resp); err != nil {
		return "", err
	}
	return strconv.FormatInt(resp.ID, 10), nil
}

// GetComments implements Client.
func (f *Freshdesk) GetComments(ctx context.Context, externalID string) ([]Comment, error) {
	var resp []struct {
		UserID    int64     `json:"user_id"`
		BodyText  string    `json:"body_text"`
		CreatedAt time.Time `json:"created_at"`
	}
	path := fmt.Sprintf("/api/v2/tickets/%s/conversations", externalID)
	if err := f.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	comments := make([]Comment, 0, len(resp))
	for _, c := range resp {
		comments = append(comments, Comment{
			Author:    domain.AgentSender(strconv.FormatInt(c.UserID, 10)),
			Body:      c.BodyText,
			CreatedAt: c.CreatedAt,
		})
	}
	return comments, nil
}

// AddPrivateNote implements Client.
func (f *Freshdesk) AddPrivateNote(ctx context.Context, externalID, note string) error {
	body := map[string]any{"body": note, "private": true}
	path := fmt.Sprintf("/api/v2/tickets/%s/notes", externalID)
	return f.do(ctx, http.MethodPost, path, body, nil)
}

// UpdateStatus implements Client.
func (f *Freshdesk) UpdateStatus(ctx context.Context, externalID string, status domain.TicketStatus) error {
	external := freshdeskStatusOpen
	if status == domain.TicketStatusClosed {
		external = freshdeskStatusClosed
	}
	body := map[string]any{"status": external}
	path := fmt.Sprintf("/api/v2/tickets/%s", externalID)
	return f.do(ctx, http.MethodPut, path, body, nil)
}

func (f *Freshdesk) do(ctx context.Context, method, path string, body any, out any) error {
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

	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(f.apiKey, "X")
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return wrapTransportErr("freshdesk", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyStatus("freshdesk", resp.StatusCode, readBody(resp))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
