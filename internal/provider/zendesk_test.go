package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spec-kit/qr-attribution-service/internal/config"
	"github.com/spec-kit/qr-attribution-service/internal/domain"
	apperrors "github.com/spec-kit/qr-attribution-service/pkg/util"
)

func zendeskClient(serverURL string) *Zendesk {
	return NewZendesk(config.ProviderConfig{
		ZendeskBaseURL:  serverURL,
		ZendeskEmail:    "agent@example.com",
		ZendeskAPIToken: "token",
		TimeoutSeconds:  5,
	})
}

func TestZendeskCreateTicket(t *testing.T) {
	t.Parallel()
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		user, pass, ok := r.BasicAuth()
		if !ok || user != "agent@example.com/token" || pass != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, ok := body["ticket"]; !ok {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"ticket": map[string]any{"id": 12345}})
	}))
	defer server.Close()

	externalID, err := zendeskClient(server.URL).CreateTicket(context.Background(), TicketPayload{
		Subject:        "Support request from +1555 - tshirt",
		Body:           "help me",
		RequesterName:  "+1555",
		RequesterPhone: "+1555",
		Tags:           []string{"tshirt", "whatsapp"},
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if externalID != "12345" {
		t.Fatalf("expected external id 12345, got %q", externalID)
	}
	if gotPath != "/api/v2/tickets.json" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestZendeskErrorClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{name: "server error is transient", status: http.StatusInternalServerError, wantTransient: true},
		{name: "rate limit is transient", status: http.StatusTooManyRequests, wantTransient: true},
		{name: "unprocessable is terminal", status: http.StatusUnprocessableEntity, wantTransient: false},
		{name: "unauthorized is terminal", status: http.StatusUnauthorized, wantTransient: false},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
			}))
			defer server.Close()

			_, err := zendeskClient(server.URL).CreateTicket(context.Background(), TicketPayload{Body: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := apperrors.IsTransient(err); got != test.wantTransient {
				t.Fatalf("IsTransient = %v, want %v (err: %v)", got, test.wantTransient, err)
			}
		})
	}
}

func TestZendeskTransportFailureIsTransient(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	_, err := zendeskClient(server.URL).CreateTicket(context.Background(), TicketPayload{Body: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.IsTransient(err) {
		t.Fatalf("network failure must be transient, got %v", err)
	}
}

func TestZendeskStatusMapping(t *testing.T) {
	t.Parallel()
	var gotStatus string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Ticket struct {
				Status string `json:"status"`
			} `json:"ticket"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotStatus = body.Ticket.Status
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := zendeskClient(server.URL)
	if err := client.UpdateStatus(context.Background(), "9", domain.TicketStatusEscalated); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if gotStatus != "open" {
		t.Fatalf("escalated must map to open externally, got %q", gotStatus)
	}
	if err := client.UpdateStatus(context.Background(), "9", domain.TicketStatusClosed); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if gotStatus != "closed" {
		t.Fatalf("closed must map to closed externally, got %q", gotStatus)
	}
}
