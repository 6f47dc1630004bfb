// Package provider holds the external helpdesk client strategy. The
// active provider is chosen once at configuration time; call sites
// never race the selection.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
	apperrors "github.com/spec-kit/qr-attribution-service/pkg/util"
)

// TicketPayload carries everything a provider needs to open a ticket.
type TicketPayload struct {
	Subject        string
	Body           string
	RequesterName  string
	RequesterPhone string
	RequesterEmail string
	Tags           []string
	CRMID          string
}

// Comment is one externally stored ticket comment.
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

// Client is the strategy interface over external helpdesk systems.
type Client interface {
	Name() domain.TicketProvider
	CreateTicket(ctx context.Context, payload TicketPayload) (externalID string, err error)
	GetComments(ctx context.Context, externalID string) ([]Comment, error)
	AddPrivateNote(ctx context.Context, externalID, note string) error
	UpdateStatus(ctx context.Context, externalID string, status domain.TicketStatus) error
}

// classifyStatus turns an HTTP response code into the retry taxonomy:
// 5xx and 429 are transient, every other 4xx is terminal.
func classifyStatus(provider string, status int, body []byte) error {
	msg := fmt.Sprintf("%s returned %d: %s", provider, status, truncate(body, 200))
	if status >= 500 || status == http.StatusTooManyRequests {
		return apperrors.NewProviderTransient(msg, nil)
	}
	return apperrors.NewProviderRejected(msg, nil)
}

// wrapTransportErr marks network level failures (DNS, timeout, reset)
// as transient.
func wrapTransportErr(provider string, err error) error {
	return apperrors.NewProviderTransient(fmt.Sprintf("%s request failed", provider), err)
}

func readBody(resp *http.Response) []byte {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return body
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
