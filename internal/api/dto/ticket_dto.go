package dto

import (
	"time"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
)

// CreateTicketRequest payload for opening a ticket directly.
type CreateTicketRequest struct {
	RequesterIdentity string `json:"requester_identity"`
	RequesterName     string `json:"requester_name"`
	RequesterEmail    string `json:"requester_email"`
	CRMID             string `json:"crm_id"`
	Message           string `json:"message"`
	ProductTag        string `json:"product_tag"`
	Channel           string `json:"channel"`
	Subject           string `json:"subject"`
}

// CreateTicketResponse reports routing outcome.
type CreateTicketResponse struct {
	TicketID   string                `json:"ticket_id"`
	ExternalID *string               `json:"external_id,omitempty"`
	Provider   domain.TicketProvider `json:"provider"`
	Fallback   bool                  `json:"fallback"`
	Error      string                `json:"error,omitempty"`
}

// TicketResponse describes a ticket record.
type TicketResponse struct {
	ID                string                `json:"id"`
	ExternalID        *string               `json:"external_id,omitempty"`
	Provider          domain.TicketProvider `json:"provider"`
	Status            domain.TicketStatus   `json:"status"`
	RequesterIdentity string                `json:"requester_identity"`
	RequesterName     string                `json:"requester_name"`
	ProductTag        *string               `json:"product_tag,omitempty"`
	Channel           string                `json:"channel"`
	FailureReason     *string               `json:"failure_reason,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// TicketFromDomain maps a ticket record to its response shape.
func TicketFromDomain(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                t.ID,
		ExternalID:        t.ExternalID,
		Provider:          t.Provider,
		Status:            t.Status,
		RequesterIdentity: t.RequesterIdentity,
		RequesterName:     t.RequesterName,
		ProductTag:        t.ProductTag,
		Channel:           t.Channel,
		FailureReason:     t.FailureReason,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// TicketMessageResponse represents one thread entry.
type TicketMessageResponse struct {
	ID        int64          `json:"id,omitempty"`
	Sender    string         `json:"sender"`
	Body      string         `json:"body"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ClaimTicketRequest payload.
type ClaimTicketRequest struct {
	AgentName string `json:"agent_name"`
}

// AddNoteRequest payload.
type AddNoteRequest struct {
	Note string `json:"note"`
}

// TransferTicketRequest payload.
type TransferTicketRequest struct {
	TargetTeam string `json:"target_team"`
	Reason     string `json:"reason"`
}
