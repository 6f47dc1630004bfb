package events

import (
	"time"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventScanRecorded        EventType = "scan_recorded"
	EventScanMatched         EventType = "scan_matched"
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketMessageAdded  EventType = "ticket_message_added"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// ScanRecordedPayload payload.
type ScanRecordedPayload struct {
	ShortCode string `json:"short_code"`
	ScanID    int64  `json:"scan_id"`
	UTMSource string `json:"utm_source,omitempty"`
	UTMMedium string `json:"utm_medium,omitempty"`
}

// ScanMatchedPayload payload.
type ScanMatchedPayload struct {
	ShortCode string `json:"short_code"`
	ScanID    int64  `json:"scan_id"`
	Identity  string `json:"identity"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID   string                `json:"ticket_id"`
	Provider   domain.TicketProvider `json:"provider"`
	ExternalID *string               `json:"external_id,omitempty"`
	Requester  string                `json:"requester"`
	Channel    string                `json:"channel"`
	Fallback   bool                  `json:"fallback"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketID  string              `json:"ticket_id"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	TicketID    string `json:"ticket_id"`
	MessageID   int64  `json:"message_id"`
	Sender      string `json:"sender"`
	BodyPreview string `json:"body_preview"`
}
