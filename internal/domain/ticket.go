package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen      TicketStatus = "open"
	TicketStatusClaimed   TicketStatus = "claimed"
	TicketStatusEscalated TicketStatus = "escalated"
	TicketStatusClosed    TicketStatus = "closed"
)

// TicketProvider identifies which system owns the external copy of a ticket.
type TicketProvider string

const (
	ProviderZendesk   TicketProvider = "zendesk"
	ProviderFreshdesk TicketProvider = "freshdesk"
	ProviderLocal     TicketProvider = "local"
)

// Ticket is the local, authoritative support-request record. ExternalID
// holds "<provider>:<id>" when an external helpdesk copy exists; once
// set it is never cleared.
type Ticket struct {
	ID                string
	ExternalID        *string
	Provider          TicketProvider
	Status            TicketStatus
	RequesterIdentity string
	RequesterName     string
	RequesterEmail    *string
	ProductTag        *string
	CRMID             *string
	Channel           string
	FailureReason     *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ExternalRef builds the stored external reference for a provider id.
func ExternalRef(provider TicketProvider, externalID string) string {
	return fmt.Sprintf("%s:%s", provider, externalID)
}

// ExternalTicketID extracts the provider-side id from the stored
// reference, or empty when no external copy exists.
func (t *Ticket) ExternalTicketID() string {
	if t.ExternalID == nil {
		return ""
	}
	if _, id, ok := strings.Cut(*t.ExternalID, ":"); ok {
		return id
	}
	return *t.ExternalID
}
