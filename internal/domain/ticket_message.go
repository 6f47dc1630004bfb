package domain

import "time"

// Sender values for ticket messages. Agent senders carry their id as
// "agent:<id>".
const (
	SenderUser   = "user"
	SenderSystem = "system"
)

// AgentSender formats the sender label for an agent-authored message.
func AgentSender(agentID string) string {
	return "agent:" + agentID
}

// TicketMessage captures one entry in a ticket thread. Rows are
// append-only and never mutated or deleted, so the thread doubles as
// the ticket's audit trail.
type TicketMessage struct {
	ID        int64
	TicketID  string
	Sender    string
	Body      string
	Metadata  map[string]any
	CreatedAt time.Time
}
