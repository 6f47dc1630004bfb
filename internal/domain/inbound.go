package domain

import "time"

// InboundMessage is the normalized shape of a webhook delivery from the
// messaging channel. It is ephemeral: nothing beyond its dedup key
// (ProviderMessageID) is persisted by this service.
type InboundMessage struct {
	ProviderMessageID string
	SenderIdentity    string
	Body              string
	SessionToken      string
	ReceivedAt        time.Time
}
