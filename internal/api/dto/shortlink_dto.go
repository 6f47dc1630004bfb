package dto

import "time"

// CreateShortLinkRequest payload for issuing a QR short link.
type CreateShortLinkRequest struct {
	TargetPhone string         `json:"target_phone"`
	Category    string         `json:"category"`
	ProductID   string         `json:"product_id"`
	UTMSource   string         `json:"utm_source"`
	UTMMedium   string         `json:"utm_medium"`
	Metadata    map[string]any `json:"metadata"`
}

// ShortLinkResponse describes an issued link.
type ShortLinkResponse struct {
	ID           string         `json:"id"`
	ShortCode    string         `json:"short_code"`
	ShortURL     string         `json:"short_url"`
	WhatsAppURL  string         `json:"whatsapp_url"`
	TargetPhone  string         `json:"target_phone"`
	PrefillText  string         `json:"prefill_text"`
	SessionToken string         `json:"session_token"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
