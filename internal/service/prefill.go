package service

import (
	"net/url"
	"strings"
)

// PrefillFields are the values embedded in the outbound prefilled
// message. Building is deterministic: fixed key order, percent-encoded
// values, so the same input always yields the same prefill text.
type PrefillFields struct {
	Category  string
	ProductID string
	UTMSource string
	UTMMedium string
	Session   string
}

// BuildPrefill renders the prefill text that goes into the wa.me link,
// e.g. "qr:category=tshirt|product_id=TSHIRT-123|utm_source=qr|session=abc123".
func BuildPrefill(fields PrefillFields) string {
	if fields.UTMSource == "" {
		fields.UTMSource = "qr"
	}
	parts := make([]string, 0, 5)
	appendPart := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+url.QueryEscape(value))
		}
	}
	appendPart("category", fields.Category)
	appendPart("product_id", fields.ProductID)
	appendPart("utm_source", fields.UTMSource)
	appendPart("utm_medium", fields.UTMMedium)
	appendPart("session", fields.Session)
	return "qr:" + strings.Join(parts, "|")
}

// ParsePrefill extracts key/value pairs from the prefill text a user
// sends back. Returns an empty map for anything that is not prefill.
func ParsePrefill(text string) map[string]string {
	out := map[string]string{}
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "qr:") {
		return out
	}
	for _, part := range strings.Split(trimmed[3:], "|") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		out[key] = value
	}
	return out
}
