package domain

import "time"

// ShortLink maps an opaque short code to a messaging deep-link target.
// The session token embedded in the prefill text correlates a later
// inbound reply with the scan that produced it. Immutable except
// Metadata; never deleted so short codes are never reused.
type ShortLink struct {
	ID           string
	ShortCode    string
	TargetPhone  string
	PrefillText  string
	SessionToken string
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Scan records a single redirect hit against a short link. Rows are
// insert-only; Matched flips false to true exactly once.
type Scan struct {
	ID              int64
	ShortLinkID     string
	ClientIP        string
	UserAgent       string
	UTMSource       string
	UTMMedium       string
	Matched         bool
	MatchedAt       *time.Time
	MatchedIdentity *string
	CreatedAt       time.Time
}
