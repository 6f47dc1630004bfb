package domain

import "time"

// Agent is a helpdesk operator allowed to use the console endpoints
// (claim, note, transfer, close).
type Agent struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}
