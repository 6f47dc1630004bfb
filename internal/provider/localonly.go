package provider

import (
	"context"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
	apperrors "github.com/spec-kit/qr-attribution-service/pkg/util"
)

// LocalOnly is the sentinel strategy for deployments without an
// external helpdesk. Tickets live only in the local store.
type LocalOnly struct{}

// NewLocalOnly builds the local-only strategy.
func NewLocalOnly() *LocalOnly {
	return &LocalOnly{}
}

// Name implements Client.
func (l *LocalOnly) Name() domain.TicketProvider {
	return domain.ProviderLocal
}

// CreateTicket implements Client.
func (l *LocalOnly) CreateTicket(ctx context.Context, payload TicketPayload) (string, error) {
	return "", apperrors.NewProviderUnconfigured("local")
}

// GetComments implements Client.
func (l *LocalOnly) GetComments(ctx context.Context, externalID string) ([]Comment, error) {
	return nil, apperrors.NewProviderUnconfigured("local")
}

// AddPrivateNote implements Client.
func (l *LocalOnly) AddPrivateNote(ctx context.Context, externalID, note string) error {
	return apperrors.NewProviderUnconfigured("local")
}

// UpdateStatus implements Client.
func (l *LocalOnly) UpdateStatus(ctx context.Context, externalID string, status domain.TicketStatus) error {
	return apperrors.NewProviderUnconfigured("local")
}

