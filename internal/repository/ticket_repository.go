package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error
	ListByRequester(ctx context.Context, identity string, limit, offset int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_id, provider, status, requester_identity, requester_name,
                             requester_email, product_tag, crm_id, channel, failure_reason)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalID,
		ticket.Provider,
		ticket.Status,
		ticket.RequesterIdentity,
		ticket.RequesterName,
		ticket.RequesterEmail,
		ticket.ProductTag,
		ticket.CRMID,
		ticket.Channel,
		ticket.FailureReason,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, external_id, provider, status, requester_identity, requester_name,
               requester_email, product_tag, crm_id, channel, failure_reason, created_at, updated_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.ExternalID,
		&ticket.Provider,
		&ticket.Status,
		&ticket.RequesterIdentity,
		&ticket.RequesterName,
		&ticket.RequesterEmail,
		&ticket.ProductTag,
		&ticket.CRMID,
		&ticket.Channel,
		&ticket.FailureReason,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) error {
	const query = `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListByRequester(ctx context.Context, identity string, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, external_id, provider, status, requester_identity, requester_name,
               requester_email, product_tag, crm_id, channel, failure_reason, created_at, updated_at
        FROM tickets WHERE requester_identity=$1
        ORDER BY updated_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, identity, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ExternalID,
			&ticket.Provider,
			&ticket.Status,
			&ticket.RequesterIdentity,
			&ticket.RequesterName,
			&ticket.RequesterEmail,
			&ticket.ProductTag,
			&ticket.CRMID,
			&ticket.Channel,
			&ticket.FailureReason,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
