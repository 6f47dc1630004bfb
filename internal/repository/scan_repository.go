package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
)

// ScanRepository manages scan rows. Scans are insert-only; the matched
// flag is the single mutable bit and flips false to true exactly once.
type ScanRepository interface {
	Create(ctx context.Context, scan *domain.Scan) error
	LatestUnmatched(ctx context.Context, shortLinkID string) (*domain.Scan, error)
	// MarkMatched flips matched on the given scan only if it is still
	// unmatched, reporting whether this caller won the flip.
	MarkMatched(ctx context.Context, scanID int64, identity string, at time.Time) (bool, error)
}

type scanRepository struct {
	pool *pgxpool.Pool
}

// NewScanRepository instantiates repository.
func NewScanRepository(pool *pgxpool.Pool) ScanRepository {
	return &scanRepository{pool: pool}
}

func (r *scanRepository) Create(ctx context.Context, scan *domain.Scan) error {
	const query = `
        INSERT INTO scans (short_link_id, client_ip, user_agent, utm_source, utm_medium)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, matched, created_at`
	return r.pool.QueryRow(ctx, query,
		scan.ShortLinkID,
		scan.ClientIP,
		scan.UserAgent,
		scan.UTMSource,
		scan.UTMMedium,
	).Scan(&scan.ID, &scan.Matched, &scan.CreatedAt)
}

func (r *scanRepository) LatestUnmatched(ctx context.Context, shortLinkID string) (*domain.Scan, error) {
	const query = `
        SELECT id, short_link_id, client_ip, user_agent, utm_source, utm_medium,
               matched, matched_at, matched_identity, created_at
        FROM scans
        WHERE short_link_id=$1 AND matched=FALSE
        ORDER BY created_at DESC, id DESC
        LIMIT 1`
	var scan domain.Scan
	if err := r.pool.QueryRow(ctx, query, shortLinkID).Scan(
		&scan.ID,
		&scan.ShortLinkID,
		&scan.ClientIP,
		&scan.UserAgent,
		&scan.UTMSource,
		&scan.UTMMedium,
		&scan.Matched,
		&scan.MatchedAt,
		&scan.MatchedIdentity,
		&scan.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &scan, nil
}

func (r *scanRepository) MarkMatched(ctx context.Context, scanID int64, identity string, at time.Time) (bool, error) {
	const query = `
        UPDATE scans SET matched=TRUE, matched_at=$2, matched_identity=$3
        WHERE id=$1 AND matched=FALSE`
	cmd, err := r.pool.Exec(ctx, query, scanID, at, identity)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}
