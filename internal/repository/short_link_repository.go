package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/qr-attribution-service/internal/domain"
)

// ErrDuplicateShortCode signals a uniqueness-constraint collision on
// short_code. Callers may regenerate and retry.
var ErrDuplicateShortCode = errors.New("short code already exists")

// ShortLinkRepository encapsulates short link persistence.
type ShortLinkRepository interface {
	Create(ctx context.Context, link *domain.ShortLink) error
	GetByShortCode(ctx context.Context, shortCode string) (*domain.ShortLink, error)
	GetBySessionToken(ctx context.Context, sessionToken string) (*domain.ShortLink, error)
}

type shortLinkRepository struct {
	pool *pgxpool.Pool
}

// NewShortLinkRepository instantiates repository.
func NewShortLinkRepository(pool *pgxpool.Pool) ShortLinkRepository {
	return &shortLinkRepository{pool: pool}
}

func (r *shortLinkRepository) Create(ctx context.Context, link *domain.ShortLink) error {
	const query = `
        INSERT INTO short_links (short_code, target_phone, prefill_text, session_token, metadata)
        VALUES ($1,$2,$3,NULLIF($4,''),$5)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		link.ShortCode,
		link.TargetPhone,
		link.PrefillText,
		link.SessionToken,
		link.Metadata,
	).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		return translateShortLinkInsertErr(err)
	}
	return nil
}

// translateShortLinkInsertErr maps a short_code uniqueness violation to
// ErrDuplicateShortCode. Other unique violations (session_token) are
// not retryable with a regenerated code and pass through unchanged.
func translateShortLinkInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "short_links_short_code_key" {
		return ErrDuplicateShortCode
	}
	return err
}

func (r *shortLinkRepository) GetByShortCode(ctx context.Context, shortCode string) (*domain.ShortLink, error) {
	const query = `
        SELECT id, short_code, target_phone, prefill_text, COALESCE(session_token,''), metadata, created_at
        FROM short_links WHERE short_code=$1`
	return r.fetchSingle(ctx, query, shortCode)
}

func (r *shortLinkRepository) GetBySessionToken(ctx context.Context, sessionToken string) (*domain.ShortLink, error) {
	const query = `
        SELECT id, short_code, target_phone, prefill_text, COALESCE(session_token,''), metadata, created_at
        FROM short_links WHERE session_token=$1`
	return r.fetchSingle(ctx, query, sessionToken)
}

func (r *shortLinkRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.ShortLink, error) {
	var link domain.ShortLink
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&link.ID,
		&link.ShortCode,
		&link.TargetPhone,
		&link.PrefillText,
		&link.SessionToken,
		&link.Metadata,
		&link.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &link, nil
}
