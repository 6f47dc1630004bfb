package dedup

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore backs the replay window with the dedup_keys table. The
// conditional upsert reclaims expired rows in the same statement, so a
// single round trip decides the winner.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewPostgresStore builds a table-backed store.
func NewPostgresStore(pool *pgxpool.Pool, ttl time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, ttl: ttl}
}

// Seen implements Store.
func (s *PostgresStore) Seen(ctx context.Context, eventID string) (bool, error) {
	const query = `
        INSERT INTO dedup_keys (event_id, expires_at)
        VALUES ($1, NOW() + make_interval(secs => $2))
        ON CONFLICT (event_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
        WHERE dedup_keys.expires_at <= NOW()`
	cmd, err := s.pool.Exec(ctx, query, eventID, s.ttl.Seconds())
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 0, nil
}
