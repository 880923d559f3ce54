package state

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"medusa-storefront/internal/domain"
)

// pool is the subset of *pgxpool.Pool the repository needs.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type postgresRepo struct {
	pool pool
	ttl  time.Duration
	now  func() time.Time
}

func NewPostgres(p pool, ttl time.Duration) Repository {
	return &postgresRepo{pool: p, ttl: ttl, now: time.Now}
}

func (r *postgresRepo) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	const q = `
SELECT value
FROM storefront_state
WHERE session_id = $1 AND key = $2 AND expires_at > $3
LIMIT 1
`
	var value []byte
	if err := r.pool.QueryRow(ctx, q, sessionID, key, r.now()).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (r *postgresRepo) Set(ctx context.Context, sessionID, key string, value []byte) error {
	const q = `
INSERT INTO storefront_state (session_id, key, value, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (session_id, key)
DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()
`
	_, err := r.pool.Exec(ctx, q, sessionID, key, value, r.now().Add(r.ttl))
	return err
}

func (r *postgresRepo) SetIfAbsent(ctx context.Context, sessionID, key string, value []byte) (bool, error) {
	// An expired row is overwritten as if it were absent.
	const q = `
INSERT INTO storefront_state (session_id, key, value, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (session_id, key)
DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()
WHERE storefront_state.expires_at <= $5
`
	now := r.now()
	cmd, err := r.pool.Exec(ctx, q, sessionID, key, value, now.Add(r.ttl), now)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *postgresRepo) Delete(ctx context.Context, sessionID, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM storefront_state WHERE session_id = $1 AND key = $2`, sessionID, key)
	return err
}

func (r *postgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
