package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps presence records in the presence table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const upsertPresenceSQL = `
INSERT INTO presence (username, status, expires_at, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (username) DO UPDATE
SET status = EXCLUDED.status, expires_at = EXCLUDED.expires_at, updated_at = now()`

func (s *PostgresStore) Set(ctx context.Context, rec Record) error {
	if _, err := s.pool.Exec(ctx, upsertPresenceSQL, rec.Identity, string(rec.Status), rec.ExpiresAt); err != nil {
		return fmt.Errorf("upsert presence for %s: %w", rec.Identity, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, identity string) (Record, bool, error) {
	rec := Record{Identity: identity}
	var status string

	err := s.pool.QueryRow(ctx,
		`SELECT status, expires_at FROM presence WHERE username = $1`, identity,
	).Scan(&status, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get presence for %s: %w", identity, err)
	}

	rec.Status = Status(status)
	return rec, true, nil
}

func (s *PostgresStore) GetMany(ctx context.Context, identities []string) (map[string]Record, error) {
	out := make(map[string]Record, len(identities))
	if len(identities) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT username, status, expires_at FROM presence WHERE username = ANY($1)`, identities)
	if err != nil {
		return nil, fmt.Errorf("get presence batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec    Record
			status string
		)
		if err := rows.Scan(&rec.Identity, &status, &rec.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan presence row: %w", err)
		}
		rec.Status = Status(status)
		out[rec.Identity] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presence rows: %w", err)
	}

	return out, nil
}
