package user

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairchat/internal/app/db"
)

// PostgresStore implements Store and FriendStore on the users and friend_requests tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, username, passwordHash string) (User, error) {
	u := User{Username: username, PasswordHash: passwordHash}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING created_at`,
		username, passwordHash,
	).Scan(&u.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("create user %s: %w", username, err)
	}

	return u, nil
}

func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (User, error) {
	u := User{Username: username}

	err := s.pool.QueryRow(ctx,
		`SELECT password_hash, created_at FROM users WHERE username = $1`, username,
	).Scan(&u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("get user %s: %w", username, err)
	}

	return u, nil
}

func (s *PostgresStore) ListUsernames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return names, nil
}

func (s *PostgresStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var ok bool

	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM friend_requests
			WHERE status = 'accepted'
			AND ((sender = $1 AND receiver = $2) OR (sender = $2 AND receiver = $1))
		)`,
		a, b,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check friendship %s/%s: %w", a, b, err)
	}

	return ok, nil
}

func (s *PostgresStore) SendRequest(ctx context.Context, sender, receiver string) error {
	if sender == receiver {
		return ErrSelfRequest
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO friend_requests (sender, receiver)
		SELECT $1, $2
		WHERE NOT EXISTS (SELECT 1 FROM friend_requests WHERE sender = $2 AND receiver = $1)`,
		sender, receiver,
	)
	switch {
	case db.IsUniqueViolation(err):
		return ErrRequestExists
	case db.IsForeignKeyViolation(err):
		return ErrUserNotFound
	case err != nil:
		return fmt.Errorf("send friend request %s->%s: %w", sender, receiver, err)
	case tag.RowsAffected() == 0:
		return ErrRequestExists
	}

	return nil
}

func (s *PostgresStore) AcceptRequest(ctx context.Context, sender, receiver string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE friend_requests SET status = 'accepted'
		WHERE sender = $1 AND receiver = $2 AND status = 'pending'`,
		sender, receiver,
	)
	if err != nil {
		return fmt.Errorf("accept friend request %s->%s: %w", sender, receiver, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *PostgresStore) ListFriends(ctx context.Context, username string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT CASE WHEN sender = $1 THEN receiver ELSE sender END AS friend
		FROM friend_requests
		WHERE status = 'accepted' AND (sender = $1 OR receiver = $1)
		ORDER BY friend`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("list friends of %s: %w", username, err)
	}

	friends, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan friends: %w", err)
	}
	return friends, nil
}

func (s *PostgresStore) PendingRequests(ctx context.Context, receiver string) ([]FriendRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sender, receiver, status, created_at FROM friend_requests
		WHERE receiver = $1 AND status = 'pending'
		ORDER BY created_at`,
		receiver,
	)
	if err != nil {
		return nil, fmt.Errorf("list friend requests of %s: %w", receiver, err)
	}

	reqs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (FriendRequest, error) {
		var r FriendRequest
		err := row.Scan(&r.Sender, &r.Receiver, &r.Status, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan friend requests: %w", err)
	}
	return reqs, nil
}
