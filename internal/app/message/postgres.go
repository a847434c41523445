package message

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairchat/internal/app/db"
)

// PostgresStore keeps messages in the messages table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, sender, receiver, content string) (Message, error) {
	msg := Message{Sender: sender, Receiver: receiver, Content: content}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (sender, receiver, content) VALUES ($1, $2, $3) RETURNING id, created_at`,
		sender, receiver, content,
	).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Message{}, fmt.Errorf("save message to %s: %w", receiver, ErrInvalidReceiver)
		}
		return Message{}, fmt.Errorf("save message: %w", err)
	}

	return msg, nil
}

// pairFilter matches both directions of a conversation in the form idx_messages_pair indexes.
const pairFilter = `LEAST(sender, receiver) = LEAST($1::text, $2::text)
	AND GREATEST(sender, receiver) = GREATEST($1::text, $2::text)`

func (s *PostgresStore) ListBetween(ctx context.Context, a, b string, page, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM messages WHERE `+pairFilter, a, b).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count messages: %w", err)
	}

	page, totalPages := resolvePage(page, pageSize, total)

	rows, err := s.pool.Query(ctx,
		`SELECT id, sender, receiver, content, is_read, created_at FROM messages
		WHERE `+pairFilter+`
		ORDER BY created_at, id
		LIMIT $3 OFFSET $4`,
		a, b, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return Page{}, fmt.Errorf("list messages: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var m Message
		err := row.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Content, &m.IsRead, &m.Timestamp)
		return m, err
	})
	if err != nil {
		return Page{}, fmt.Errorf("scan messages: %w", err)
	}

	return Page{Messages: msgs, Page: page, TotalPages: totalPages}, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, sender, receiver string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE messages SET is_read = TRUE WHERE sender = $1 AND receiver = $2 AND NOT is_read`,
		sender, receiver,
	)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) UnreadCounts(ctx context.Context, receiver string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sender, count(*) FROM messages WHERE receiver = $1 AND NOT is_read GROUP BY sender`,
		receiver,
	)
	if err != nil {
		return nil, fmt.Errorf("count unread messages: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			sender string
			n      int
		)
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		counts[sender] = n
	}

	return counts, rows.Err()
}
