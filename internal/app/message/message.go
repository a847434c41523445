/*
Package message stores the private messages exchanged between two users.
*/
package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxContentBytes is the largest message body accepted, in bytes.
const MaxContentBytes = 5000

// DefaultPageSize is the number of messages per history page.
const DefaultPageSize = 10

var (
	ErrEmptyContent    = errors.New("message: empty content")
	ErrContentTooLong  = errors.New("message: content too long")
	ErrInvalidReceiver = errors.New("message: invalid receiver")
)

// Message is one persisted chat message.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	Timestamp time.Time `json:"timestamp"`
}

// Page is one slice of a conversation, ordered oldest first.
type Page struct {
	Messages   []Message `json:"messages"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
}

// Store persists messages.
type Store interface {
	// Save stores a message and returns it with its assigned ID and timestamp.
	Save(ctx context.Context, sender, receiver, content string) (Message, error)

	// ListBetween returns one page of the conversation between a and b.
	// page counts from 1; a page of 0 or beyond the end selects the last page.
	ListBetween(ctx context.Context, a, b string, page, pageSize int) (Page, error)

	// MarkRead marks every unread message from sender to receiver as read.
	MarkRead(ctx context.Context, sender, receiver string) (int64, error)

	// UnreadCounts returns the number of unread messages to receiver, keyed by sender.
	UnreadCounts(ctx context.Context, receiver string) (map[string]int, error)
}

// ValidateContent trims content and checks it against the size limits.
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyContent
	}
	if len(trimmed) > MaxContentBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrContentTooLong, len(trimmed))
	}
	return trimmed, nil
}

// resolvePage clamps page into [1, totalPages] for total items, with 0 meaning the last page.
func resolvePage(page, pageSize, total int) (resolved, totalPages int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	totalPages = (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	if page <= 0 || page > totalPages {
		return totalPages, totalPages
	}
	return page, totalPages
}
