package message

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps messages in a slice.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []Message
	nextID   int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, sender, receiver, content string) (Message, error) {
	if receiver == "" {
		return Message{}, ErrInvalidReceiver
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	msg := Message{
		ID:        s.nextID,
		Sender:    sender,
		Receiver:  receiver,
		Content:   content,
		Timestamp: s.now().UTC(),
	}
	s.messages = append(s.messages, msg)

	return msg, nil
}

func (s *MemoryStore) ListBetween(_ context.Context, a, b string, page, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var conv []Message
	for _, m := range s.messages {
		if (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a) {
			conv = append(conv, m)
		}
	}

	page, totalPages := resolvePage(page, pageSize, len(conv))

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(conv))

	out := make([]Message, 0, end-start)
	out = append(out, conv[start:end]...)

	return Page{Messages: out, Page: page, TotalPages: totalPages}, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, sender, receiver string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.Sender == sender && m.Receiver == receiver && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UnreadCounts(_ context.Context, receiver string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, m := range s.messages {
		if m.Receiver == receiver && !m.IsRead {
			counts[m.Sender]++
		}
	}
	return counts, nil
}
