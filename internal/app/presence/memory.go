package presence

import (
	"context"
	"sync"
)

// MemoryStore keeps presence records in a map. It suits a single instance and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Set(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Identity] = rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, identity string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[identity]
	return rec, ok, nil
}

func (s *MemoryStore) GetMany(_ context.Context, identities []string) (map[string]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Record, len(identities))
	for _, id := range identities {
		if rec, ok := s.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}
