package user

import (
	"context"
	"slices"
	"sync"
	"time"
)

type pair struct{ sender, receiver string }

// MemoryStore implements Store and FriendStore in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]User
	requests map[pair]FriendRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]User),
		requests: make(map[pair]FriendRequest),
	}
}

func (s *MemoryStore) Create(_ context.Context, username, passwordHash string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return User{}, ErrUserExists
	}

	u := User{Username: username, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	s.users[username] = u
	return u, nil
}

func (s *MemoryStore) GetByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryStore) ListUsernames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *MemoryStore) AreFriends(_ context.Context, a, b string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.acceptedLocked(a, b), nil
}

func (s *MemoryStore) acceptedLocked(a, b string) bool {
	if r, ok := s.requests[pair{a, b}]; ok && r.Status == RequestAccepted {
		return true
	}
	r, ok := s.requests[pair{b, a}]
	return ok && r.Status == RequestAccepted
}

func (s *MemoryStore) SendRequest(_ context.Context, sender, receiver string) error {
	if sender == receiver {
		return ErrSelfRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[receiver]; !ok {
		return ErrUserNotFound
	}

	_, forward := s.requests[pair{sender, receiver}]
	_, reverse := s.requests[pair{receiver, sender}]
	if forward || reverse {
		return ErrRequestExists
	}

	s.requests[pair{sender, receiver}] = FriendRequest{
		Sender:    sender,
		Receiver:  receiver,
		Status:    RequestPending,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) AcceptRequest(_ context.Context, sender, receiver string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pair{sender, receiver}
	r, ok := s.requests[key]
	if !ok || r.Status != RequestPending {
		return ErrRequestNotFound
	}

	r.Status = RequestAccepted
	s.requests[key] = r
	return nil
}

func (s *MemoryStore) ListFriends(_ context.Context, username string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var friends []string
	for key, r := range s.requests {
		if r.Status != RequestAccepted {
			continue
		}
		switch username {
		case key.sender:
			friends = append(friends, key.receiver)
		case key.receiver:
			friends = append(friends, key.sender)
		}
	}
	slices.Sort(friends)
	return friends, nil
}

func (s *MemoryStore) PendingRequests(_ context.Context, receiver string) ([]FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []FriendRequest
	for _, r := range s.requests {
		if r.Receiver == receiver && r.Status == RequestPending {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b FriendRequest) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}
