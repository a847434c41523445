package chat

import (
	"slices"
	"sync"
)

// LobbyGroup is the group every active session joins to follow presence changes.
const LobbyGroup = "user_status"

const privateGroupPrefix = "chat:"

// PrivateGroupName returns the group shared by a and b. The name does not depend on argument order.
func PrivateGroupName(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return privateGroupPrefix + a + ":" + b
}

// GroupRegistry is the set of groups a session has joined.
type GroupRegistry struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func NewGroupRegistry() *GroupRegistry {
	return &GroupRegistry{names: make(map[string]struct{})}
}

// Add records name and reports whether it was not present before.
func (r *GroupRegistry) Add(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.names[name]; ok {
		return false
	}
	r.names[name] = struct{}{}
	return true
}

// Remove forgets name and reports whether it was present.
func (r *GroupRegistry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.names[name]; !ok {
		return false
	}
	delete(r.names, name)
	return true
}

// Names returns the joined groups in sorted order.
func (r *GroupRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (r *GroupRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.names)
}
