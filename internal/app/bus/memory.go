package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"pairchat/internal/pkg/logx"
)

// MemoryBus is an in-process Bus: a table from group name to its subscriber set.
type MemoryBus struct {
	// groups maps a group name to its subscribers, keyed by subscriber ID.
	groups map[string]map[string]Subscriber

	// mu protects groups and closed.
	mu sync.RWMutex

	closed bool

	logger zerolog.Logger
}

// NewMemoryBus returns an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		groups: make(map[string]map[string]Subscriber),
		logger: logx.Component("MemoryBus"),
	}
}

// Subscribe adds sub to group.
func (b *MemoryBus) Subscribe(_ context.Context, group string, sub Subscriber) error {
	if group == "" {
		return ErrEmptyGroup
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	members, ok := b.groups[group]
	if !ok {
		members = make(map[string]Subscriber)
		b.groups[group] = members
	}

	if _, exists := members[sub.ID()]; exists {
		return nil
	}

	members[sub.ID()] = sub

	b.logger.Debug().
		Str("group", group).
		Str("subscriber_id", sub.ID()).
		Int("subscribers", len(members)).
		Msg("Subscriber joined group.")

	return nil
}

// Unsubscribe removes sub from group and forgets the group once it is empty.
func (b *MemoryBus) Unsubscribe(_ context.Context, group string, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	members, ok := b.groups[group]
	if !ok {
		return nil
	}

	delete(members, sub.ID())
	if len(members) == 0 {
		delete(b.groups, group)
	}

	return nil
}

// Publish hands ev to every subscriber of group before returning.
func (b *MemoryBus) Publish(_ context.Context, group string, ev Event) error {
	b.mu.RLock()

	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}

	members := b.groups[group]
	targets := make([]Subscriber, 0, len(members))
	for _, sub := range members {
		targets = append(targets, sub)
	}

	b.mu.RUnlock()

	for _, sub := range targets {
		sub.Deliver(ev)
	}

	return nil
}

// Subscribers returns the number of subscribers currently in group.
func (b *MemoryBus) Subscribers(group string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.groups[group])
}

// Groups returns the number of groups with at least one subscriber.
func (b *MemoryBus) Groups() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.groups)
}

// Close drops every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.groups = make(map[string]map[string]Subscriber)

	return nil
}
