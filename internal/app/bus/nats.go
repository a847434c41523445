package bus

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"pairchat/internal/pkg/logx"
)

// DefaultSubjectPrefix namespaces group subjects on a shared NATS server.
const DefaultSubjectPrefix = "pairchat.group"

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// ConnectNATS dials url, retrying while the server comes up.
// The connection reconnects forever once established.
func ConnectNATS(ctx context.Context, url, name string) (*nats.Conn, error) {
	var lastErr error

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		nc, err := nats.Connect(url,
			nats.Name(name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(connectBackoff),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logx.Warn("NATS disconnected", "error", fmt.Sprint(err))
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logx.Info("NATS reconnected", "url", c.ConnectedUrl())
			}),
		)
		if err == nil {
			return nc, nil
		}

		lastErr = err
		logx.Info("Waiting for NATS", "attempt", attempt, "error", err.Error())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}

	return nil, fmt.Errorf("connect to NATS at %s: %w", url, lastErr)
}

type subscriptionKey struct {
	group      string
	subscriber string
}

// NATSBus maps every group onto one NATS subject, so sessions connected to different
// server instances share groups. The NATS connection is owned by the caller.
type NATSBus struct {
	nc     *nats.Conn
	prefix string

	// subs holds one NATS subscription per (group, subscriber).
	subs map[subscriptionKey]*nats.Subscription

	// mu protects subs and closed.
	mu sync.Mutex

	closed bool

	logger zerolog.Logger
}

// NewNATSBus returns a Bus publishing on subjects below prefix.
func NewNATSBus(nc *nats.Conn, prefix string) *NATSBus {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return &NATSBus{
		nc:     nc,
		prefix: prefix,
		subs:   make(map[subscriptionKey]*nats.Subscription),
		logger: logx.Component("NATSBus"),
	}
}

// SubjectFor returns the NATS subject carrying group. Group names are encoded so that
// characters NATS treats as token separators or wildcards cannot leak into the subject.
func SubjectFor(prefix, group string) string {
	return prefix + "." + base64.RawURLEncoding.EncodeToString([]byte(group))
}

// Subscribe creates a NATS subscription that decodes events and delivers them to sub.
func (b *NATSBus) Subscribe(_ context.Context, group string, sub Subscriber) error {
	if group == "" {
		return ErrEmptyGroup
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	key := subscriptionKey{group: group, subscriber: sub.ID()}
	if _, exists := b.subs[key]; exists {
		return nil
	}

	logger := b.logger.With().Str("group", group).Str("subscriber_id", sub.ID()).Logger()

	ns, err := b.nc.Subscribe(SubjectFor(b.prefix, group), func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Warn().Err(err).Msg("Dropping undecodable bus event.")
			return
		}
		sub.Deliver(ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe to group %s: %w", group, err)
	}

	b.subs[key] = ns

	return nil
}

// Unsubscribe removes the subscription for (group, sub).
func (b *NATSBus) Unsubscribe(_ context.Context, group string, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	key := subscriptionKey{group: group, subscriber: sub.ID()}
	ns, ok := b.subs[key]
	if !ok {
		return nil
	}

	delete(b.subs, key)

	if err := ns.Unsubscribe(); err != nil {
		return fmt.Errorf("unsubscribe from group %s: %w", group, err)
	}

	return nil
}

// Publish encodes ev and publishes it on the group's subject.
func (b *NATSBus) Publish(ctx context.Context, group string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()

	if closed {
		return ErrClosed
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}

	if err := b.nc.Publish(SubjectFor(b.prefix, group), data); err != nil {
		return fmt.Errorf("publish to group %s: %w", group, err)
	}

	return nil
}

// Close removes every subscription created through this bus.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for key, ns := range b.subs {
		if err := ns.Unsubscribe(); err != nil {
			b.logger.Warn().Err(err).Str("group", key.group).Msg("Failed to unsubscribe during close.")
		}
	}
	b.subs = nil

	return nil
}
