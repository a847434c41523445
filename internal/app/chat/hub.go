package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pairchat/internal/app/bus"
	"pairchat/internal/app/message"
	"pairchat/internal/app/presence"
	"pairchat/internal/app/user"
	"pairchat/internal/configs"
	"pairchat/internal/pkg/logx"
)

var (
	ErrSelfChat   = errors.New("chat: cannot chat with yourself")
	ErrNotFriends = errors.New("chat: users are not friends")
	ErrHubClosed  = errors.New("chat: hub is shut down")
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Bus      bus.Bus
	Presence *presence.Service
	Messages message.Store
	Users    user.Store
	Friends  user.FriendStore
}

// Hub tracks the live sessions and gives them access to the shared collaborators.
type Hub struct {
	bus      bus.Bus
	presence *presence.Service
	messages message.Store
	users    user.Store
	friends  user.FriendStore

	requireFriendship bool
	refreshInterval   time.Duration

	// sessions maps a session ID to its Session.
	sessions map[string]*Session

	// mu protects sessions and closed.
	mu     sync.RWMutex
	closed bool

	// wg counts sessions that have not finished teardown.
	wg sync.WaitGroup

	// ctx is the parent of every session context and is cancelled on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	logger zerolog.Logger
}

// NewHub constructs a Hub.
func NewHub(cfg *configs.AppConfig, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	logger := logx.Component("Hub")

	if interval, ttl := cfg.PresenceRefreshInterval, deps.Presence.TTL(); interval > 0 && interval >= ttl {
		logger.Warn().Dur("refresh_interval", interval).Dur("presence_ttl", ttl).
			Msg("Presence refresh is not shorter than the TTL, online marks will lapse between refreshes.")
	}

	return &Hub{
		bus:               deps.Bus,
		presence:          deps.Presence,
		messages:          deps.Messages,
		users:             deps.Users,
		friends:           deps.Friends,
		requireFriendship: cfg.RequireFriendship,
		refreshInterval:   cfg.PresenceRefreshInterval,
		sessions:          make(map[string]*Session),
		ctx:               ctx,
		cancel:            cancel,
		logger:            logger,
	}
}

// Serve runs a session for an authenticated connection and returns once it is torn down.
func (h *Hub) Serve(conn *websocket.Conn, identity string) {
	s := newSession(h, conn, identity)

	if err := h.register(s); err != nil {
		s.logger.Warn().Err(err).Msg("Rejecting connection.")
		s.Close(websocket.CloseGoingAway, "server shutting down")
		return
	}

	if err := s.activate(); err != nil {
		s.logger.Error().Err(err).Msg("Session activation failed.")
		s.teardown()
		return
	}

	go s.WritePump()

	s.ReadPump()
}

// Reject closes a connection that carries no identity with a policy violation close frame.
func (h *Hub) Reject(conn *websocket.Conn, reason string) {
	h.logger.Warn().Str("remote_addr", conn.RemoteAddr().String()).Str("reason", reason).
		Msg("Unauthenticated connect attempt.")

	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to send policy violation close frame.")
	}

	if err := conn.Close(); err != nil {
		h.logger.Debug().Err(err).Msg("Connection close error after reject")
	}
}

func (h *Hub) register(s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	h.sessions[s.id] = s
	h.wg.Add(1)

	return nil
}

func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s.id]
	delete(h.sessions, s.id)
	h.mu.Unlock()

	if ok {
		h.wg.Done()
	}
}

// SessionCount returns the number of sessions not yet torn down.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessions)
}

// authorizePeer checks that self may open a private group with peer.
func (h *Hub) authorizePeer(ctx context.Context, self, peer string) error {
	if peer == self {
		return ErrSelfChat
	}

	if err := user.ValidateUsername(peer); err != nil {
		return err
	}

	if _, err := h.users.GetByUsername(ctx, peer); err != nil {
		return err
	}

	if !h.requireFriendship {
		return nil
	}

	ok, err := h.friends.AreFriends(ctx, self, peer)
	if err != nil {
		return fmt.Errorf("check friendship: %w", err)
	}
	if !ok {
		return ErrNotFriends
	}

	return nil
}

// Roster returns every registered user except self with their online flag.
// Users whose presence cannot be read are reported offline.
func (h *Hub) Roster(ctx context.Context, self string) ([]RosterEntry, error) {
	names, err := h.users.ListUsernames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	others := make([]string, 0, len(names))
	for _, name := range names {
		if name != self {
			others = append(others, name)
		}
	}

	statuses := h.presence.GetAllStatuses(ctx, others)

	roster := make([]RosterEntry, 0, len(others))
	for _, name := range others {
		roster = append(roster, RosterEntry{Username: name, IsOnline: statuses[name].IsOnline()})
	}

	return roster, nil
}

// AnnouncePresence tells the lobby that identity changed status and asks every lobby
// member to refresh its roster.
func (h *Hub) AnnouncePresence(ctx context.Context, identity string, status presence.Status) {
	logger := h.logger.With().Str("username", identity).Str("status", string(status)).Logger()

	if err := h.bus.Publish(ctx, LobbyGroup, bus.UserStatus(identity, string(status))); err != nil {
		logger.Error().Err(err).Msg("Failed to publish user status.")
	}

	if err := h.bus.Publish(ctx, LobbyGroup, bus.UserListUpdate()); err != nil {
		logger.Error().Err(err).Msg("Failed to publish roster refresh.")
	}
}

// Shutdown closes every session and waits for their teardown or for ctx to end.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info().Msg("Shutting down Hub...")

	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		h.logger.Info().Int("sessions", len(sessions)).Msg("Hub shutdown complete.")
	case <-ctx.Done():
		err = ctx.Err()
		h.logger.Warn().Int("remaining", h.SessionCount()).Msg("Hub shutdown timed out.")
	}

	h.cancel()

	return err
}
