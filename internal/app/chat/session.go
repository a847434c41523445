/*
Package chat runs the WebSocket sessions of the presence and private messaging server.

A Session is one accepted connection. It joins the lobby group on activation, opens private
groups on demand and translates between client frames and bus events. The Hub owns the
collaborators shared by every session and tracks the live sessions for shutdown.
*/
package chat

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pairchat/internal/app/bus"
	"pairchat/internal/app/message"
	"pairchat/internal/app/presence"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// capacity of the per-session event queue.
	eventQueueSize = 256

	// upper bound for a store or bus call made on behalf of one frame.
	operationTimeout = 5 * time.Second

	// upper bound for the whole teardown sequence.
	teardownTimeout = 10 * time.Second
)

// Session is an accepted WebSocket connection bound to one identity.
type Session struct {
	id       string
	identity string

	hub  *Hub
	conn *websocket.Conn

	// groups holds every group this session is subscribed to.
	groups *GroupRegistry

	// privateGroupOf maps a peer to the private group opened with it.
	// Only the read goroutine touches it.
	privateGroupOf map[string]string

	// events queues bus deliveries for the write goroutine.
	events chan bus.Event

	// done is closed when teardown starts.
	done chan struct{}

	// onlineMarked is set once the identity has been marked online, active once init was sent.
	onlineMarked atomic.Bool
	active       atomic.Bool
	closeOnce    sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	logger zerolog.Logger
}

func newSession(hub *Hub, conn *websocket.Conn, identity string) *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(hub.ctx)

	return &Session{
		id:             id,
		identity:       identity,
		hub:            hub,
		conn:           conn,
		groups:         NewGroupRegistry(),
		privateGroupOf: make(map[string]string),
		events:         make(chan bus.Event, eventQueueSize),
		done:           make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
		logger: hub.logger.With().
			Str("session_id", id).
			Str("username", identity).
			Logger(),
	}
}

// ID identifies the session as a bus subscriber.
func (s *Session) ID() string { return s.id }

// Identity returns the username the session is bound to.
func (s *Session) Identity() string { return s.identity }

// Groups returns the groups the session currently belongs to.
func (s *Session) Groups() []string { return s.groups.Names() }

// Deliver queues ev for the write goroutine. A full queue drops the event.
func (s *Session) Deliver(ev bus.Event) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.events <- ev:
	default:
		s.logger.Warn().
			Str("event_type", string(ev.Type)).
			Int("queue_len", len(s.events)).
			Msg("Session event queue full, dropping event.")
	}
}

// activate joins the lobby, marks the identity online, sends init and announces the arrival.
// It must run before WritePump starts because it writes to the connection directly.
func (s *Session) activate() error {
	ctx, cancel := context.WithTimeout(s.ctx, operationTimeout)
	defer cancel()

	if err := s.join(ctx, LobbyGroup); err != nil {
		return err
	}

	s.hub.presence.MarkOnline(ctx, s.identity)
	s.onlineMarked.Store(true)

	if err := s.writeFrame(InitFrame{Type: FrameInit, Username: s.identity}); err != nil {
		return err
	}

	s.active.Store(true)
	s.hub.AnnouncePresence(ctx, s.identity, presence.StatusOnline)

	s.logger.Info().Msg("Session active.")
	return nil
}

// ReadPump reads frames until the connection fails, then tears the session down.
func (s *Session) ReadPump() {
	defer s.teardown()

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Error reading message (client close/going away)")
			}
			return
		}

		s.handleFrame(data)
	}
}

func (s *Session) handleFrame(data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		s.logger.Warn().Err(err).Int("frame_bytes", len(data)).Msg("Ignoring client frame.")
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, operationTimeout)
	defer cancel()

	switch frame.Type {
	case FrameStartChat:
		s.openPrivateGroup(ctx, frame.Receiver)

	case FrameChatMessage:
		s.sendChatMessage(ctx, frame.Receiver, frame.Message)

	case FrameTyping:
		s.sendTyping(ctx, frame.Receiver, frame.IsTyping)

	default:
		s.logger.Error().Str("frame_type", string(frame.Type)).Msg("Decoded frame has no handler.")
	}
}

// openPrivateGroup joins the private group with peer, once, and returns its name.
func (s *Session) openPrivateGroup(ctx context.Context, peer string) (string, bool) {
	if group, ok := s.privateGroupOf[peer]; ok {
		return group, true
	}

	logger := s.logger.With().Str("peer", peer).Logger()

	if err := s.hub.authorizePeer(ctx, s.identity, peer); err != nil {
		logger.Warn().Err(err).Msg("Private chat rejected.")
		return "", false
	}

	group := PrivateGroupName(s.identity, peer)
	if err := s.join(ctx, group); err != nil {
		logger.Error().Err(err).Str("group", group).Msg("Failed to join private group.")
		return "", false
	}

	s.privateGroupOf[peer] = group
	logger.Debug().Str("group", group).Msg("Private group opened.")

	return group, true
}

func (s *Session) sendChatMessage(ctx context.Context, peer, content string) {
	logger := s.logger.With().Str("peer", peer).Logger()

	group, ok := s.privateGroupOf[peer]
	if !ok {
		logger.Warn().Msg("Dropping chat message sent before start_chat.")
		return
	}

	content, err := message.ValidateContent(content)
	if err != nil {
		logger.Warn().Err(err).Msg("Dropping invalid chat message.")
		return
	}

	msg, err := s.hub.messages.Save(ctx, s.identity, peer, content)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to persist chat message, dropping it.")
		return
	}

	ev := bus.ChatMessage(msg.ID, s.identity, peer, msg.Content, msg.Timestamp)
	if err := s.hub.bus.Publish(ctx, group, ev); err != nil {
		logger.Error().Err(err).Int64("message_id", msg.ID).Msg("Failed to publish chat message.")
	}
}

func (s *Session) sendTyping(ctx context.Context, peer string, isTyping bool) {
	group, ok := s.openPrivateGroup(ctx, peer)
	if !ok {
		return
	}

	if err := s.hub.bus.Publish(ctx, group, bus.TypingIndicator(s.identity, peer, isTyping)); err != nil {
		s.logger.Error().Err(err).Str("peer", peer).Msg("Failed to publish typing indicator.")
	}
}

// join subscribes the session to group unless it already belongs to it.
func (s *Session) join(ctx context.Context, group string) error {
	if !s.groups.Add(group) {
		return nil
	}

	if err := s.hub.bus.Subscribe(ctx, group, s); err != nil {
		s.groups.Remove(group)
		return err
	}

	return nil
}

// WritePump writes queued events, heartbeats and presence refreshes until teardown.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	var refresh <-chan time.Time
	if interval := s.hub.refreshInterval; interval > 0 {
		refreshTicker := time.NewTicker(interval)
		defer refreshTicker.Stop()
		refresh = refreshTicker.C
	}

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case ev := <-s.events:
			if !s.writeEvent(ev) {
				return
			}

		case <-ticker.C:
			if !s.writePingMessage() {
				return
			}

		case <-refresh:
			s.refreshPresence()

		case <-s.done:
			return
		}
	}
}

// writeEvent renders ev and writes it. Returns false if the WritePump loop should terminate.
func (s *Session) writeEvent(ev bus.Event) bool {
	if ev.Type == bus.EventUserListUpdate {
		return s.writeRoster()
	}

	frame, ok := renderEvent(ev)
	if !ok {
		s.logger.Warn().Str("event_type", string(ev.Type)).Msg("Ignoring unknown bus event.")
		return true
	}

	return s.writeFrame(frame) == nil
}

// writeRoster fetches the roster and writes a user_list frame. A failed lookup skips the frame.
func (s *Session) writeRoster() bool {
	ctx, cancel := context.WithTimeout(s.ctx, operationTimeout)
	defer cancel()

	users, err := s.hub.Roster(ctx, s.identity)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build roster.")
		return true
	}

	frame := UserListFrame{Type: FrameUserList, Users: users, Timestamp: time.Now().UTC()}
	return s.writeFrame(frame) == nil
}

func (s *Session) writeFrame(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error marshaling frame")
		return err
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline")
		return err
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Info().Err(err).Msg("Error writing message")
		return err
	}

	return nil
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (s *Session) writePingMessage() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		s.logger.Info().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// refreshPresence extends the online mark without announcing anything.
func (s *Session) refreshPresence() {
	ctx, cancel := context.WithTimeout(s.ctx, operationTimeout)
	defer cancel()

	s.hub.presence.MarkOnline(ctx, s.identity)
}

// Close sends a close frame with code and reason and closes the connection.
// ReadPump then fails and runs teardown. Safe to call from any goroutine.
func (s *Session) Close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to send close frame.")
	}

	if err := s.conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// teardown marks the identity offline, leaves every group and announces the departure.
// It runs once, whatever ended the session. Each step runs even if an earlier one failed.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.logger.Info().Msg("Session teardown starting.")

		close(s.done)
		s.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		wasActive := s.active.Load()

		if s.onlineMarked.Load() {
			s.hub.presence.MarkOffline(ctx, s.identity)
		}

		for _, group := range s.groups.Names() {
			if err := s.hub.bus.Unsubscribe(ctx, group, s); err != nil {
				s.logger.Error().Err(err).Str("group", group).Msg("Failed to leave group during teardown.")
			}
			s.groups.Remove(group)
		}
		clear(s.privateGroupOf)

		if wasActive {
			s.hub.AnnouncePresence(ctx, s.identity, presence.StatusOffline)
		}

		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Connection close error during teardown")
		}

		s.hub.unregister(s)

		s.logger.Info().Msg("Session closed.")
	})
}
