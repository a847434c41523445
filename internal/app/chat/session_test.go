package chat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
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

func TestMain(m *testing.M) {
	logx.InitWriter(io.Discard, zerolog.Disabled)
	os.Exit(m.Run())
}

const waitTimeout = 2 * time.Second

type published struct {
	group string
	event bus.Event
}

// recordingBus wraps MemoryBus and records every call.
type recordingBus struct {
	*bus.MemoryBus

	mu           sync.Mutex
	subscribes   map[string]int
	unsubscribes map[string]int
	published    []published

	// failLeave makes Unsubscribe from these groups fail.
	failLeave map[string]bool
}

func newRecordingBus() *recordingBus {
	return &recordingBus{
		MemoryBus:    bus.NewMemoryBus(),
		subscribes:   make(map[string]int),
		unsubscribes: make(map[string]int),
		failLeave:    make(map[string]bool),
	}
}

func callKey(group string, sub bus.Subscriber) string { return group + "|" + sub.ID() }

func (b *recordingBus) Subscribe(ctx context.Context, group string, sub bus.Subscriber) error {
	b.mu.Lock()
	b.subscribes[callKey(group, sub)]++
	b.mu.Unlock()
	return b.MemoryBus.Subscribe(ctx, group, sub)
}

func (b *recordingBus) Unsubscribe(ctx context.Context, group string, sub bus.Subscriber) error {
	b.mu.Lock()
	b.unsubscribes[callKey(group, sub)]++
	fail := b.failLeave[group]
	b.mu.Unlock()

	if fail {
		return errors.New("bus unavailable")
	}
	return b.MemoryBus.Unsubscribe(ctx, group, sub)
}

func (b *recordingBus) Publish(ctx context.Context, group string, ev bus.Event) error {
	b.mu.Lock()
	b.published = append(b.published, published{group: group, event: ev})
	b.mu.Unlock()
	return b.MemoryBus.Publish(ctx, group, ev)
}

func (b *recordingBus) publishCount(group string, typ bus.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, p := range b.published {
		if p.group == group && p.event.Type == typ {
			n++
		}
	}
	return n
}

// countingMessages wraps the memory message store, counts Save calls and can fail them.
type countingMessages struct {
	*message.MemoryStore
	saves atomic.Int32
	fail  atomic.Bool
}

func (c *countingMessages) Save(ctx context.Context, sender, receiver, content string) (message.Message, error) {
	c.saves.Add(1)
	if c.fail.Load() {
		return message.Message{}, errors.New("database unavailable")
	}
	return c.MemoryStore.Save(ctx, sender, receiver, content)
}

type testEnv struct {
	hub      *Hub
	bus      *recordingBus
	users    *user.MemoryStore
	messages *countingMessages
	presence *presence.Service
	server   *httptest.Server
}

func newTestEnv(t *testing.T, cfg *configs.AppConfig) *testEnv {
	t.Helper()

	if cfg == nil {
		cfg = &configs.AppConfig{PresenceRefreshInterval: time.Minute}
	}
	if cfg.PresenceTTL == 0 {
		cfg.PresenceTTL = time.Hour
	}

	env := &testEnv{
		bus:      newRecordingBus(),
		users:    user.NewMemoryStore(),
		messages: &countingMessages{MemoryStore: message.NewMemoryStore()},
	}
	env.presence = presence.NewService(presence.NewMemoryStore(), cfg.PresenceTTL)

	for _, name := range []string{"alice", "bob", "carol", "dave"} {
		if _, err := env.users.Create(context.Background(), name, "hash"); err != nil {
			t.Fatal(err)
		}
	}

	env.hub = NewHub(cfg, Deps{
		Bus:      env.bus,
		Presence: env.presence,
		Messages: env.messages,
		Users:    env.users,
		Friends:  env.users,
	})

	upgrader := websocket.Upgrader{}
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		identity := r.URL.Query().Get("user")
		if identity == "" {
			env.hub.Reject(conn, "missing identity")
			return
		}

		env.hub.Serve(conn, identity)
	}))

	t.Cleanup(env.server.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = env.hub.Shutdown(ctx)
	})

	return env
}

func (e *testEnv) dial(t *testing.T, identity string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/?user=" + identity
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial as %q: %v", identity, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// connect dials as identity and consumes the init frame.
func (e *testEnv) connect(t *testing.T, identity string) *websocket.Conn {
	t.Helper()

	conn := e.dial(t, identity)
	f := readFrame(t, conn)
	if f["type"] != string(FrameInit) || f["username"] != identity {
		t.Fatalf("first frame = %v, want init for %s", f, identity)
	}
	return conn
}

type wsFrame map[string]any

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(waitTimeout))
	var f wsFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// waitFrame reads until match accepts a frame and returns it with the frames skipped on the way.
func waitFrame(t *testing.T, conn *websocket.Conn, match func(wsFrame) bool) (wsFrame, []wsFrame) {
	t.Helper()

	var skipped []wsFrame
	for {
		f := readFrame(t, conn)
		if match(f) {
			return f, skipped
		}
		skipped = append(skipped, f)
	}
}

func ofType(typ FrameType) func(wsFrame) bool {
	return func(f wsFrame) bool { return f["type"] == string(typ) }
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()

	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func sessionFor(h *Hub, identity string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.sessions {
		if s.identity == identity {
			return s
		}
	}
	return nil
}

func rosterEntry(f wsFrame, username string) (online, found bool) {
	users, _ := f["users"].([]any)
	for _, u := range users {
		entry, _ := u.(map[string]any)
		if entry["username"] == username {
			online, _ := entry["is_online"].(bool)
			return online, true
		}
	}
	return false, false
}

func TestConnectMarksOnlineAndRefreshesLobby(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.connect(t, "alice")

	if got := env.presence.GetStatus(context.Background(), "alice"); got != presence.StatusOnline {
		t.Fatalf("alice = %s, want online", got)
	}

	status, _ := waitFrame(t, alice, ofType(FrameUserStatus))
	if status["user"] != "alice" || status["status"] != "online" {
		t.Fatalf("user_status = %v", status)
	}

	list, _ := waitFrame(t, alice, ofType(FrameUserList))
	if _, found := rosterEntry(list, "alice"); found {
		t.Fatal("roster should not list the session's own identity")
	}
	if online, found := rosterEntry(list, "bob"); !found || online {
		t.Fatalf("bob in roster: found=%v online=%v, want offline", found, online)
	}

	if n := env.bus.publishCount(LobbyGroup, bus.EventUserListUpdate); n != 1 {
		t.Fatalf("lobby received %d user_list_update events, want 1", n)
	}
}

func TestMessageToDisconnectedPeerIsPersisted(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.connect(t, "alice")

	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "bob"})
	send(t, alice, InboundFrame{Type: FrameChatMessage, Receiver: "bob", Message: "hi"})

	echo, _ := waitFrame(t, alice, ofType(FrameChatMessage))
	if echo["message"] != "hi" || echo["sender"] != "alice" || echo["timestamp"] == "" {
		t.Fatalf("chat_message = %v", echo)
	}

	page, err := env.messages.ListBetween(context.Background(), "alice", "bob", 0, message.DefaultPageSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 1 || page.Messages[0].Content != "hi" || page.Messages[0].Timestamp.IsZero() {
		t.Fatalf("stored messages = %+v", page.Messages)
	}

	if n := env.bus.Subscribers(PrivateGroupName("alice", "bob")); n != 1 {
		t.Fatalf("private group has %d subscribers, want only alice", n)
	}
}

func TestPeerJoiningLaterReceivesMessages(t *testing.T) {
	env := newTestEnv(t, nil)
	group := PrivateGroupName("alice", "bob")

	alice := env.connect(t, "alice")
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "bob"})
	send(t, alice, InboundFrame{Type: FrameChatMessage, Receiver: "bob", Message: "first"})
	waitFrame(t, alice, ofType(FrameChatMessage))

	bob := env.connect(t, "bob")
	send(t, bob, InboundFrame{Type: FrameStartChat, Receiver: "alice"})
	eventually(t, "bob to join the private group", func() bool { return env.bus.Subscribers(group) == 2 })

	send(t, alice, InboundFrame{Type: FrameChatMessage, Receiver: "bob", Message: "hello bob"})

	got, _ := waitFrame(t, bob, ofType(FrameChatMessage))
	if got["message"] != "hello bob" || got["sender"] != "alice" {
		t.Fatalf("bob received %v", got)
	}
}

func TestDisconnectDeliversEarlierTypingThenOffline(t *testing.T) {
	env := newTestEnv(t, nil)
	group := PrivateGroupName("alice", "bob")

	alice := env.connect(t, "alice")
	bob := env.connect(t, "bob")

	send(t, bob, InboundFrame{Type: FrameStartChat, Receiver: "alice"})
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "bob"})
	eventually(t, "both sessions in the private group", func() bool { return env.bus.Subscribers(group) == 2 })

	for _, typing := range []bool{true, false, true} {
		send(t, alice, InboundFrame{Type: FrameTyping, Receiver: "bob", IsTyping: typing})
	}
	_ = alice.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = alice.Close()

	offline, skipped := waitFrame(t, bob, func(f wsFrame) bool {
		return f["type"] == string(FrameUserStatus) && f["user"] == "alice" && f["status"] == "offline"
	})
	if offline == nil {
		t.Fatal("no offline status")
	}

	typing := 0
	for _, f := range skipped {
		if f["type"] == string(FrameTypingIndicator) && f["sender"] == "alice" {
			typing++
		}
	}
	if typing != 3 {
		t.Fatalf("bob received %d typing indicators before alice went offline, want 3", typing)
	}

	list, _ := waitFrame(t, bob, ofType(FrameUserList))
	if online, found := rosterEntry(list, "alice"); !found || online {
		t.Fatalf("alice in bob's roster: found=%v online=%v, want offline", found, online)
	}

	if got := env.presence.GetStatus(context.Background(), "alice"); got != presence.StatusOffline {
		t.Fatalf("alice = %s, want offline", got)
	}
}

func TestChatMessageWithoutStartChatIsDropped(t *testing.T) {
	env := newTestEnv(t, nil)
	group := PrivateGroupName("alice", "bob")

	alice := env.connect(t, "alice")
	send(t, alice, InboundFrame{Type: FrameChatMessage, Receiver: "bob", Message: "too early"})
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "bob"})
	eventually(t, "start_chat to be processed", func() bool { return env.bus.Subscribers(group) == 1 })

	if n := env.messages.saves.Load(); n != 0 {
		t.Fatalf("Save called %d times, want 0", n)
	}
	if n := env.bus.publishCount(group, bus.EventChatMessage); n != 0 {
		t.Fatalf("published %d chat messages, want 0", n)
	}
}

func TestInvalidMessagesAreNotPersisted(t *testing.T) {
	env := newTestEnv(t, nil)
	group := PrivateGroupName("alice", "bob")

	alice := env.connect(t, "alice")
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "bob"})
	send(t, alice, InboundFrame{Type: FrameChatMessage, Receiver: "bob", Message: "   "})
	send(t, alice, InboundFrame{Type: FrameChatMessage, Receiver: "bob", Message: strings.Repeat("x", message.MaxContentBytes+1)})
	send(t, alice, InboundFrame{Type: FrameTyping, Receiver: "carol", IsTyping: true})
	eventually(t, "typing to open a group", func() bool {
		return env.bus.Subscribers(PrivateGroupName("alice", "carol")) == 1
	})

	if n := env.messages.saves.Load(); n != 0 {
		t.Fatalf("Save called %d times, want 0", n)
	}
	if n := env.bus.publishCount(group, bus.EventChatMessage); n != 0 {
		t.Fatalf("published %d chat messages, want 0", n)
	}
}

func TestPersistenceFailureDropsMessage(t *testing.T) {
	env := newTestEnv(t, nil)
	env.messages.fail.Store(true)
	group := PrivateGroupName("alice", "bob")

	alice := env.connect(t, "alice")
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "bob"})
	send(t, alice, InboundFrame{Type: FrameChatMessage, Receiver: "bob", Message: "lost"})
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "carol"})
	eventually(t, "later frames to be processed", func() bool {
		return env.bus.Subscribers(PrivateGroupName("alice", "carol")) == 1
	})

	if n := env.messages.saves.Load(); n != 1 {
		t.Fatalf("Save called %d times, want 1", n)
	}
	if n := env.bus.publishCount(group, bus.EventChatMessage); n != 0 {
		t.Fatalf("published %d chat messages after a failed save, want 0", n)
	}
	if env.hub.SessionCount() != 1 {
		t.Fatal("session should survive a persistence failure")
	}
}

func TestUnknownAndMalformedFramesAreIgnored(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.connect(t, "alice")

	if err := alice.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	send(t, alice, map[string]any{"type": "dance", "receiver": "bob"})
	send(t, alice, map[string]any{"type": "start_chat"})
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "bob"})

	eventually(t, "valid frame after garbage", func() bool {
		return env.bus.Subscribers(PrivateGroupName("alice", "bob")) == 1
	})
	if env.hub.SessionCount() != 1 {
		t.Fatal("session closed after protocol violations")
	}
}

func TestStartChatRejections(t *testing.T) {
	env := newTestEnv(t, &configs.AppConfig{RequireFriendship: true, PresenceRefreshInterval: time.Minute})
	ctx := context.Background()

	if err := env.users.SendRequest(ctx, "alice", "carol"); err != nil {
		t.Fatal(err)
	}
	if err := env.users.AcceptRequest(ctx, "alice", "carol"); err != nil {
		t.Fatal(err)
	}

	alice := env.connect(t, "alice")
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "alice"})
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "bob"})
	send(t, alice, InboundFrame{Type: FrameTyping, Receiver: "bob", IsTyping: true})
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "nobody"})
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "carol"})

	eventually(t, "friend chat to open", func() bool {
		return env.bus.Subscribers(PrivateGroupName("alice", "carol")) == 1
	})

	for _, peer := range []string{"alice", "bob", "nobody"} {
		if n := env.bus.Subscribers(PrivateGroupName("alice", peer)); n != 0 {
			t.Errorf("group with %s has %d subscribers, want 0", peer, n)
		}
	}
	if n := env.bus.publishCount(PrivateGroupName("alice", "bob"), bus.EventTypingIndicator); n != 0 {
		t.Errorf("typing to a non-friend was published %d times", n)
	}
}

func TestTeardownLeavesEveryGroupOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.connect(t, "alice")

	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "bob"})
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "carol"})
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "bob"})
	send(t, alice, InboundFrame{Type: FrameTyping, Receiver: "dave", IsTyping: true})
	eventually(t, "typing to open the third private group", func() bool {
		return env.bus.Subscribers(PrivateGroupName("alice", "dave")) == 1
	})

	s := sessionFor(env.hub, "alice")
	if s == nil {
		t.Fatal("no session for alice")
	}

	joined := s.Groups()
	want := []string{
		PrivateGroupName("alice", "bob"),
		PrivateGroupName("alice", "carol"),
		PrivateGroupName("alice", "dave"),
		LobbyGroup,
	}
	if strings.Join(joined, ",") != strings.Join(want, ",") {
		t.Fatalf("joined groups = %v, want %v", joined, want)
	}

	_ = alice.Close()
	eventually(t, "session teardown", func() bool { return env.hub.SessionCount() == 0 })

	if n := s.groups.Len(); n != 0 {
		t.Fatalf("%d groups left after teardown", n)
	}

	env.bus.mu.Lock()
	defer env.bus.mu.Unlock()

	for _, group := range want {
		key := group + "|" + s.ID()
		if n := env.bus.subscribes[key]; n != 1 {
			t.Errorf("subscribe to %s issued %d times, want 1", group, n)
		}
		if n := env.bus.unsubscribes[key]; n != 1 {
			t.Errorf("unsubscribe from %s issued %d times, want 1", group, n)
		}
	}
	if len(env.bus.unsubscribes) != len(want) {
		t.Errorf("unsubscribed from %d groups, want %d", len(env.bus.unsubscribes), len(want))
	}
	if env.bus.Groups() != 0 {
		t.Errorf("bus still has %d groups", env.bus.Groups())
	}
}

func TestTeardownContinuesAfterFailedLeave(t *testing.T) {
	env := newTestEnv(t, nil)
	bob := env.connect(t, "bob")
	alice := env.connect(t, "alice")

	failing := PrivateGroupName("alice", "carol")
	other := PrivateGroupName("alice", "dave")

	env.bus.mu.Lock()
	env.bus.failLeave[failing] = true
	env.bus.mu.Unlock()

	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "carol"})
	send(t, alice, InboundFrame{Type: FrameStartChat, Receiver: "dave"})
	eventually(t, "both private groups joined", func() bool {
		return env.bus.Subscribers(failing) == 1 && env.bus.Subscribers(other) == 1
	})

	s := sessionFor(env.hub, "alice")
	if s == nil {
		t.Fatal("no session for alice")
	}

	_ = alice.Close()
	eventually(t, "alice teardown", func() bool { return env.hub.SessionCount() == 1 })

	if n := s.groups.Len(); n != 0 {
		t.Fatalf("%d groups left after teardown", n)
	}

	env.bus.mu.Lock()
	for _, group := range []string{LobbyGroup, failing, other} {
		if n := env.bus.unsubscribes[group+"|"+s.ID()]; n != 1 {
			t.Errorf("unsubscribe from %s issued %d times, want 1", group, n)
		}
	}
	env.bus.mu.Unlock()

	if n := env.bus.Subscribers(other); n != 0 {
		t.Errorf("%s still has %d subscribers", other, n)
	}
	if got := env.presence.GetStatus(context.Background(), "alice"); got != presence.StatusOffline {
		t.Errorf("alice = %s, want offline", got)
	}

	waitFrame(t, bob, func(f wsFrame) bool {
		return f["type"] == string(FrameUserStatus) && f["user"] == "alice" && f["status"] == "offline"
	})
	list, _ := waitFrame(t, bob, ofType(FrameUserList))
	if online, found := rosterEntry(list, "alice"); !found || online {
		t.Fatalf("alice in bob's roster: found=%v online=%v, want offline", found, online)
	}
}

func TestFailedActivationMarksOffline(t *testing.T) {
	env := newTestEnv(t, nil)

	served := make(chan struct{})
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer close(served)

		// The init write fails once the underlying connection is gone.
		_ = conn.NetConn().Close()
		env.hub.Serve(conn, "alice")
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case <-served:
	case <-time.After(waitTimeout):
		t.Fatal("Serve did not return after failed activation")
	}

	if n := env.hub.SessionCount(); n != 0 {
		t.Fatalf("SessionCount = %d, want 0", n)
	}
	if n := env.bus.Subscribers(LobbyGroup); n != 0 {
		t.Fatalf("lobby has %d subscribers after failed activation", n)
	}
	if got := env.presence.GetStatus(context.Background(), "alice"); got != presence.StatusOffline {
		t.Fatalf("alice = %s after failed activation, want offline", got)
	}
	if n := env.bus.publishCount(LobbyGroup, bus.EventUserListUpdate); n != 0 {
		t.Fatalf("failed activation announced %d roster updates, want 0", n)
	}
}

func TestUnauthenticatedConnectIsClosed(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, "")

	_ = conn.SetReadDeadline(time.Now().Add(waitTimeout))
	_, _, err := conn.ReadMessage()

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("read err = %v, want policy violation close", err)
	}

	if env.hub.SessionCount() != 0 {
		t.Fatal("unauthenticated connection created a session")
	}
	if env.bus.Groups() != 0 || env.bus.publishCount(LobbyGroup, bus.EventUserListUpdate) != 0 {
		t.Fatal("unauthenticated connection touched the bus")
	}
}

func TestPresenceRefreshKeepsSessionOnline(t *testing.T) {
	env := newTestEnv(t, &configs.AppConfig{
		PresenceTTL:             100 * time.Millisecond,
		PresenceRefreshInterval: 20 * time.Millisecond,
	})
	env.connect(t, "alice")

	time.Sleep(300 * time.Millisecond)

	if got := env.presence.GetStatus(context.Background(), "alice"); got != presence.StatusOnline {
		t.Fatalf("alice = %s after several TTLs, want online", got)
	}
	if n := env.bus.publishCount(LobbyGroup, bus.EventUserListUpdate); n != 1 {
		t.Fatalf("refresh broadcast %d roster updates, want only the connect one", n)
	}
}

func TestHubShutdownClosesSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.connect(t, "alice")
	env.connect(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	if err := env.hub.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if env.hub.SessionCount() != 0 {
		t.Fatalf("SessionCount = %d after shutdown", env.hub.SessionCount())
	}

	for _, name := range []string{"alice", "bob"} {
		if got := env.presence.GetStatus(context.Background(), name); got != presence.StatusOffline {
			t.Errorf("%s = %s after shutdown, want offline", name, got)
		}
	}

	_ = alice.SetReadDeadline(time.Now().Add(waitTimeout))
	for {
		if _, _, err := alice.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Fatalf("read err = %v, want going away close", err)
			}
			break
		}
	}
}
