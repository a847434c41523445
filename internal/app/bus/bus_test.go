package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// recorder is a Subscriber that keeps every delivered event.
type recorder struct {
	id     string
	mu     sync.Mutex
	events []Event
}

func newRecorder(id string) *recorder { return &recorder{id: id} }

func (r *recorder) ID() string { return r.id }

func (r *recorder) Deliver(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) received() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	b := NewMemoryBus()
	if err := b.Publish(context.Background(), "chat:alice:bob", UserListUpdate()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	sub := newRecorder("s1")

	for i := 0; i < 2; i++ {
		if err := b.Subscribe(ctx, "user_status", sub); err != nil {
			t.Fatalf("Subscribe #%d: %v", i, err)
		}
	}

	if got := b.Subscribers("user_status"); got != 1 {
		t.Fatalf("Subscribers = %d, want 1", got)
	}

	_ = b.Publish(ctx, "user_status", UserListUpdate())

	if got := len(sub.received()); got != 1 {
		t.Fatalf("delivered %d events, want exactly 1", got)
	}
}

func TestUnsubscribeStopsDeliveryAndForgetsEmptyGroup(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	a, c := newRecorder("a"), newRecorder("c")

	_ = b.Subscribe(ctx, "g", a)
	_ = b.Subscribe(ctx, "g", c)
	_ = b.Unsubscribe(ctx, "g", a)
	_ = b.Publish(ctx, "g", UserListUpdate())

	if len(a.received()) != 0 {
		t.Fatal("unsubscribed subscriber received an event")
	}
	if len(c.received()) != 1 {
		t.Fatal("remaining subscriber missed the event")
	}

	_ = b.Unsubscribe(ctx, "g", c)
	if b.Groups() != 0 {
		t.Fatalf("Groups = %d after last unsubscribe, want 0", b.Groups())
	}

	if err := b.Unsubscribe(ctx, "g", c); err != nil {
		t.Fatalf("second Unsubscribe: %v", err)
	}
}

func TestPublishPreservesOrderPerPublisher(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	subs := []*recorder{newRecorder("a"), newRecorder("b"), newRecorder("c")}
	for _, s := range subs {
		_ = b.Subscribe(ctx, "g", s)
	}

	const n = 200
	for i := 0; i < n; i++ {
		_ = b.Publish(ctx, "g", ChatMessage(int64(i), "alice", "bob", fmt.Sprint(i), time.Now()))
	}

	for _, s := range subs {
		got := s.received()
		if len(got) != n {
			t.Fatalf("%s received %d events, want %d", s.id, len(got), n)
		}
		for i, ev := range got {
			if ev.MessageID != int64(i) {
				t.Fatalf("%s: event %d has id %d, order broken", s.id, i, ev.MessageID)
			}
		}
	}
}

func TestConcurrentSubscribePublish(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := newRecorder(fmt.Sprintf("s%d", i))
			group := fmt.Sprintf("g%d", i%3)
			_ = b.Subscribe(ctx, group, s)
			_ = b.Publish(ctx, group, UserListUpdate())
			_ = b.Unsubscribe(ctx, group, s)
		}(i)
	}
	wg.Wait()

	if b.Groups() != 0 {
		t.Fatalf("Groups = %d, want 0", b.Groups())
	}
}

func TestClosedBusRejectsCalls(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	_ = b.Close()

	if err := b.Subscribe(ctx, "g", newRecorder("a")); err != ErrClosed {
		t.Fatalf("Subscribe err = %v, want ErrClosed", err)
	}
	if err := b.Publish(ctx, "g", UserListUpdate()); err != ErrClosed {
		t.Fatalf("Publish err = %v, want ErrClosed", err)
	}
}

func TestSubjectForEscapesGroupNames(t *testing.T) {
	subject := SubjectFor(DefaultSubjectPrefix, "chat:a.b:c*d>")
	token := strings.TrimPrefix(subject, DefaultSubjectPrefix+".")

	if strings.ContainsAny(token, ".*> ") {
		t.Fatalf("subject token %q contains NATS special characters", token)
	}
	if SubjectFor(DefaultSubjectPrefix, "chat:a:b") == SubjectFor(DefaultSubjectPrefix, "chat:a:c") {
		t.Fatal("distinct groups mapped to the same subject")
	}
}
