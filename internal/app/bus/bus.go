/*
Package bus is the group-addressed publish/subscribe fabric that connects sessions.

A group is a name. Sessions subscribe to groups and receive every Event published to
them afterwards. Two implementations exist: MemoryBus fans out inside one process, NATSBus
maps each group to a NATS subject so sessions on different instances share groups.
*/
package bus

import (
	"context"
	"errors"
	"time"
)

// EventType tags the variant carried by an Event.
type EventType string

const (
	EventChatMessage     EventType = "chat_message"
	EventTypingIndicator EventType = "typing_indicator"
	EventUserListUpdate  EventType = "user_list_update"
	EventUserStatus      EventType = "user_status"
)

// Event is an immutable message carried on the bus. Only the fields of its Type are set.
type Event struct {
	Type EventType `json:"type"`

	// chat_message, typing_indicator
	Sender   string `json:"sender,omitempty"`
	Receiver string `json:"receiver,omitempty"`

	// chat_message
	MessageID int64     `json:"message_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`

	// typing_indicator
	IsTyping bool `json:"is_typing,omitempty"`

	// user_status
	Identity string `json:"identity,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ChatMessage builds a chat_message event.
func ChatMessage(id int64, sender, receiver, message string, ts time.Time) Event {
	return Event{
		Type:      EventChatMessage,
		MessageID: id,
		Sender:    sender,
		Receiver:  receiver,
		Message:   message,
		Timestamp: ts,
	}
}

// TypingIndicator builds a typing_indicator event.
func TypingIndicator(sender, receiver string, isTyping bool) Event {
	return Event{Type: EventTypingIndicator, Sender: sender, Receiver: receiver, IsTyping: isTyping}
}

// UserListUpdate builds the roster refresh trigger.
func UserListUpdate() Event {
	return Event{Type: EventUserListUpdate}
}

// UserStatus builds a user_status event.
func UserStatus(identity, status string) Event {
	return Event{Type: EventUserStatus, Identity: identity, Status: status}
}

// Subscriber receives events for the groups it joined.
// Deliver must not block; implementations queue or drop.
type Subscriber interface {
	ID() string
	Deliver(Event)
}

// Bus is the group-addressed publish/subscribe fabric.
// All methods are safe for concurrent use.
type Bus interface {
	// Subscribe adds sub to group. Subscribing twice is a no-op.
	Subscribe(ctx context.Context, group string, sub Subscriber) error

	// Unsubscribe removes sub from group. Removing an absent subscriber is a no-op.
	Unsubscribe(ctx context.Context, group string, sub Subscriber) error

	// Publish delivers ev to every current subscriber of group.
	// A group without subscribers is not an error. Events published by one caller to one
	// group arrive in publish order.
	Publish(ctx context.Context, group string, ev Event) error

	// Close releases the bus. Further calls return ErrClosed.
	Close() error
}

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus: closed")

// ErrEmptyGroup is returned when a group name is empty.
var ErrEmptyGroup = errors.New("bus: empty group name")
