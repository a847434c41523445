package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pairchat/internal/app/bus"
)

// FrameType is the "type" tag of a WebSocket frame.
type FrameType string

// Inbound frame types.
const (
	FrameStartChat   FrameType = "start_chat"
	FrameChatMessage FrameType = "chat_message"
	FrameTyping      FrameType = "typing"
)

// Outbound frame types. chat_message is shared with the inbound set.
const (
	FrameInit            FrameType = "init"
	FrameTypingIndicator FrameType = "typing_indicator"
	FrameUserList        FrameType = "user_list"
	FrameUserStatus      FrameType = "user_status"
)

var (
	ErrUnknownFrame    = errors.New("chat: unknown frame type")
	ErrMissingReceiver = errors.New("chat: frame has no receiver")
)

// InboundFrame is a decoded client frame. Type is always one of the inbound frame types.
type InboundFrame struct {
	Type     FrameType `json:"type"`
	Receiver string    `json:"receiver"`
	Message  string    `json:"message"`
	IsTyping bool      `json:"is_typing"`
}

// DecodeFrame parses a client frame and rejects types outside the inbound set.
func DecodeFrame(data []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return InboundFrame{}, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Type {
	case FrameStartChat, FrameChatMessage, FrameTyping:
	default:
		return InboundFrame{}, fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
	}

	if f.Receiver == "" {
		return InboundFrame{}, ErrMissingReceiver
	}

	return f, nil
}

type InitFrame struct {
	Type     FrameType `json:"type"`
	Username string    `json:"username"`
}

type ChatMessageFrame struct {
	Type      FrameType `json:"type"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingIndicatorFrame struct {
	Type     FrameType `json:"type"`
	Sender   string    `json:"sender"`
	IsTyping bool      `json:"is_typing"`
}

// RosterEntry is one user in a user_list frame.
type RosterEntry struct {
	Username string `json:"username"`
	IsOnline bool   `json:"is_online"`
}

type UserListFrame struct {
	Type      FrameType     `json:"type"`
	Users     []RosterEntry `json:"users"`
	Timestamp time.Time     `json:"timestamp"`
}

type UserStatusFrame struct {
	Type   FrameType `json:"type"`
	User   string    `json:"user"`
	Status string    `json:"status"`
}

// renderEvent maps a bus event onto its client frame. user_list_update has no direct
// rendering because it needs a roster lookup; ok is false for it and for unknown events.
func renderEvent(ev bus.Event) (frame any, ok bool) {
	switch ev.Type {
	case bus.EventChatMessage:
		return ChatMessageFrame{
			Type:      FrameChatMessage,
			Message:   ev.Message,
			Sender:    ev.Sender,
			Timestamp: ev.Timestamp,
		}, true

	case bus.EventTypingIndicator:
		return TypingIndicatorFrame{Type: FrameTypingIndicator, Sender: ev.Sender, IsTyping: ev.IsTyping}, true

	case bus.EventUserStatus:
		return UserStatusFrame{Type: FrameUserStatus, User: ev.Identity, Status: ev.Status}, true
	}

	return nil, false
}
