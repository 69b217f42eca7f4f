package models

import (
	"errors"
	"fmt"
	"strings"
)

// Client event types accepted over the websocket.
const (
	EventJoinChat      = "join_chat"
	EventLeaveChat     = "leave_chat"
	EventSendMessage   = "send_message"
	EventReadMessage   = "read_message"
	EventJoinUserRoom  = "join_user_room"
	EventLeaveUserRoom = "leave_user_room"
)

// Server event types emitted over the websocket.
const (
	EventReceiveMessage     = "receive_message"
	EventMessagesRead       = "messages_read"
	EventUpdateUnreadStatus = "update_unread_status"
	EventError              = "error_message"
)

var ErrUnknownEventType = errors.New("unknown event type")

// ClientEvent is an inbound websocket frame. The type tag decides which
// fields are required; Validate enforces that before anything is dispatched.
type ClientEvent struct {
	Type       string `json:"type"`
	ChatID     int    `json:"chat_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	SenderID   string `json:"sender_id,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	Content    string `json:"content,omitempty"`
}

// Validate checks the required fields for the event's type.
func (e ClientEvent) Validate() error {
	switch e.Type {
	case EventJoinChat, EventReadMessage:
		return requireFields(field{"chat_id", e.ChatID > 0}, field{"user_id", e.UserID != ""})
	case EventLeaveChat:
		return requireFields(field{"chat_id", e.ChatID > 0})
	case EventSendMessage:
		return requireFields(
			field{"chat_id", e.ChatID > 0},
			field{"sender_id", e.SenderID != ""},
			field{"receiver_id", e.ReceiverID != ""},
			field{"content", strings.TrimSpace(e.Content) != ""},
		)
	case EventJoinUserRoom, EventLeaveUserRoom:
		return requireFields(field{"user_id", e.UserID != ""})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
}

type field struct {
	name string
	ok   bool
}

func requireFields(fields ...field) error {
	var missing []string
	for _, f := range fields {
		if !f.ok {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ServerEvent is an outbound websocket frame.
type ServerEvent struct {
	Type       string   `json:"type"`
	Message    *Message `json:"message,omitempty"`
	ChatID     int      `json:"chat_id,omitempty"`
	UserID     string   `json:"user_id,omitempty"`
	ReceiverID string   `json:"receiver_id,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// NewMessageEvent wraps a persisted message for room broadcast.
func NewMessageEvent(msg Message) ServerEvent {
	return ServerEvent{Type: EventReceiveMessage, Message: &msg, ChatID: msg.ChatID}
}

// NewErrorEvent builds the error frame sent back to a single connection.
func NewErrorEvent(reason string) ServerEvent {
	return ServerEvent{Type: EventError, Error: reason}
}
