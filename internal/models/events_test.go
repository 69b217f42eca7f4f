package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   ClientEvent
		wantErr string
	}{
		{
			name:  "join chat valid",
			event: ClientEvent{Type: EventJoinChat, ChatID: 1, UserID: "u1"},
		},
		{
			name:    "join chat missing user",
			event:   ClientEvent{Type: EventJoinChat, ChatID: 1},
			wantErr: "user_id",
		},
		{
			name:    "join chat missing everything",
			event:   ClientEvent{Type: EventJoinChat},
			wantErr: "chat_id, user_id",
		},
		{
			name:  "leave chat valid",
			event: ClientEvent{Type: EventLeaveChat, ChatID: 1},
		},
		{
			name:  "send message valid",
			event: ClientEvent{Type: EventSendMessage, ChatID: 1, SenderID: "u1", ReceiverID: "u2", Content: "hi"},
		},
		{
			name:    "send message blank content",
			event:   ClientEvent{Type: EventSendMessage, ChatID: 1, SenderID: "u1", ReceiverID: "u2", Content: "   "},
			wantErr: "content",
		},
		{
			name:    "send message missing receiver",
			event:   ClientEvent{Type: EventSendMessage, ChatID: 1, SenderID: "u1", Content: "hi"},
			wantErr: "receiver_id",
		},
		{
			name:  "read message valid",
			event: ClientEvent{Type: EventReadMessage, ChatID: 1, UserID: "u2"},
		},
		{
			name:  "join user room valid",
			event: ClientEvent{Type: EventJoinUserRoom, UserID: "u1"},
		},
		{
			name:    "leave user room missing user",
			event:   ClientEvent{Type: EventLeaveUserRoom},
			wantErr: "user_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClientEventValidateUnknownType(t *testing.T) {
	err := ClientEvent{Type: "shout"}.Validate()
	require.ErrorIs(t, err, ErrUnknownEventType)
}

func TestNewMessageEventCarriesChatID(t *testing.T) {
	msg := Message{ID: 3, ChatID: 9, SenderID: "u1", Content: "hi"}
	ev := NewMessageEvent(msg)
	assert.Equal(t, EventReceiveMessage, ev.Type)
	assert.Equal(t, 9, ev.ChatID)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "hi", ev.Message.Content)
}
