package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatParticipantHelpers(t *testing.T) {
	chat := Chat{ID: 1, User1ID: "u1", User2ID: "u2", HasUnreadUser2: true}

	assert.Equal(t, "u2", chat.OtherParticipant("u1"))
	assert.Equal(t, "u1", chat.OtherParticipant("u2"))

	assert.True(t, chat.HasParticipant("u1"))
	assert.True(t, chat.HasParticipant("u2"))
	assert.False(t, chat.HasParticipant("u3"))

	assert.False(t, chat.UnreadFor("u1"))
	assert.True(t, chat.UnreadFor("u2"))
}
