package models

import "time"

// Chat represents a two-party conversation, optionally scoped to one card
// (listing). The participants live in two fixed slots; the pair is unique
// per card regardless of slot order.
type Chat struct {
	ID             int       `db:"id" json:"id"`
	User1ID        string    `db:"user1_id" json:"user1_id"`
	User2ID        string    `db:"user2_id" json:"user2_id"`
	CardID         *int      `db:"card_id" json:"card_id,omitempty"`
	HasUnreadUser1 bool      `db:"has_unread_user1" json:"has_unread_user1"`
	HasUnreadUser2 bool      `db:"has_unread_user2" json:"has_unread_user2"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// OtherParticipant returns the counterpart of userID in the chat.
func (c Chat) OtherParticipant(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// HasParticipant reports whether userID occupies one of the chat's slots.
func (c Chat) HasParticipant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// UnreadFor resolves the unread flag belonging to userID's slot.
func (c Chat) UnreadFor(userID string) bool {
	if c.User1ID == userID {
		return c.HasUnreadUser1
	}
	return c.HasUnreadUser2
}

// ChatSummary is the inbox view of a chat for one user.
type ChatSummary struct {
	ChatID    int       `db:"id" json:"chat_id"`
	FriendID  string    `json:"friend_id"`
	CardID    *int      `db:"card_id" json:"card_id,omitempty"`
	CardTitle string    `db:"card_title" json:"card_title,omitempty"`
	Unread    bool      `json:"unread"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
