package models

import "time"

// Message represents one persisted chat message. Messages are immutable
// after creation except for Read, which only ever flips false to true.
type Message struct {
	ID         int       `db:"id" json:"id"`
	ChatID     int       `db:"chat_id" json:"chat_id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	Content    string    `db:"content" json:"content"`
	Read       bool      `db:"read_status" json:"read"`
	CreatedAt  time.Time `db:"created_at" json:"timestamp"`
	SenderName string    `db:"sender_name" json:"sender_name,omitempty"`
}
