package repositories

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"petsit-chat/internal/models"
)

// MessageRepository is the append-only message log for chats.
type MessageRepository interface {
	Append(ctx context.Context, chatID int, senderID, content string) (models.Message, error)
	ListForChat(ctx context.Context, chatID int) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID int, readerID string) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append persists a message and returns the stored record. The chat must
// already exist; a missing chat surfaces as ErrChatNotFound via the foreign
// key, empty content as ErrEmptyContent before touching the store.
func (r *MessageRepo) Append(ctx context.Context, chatID int, senderID, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyContent
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, content) VALUES ($1, $2, $3)
        RETURNING id, chat_id, sender_id, content, read_status, created_at`,
		chatID, senderID, content).StructScan(&msg)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Message{}, ErrChatNotFound
		}
		return models.Message{}, err
	}
	return msg, nil
}

// ListForChat returns the chat's messages ascending by creation time, with
// the sender display name resolved. No messages is an empty slice, not an
// error.
func (r *MessageRepo) ListForChat(ctx context.Context, chatID int) ([]models.Message, error) {
	query := `SELECT m.id, m.chat_id, m.sender_id, m.content, m.read_status, m.created_at,
            COALESCE(u.display_name, '') AS sender_name
        FROM messages m
        LEFT JOIN users u ON u.id = m.sender_id
        WHERE m.chat_id=$1
        ORDER BY m.created_at ASC, m.id ASC`
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, chatID)
	return msgs, err
}

// MarkRead marks every message in the chat not sent by readerID as read.
// Read status only moves false to true, so repeated calls are no-ops.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID int, readerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET read_status = TRUE
        WHERE chat_id=$1 AND sender_id<>$2 AND read_status = FALSE`, chatID, readerID)
	return err
}
