package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"petsit-chat/internal/models"
)

// ChatRepository is the chat directory: it resolves the unique chat for a
// (user, user, card) triple and tracks the per-slot unread flags.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, user1ID, user2ID string, cardID *int) (models.Chat, bool, error)
	FindByParticipants(ctx context.Context, userA, userB string, cardID *int) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	IsParticipant(ctx context.Context, chatID int, userID string) (bool, error)
	ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error)
	SetUnread(ctx context.Context, chatID int, userID string, value bool) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, user1_id, user2_id, card_id, has_unread_user1, has_unread_user2, created_at`

// CreateOrGetChat returns the existing chat for the unordered pair and card,
// creating it with cleared unread flags when absent. Two participants racing
// to create the same chat hit the unique pair index; the loser retries the
// lookup so both ends land on a single shared chat.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, user1ID, user2ID string, cardID *int) (models.Chat, bool, error) {
	if user1ID == user2ID {
		return models.Chat{}, false, ErrSelfChat
	}

	chat, err := r.FindByParticipants(ctx, user1ID, user2ID, cardID)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, ErrChatNotFound) {
		return models.Chat{}, false, err
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO chats (user1_id, user2_id, card_id) VALUES ($1, $2, $3) RETURNING `+chatColumns,
		user1ID, user2ID, cardID).StructScan(&chat)
	if err == nil {
		return chat, true, nil
	}
	if !isUniqueViolation(err) {
		return models.Chat{}, false, err
	}

	// Lost the create race; the other participant's row is the shared chat.
	chat, err = r.FindByParticipants(ctx, user1ID, user2ID, cardID)
	return chat, false, err
}

// FindByParticipants looks the chat up probing both slot orderings.
func (r *ChatRepo) FindByParticipants(ctx context.Context, userA, userB string, cardID *int) (models.Chat, error) {
	var chat models.Chat
	query := `SELECT ` + chatColumns + ` FROM chats
        WHERE ((user1_id=$1 AND user2_id=$2) OR (user1_id=$2 AND user2_id=$1))
        AND card_id IS NOT DISTINCT FROM $3`
	err := r.db.GetContext(ctx, &chat, query, userA, userB, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// IsParticipant checks whether a user occupies one of the chat's slots.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`, chatID, userID)
	return exists, err
}

// ListChats returns the user's chats in insertion order (oldest first),
// annotated with the card title and the unread flag for the user's slot.
func (r *ChatRepo) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	query := `SELECT c.id, c.user1_id, c.user2_id, c.card_id, c.has_unread_user1, c.has_unread_user2,
            c.created_at, COALESCE(k.title, '') AS card_title
        FROM chats c
        LEFT JOIN cards k ON k.id = c.card_id
        WHERE c.user1_id=$1 OR c.user2_id=$1
        ORDER BY c.created_at ASC, c.id ASC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.ChatSummary{}
	for rows.Next() {
		var row struct {
			models.Chat
			CardTitle string `db:"card_title"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		result = append(result, models.ChatSummary{
			ChatID:    row.ID,
			FriendID:  row.OtherParticipant(userID),
			CardID:    row.CardID,
			CardTitle: row.CardTitle,
			Unread:    row.UnreadFor(userID),
			CreatedAt: row.CreatedAt,
		})
	}
	return result, rows.Err()
}

// SetUnread flips the unread flag on the slot occupied by userID. The CASE
// form keeps it a single idempotent statement regardless of slot.
func (r *ChatRepo) SetUnread(ctx context.Context, chatID int, userID string, value bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chats SET
            has_unread_user1 = CASE WHEN user1_id=$2 THEN $3 ELSE has_unread_user1 END,
            has_unread_user2 = CASE WHEN user2_id=$2 THEN $3 ELSE has_unread_user2 END
        WHERE id=$1 AND (user1_id=$2 OR user2_id=$2)`, chatID, userID, value)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}
