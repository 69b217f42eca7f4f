package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"petsit-chat/internal/models"
	"petsit-chat/internal/repositories"
	"petsit-chat/internal/telemetry"
)

// ChatHandler serves the REST side of the chat service: inbox listing, chat
// resolution and message history. Live traffic goes over the websocket.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		audit:       audit,
	}
}

// ListChats returns every chat the user participates in, annotated with the
// card title and the unread flag for the user's slot. No chats yet is an
// empty list, not an error.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.Param("id")

	chats, err := h.chatRepo.ListChats(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// FindChat resolves the chat for a participant pair and card. A miss is a
// regular 200 with a message body, the shape the mobile client expects.
// Routed as /chats/:id/find/:user_b/:card_id with :id being the first
// participant, since gin cannot mix a static /chats/find with /chats/:id.
func (h *ChatHandler) FindChat(c *gin.Context) {
	userA := c.Param("id")
	userB := c.Param("user_b")
	cardID, err := strconv.Atoi(c.Param("card_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card id"})
		return
	}

	chat, err := h.chatRepo.FindByParticipants(c.Request.Context(), userA, userB, &cardID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			c.JSON(http.StatusOK, gin.H{"message": "no existing chat"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to find chat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID})
}

// CreateChat finds or creates the chat for the given pair and card. Both
// participants racing here end up with the same chat id.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		User1ID string `json:"user1_id" binding:"required"`
		User2ID string `json:"user2_id" binding:"required"`
		CardID  *int   `json:"card_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, created, err := h.chatRepo.CreateOrGetChat(c.Request.Context(), req.User1ID, req.User2ID, req.CardID)
	if err != nil {
		if errors.Is(err, repositories.ErrSelfChat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	if created {
		h.audit.Emit(c.Request.Context(), "INFO", "chat created", requestIDFromContext(c), &req.User1ID)
		c.JSON(http.StatusCreated, gin.H{"chat_id": chat.ID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID})
}

// GetChatMessages returns the chat's messages in order with sender display
// names resolved. An unknown or empty chat yields an empty list.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	msgs, err := h.messageRepo.ListForChat(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
