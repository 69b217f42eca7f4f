package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"petsit-chat/internal/mocks"
	"petsit-chat/internal/models"
	"petsit-chat/internal/repositories"
)

func setupChatRouter(chatRepo *mocks.ChatRepositoryMock, messageRepo *mocks.MessageRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewChatHandler(chatRepo, messageRepo, nil)

	router := gin.New()
	router.GET("/chats/:id", h.ListChats)
	router.GET("/chats/:id/messages", h.GetChatMessages)
	router.GET("/chats/:id/find/:user_b/:card_id", h.FindChat)
	router.POST("/chats/create", h.CreateChat)
	return router
}

func TestListChatsSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	cardID := 42
	summaries := []models.ChatSummary{
		{ChatID: 1, FriendID: "u2", CardID: &cardID, CardTitle: "Weekend sitting", Unread: true},
		{ChatID: 2, FriendID: "u3", Unread: false},
	}
	chatRepo.On("ListChats", mock.Anything, "u1").Return(summaries, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/chats/u1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Chats []models.ChatSummary `json:"chats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Chats, 2)
	assert.Equal(t, "u2", resp.Chats[0].FriendID)
	assert.True(t, resp.Chats[0].Unread)
	chatRepo.AssertExpectations(t)
}

func TestListChatsRepoError(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	chatRepo.On("ListChats", mock.Anything, "u1").Return(nil, errors.New("db down"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/chats/u1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestFindChatFound(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	cardID := 42
	chatRepo.On("FindByParticipants", mock.Anything, "u1", "u2", &cardID).
		Return(models.Chat{ID: 7, User1ID: "u1", User2ID: "u2", CardID: &cardID}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/chats/u1/find/u2/42", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp["chat_id"])
	chatRepo.AssertExpectations(t)
}

func TestFindChatMissIsNotAnError(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	cardID := 42
	chatRepo.On("FindByParticipants", mock.Anything, "u1", "u2", &cardID).
		Return(models.Chat{}, repositories.ErrChatNotFound)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/chats/u1/find/u2/42", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "no existing chat", resp["message"])
}

func TestFindChatInvalidCardID(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/chats/u1/find/u2/not-a-number", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	chatRepo.AssertNotCalled(t, "FindByParticipants", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateChatNew(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	cardID := 42
	chatRepo.On("CreateOrGetChat", mock.Anything, "u1", "u2", &cardID).
		Return(models.Chat{ID: 5, User1ID: "u1", User2ID: "u2", CardID: &cardID}, true, nil)

	body, _ := json.Marshal(gin.H{"user1_id": "u1", "user2_id": "u2", "card_id": 42})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/chats/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp["chat_id"])
	chatRepo.AssertExpectations(t)
}

func TestCreateChatExisting(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	chatRepo.On("CreateOrGetChat", mock.Anything, "u1", "u2", (*int)(nil)).
		Return(models.Chat{ID: 5, User1ID: "u1", User2ID: "u2"}, false, nil)

	body, _ := json.Marshal(gin.H{"user1_id": "u1", "user2_id": "u2"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/chats/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp["chat_id"])
}

func TestCreateChatWithSelfRejected(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	chatRepo.On("CreateOrGetChat", mock.Anything, "u1", "u1", (*int)(nil)).
		Return(models.Chat{}, false, repositories.ErrSelfChat)

	body, _ := json.Marshal(gin.H{"user1_id": "u1", "user2_id": "u1"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/chats/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateChatMissingParticipant(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	body, _ := json.Marshal(gin.H{"user1_id": "u1"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/chats/create", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	chatRepo.AssertNotCalled(t, "CreateOrGetChat", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetChatMessagesSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	msgs := []models.Message{
		{ID: 1, ChatID: 3, SenderID: "u1", Content: "hello", SenderName: "Alice"},
		{ID: 2, ChatID: 3, SenderID: "u2", Content: "hi", Read: true, SenderName: "Bob"},
	}
	messageRepo.On("ListForChat", mock.Anything, 3).Return(msgs, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/chats/3/messages", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "hello", resp.Messages[0].Content)
	assert.Equal(t, "Alice", resp.Messages[0].SenderName)
	messageRepo.AssertExpectations(t)
}

func TestGetChatMessagesEmptyChat(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	messageRepo.On("ListForChat", mock.Anything, 3).Return(nil, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/chats/3/messages", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages": []}`, w.Body.String())
}

func TestGetChatMessagesInvalidID(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	router := setupChatRouter(chatRepo, messageRepo)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/chats/abc/messages", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	messageRepo.AssertNotCalled(t, "ListForChat", mock.Anything, mock.Anything)
}
