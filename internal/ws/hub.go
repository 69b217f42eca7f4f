package ws

import (
	"context"
	"errors"
	"log"
	"sync"

	"petsit-chat/internal/models"
	"petsit-chat/internal/observability"
	"petsit-chat/internal/repositories"
)

// Conn is the hub's view of one client connection. Production code wraps a
// websocket; tests plug in fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Hub owns the ephemeral room and user-channel membership and fans events
// out to the connections currently joined. Durable state always goes through
// the chat directory and message log; membership here is a delivery
// optimization, never the source of truth for read/unread state.
type Hub struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository

	// room (chat id) -> conn -> user id occupying it
	rooms map[int]map[Conn]string
	// user id -> conns subscribed to the user's notification channel
	userChannels map[string]map[Conn]bool
	// reverse indexes for Disconnect
	connRooms   map[Conn]map[int]bool
	connChannel map[Conn]string

	mu sync.RWMutex
}

// NewHub creates an empty hub backed by the given directory and log.
func NewHub(chats repositories.ChatRepository, messages repositories.MessageRepository) *Hub {
	return &Hub{
		chats:        chats,
		messages:     messages,
		rooms:        make(map[int]map[Conn]string),
		userChannels: make(map[string]map[Conn]bool),
		connRooms:    make(map[Conn]map[int]bool),
		connChannel:  make(map[Conn]string),
	}
}

var errNotParticipant = errors.New("not a participant of this chat")

// JoinChat adds the connection to the chat room and settles the reader's
// state: the user's unread flag is cleared, their counterpart's messages are
// marked read, and the room is told via messages_read. Only participants can
// join; the directory decides, not the frame.
func (h *Hub) JoinChat(ctx context.Context, conn Conn, chatID int, userID string) error {
	ok, err := h.chats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		h.sendTo(conn, models.NewErrorEvent("failed to join chat"))
		return err
	}
	if !ok {
		h.sendTo(conn, models.NewErrorEvent("not a participant of this chat"))
		return errNotParticipant
	}

	h.mu.Lock()
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[Conn]string)
	}
	if _, joined := h.rooms[chatID][conn]; !joined {
		observability.IncWSActive("room")
	}
	h.rooms[chatID][conn] = userID
	if _, ok := h.connRooms[conn]; !ok {
		h.connRooms[conn] = make(map[int]bool)
	}
	h.connRooms[conn][chatID] = true
	h.mu.Unlock()

	observability.IncWSEvent(models.EventJoinChat)
	return h.settleRead(ctx, conn, chatID, userID)
}

// LeaveChat removes the connection from the room. No persistence side effect.
func (h *Hub) LeaveChat(conn Conn, chatID int) {
	h.mu.Lock()
	h.removeFromRoom(conn, chatID)
	h.mu.Unlock()
	observability.IncWSEvent(models.EventLeaveChat)
}

// JoinUserChannel subscribes the connection to the user-scoped notification
// channel used for inbox badges outside any open chat.
func (h *Hub) JoinUserChannel(conn Conn, userID string) {
	h.mu.Lock()
	if prev, ok := h.connChannel[conn]; ok && prev != userID {
		h.removeFromChannel(conn, prev)
	}
	if _, ok := h.userChannels[userID]; !ok {
		h.userChannels[userID] = make(map[Conn]bool)
	}
	if !h.userChannels[userID][conn] {
		observability.IncWSActive("user")
	}
	h.userChannels[userID][conn] = true
	h.connChannel[conn] = userID
	h.mu.Unlock()

	observability.IncWSEvent(models.EventJoinUserRoom)
}

// LeaveUserChannel unsubscribes the connection from the user channel.
func (h *Hub) LeaveUserChannel(conn Conn, userID string) {
	h.mu.Lock()
	h.removeFromChannel(conn, userID)
	h.mu.Unlock()
	observability.IncWSEvent(models.EventLeaveUserRoom)
}

// Send appends the message to the log and fans it out. The chat must already
// exist; sending never creates one. The receiver is resolved from the chat
// directory, not taken from the frame. Persistence failures go back to the
// sender only and nothing is broadcast.
func (h *Hub) Send(ctx context.Context, conn Conn, chatID int, senderID, content string) error {
	chat, err := h.chats.GetChat(ctx, chatID)
	if err != nil {
		h.sendTo(conn, models.NewErrorEvent(sendFailureReason(err)))
		return err
	}
	if !chat.HasParticipant(senderID) {
		h.sendTo(conn, models.NewErrorEvent("not a participant of this chat"))
		return errNotParticipant
	}
	receiverID := chat.OtherParticipant(senderID)

	msg, err := h.messages.Append(ctx, chatID, senderID, content)
	if err != nil {
		h.sendTo(conn, models.NewErrorEvent(sendFailureReason(err)))
		return err
	}
	observability.IncMessagePersisted()

	// Membership may have changed while the append was in flight, so the
	// receiver's presence is read only now.
	if !h.inRoom(chatID, receiverID) {
		if err := h.chats.SetUnread(ctx, chatID, receiverID, true); err != nil {
			log.Printf("set unread failed chat=%d user=%s: %v", chatID, receiverID, err)
		} else {
			observability.IncUnreadTransition(true)
			h.notifyUserChannel(receiverID, models.ServerEvent{
				Type:       models.EventUpdateUnreadStatus,
				ChatID:     chatID,
				ReceiverID: receiverID,
			})
		}
	}

	h.broadcastRoom(chatID, models.NewMessageEvent(msg))
	observability.IncWSEvent(models.EventSendMessage)
	_ = observability.PublishEvent(ctx, "chat_events.message", observability.EventEnvelope{
		EventType: "chat_events",
		EventName: "message_sent",
		Payload: map[string]interface{}{
			"chat_id":     chatID,
			"message_id":  msg.ID,
			"sender_id":   senderID,
			"receiver_id": receiverID,
		},
	}, nil)
	return nil
}

// MarkRead settles read state for a user already in the chat without
// changing membership (inbound read_message).
func (h *Hub) MarkRead(ctx context.Context, conn Conn, chatID int, userID string) error {
	observability.IncWSEvent(models.EventReadMessage)
	return h.settleRead(ctx, conn, chatID, userID)
}

// Disconnect drops the connection from every room and its user channel. No
// durable state changes; rooms are rebuilt from the chat directory on
// reconnect.
func (h *Hub) Disconnect(conn Conn) {
	h.mu.Lock()
	for chatID := range h.connRooms[conn] {
		h.removeFromRoom(conn, chatID)
	}
	if userID, ok := h.connChannel[conn]; ok {
		h.removeFromChannel(conn, userID)
	}
	h.mu.Unlock()
}

// settleRead clears the user's unread flag, marks counterpart messages read
// and broadcasts messages_read so other room members can update their UI.
func (h *Hub) settleRead(ctx context.Context, conn Conn, chatID int, userID string) error {
	if err := h.chats.SetUnread(ctx, chatID, userID, false); err != nil {
		if !errors.Is(err, repositories.ErrChatNotFound) {
			h.sendTo(conn, models.NewErrorEvent("failed to update read state"))
		}
		return err
	}
	observability.IncUnreadTransition(false)

	if err := h.messages.MarkRead(ctx, chatID, userID); err != nil {
		h.sendTo(conn, models.NewErrorEvent("failed to update read state"))
		return err
	}

	h.broadcastRoom(chatID, models.ServerEvent{
		Type:   models.EventMessagesRead,
		ChatID: chatID,
		UserID: userID,
	})
	_ = observability.PublishEvent(ctx, "chat_events.read", observability.EventEnvelope{
		EventType: "chat_events",
		EventName: "messages_read",
		Payload:   map[string]interface{}{"chat_id": chatID, "user_id": userID},
	}, nil)
	return nil
}

// inRoom reports whether any of the user's connections is joined to the room.
func (h *Hub) inRoom(chatID int, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, uid := range h.rooms[chatID] {
		if uid == userID {
			return true
		}
	}
	return false
}

// broadcastRoom writes the event to every connection in the room. A failing
// connection is closed and evicted so one dead socket cannot wedge the room.
func (h *Hub) broadcastRoom(chatID int, event models.ServerEvent) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.rooms[chatID]))
	for conn := range h.rooms[chatID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("websocket write error: %v", err)
			_ = conn.Close()
			h.Disconnect(conn)
		}
	}
}

// notifyUserChannel writes the event to every connection on the user channel.
func (h *Hub) notifyUserChannel(userID string, event models.ServerEvent) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.userChannels[userID]))
	for conn := range h.userChannels[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("websocket write error: %v", err)
			_ = conn.Close()
			h.Disconnect(conn)
		}
	}
}

func (h *Hub) sendTo(conn Conn, event models.ServerEvent) {
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}

// callers must hold h.mu
func (h *Hub) removeFromRoom(conn Conn, chatID int) {
	if conns, ok := h.rooms[chatID]; ok {
		if _, joined := conns[conn]; joined {
			observability.DecWSActive("room")
		}
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, chatID)
		}
	}
	if rooms, ok := h.connRooms[conn]; ok {
		delete(rooms, chatID)
		if len(rooms) == 0 {
			delete(h.connRooms, conn)
		}
	}
}

// callers must hold h.mu
func (h *Hub) removeFromChannel(conn Conn, userID string) {
	if conns, ok := h.userChannels[userID]; ok {
		if conns[conn] {
			observability.DecWSActive("user")
		}
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.userChannels, userID)
		}
	}
	delete(h.connChannel, conn)
}

func sendFailureReason(err error) string {
	switch {
	case errors.Is(err, repositories.ErrEmptyContent):
		return "message content is empty"
	case errors.Is(err, repositories.ErrChatNotFound):
		return "chat not found"
	default:
		return "failed to store message"
	}
}
