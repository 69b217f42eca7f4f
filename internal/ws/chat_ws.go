package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"petsit-chat/internal/middleware"
	"petsit-chat/internal/models"
	"petsit-chat/internal/observability"
)

// Handler upgrades chat websocket connections and dispatches client events
// to the hub.
type Handler struct {
	hub       *Hub
	jwtSecret string
}

// NewHandler constructs a websocket Handler. An empty jwtSecret leaves the
// endpoint open, matching the original monolith's behavior in development.
func NewHandler(hub *Hub, jwtSecret string) *Handler {
	return &Handler{hub: hub, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and starts the read loop.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("petsit-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	authUserID, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      authUserID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	observability.IncWSEvent("ws_connect")
	h.publishLifecycle(ctx, "ws_connect", info, "")

	go h.readLoop(context.WithoutCancel(ctx), newWSConn(conn), info)
}

// authenticate resolves the connection's user id from the bearer token when
// a secret is configured. Browsers cannot set headers on websocket upgrades,
// so a token query parameter is accepted too.
func (h *Handler) authenticate(c *gin.Context) (string, error) {
	token := c.GetHeader("Authorization")
	if token != "" {
		parts := strings.SplitN(token, " ", 2)
		if len(parts) == 2 {
			token = parts[1]
		}
	} else {
		token = c.Query("token")
	}

	if h.jwtSecret == "" {
		return c.Query("user_id"), nil
	}
	return middleware.ValidateToken(token, h.jwtSecret)
}

func (h *Handler) readLoop(ctx context.Context, conn *wsConn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.Disconnect(conn)
		_ = conn.Close()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycle(ctx, "ws_disconnect", info, closeReason)
	}()

	conn.conn.SetReadLimit(maxMessageSize)
	_ = conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go h.pingLoop(conn, stopPing)

	for {
		_, payload, err := conn.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycle(ctx, "ws_error", info, closeReason)
			}
			return
		}

		var event models.ClientEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			h.hub.sendTo(conn, models.NewErrorEvent("malformed event payload"))
			continue
		}
		h.dispatch(ctx, conn, info, event)
	}
}

func (h *Handler) pingLoop(conn *wsConn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// dispatch validates the event at the boundary and routes it to the hub.
// Hub operations report their own failures to the sender; here they are only
// logged.
func (h *Handler) dispatch(ctx context.Context, conn Conn, info ConnInfo, event models.ClientEvent) {
	if err := event.Validate(); err != nil {
		h.hub.sendTo(conn, models.NewErrorEvent(err.Error()))
		return
	}
	if reason, ok := h.authorize(info, event); !ok {
		h.hub.sendTo(conn, models.NewErrorEvent(reason))
		return
	}

	var err error
	switch event.Type {
	case models.EventJoinChat:
		err = h.hub.JoinChat(ctx, conn, event.ChatID, event.UserID)
	case models.EventLeaveChat:
		h.hub.LeaveChat(conn, event.ChatID)
	case models.EventSendMessage:
		err = h.hub.Send(ctx, conn, event.ChatID, event.SenderID, event.Content)
	case models.EventReadMessage:
		err = h.hub.MarkRead(ctx, conn, event.ChatID, event.UserID)
	case models.EventJoinUserRoom:
		h.hub.JoinUserChannel(conn, event.UserID)
	case models.EventLeaveUserRoom:
		h.hub.LeaveUserChannel(conn, event.UserID)
	}
	if err != nil {
		log.Printf("ws event %s failed conn=%s: %v", event.Type, info.ConnID, err)
	}
}

// authorize rejects events acting on behalf of a different user than the one
// the connection authenticated as. With auth disabled everything passes.
func (h *Handler) authorize(info ConnInfo, event models.ClientEvent) (string, bool) {
	if h.jwtSecret == "" || info.UserID == "" {
		return "", true
	}
	switch event.Type {
	case models.EventSendMessage:
		if event.SenderID != info.UserID {
			return "sender does not match authenticated user", false
		}
	case models.EventJoinChat, models.EventReadMessage, models.EventJoinUserRoom, models.EventLeaveUserRoom:
		if event.UserID != info.UserID {
			return "user does not match authenticated user", false
		}
	}
	return "", true
}

func (h *Handler) publishLifecycle(ctx context.Context, name string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.chats", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       name,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id": info.UserID,
				"ip":      info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
