package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jamroom/backend/internal/broker"
	"github.com/jamroom/backend/internal/logging"
	"github.com/jamroom/backend/internal/middleware"
	"github.com/jamroom/backend/internal/models"
	"github.com/jamroom/backend/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

// Client → server events.
const (
	eventJoinSession  = "joinSession"
	eventLeaveSession = "leaveSession"
	eventError        = "error"
)

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SocketHandler is the real-time connection gate. A connection is upgraded only
// after its token verifies; afterwards it may join and leave session rooms and
// relay scroll positions to the other members of a room.
type SocketHandler struct {
	broker      *broker.Broker
	authService *services.AuthService
	upgrader    websocket.Upgrader
}

// NewSocketHandler creates a SocketHandler. Browser origins outside allowedOrigins are refused.
func NewSocketHandler(b *broker.Broker, authService *services.AuthService, allowedOrigins []string) *SocketHandler {
	return &SocketHandler{
		broker:      b,
		authService: authService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

// Serve authenticates and upgrades the connection, then runs its read and write pumps.
func (h *SocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := socketToken(r)
	if token == "" {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventSocketRejected, "socket connection without token")
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventSocketRejected, "socket connection with invalid token")
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		slog.Debug("socket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := h.broker.Register(claims.UserID)
	slog.Info("socket connected",
		slog.String("client_id", client.ID),
		slog.String("user_id", claims.UserID),
	)

	go h.writePump(conn, client)
	h.readPump(conn, client)
}

// socketToken reads the credential from the Authorization header or the token query parameter.
func socketToken(r *http.Request) string {
	if token, err := middleware.BearerToken(r); err == nil {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// readPump handles inbound frames until the connection fails, then drops
// every room membership the connection held.
func (h *SocketHandler) readPump(conn *websocket.Conn, client *broker.Client) {
	defer func() {
		h.broker.Unregister(client)
		conn.Close()
		slog.Info("socket disconnected",
			slog.String("client_id", client.ID),
			slog.String("user_id", client.UserID),
		)
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("socket read failed", slog.String("client_id", client.ID), slog.String("error", err.Error()))
			}
			return
		}
		h.handleFrame(client, data)
	}
}

// writePump drains the client's queue onto the connection and keeps it alive with pings.
func (h *SocketHandler) writePump(conn *websocket.Conn, client *broker.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *SocketHandler) handleFrame(client *broker.Client, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.reject(client, "malformed message")
		return
	}

	switch frame.Event {
	case eventJoinSession:
		room, err := roomName(frame.Data)
		if err != nil {
			h.reject(client, err.Error())
			return
		}
		if h.broker.Join(room, client) {
			slog.Debug("socket joined room", slog.String("client_id", client.ID), slog.String("session_id", room))
		}

	case eventLeaveSession:
		room, err := roomName(frame.Data)
		if err != nil {
			h.reject(client, err.Error())
			return
		}
		if h.broker.Leave(room, client) {
			slog.Debug("socket left room", slog.String("client_id", client.ID), slog.String("session_id", room))
		}

	case services.EventScrollUpdate:
		var msg models.ScrollUpdateMessage
		if err := json.Unmarshal(frame.Data, &msg); err != nil || msg.SessionID == "" {
			h.reject(client, "scrollUpdate requires sessionId and position")
			return
		}
		if !h.broker.IsMember(msg.SessionID, client) {
			return
		}
		h.broker.PublishExcept(msg.SessionID, services.EventScrollUpdate, msg.Position, client)

	default:
		h.reject(client, "unknown event")
	}
}

func (h *SocketHandler) reject(client *broker.Client, message string) {
	h.broker.SendTo(client, eventError, map[string]string{"message": message})
}

// roomName decodes a session id sent as a bare JSON string.
func roomName(data json.RawMessage) (string, error) {
	var room string
	if err := json.Unmarshal(data, &room); err != nil || strings.TrimSpace(room) == "" {
		return "", errors.New("session id must be a non-empty string")
	}
	return strings.TrimSpace(room), nil
}
