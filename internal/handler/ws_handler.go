package handler

import (
	"context"
	"net/http"

	"collabnotes-server/internal/middleware"
	"collabnotes-server/internal/service"
	"collabnotes-server/internal/websocket"
	"collabnotes-server/pkg/jwt"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
)

type WebSocketHandler struct {
	manager   *websocket.Manager
	jwtSecret string
	upgrader  ws.Upgrader
	logger    hclog.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, jwtSecret string, readBuf, writeBuf int, logger hclog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager:   manager,
		jwtSecret: jwtSecret,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// HandleConnection authenticates with ?token= or a bearer header, since
// browsers cannot set headers on the upgrade request.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}

	if token == "" {
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}

	claims, err := jwt.ValidateTokenOfType(token, h.jwtSecret, jwt.TokenTypeAccess)
	if err != nil {
		h.logger.Debug("token validation failed", "error", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "user", claims.Username, "error", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), claims.Username, conn, h.manager)
	if !h.manager.Register(client) {
		h.logger.Debug("manager stopped, dropping connection", "user", claims.Username)
		conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.Serve()
}

// WebSocketMessageHandler answers client requests sent over the socket.
type WebSocketMessageHandler struct {
	manager *websocket.Manager
	edits   *service.EditService
}

func NewWebSocketMessageHandler(manager *websocket.Manager, edits *service.EditService) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{
		manager: manager,
		edits:   edits,
	}
}

func (h *WebSocketMessageHandler) HandleWebSocketMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypeLockStatusRequest:
		return h.handleLockStatus(ctx, client, msg)

	case websocket.TypePing:
		return h.reply(client, websocket.TypePong, nil)

	default:
		return h.reply(client, websocket.TypeError, &websocket.ErrorPayload{Error: "unknown message type " + string(msg.Type)})
	}
}

func (h *WebSocketMessageHandler) handleLockStatus(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.LockStatusRequestPayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return h.reply(client, websocket.TypeError, &websocket.ErrorPayload{Error: "invalid payload"})
	}

	st, err := h.edits.LockStatusFor(ctx, payload.NoteID, client.Username)
	if err != nil {
		return h.reply(client, websocket.TypeError, &websocket.ErrorPayload{Error: err.Error()})
	}

	return h.reply(client, websocket.TypeLockStatusResponse, &websocket.LockStatusResponsePayload{
		NoteID:     payload.NoteID,
		EditStatus: *st,
	})
}

func (h *WebSocketMessageHandler) reply(client *websocket.Client, msgType websocket.MessageType, payload interface{}) error {
	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return h.manager.SendToClient(client, msg)
}
