package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"collabnotes-server/internal/domain"

	ws "github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
)

const defaultMaxMessageSize = 64 * 1024

type ClientMessage struct {
	Client  *Client
	Message []byte
}

// Manager tracks live connections per username and delivers note events to
// them.
type Manager struct {
	clients        map[string]*Client
	userIndex      map[string]map[string]bool // username -> client IDs
	clientsMutex   sync.RWMutex
	registerCh     chan *Client
	unregisterCh   chan *Client
	inbound        chan *ClientMessage
	done           chan struct{} // closed when Run returns
	maxConnPerUser int
	maxMessageSize int64
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	messageHandler MessageHandler
	logger         hclog.Logger
}

type MessageHandler interface {
	HandleWebSocketMessage(ctx context.Context, client *Client, msg *Message) error
}

func NewManager(maxConnPerUser int, writeWait, pongWait, pingPeriod time.Duration, logger hclog.Logger) *Manager {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Manager{
		clients:        make(map[string]*Client),
		userIndex:      make(map[string]map[string]bool),
		registerCh:     make(chan *Client),
		unregisterCh:   make(chan *Client),
		inbound:        make(chan *ClientMessage),
		done:           make(chan struct{}),
		maxConnPerUser: maxConnPerUser,
		maxMessageSize: defaultMaxMessageSize,
		writeWait:      writeWait,
		pongWait:       pongWait,
		pingPeriod:     pingPeriod,
		logger:         logger,
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

// Run owns registration and inbound message dispatch until ctx is done. It
// must be called once.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return

		case client := <-m.registerCh:
			m.registerClient(client)

		case client := <-m.unregisterCh:
			m.unregisterClient(client)

		case clientMsg := <-m.inbound:
			m.processMessage(ctx, clientMsg)
		}
	}
}

// Register hands client to Run. It reports false once Run has returned, in
// which case the caller still owns the connection.
func (m *Manager) Register(client *Client) bool {
	select {
	case m.registerCh <- client:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) unregister(client *Client) {
	select {
	case m.unregisterCh <- client:
	case <-m.done:
	}
}

func (m *Manager) dispatch(msg *ClientMessage) bool {
	select {
	case m.inbound <- msg:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.userIndex[client.Username] == nil {
		m.userIndex[client.Username] = make(map[string]bool)
	}

	if len(m.userIndex[client.Username]) >= m.maxConnPerUser {
		m.logger.Warn("max connections reached", "user", client.Username)
		client.shut(ws.ClosePolicyViolation, "too many connections")
		return
	}

	m.clients[client.ID] = client
	m.userIndex[client.Username][client.ID] = true

	m.logger.Debug("client registered", "client_id", client.ID, "user", client.Username)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		delete(m.userIndex[client.Username], client.ID)

		if len(m.userIndex[client.Username]) == 0 {
			delete(m.userIndex, client.Username)
		}

		client.shut(ws.CloseNormalClosure, "")
		m.logger.Debug("client unregistered", "client_id", client.ID)
	}
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for id, client := range m.clients {
		client.shut(ws.CloseGoingAway, "server shutting down")
		delete(m.clients, id)
	}
	m.userIndex = make(map[string]map[string]bool)
}

func (m *Manager) processMessage(ctx context.Context, clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		m.logger.Debug("malformed message", "client_id", clientMsg.Client.ID, "error", err)
		return
	}

	if m.messageHandler != nil {
		if err := m.messageHandler.HandleWebSocketMessage(ctx, clientMsg.Client, &msg); err != nil {
			m.logger.Warn("handle message", "client_id", clientMsg.Client.ID, "type", msg.Type, "error", err)
		}
	}
}

// Notify delivers a note event to every connection of each user in audience.
func (m *Manager) Notify(audience []string, event domain.NoteEvent) {
	msg, err := EventMessage(event)
	if err != nil {
		m.logger.Error("encode event", "type", event.Type, "error", err)
		return
	}
	for _, user := range audience {
		if err := m.BroadcastToUser(user, msg); err != nil {
			m.logger.Error("broadcast event", "user", user, "type", event.Type, "error", err)
		}
	}
}

func (m *Manager) BroadcastToUser(username string, message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	var slow []*Client

	m.clientsMutex.RLock()
	for clientID := range m.userIndex[username] {
		client := m.clients[clientID]
		if !client.enqueue(messageBytes) {
			slow = append(slow, client)
		}
	}
	m.clientsMutex.RUnlock()

	for _, client := range slow {
		m.logger.Warn("send buffer full, closing connection", "client_id", client.ID, "user", username)
		go m.unregister(client)
	}

	return nil
}

func (m *Manager) SendToClient(client *Client, message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	if _, exists := m.clients[client.ID]; !exists {
		return nil
	}

	if !client.enqueue(messageBytes) {
		m.logger.Warn("send buffer full", "client_id", client.ID)
	}

	return nil
}

func (m *Manager) GetUserConnections(username string) int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	return len(m.userIndex[username])
}
