package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
)

const sendBufferSize = 256

// Client is one authenticated socket. Frames queued on send are written by
// writeLoop, one encoded message per text frame; readLoop hands inbound frames
// to the manager.
type Client struct {
	ID       string
	Username string

	conn    *websocket.Conn
	manager *Manager
	send    chan []byte
	logger  hclog.Logger

	connectedAt time.Time

	// Set by the manager before send is closed.
	closeCode   int
	closeReason string
}

func NewClient(id, username string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:          id,
		Username:    username,
		conn:        conn,
		manager:     manager,
		send:        make(chan []byte, sendBufferSize),
		logger:      manager.logger.With("client_id", id, "user", username),
		connectedAt: time.Now(),
	}
}

// Serve runs the connection until either side closes it.
func (c *Client) Serve() {
	c.logger.Info("client connected")
	go c.writeLoop()
	c.readLoop()
}

// enqueue never blocks; false means the client is not keeping up.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// shut records the close frame writeLoop sends and closes send. Callers hold
// the manager's client lock.
func (c *Client) shut(code int, reason string) {
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
}

func (c *Client) readLoop() {
	defer func() {
		c.manager.unregister(c)
		c.conn.Close()
		c.logger.Info("client disconnected", "connected_for", time.Since(c.connectedAt).Round(time.Millisecond))
	}()

	c.conn.SetReadLimit(c.manager.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.manager.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.manager.pongWait))
	})

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("connection lost", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", "kind", kind)
			continue
		}
		if !c.manager.dispatch(&ClientMessage{Client: c, Message: frame}) {
			return
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(c.manager.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				closing := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
				if err := c.write(websocket.CloseMessage, closing); err != nil {
					c.logger.Debug("close frame not sent", "error", err)
				}
				return
			}
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("write failed", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

func (c *Client) write(kind int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.manager.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, payload)
}
