package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tecu23/chess-rooms/internal/messages"
	"github.com/tecu23/chess-rooms/pkg/manager"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

// Connection is one websocket client bound to a seat in a room. It
// satisfies game.Conn.
type Connection struct {
	id      string
	ws      *websocket.Conn // The underlying Websocket connection
	hub     *Hub
	request manager.ConnectRequest

	send   chan []byte // Buffered channel of outbound messages.
	mu     sync.Mutex  // Guards send and closed.
	closed bool

	logger *zap.Logger
}

// NewConnection wraps ws for the room and user described by req.
func NewConnection(ws *websocket.Conn, hub *Hub, req manager.ConnectRequest, logger *zap.Logger) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:      id,
		ws:      ws,
		hub:     hub,
		request: req,
		send:    make(chan []byte, sendBufferSize),
		logger: logger.With(
			zap.String("connection_id", id),
			zap.String("room_id", req.RoomID),
			zap.String("user_name", req.UserName),
		),
	}
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// RoomID returns the room the connection asked for.
func (c *Connection) RoomID() string { return c.request.RoomID }

// UserName returns the user the connection speaks for.
func (c *Connection) UserName() string { return c.request.UserName }

// Send queues msg for the write pump. It never blocks: messages for a
// closed connection or a full buffer are dropped.
func (c *Connection) Send(msg messages.OutboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Error marshaling JSON", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping message", zap.String("event", msg.Event))
	}
}

// Close stops the write pump, which in turn closes the socket. It is safe
// to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump handles inbound messages from the client
func (c *Connection) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read error", zap.Error(err))
			}
			return
		}

		// We only handle text
		if msgType != websocket.TextMessage {
			continue
		}

		msg, err := messages.Decode(data)
		if err != nil {
			if errors.Is(err, messages.ErrUnknownMessage) {
				c.logger.Debug("ignoring unknown message", zap.Error(err))
			} else {
				c.logger.Warn("failed to parse inbound message", zap.Error(err))
			}
			continue
		}

		c.hub.Inbound(c, msg)
	}
}

// WritePump handles outbound messages to the client
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				c.logger.Debug("send channel closed")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
