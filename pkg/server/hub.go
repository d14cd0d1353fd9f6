// Package server bridges websocket clients and the room registry.
package server

import (
	"sync"

	"go.uber.org/zap"

	"github.com/tecu23/chess-rooms/internal/messages"
	"github.com/tecu23/chess-rooms/pkg/game"
	"github.com/tecu23/chess-rooms/pkg/manager"
)

// Router is the part of the room registry the hub drives.
type Router interface {
	RouteConnection(req manager.ConnectRequest, conn game.Conn) (game.JoinResult, error)
	RouteMessage(roomID, userName string, msg messages.Inbound)
	OnDisconnect(roomID, userName string, conn game.Conn)
}

// InboundHubMessage are the messages that the hub receives
type InboundHubMessage struct {
	Conn    *Connection      // who sent it
	Message messages.Inbound // decoded payload
}

// Hub keeps track of all active connections. Registration, messages and
// disconnects all flow through Run, so the registry sees them in the order
// they arrived.
type Hub struct {
	mu          sync.RWMutex         // Mutex to protect direct access to the connections map.
	connections map[*Connection]bool // Registered connections

	register   chan *Connection       // Incoming registration
	unregister chan *Connection       // Incoming unregistration
	inbound    chan InboundHubMessage // Messages routed to rooms

	done     chan struct{}
	stopOnce sync.Once

	router Router
	logger *zap.Logger
}

// NewHub creates a new hub
func NewHub(router Router, logger *zap.Logger) *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		inbound:     make(chan InboundHubMessage, 256),
		done:        make(chan struct{}),
		router:      router,
		logger:      logger,
	}
}

// Run is the main execution of the hub
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.registerConnection(conn)

		case conn := <-h.unregister:
			h.unregisterConnection(conn)

		case msg := <-h.inbound:
			h.router.RouteMessage(msg.Conn.RoomID(), msg.Conn.UserName(), msg.Message)

		case <-h.done:
			return
		}
	}
}

// Register hands a new connection to the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
	}
}

// Unregister tells the hub a connection is gone.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Inbound queues a decoded message from conn.
func (h *Hub) Inbound(conn *Connection, msg messages.Inbound) {
	select {
	case h.inbound <- InboundHubMessage{Conn: conn, Message: msg}:
	case <-h.done:
	}
}

func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	h.connections[conn] = true
	count := len(h.connections)
	h.mu.Unlock()

	res, err := h.router.RouteConnection(conn.request, conn)
	if err != nil {
		// the room already closed the connection; its read pump unregisters it
		return
	}

	h.logger.Info("connection registered",
		zap.String("connection_id", conn.ID()),
		zap.String("room_id", conn.RoomID()),
		zap.String("color", string(res.Color)),
		zap.Bool("reconnected", res.Reconnected),
		zap.Int("connections", count),
	)
}

func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	_, ok := h.connections[conn]
	delete(h.connections, conn)
	count := len(h.connections)
	h.mu.Unlock()

	if !ok {
		return
	}

	conn.Close()
	h.router.OnDisconnect(conn.RoomID(), conn.UserName(), conn)

	h.logger.Info("connection unregistered",
		zap.String("connection_id", conn.ID()),
		zap.Int("connections", count),
	)
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.connections)
}

// Shutdown stops the hub loop and closes every connection.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)
	})

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.connections {
		conn.Close()
	}
	h.connections = make(map[*Connection]bool)
}
