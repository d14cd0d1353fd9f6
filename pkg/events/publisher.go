// Package events is a small in-process publish/subscribe bus for room
// lifecycle events.
package events

import "sync"

// EventType represents the type of event
type EventType string

// Define event types
const (
	EventRoomCreated        EventType = "ROOM_CREATED"
	EventRoomRemoved        EventType = "ROOM_REMOVED"
	EventPlayerJoined       EventType = "PLAYER_JOINED"
	EventPlayerReconnected  EventType = "PLAYER_RECONNECTED"
	EventConnectionRejected EventType = "CONNECTION_REJECTED"
	EventConnectionClosed   EventType = "CONNECTION_CLOSED"
	EventGameStarted        EventType = "GAME_STARTED"
	EventMoveProcessed      EventType = "MOVE_PROCESSED"
	EventGameEnded          EventType = "GAME_ENDED"
	EventMessageThrottled   EventType = "MESSAGE_THROTTLED"
	EventPersistFailed      EventType = "PERSIST_FAILED"
)

// Event represents an event in the system
type Event struct {
	Type    EventType
	RoomID  string // Optional, can be empty for process-wide events
	Payload interface{}
}

// Handler is a function that processes events
type Handler func(event Event)

// Publisher is the central event publisher
type Publisher struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Handler
}

// NewPublisher creates a new event publisher
func NewPublisher() *Publisher {
	return &Publisher{
		subscribers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a specific event type
func (p *Publisher) Subscribe(eventType EventType, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subscribers[eventType] = append(p.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (p *Publisher) SubscribeAll(handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Special event type for "all events"
	p.subscribers["*"] = append(p.subscribers["*"], handler)
}

// Publish broadcasts an event to all subscribers including "all events"
// handlers. Handlers run on their own goroutines, so Publish never blocks
// the caller. A nil publisher drops the event.
func (p *Publisher) Publish(event Event) {
	if p == nil {
		return
	}

	p.mu.RLock()
	handlers := p.subscribers[event.Type]
	allHandlers := p.subscribers["*"]
	p.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event)
	}

	for _, handler := range allHandlers {
		go handler(event)
	}
}
