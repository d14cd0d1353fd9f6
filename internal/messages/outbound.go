// Package messages defines the frames exchanged with websocket clients.
package messages

import (
	"github.com/tecu23/chess-rooms/internal/color"
	"github.com/tecu23/chess-rooms/pkg/chess"
)

// Outbound event names
const (
	EventConnection   = "connection"
	EventReconnection = "reconnection"
	EventGameStart    = "gameStart"
	EventGameEnd      = "gameEnd"
	EventMessage      = "message"
	EventMove         = "move"
	EventCursor       = "cursor"
	EventDrawOffer    = "drawOffer"
	EventTimerTick    = "timerTick"
)

// OutboundMessage is how we wrap responses before sending them to the
// client. Typed events set Event; system notices set System, Message and
// Type instead.
type OutboundMessage struct {
	Event     string `json:"event,omitempty"`
	Payload   any    `json:"payload,omitempty"`
	GameState any    `json:"gameState,omitempty"`

	System  bool   `json:"system,omitempty"`
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
}

// NewEvent builds a typed event.
func NewEvent(event string, payload, state any) OutboundMessage {
	return OutboundMessage{Event: event, Payload: payload, GameState: state}
}

// NewNotice builds a system notice of the given kind.
func NewNotice(kind, text string) OutboundMessage {
	return OutboundMessage{System: true, Message: text, Type: kind}
}

// IsNotice reports whether m is a system notice.
func (m OutboundMessage) IsNotice() bool {
	return m.System
}

// ParticipantPayload announces a user joining or returning.
type ParticipantPayload struct {
	UserName string      `json:"userName"`
	Avatar   string      `json:"avatar"`
	Color    color.Color `json:"color"`
}

// ChatPayload relays a chat line.
type ChatPayload struct {
	UserName string      `json:"userName"`
	Color    color.Color `json:"color"`
	Text     string      `json:"text"`
}

// MovePayload relays an accepted move.
type MovePayload struct {
	FEN    string      `json:"FEN"`
	From   string      `json:"from"`
	To     string      `json:"to"`
	Figure string      `json:"figure"`
	Color  color.Color `json:"color"`
}

// CursorPayload relays a pointer position.
type CursorPayload struct {
	UserName string      `json:"userName"`
	Color    color.Color `json:"color"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
}

// DrawOfferPayload reports a step of the draw negotiation.
type DrawOfferPayload struct {
	Action  string `json:"action"`
	From    string `json:"from"`
	To      string `json:"to"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// TimerTickPayload is the lightweight per-second clock update.
type TimerTickPayload struct {
	Timer         chess.TimerState `json:"timer"`
	CurrentPlayer color.Color      `json:"currentPlayer"`
}
