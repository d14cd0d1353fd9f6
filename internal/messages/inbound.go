package messages

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownMessage is returned by Decode for an unrecognized type tag.
var ErrUnknownMessage = errors.New("unknown message type")

// InboundMessage is the generic wrapper for messages coming from the client.
// The "type" field tells us the action; "payload" is the data we parse further.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound type tags
const (
	TypeChat       = "message"
	TypeMove       = "move"
	TypeGameResult = "gameResult"
	TypeDrawOffer  = "drawOffer"
	TypeResign     = "resign"
	TypeCursor     = "cursor"
)

// Inbound is one decoded client message. The set of implementations is
// closed: Chat, Move, GameResult, DrawOffer, Resign and Cursor.
type Inbound interface {
	inbound()
}

// Chat is a free-text message to the room.
type Chat struct {
	Text string `json:"text"`
}

// Move reports a move made on the client together with the resulting
// position.
type Move struct {
	FEN    string `json:"FEN"`
	From   string `json:"from"`
	To     string `json:"to"`
	Figure string `json:"figure"`
}

// GameResult is a client's report that the game finished on the board.
type GameResult struct {
	ResultType string `json:"resultType"`
	WinColor   string `json:"winColor,omitempty"`
}

// Draw offer actions
const (
	DrawActionOffer   = "offer"
	DrawActionAccept  = "accept"
	DrawActionDecline = "decline"
)

// DrawOffer carries one step of the draw negotiation.
type DrawOffer struct {
	Action string `json:"action"`
}

// Resign concedes the game.
type Resign struct{}

// Cursor is the sender's pointer position over the board.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (Chat) inbound()       {}
func (Move) inbound()       {}
func (GameResult) inbound() {}
func (DrawOffer) inbound()  {}
func (Resign) inbound()     {}
func (Cursor) inbound()     {}

// Decode parses a raw frame into its concrete message.
func Decode(data []byte) (Inbound, error) {
	var env InboundMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg Inbound
	switch env.Type {
	case TypeChat:
		msg = &Chat{}
	case TypeMove:
		msg = &Move{}
	case TypeGameResult:
		msg = &GameResult{}
	case TypeDrawOffer:
		msg = &DrawOffer{}
	case TypeResign:
		return Resign{}, nil
	case TypeCursor:
		msg = &Cursor{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}

	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, fmt.Errorf("%s: missing payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, msg); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}

	switch m := msg.(type) {
	case *Chat:
		return *m, nil
	case *Move:
		return *m, nil
	case *GameResult:
		return *m, nil
	case *DrawOffer:
		return *m, nil
	case *Cursor:
		return *m, nil
	}
	return msg, nil
}
