package game

import (
	"time"

	"github.com/tecu23/chess-rooms/internal/color"
	"github.com/tecu23/chess-rooms/internal/messages"
)

// Conn is the outbound side of a client connection. Send must not block and
// Close must be safe to call more than once.
type Conn interface {
	ID() string
	Send(msg messages.OutboundMessage)
	Close()
}

// Cursor is the last pointer position a user reported.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// User is one seat of a room. Entries are never removed: a closed
// connection only flips IsConnected so the same userName can take the seat
// back.
type User struct {
	ID            string
	UserName      string
	Avatar        string
	Color         color.Color
	Cursor        *Cursor
	AccountID     string
	GameStartedAt time.Time
	IsConnected   bool

	conn Conn
}

func (u *User) participant() *Participant {
	return &Participant{
		UserName:    u.UserName,
		Avatar:      u.Avatar,
		Color:       u.Color,
		IsConnected: u.IsConnected,
	}
}

func (u *User) send(msg messages.OutboundMessage) {
	if !u.IsConnected || u.conn == nil {
		return
	}
	u.conn.Send(msg)
}
