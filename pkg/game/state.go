package game

import (
	"time"

	"github.com/tecu23/chess-rooms/internal/color"
	"github.com/tecu23/chess-rooms/pkg/chess"
)

// ResultType is how a game finished.
type ResultType string

// Possible result types
const (
	ResultMate        ResultType = "mate"
	ResultStalemate   ResultType = "stalemate"
	ResultDraw        ResultType = "draw"
	ResultResignation ResultType = "resignation"
)

// Valid reports whether t is a known result type.
func (t ResultType) Valid() bool {
	switch t {
	case ResultMate, ResultStalemate, ResultDraw, ResultResignation:
		return true
	}
	return false
}

// Result reasons recorded alongside the result type
const (
	ReasonTime                 = "time"
	ReasonRepetition           = "threefold repetition"
	ReasonInsufficientMaterial = "insufficient material"
	ReasonAgreement            = "agreement"
	ReasonReported             = "reported"
)

// Result is the final outcome of a game.
type Result struct {
	ResultType ResultType  `json:"resultType"`
	WinColor   color.Color `json:"winColor,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// Move is one half-move as reported by the client, with the position it
// produced.
type Move struct {
	FEN    string      `json:"FEN"`
	From   string      `json:"from"`
	To     string      `json:"to"`
	Figure string      `json:"figure"`
	Color  color.Color `json:"color"`
}

// DrawStatus is the state of a draw offer.
type DrawStatus string

// Draw offer states
const (
	DrawPending  DrawStatus = "pending"
	DrawAccepted DrawStatus = "accepted"
	DrawDeclined DrawStatus = "declined"
)

// DrawOffer is the single outstanding draw offer of a room.
type DrawOffer struct {
	From   string     `json:"from"`
	To     string     `json:"to"`
	Status DrawStatus `json:"status"`

	fromID string
	toID   string
}

// GameState is the shared, authoritative state of one match.
type GameState struct {
	CurrentFEN    string
	MoveHistory   []Move
	CurrentPlayer color.Color
	CurrentColor  color.Color
	GameStarted   bool
	GameEnded     bool
	GameResult    *Result
	DrawOffer     *DrawOffer

	// DrawOfferCount is keyed by internal user id.
	DrawOfferCount map[string]int
}

func newGameState(fen string) GameState {
	side, err := chess.SideToMove(fen)
	if err != nil {
		side = color.White
	}

	return GameState{
		CurrentFEN:     fen,
		MoveHistory:    []Move{},
		CurrentPlayer:  side,
		CurrentColor:   side,
		DrawOfferCount: make(map[string]int),
	}
}

func (s *GameState) historyFENs() []string {
	fens := make([]string, len(s.MoveHistory))
	for i, m := range s.MoveHistory {
		fens[i] = m.FEN
	}
	return fens
}

// Participant is the public identity of a seated user.
type Participant struct {
	UserName    string      `json:"userName"`
	Avatar      string      `json:"avatar"`
	Color       color.Color `json:"color"`
	IsConnected bool        `json:"isConnected"`
}

// GameStateView is a copy of the game state prepared for one recipient.
// Player and Opponent are only set on personalized views.
type GameStateView struct {
	RoomID          string           `json:"roomId"`
	InitialFEN      string           `json:"initialFEN"`
	CurrentFEN      string           `json:"currentFEN"`
	MoveHistory     []Move           `json:"moveHistory"`
	CurrentPlayer   color.Color      `json:"currentPlayer"`
	CurrentColor    color.Color      `json:"currentColor"`
	GameStarted     bool             `json:"gameStarted"`
	GameEnded       bool             `json:"gameEnded"`
	GameResult      *Result          `json:"gameResult,omitempty"`
	DrawOffer       *DrawOffer       `json:"drawOffer,omitempty"`
	DrawOfferCount  map[string]int   `json:"drawOfferCount"`
	Timer           chess.TimerState `json:"timer"`
	StartedAt       *time.Time       `json:"startedAt,omitempty"`
	HasMobilePlayer bool             `json:"hasMobilePlayer"`

	Player   *Participant `json:"player,omitempty"`
	Opponent *Participant `json:"opponent,omitempty"`
}

// PlayerRecord identifies one side in a finished match.
type PlayerRecord struct {
	UserName  string `json:"userName"`
	Avatar    string `json:"avatar"`
	AccountID string `json:"accountId,omitempty"`
}

// MatchRecord is what gets persisted once a game ends.
type MatchRecord struct {
	RoomID          string            `json:"roomId"`
	InitialFEN      string            `json:"initialFEN"`
	FinalFEN        string            `json:"finalFEN"`
	Moves           []Move            `json:"moves"`
	Result          Result            `json:"result"`
	White           *PlayerRecord     `json:"white,omitempty"`
	Black           *PlayerRecord     `json:"black,omitempty"`
	TimeControl     chess.TimeControl `json:"timeControl"`
	HasMobilePlayer bool              `json:"hasMobilePlayer"`
	StartedAt       time.Time         `json:"startedAt"`
	EndedAt         time.Time         `json:"endedAt"`
}
