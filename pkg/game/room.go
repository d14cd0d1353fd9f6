// Package game holds the per-match state machine: seats, moves, clock,
// draw negotiation and the views sent to each player.
package game

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/chess-rooms/internal/color"
	"github.com/tecu23/chess-rooms/internal/messages"
	"github.com/tecu23/chess-rooms/internal/notices"
	"github.com/tecu23/chess-rooms/pkg/chess"
	"github.com/tecu23/chess-rooms/pkg/events"
)

// ErrRoomFull is returned when a third distinct user tries to join.
var ErrRoomFull = errors.New("room is full")

// Config holds everything needed to build a room.
type Config struct {
	ID               string
	InitialFEN       string
	FirstPlayerColor color.Color
	TimeControl      chess.TimeControl
	TickInterval     time.Duration

	Notices   *notices.Catalog
	Publisher *events.Publisher
	Logger    *zap.Logger
	Now       func() time.Time
}

// Room owns one match. Every exported method takes the room lock, and so
// does the clock callback, so all state changes of a room are serialized.
type Room struct {
	ID string

	mu    sync.Mutex
	users map[string]*User
	order []string // user ids in join order

	state      GameState
	clock      *chess.Clock
	ticker     *chess.Ticker
	initialFEN string

	firstPlayerColor color.Color
	hasMobilePlayer  bool
	createdAt        time.Time
	startedAt        time.Time
	endedAt          time.Time
	persisted        bool

	notices   *notices.Catalog
	publisher *events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewRoom builds a room in the waiting state. A blank FEN means the
// standard starting position.
func NewRoom(cfg Config) *Room {
	if cfg.Notices == nil {
		cfg.Notices = notices.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	fen := chess.NormalizeFEN(cfg.InitialFEN)
	if !cfg.FirstPlayerColor.Valid() {
		cfg.FirstPlayerColor = ""
	}

	return &Room{
		ID:               cfg.ID,
		users:            make(map[string]*User),
		state:            newGameState(fen),
		clock:            chess.NewClock(cfg.TimeControl),
		ticker:           chess.NewTicker(cfg.TickInterval),
		initialFEN:       fen,
		firstPlayerColor: cfg.FirstPlayerColor,
		createdAt:        cfg.Now(),
		notices:          cfg.Notices,
		publisher:        cfg.Publisher,
		logger:           cfg.Logger.With(zap.String("room_id", cfg.ID)),
		now:              cfg.Now,
	}
}

// JoinRequest describes a connection asking for a seat.
type JoinRequest struct {
	UserName        string
	Avatar          string
	HasMobilePlayer bool
}

// JoinResult reports the seat a connection was attached to.
type JoinResult struct {
	UserID      string
	Color       color.Color
	Reconnected bool
}

// Join seats conn. A user with the same userName takes its old seat back;
// otherwise a new seat is created while fewer than two users are live. A
// rejected connection gets a notice and is closed.
func (r *Room) Join(req JoinRequest, conn Conn) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u := r.userByNameLocked(req.UserName); u != nil {
		if !u.IsConnected && r.liveCountLocked() >= 2 {
			r.rejectLocked(conn)
			return JoinResult{}, ErrRoomFull
		}
		r.markMobileLocked(req)
		r.reattachLocked(u, req, conn)
		return JoinResult{UserID: u.ID, Color: u.Color, Reconnected: true}, nil
	}

	if r.liveCountLocked() >= 2 {
		r.rejectLocked(conn)
		return JoinResult{}, ErrRoomFull
	}
	r.markMobileLocked(req)

	u := &User{
		ID:          uuid.NewString(),
		UserName:    req.UserName,
		Avatar:      req.Avatar,
		Color:       r.assignColorLocked(),
		IsConnected: true,
		conn:        conn,
	}
	r.users[u.ID] = u
	r.order = append(r.order, u.ID)

	r.logger.Info("player joined",
		zap.String("user_name", u.UserName),
		zap.String("color", string(u.Color)),
	)

	u.send(messages.NewEvent(messages.EventConnection, u.participant(), r.viewLocked(u.ID)))
	r.broadcastLocked(u.ID, func(o *User) messages.OutboundMessage {
		return messages.NewEvent(messages.EventConnection, u.participant(), r.viewLocked(o.ID))
	})
	r.broadcastLocked(u.ID, func(*User) messages.OutboundMessage {
		return r.noticeLocked(notices.OpponentJoined, u.UserName)
	})

	r.publisher.Publish(events.Event{Type: events.EventPlayerJoined, RoomID: r.ID, Payload: u.participant()})

	if r.liveCountLocked() == 2 {
		if !r.state.GameStarted {
			r.startGameLocked()
		} else if !r.state.GameEnded {
			r.startClockLocked()
		}
	}

	return JoinResult{UserID: u.ID, Color: u.Color}, nil
}

func (r *Room) reattachLocked(u *User, req JoinRequest, conn Conn) {
	if u.conn != nil && u.conn != conn {
		u.conn.Close()
	}
	u.conn = conn
	u.IsConnected = true
	if req.Avatar != "" {
		u.Avatar = req.Avatar
	}

	r.logger.Info("player reconnected",
		zap.String("user_name", u.UserName),
		zap.String("color", string(u.Color)),
	)

	u.send(messages.NewEvent(messages.EventReconnection, u.participant(), r.viewLocked(u.ID)))
	r.broadcastLocked(u.ID, func(o *User) messages.OutboundMessage {
		return messages.NewEvent(messages.EventReconnection, u.participant(), r.viewLocked(o.ID))
	})
	r.broadcastLocked(u.ID, func(*User) messages.OutboundMessage {
		return r.noticeLocked(notices.OpponentReconnected, u.UserName)
	})

	r.publisher.Publish(events.Event{Type: events.EventPlayerReconnected, RoomID: r.ID, Payload: u.participant()})

	if r.inProgressLocked() && r.liveCountLocked() == 2 {
		r.startClockLocked()
	}
	if r.inProgressLocked() {
		u.send(r.tickMessageLocked())
	}
}

// markMobileLocked records that a seated participant plays from a mobile
// client. The flag never resets.
func (r *Room) markMobileLocked(req JoinRequest) {
	if req.HasMobilePlayer {
		r.hasMobilePlayer = true
	}
}

func (r *Room) rejectLocked(conn Conn) {
	r.logger.Info("connection rejected, room full")
	conn.Send(r.noticeLocked(notices.RoomFull))
	conn.Close()
}

// assignColorLocked pins the first seat to firstPlayerColor (or a random
// color) and gives every later seat the complement of the other player.
func (r *Room) assignColorLocked() color.Color {
	if other := r.otherUserLocked(""); other != nil {
		return other.Color.Opp()
	}
	if r.firstPlayerColor != "" {
		return r.firstPlayerColor
	}
	return color.Random()
}

func (r *Room) startGameLocked() {
	now := r.now()
	r.state.GameStarted = true
	r.startedAt = now
	for _, u := range r.users {
		if u.IsConnected {
			u.GameStartedAt = now
		}
	}

	r.startClockLocked()

	r.logger.Info("game started", zap.String("current_player", string(r.state.CurrentPlayer)))

	r.broadcastLocked("", func(o *User) messages.OutboundMessage {
		return messages.NewEvent(messages.EventGameStart, nil, r.viewLocked(o.ID))
	})

	r.publisher.Publish(events.Event{Type: events.EventGameStarted, RoomID: r.ID})
}

// Leave marks the user disconnected if conn is still its current
// connection. It reports whether the seat changed.
func (r *Room) Leave(userName string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.userByNameLocked(userName)
	if u == nil || !u.IsConnected || u.conn != conn {
		return false
	}

	u.IsConnected = false
	u.conn = nil

	r.logger.Info("player disconnected", zap.String("user_name", u.UserName))

	r.broadcastLocked(u.ID, func(*User) messages.OutboundMessage {
		return r.noticeLocked(notices.OpponentDisconnected, u.UserName)
	})

	if r.liveCountLocked() < 2 {
		r.stopClockLocked()
	}
	return true
}

// Expire tells every live user the room expired, closes their connections
// and stops the clock.
func (r *Room) Expire() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopClockLocked()

	for _, id := range r.order {
		u := r.users[id]
		if !u.IsConnected {
			continue
		}
		u.send(r.noticeLocked(notices.RoomExpired))
		if u.conn != nil {
			u.conn.Close()
		}
		u.IsConnected = false
		u.conn = nil
	}
}

// Close stops the clock. It is called when the room is dropped.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopClockLocked()
}

// HandleChat relays a chat line to everyone in the room.
func (r *Room) HandleChat(userID string, m messages.Chat) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.users[userID]
	if u == nil || m.Text == "" {
		return
	}

	payload := messages.ChatPayload{UserName: u.UserName, Color: u.Color, Text: m.Text}
	r.broadcastLocked("", func(*User) messages.OutboundMessage {
		return messages.NewEvent(messages.EventMessage, payload, nil)
	})
}

// HandleCursor stores the sender's pointer and relays it to the others.
func (r *Room) HandleCursor(userID string, m messages.Cursor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.users[userID]
	if u == nil {
		return
	}

	u.Cursor = &Cursor{X: m.X, Y: m.Y}

	payload := messages.CursorPayload{UserName: u.UserName, Color: u.Color, X: m.X, Y: m.Y}
	r.broadcastLocked(u.ID, func(*User) messages.OutboundMessage {
		return messages.NewEvent(messages.EventCursor, payload, nil)
	})
}

// HandleMove applies a move reported by the side to move, then checks the
// repetition and material draw rules.
func (r *Room) HandleMove(userID string, m messages.Move) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.users[userID]
	if u == nil || !r.acceptsGameMessageLocked(u) {
		return
	}

	if u.Color != r.state.CurrentPlayer {
		u.send(r.noticeLocked(notices.NotYourTurn))
		return
	}

	if err := chess.ValidateFEN(m.FEN); err != nil {
		u.send(r.noticeLocked(notices.InvalidMove, err.Error()))
		return
	}
	if side, err := chess.SideToMove(m.FEN); err != nil || side != u.Color.Opp() {
		u.send(r.noticeLocked(notices.InvalidMove, "position has the wrong side to move"))
		return
	}

	move := Move{FEN: m.FEN, From: m.From, To: m.To, Figure: m.Figure, Color: u.Color}

	r.state.CurrentFEN = m.FEN
	r.state.MoveHistory = append(r.state.MoveHistory, move)
	r.clock.AddIncrement(u.Color)
	r.state.CurrentPlayer = u.Color.Opp()
	r.state.CurrentColor = r.state.CurrentPlayer

	r.logger.Debug("processed move",
		zap.String("from", m.From),
		zap.String("to", m.To),
		zap.String("new_turn", string(r.state.CurrentPlayer)),
	)

	r.publisher.Publish(events.Event{Type: events.EventMoveProcessed, RoomID: r.ID, Payload: move})

	if chess.CountRepetitions(m.FEN, r.state.historyFENs()) >= 3 {
		r.endGameLocked(Result{ResultType: ResultDraw, Reason: ReasonRepetition})
		return
	}
	if chess.InsufficientMaterial(m.FEN) {
		r.endGameLocked(Result{ResultType: ResultDraw, Reason: ReasonInsufficientMaterial})
		return
	}

	payload := messages.MovePayload{FEN: m.FEN, From: m.From, To: m.To, Figure: m.Figure, Color: u.Color}
	r.broadcastLocked(u.ID, func(o *User) messages.OutboundMessage {
		return messages.NewEvent(messages.EventMove, payload, r.viewLocked(o.ID))
	})
}

// HandleGameResult ends the game with a result reported by a client, e.g.
// after the client's rules engine detected mate.
func (r *Room) HandleGameResult(userID string, m messages.GameResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.users[userID]
	if u == nil || !r.acceptsGameMessageLocked(u) {
		return
	}

	result := Result{ResultType: ResultType(m.ResultType), WinColor: color.Parse(m.WinColor), Reason: ReasonReported}
	if !result.ResultType.Valid() {
		u.send(r.noticeLocked(notices.InvalidResult, m.ResultType))
		return
	}

	switch result.ResultType {
	case ResultMate:
		if result.WinColor == "" {
			// The mated side is the one to move.
			result.WinColor = r.state.CurrentPlayer.Opp()
		}
	case ResultResignation:
		if result.WinColor == "" {
			result.WinColor = u.Color.Opp()
		}
	default:
		result.WinColor = ""
	}

	r.endGameLocked(result)
}

// HandleResign ends the game in favor of the sender's opponent.
func (r *Room) HandleResign(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.users[userID]
	if u == nil || !r.acceptsGameMessageLocked(u) {
		return
	}

	r.endGameLocked(Result{ResultType: ResultResignation, WinColor: u.Color.Opp()})
}

// acceptsGameMessageLocked answers game-affecting messages sent before the
// start or after the end with a notice.
func (r *Room) acceptsGameMessageLocked(u *User) bool {
	switch {
	case r.state.GameEnded:
		u.send(r.noticeLocked(notices.GameAlreadyEnded))
		return false
	case !r.state.GameStarted:
		u.send(r.noticeLocked(notices.GameNotStarted))
		return false
	}
	return true
}

func (r *Room) inProgressLocked() bool {
	return r.state.GameStarted && !r.state.GameEnded
}

// endGameLocked is the single termination path. The persisted flag is set
// before the game-ended event leaves the room, so concurrent termination
// paths produce one record.
func (r *Room) endGameLocked(result Result) {
	if r.state.GameEnded {
		return
	}

	r.state.GameEnded = true
	r.state.GameResult = &result
	r.state.DrawOffer = nil
	r.endedAt = r.now()
	r.stopClockLocked()

	r.logger.Info("game ended",
		zap.String("result_type", string(result.ResultType)),
		zap.String("win_color", string(result.WinColor)),
		zap.String("reason", result.Reason),
		zap.Int("moves", len(r.state.MoveHistory)),
		zap.String("white_clock", chess.FormatClockTime(r.clock.Remaining(color.White))),
		zap.String("black_clock", chess.FormatClockTime(r.clock.Remaining(color.Black))),
	)

	r.broadcastLocked("", func(o *User) messages.OutboundMessage {
		return messages.NewEvent(messages.EventGameEnd, result, r.viewLocked(o.ID))
	})

	if r.persisted {
		return
	}
	r.persisted = true

	r.publisher.Publish(events.Event{Type: events.EventGameEnded, RoomID: r.ID, Payload: r.recordLocked()})
}

func (r *Room) startClockLocked() {
	gen := r.ticker.Start(r.onTick)
	r.logger.Debug("clock started", zap.Uint64("generation", gen))
}

func (r *Room) stopClockLocked() {
	if r.ticker.Running() {
		r.ticker.Stop()
		r.logger.Debug("clock stopped")
	}
}

// onTick is the clock callback. Ticks from a stopped or replaced ticker are
// dropped.
func (r *Room) onTick(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ticker.Live(gen) {
		r.logger.Debug("dropping stale tick",
			zap.Uint64("generation", gen),
			zap.Uint64("current_generation", r.ticker.Generation()),
		)
		return
	}
	if !r.inProgressLocked() {
		return
	}

	active := r.state.CurrentColor
	if r.clock.Tick(active) {
		r.endGameLocked(Result{ResultType: ResultResignation, WinColor: active.Opp(), Reason: ReasonTime})
		return
	}

	tick := r.tickMessageLocked()
	r.broadcastLocked("", func(*User) messages.OutboundMessage { return tick })
}

func (r *Room) tickMessageLocked() messages.OutboundMessage {
	return messages.NewEvent(messages.EventTimerTick, messages.TimerTickPayload{
		Timer:         r.clock.State(),
		CurrentPlayer: r.state.CurrentPlayer,
	}, nil)
}

func (r *Room) noticeLocked(kind string, args ...any) messages.OutboundMessage {
	return messages.NewNotice(kind, r.notices.Text(kind, args...))
}

// broadcastLocked sends build(u) to every live user except the one with id
// except.
func (r *Room) broadcastLocked(except string, build func(u *User) messages.OutboundMessage) {
	for _, id := range r.order {
		u := r.users[id]
		if id == except || !u.IsConnected {
			continue
		}
		u.send(build(u))
	}
}

func (r *Room) userByNameLocked(userName string) *User {
	for _, id := range r.order {
		if u := r.users[id]; u.UserName == userName {
			return u
		}
	}
	return nil
}

// otherUserLocked returns the seat facing userID, preferring live users.
// An empty userID matches any seat.
func (r *Room) otherUserLocked(userID string) *User {
	var stale *User
	for _, id := range r.order {
		if id == userID {
			continue
		}
		u := r.users[id]
		if u.IsConnected {
			return u
		}
		if stale == nil {
			stale = u
		}
	}
	return stale
}

func (r *Room) liveCountLocked() int {
	n := 0
	for _, u := range r.users {
		if u.IsConnected {
			n++
		}
	}
	return n
}
