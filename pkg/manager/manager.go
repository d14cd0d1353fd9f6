// Package manager is the room registry: it creates rooms, routes
// connections and messages to them, and sweeps abandoned ones.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tecu23/chess-rooms/internal/color"
	"github.com/tecu23/chess-rooms/internal/messages"
	"github.com/tecu23/chess-rooms/internal/notices"
	"github.com/tecu23/chess-rooms/pkg/chess"
	"github.com/tecu23/chess-rooms/pkg/events"
	"github.com/tecu23/chess-rooms/pkg/game"
	"github.com/tecu23/chess-rooms/pkg/ratelimit"
	"github.com/tecu23/chess-rooms/pkg/repository"
)

// ErrRoomNotFound is returned for unknown room ids.
var ErrRoomNotFound = errors.New("room not found")

const (
	roomIDAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"
	roomIDLength   = 8
	maxIDAttempts  = 5
)

// Removal reasons reported with EventRoomRemoved
const (
	RemovedExpired = "expired"
	RemovedEnded   = "ended"
)

// TokenVerifier resolves an account token to an account id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Options tunes the registry.
type Options struct {
	RoomTTL         time.Duration
	SweepInterval   time.Duration
	TickInterval    time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
	PersistTimeout  time.Duration

	DefaultTimeControl chess.TimeControl
	Notices            *notices.Catalog
}

func (o *Options) setDefaults() {
	if o.RoomTTL <= 0 {
		o.RoomTTL = 24 * time.Hour
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = time.Hour
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.RateLimitMax <= 0 {
		o.RateLimitMax = 100
	}
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = time.Second
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 10 * time.Second
	}
	if o.DefaultTimeControl.WhiteTime <= 0 {
		o.DefaultTimeControl.WhiteTime = 600
	}
	if o.DefaultTimeControl.BlackTime <= 0 {
		o.DefaultTimeControl.BlackTime = 600
	}
	if o.Notices == nil {
		o.Notices = notices.Default()
	}
}

// Manager owns every room of the process together with the last-activity
// timestamps and the per-user rate limits.
type Manager struct {
	rooms    map[string]*game.Room
	activity map[string]time.Time
	mu       sync.Mutex

	limiter     *ratelimit.Limiter
	repo        repository.MatchRepository
	verifier    TokenVerifier
	verifyGroup singleflight.Group

	publisher *events.Publisher
	logger    *zap.Logger
	opts      Options

	now   func() time.Time
	newID func() string

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a registry. repo and verifier may be nil, in which
// case finished games are not stored and auth tokens are ignored.
func NewManager(
	opts Options,
	repo repository.MatchRepository,
	verifier TokenVerifier,
	publisher *events.Publisher,
	logger *zap.Logger,
) (*Manager, error) {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NewPublisher()
	}

	gen, err := nanoid.CustomASCII(roomIDAlphabet, roomIDLength)
	if err != nil {
		return nil, fmt.Errorf("room id generator: %w", err)
	}

	m := &Manager{
		rooms:     make(map[string]*game.Room),
		activity:  make(map[string]time.Time),
		limiter:   ratelimit.New(opts.RateLimitMax, opts.RateLimitWindow),
		repo:      repo,
		verifier:  verifier,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
		newID:     gen,
		stopCh:    make(chan struct{}),
	}

	m.setupEventHandlers()

	return m, nil
}

// setupEventHandlers sets up event handlers for the registry
func (m *Manager) setupEventHandlers() {
	m.publisher.Subscribe(events.EventGameEnded, func(event events.Event) {
		rec, ok := event.Payload.(*game.MatchRecord)
		if !ok {
			m.logger.Error("invalid game ended payload type", zap.String("room_id", event.RoomID))
			return
		}
		m.persist(rec)
	})
}

// persist saves a finished match. Failures are logged and otherwise
// ignored; the game has already ended for the players.
func (m *Manager) persist(rec *game.MatchRecord) {
	if m.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.PersistTimeout)
	defer cancel()

	err := m.repo.SaveIfAbsent(ctx, rec)
	switch {
	case err == nil:
		m.logger.Info("match saved", zap.String("room_id", rec.RoomID))
	case errors.Is(err, repository.ErrAlreadySaved):
		m.logger.Debug("match already saved", zap.String("room_id", rec.RoomID))
	default:
		m.logger.Error("failed to save match", zap.String("room_id", rec.RoomID), zap.Error(err))
		m.publisher.Publish(events.Event{Type: events.EventPersistFailed, RoomID: rec.RoomID})
	}
}

// TimerConfig is the input of CreateRoom. Nil fields take the defaults.
type TimerConfig struct {
	WhiteTimer *int64 `json:"whiteTimer,omitempty"`
	BlackTimer *int64 `json:"blackTimer,omitempty"`
	Increment  *int64 `json:"increment,omitempty"`
	CurrentFEN string `json:"currentFEN,omitempty"`
	Color      string `json:"color,omitempty"`
}

func (m *Manager) timeControl(tc TimerConfig) chess.TimeControl {
	out := m.opts.DefaultTimeControl
	if tc.WhiteTimer != nil && *tc.WhiteTimer > 0 {
		out.WhiteTime = *tc.WhiteTimer
	}
	if tc.BlackTimer != nil && *tc.BlackTimer > 0 {
		out.BlackTime = *tc.BlackTimer
	}
	if tc.Increment != nil && *tc.Increment >= 0 {
		out.WhiteIncrement = *tc.Increment
		out.BlackIncrement = *tc.Increment
	}
	return out
}

// CreateRoom builds an empty room and returns its id together with the
// effective timer settings.
func (m *Manager) CreateRoom(tc TimerConfig) (string, game.TimeControlView, error) {
	fen := chess.NormalizeFEN(tc.CurrentFEN)
	if err := chess.ValidateFEN(fen); err != nil {
		return "", game.TimeControlView{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.uniqueIDLocked()
	if err != nil {
		return "", game.TimeControlView{}, err
	}

	room := m.newRoomLocked(id, fen, color.Parse(tc.Color), m.timeControl(tc))
	return id, room.TimeControl(), nil
}

func (m *Manager) uniqueIDLocked() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := m.newID()
		if _, taken := m.rooms[id]; !taken {
			return id, nil
		}
	}
	return "", errors.New("could not generate a unique room id")
}

func (m *Manager) newRoomLocked(id, fen string, first color.Color, tc chess.TimeControl) *game.Room {
	room := game.NewRoom(game.Config{
		ID:               id,
		InitialFEN:       fen,
		FirstPlayerColor: first,
		TimeControl:      tc,
		TickInterval:     m.opts.TickInterval,
		Notices:          m.opts.Notices,
		Publisher:        m.publisher,
		Logger:           m.logger,
		Now:              m.now,
	})

	m.rooms[id] = room
	m.activity[id] = m.now()

	m.logger.Info("created new room",
		zap.String("room_id", id),
		zap.Int64("white_time", tc.WhiteTime),
		zap.Int64("black_time", tc.BlackTime),
		zap.Int64("increment", tc.WhiteIncrement),
	)
	m.publisher.Publish(events.Event{Type: events.EventRoomCreated, RoomID: id})

	return room
}

// GetRoomState returns a snapshot of the room's game state.
func (m *Manager) GetRoomState(roomID string) (game.GameStateView, error) {
	room := m.touch(roomID)
	if room == nil {
		return game.GameStateView{}, ErrRoomNotFound
	}
	return room.Snapshot(), nil
}

// ConnectRequest carries the query parameters of a websocket connection.
type ConnectRequest struct {
	RoomID          string
	UserName        string
	Avatar          string
	AuthToken       string
	InitialFEN      string
	Color           string
	HasMobilePlayer bool
}

// RouteConnection attaches conn to its room, creating the room from the
// request's defaults when it does not exist yet.
func (m *Manager) RouteConnection(req ConnectRequest, conn game.Conn) (game.JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.rooms[req.RoomID]
	if room == nil {
		fen := chess.NormalizeFEN(req.InitialFEN)
		if err := chess.ValidateFEN(fen); err != nil {
			m.logger.Warn("ignoring invalid initial FEN",
				zap.String("room_id", req.RoomID),
				zap.String("fen", req.InitialFEN),
			)
			fen = chess.StartingFEN
		}
		room = m.newRoomLocked(req.RoomID, fen, color.Parse(req.Color), m.opts.DefaultTimeControl)
	}
	m.activity[req.RoomID] = m.now()

	res, err := room.Join(game.JoinRequest{
		UserName:        req.UserName,
		Avatar:          req.Avatar,
		HasMobilePlayer: req.HasMobilePlayer,
	}, conn)
	if err != nil {
		m.logger.Info("connection rejected",
			zap.String("room_id", req.RoomID),
			zap.String("user_name", req.UserName),
			zap.Error(err),
		)
		m.publisher.Publish(events.Event{Type: events.EventConnectionRejected, RoomID: req.RoomID})
		return res, err
	}

	if req.AuthToken != "" && m.verifier != nil {
		go m.verifyAccount(req.RoomID, req.UserName, req.AuthToken)
	}

	return res, nil
}

// verifyAccount resolves the token and retro-fits the account id onto the
// seat. Concurrent checks of the same token share one verification.
func (m *Manager) verifyAccount(roomID, userName, token string) {
	v, err, _ := m.verifyGroup.Do(token, func() (interface{}, error) {
		return m.verifier.Verify(token)
	})
	if err != nil {
		m.logger.Warn("token verification failed",
			zap.String("room_id", roomID),
			zap.String("user_name", userName),
			zap.Error(err),
		)
		return
	}

	room := m.room(roomID)
	if room == nil {
		return
	}
	if room.SetAccountID(userName, v.(string)) {
		m.logger.Debug("account attached",
			zap.String("room_id", roomID),
			zap.String("user_name", userName),
		)
	}
}

// RouteMessage delivers a decoded message from userName to its room.
// Messages for unknown rooms or users are dropped.
func (m *Manager) RouteMessage(roomID, userName string, msg messages.Inbound) {
	room := m.touch(roomID)
	if room == nil {
		m.logger.Debug("message for unknown room dropped", zap.String("room_id", roomID))
		return
	}

	userID, ok := room.UserIDByName(userName)
	if !ok {
		m.logger.Debug("message from unknown user dropped",
			zap.String("room_id", roomID),
			zap.String("user_name", userName),
		)
		return
	}

	if !m.limiter.Allow(userID) {
		room.Notify(userID, notices.RateLimited)
		m.publisher.Publish(events.Event{Type: events.EventMessageThrottled, RoomID: roomID})
		return
	}

	switch msg := msg.(type) {
	case messages.Chat:
		room.HandleChat(userID, msg)
	case messages.Move:
		room.HandleMove(userID, msg)
	case messages.GameResult:
		room.HandleGameResult(userID, msg)
	case messages.DrawOffer:
		room.HandleDrawOffer(userID, msg)
	case messages.Resign:
		room.HandleResign(userID)
	case messages.Cursor:
		room.HandleCursor(userID, msg)
	default:
		m.logger.Warn("unhandled message type", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// OnDisconnect marks the seat held through conn as disconnected.
func (m *Manager) OnDisconnect(roomID, userName string, conn game.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.rooms[roomID]
	if room == nil {
		return
	}
	m.activity[roomID] = m.now()

	if room.Leave(userName, conn) {
		m.publisher.Publish(events.Event{Type: events.EventConnectionClosed, RoomID: roomID, Payload: userName})
	}
}

// Sweep expires rooms idle for longer than the TTL and drops finished rooms
// nobody is connected to. It returns the number of rooms removed.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, room := range m.rooms {
		switch {
		case now.Sub(m.activity[id]) > m.opts.RoomTTL:
			room.Expire()
			m.removeLocked(id, room, RemovedExpired)
		case room.Ended() && room.LiveCount() == 0:
			room.Close()
			m.removeLocked(id, room, RemovedEnded)
		default:
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("sweep removed rooms", zap.Int("removed", removed), zap.Int("remaining", len(m.rooms)))
	}
	return removed
}

func (m *Manager) removeLocked(id string, room *game.Room, reason string) {
	delete(m.rooms, id)
	delete(m.activity, id)
	for _, userID := range room.UserIDs() {
		m.limiter.Forget(userID)
	}

	m.logger.Info("removed room",
		zap.String("room_id", id),
		zap.String("reason", reason),
		zap.Duration("age", m.now().Sub(room.CreatedAt())),
	)
	m.publisher.Publish(events.Event{Type: events.EventRoomRemoved, RoomID: id, Payload: reason})
}

// Start runs the sweep loop until Stop is called.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.sweepLoop()
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stopCh:
			return
		}
	}
}

// Stop ends the sweep loop and halts every room clock.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, room := range m.rooms {
		room.Close()
	}
}

// Len returns the number of rooms.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.rooms)
}

func (m *Manager) room(roomID string) *game.Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.rooms[roomID]
}

// touch looks up a room and refreshes its activity stamp.
func (m *Manager) touch(roomID string) *game.Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.rooms[roomID]
	if room != nil {
		m.activity[roomID] = m.now()
	}
	return room
}
