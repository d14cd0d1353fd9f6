package game

import (
	"slices"
	"time"

	"github.com/tecu23/chess-rooms/internal/color"
)

// Snapshot returns the shared state without player annotations.
func (r *Room) Snapshot() GameStateView {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.viewLocked("")
}

// viewLocked copies the state and, when forID names a seat, attaches the
// recipient as player and the other live seat as opponent.
func (r *Room) viewLocked(forID string) GameStateView {
	v := GameStateView{
		RoomID:          r.ID,
		InitialFEN:      r.initialFEN,
		CurrentFEN:      r.state.CurrentFEN,
		MoveHistory:     slices.Clone(r.state.MoveHistory),
		CurrentPlayer:   r.state.CurrentPlayer,
		CurrentColor:    r.state.CurrentColor,
		GameStarted:     r.state.GameStarted,
		GameEnded:       r.state.GameEnded,
		DrawOfferCount:  make(map[string]int, len(r.state.DrawOfferCount)),
		Timer:           r.clock.State(),
		HasMobilePlayer: r.hasMobilePlayer,
	}

	if r.state.GameResult != nil {
		res := *r.state.GameResult
		v.GameResult = &res
	}
	if r.state.DrawOffer != nil {
		offer := *r.state.DrawOffer
		v.DrawOffer = &offer
	}
	for id, n := range r.state.DrawOfferCount {
		if u := r.users[id]; u != nil {
			v.DrawOfferCount[u.UserName] = n
		}
	}
	if !r.startedAt.IsZero() {
		started := r.startedAt
		v.StartedAt = &started
	}

	if u := r.users[forID]; u != nil {
		v.Player = u.participant()
		if o := r.otherUserLocked(u.ID); o != nil && o.IsConnected {
			v.Opponent = o.participant()
		}
	}
	return v
}

// recordLocked builds the persistence record of a finished game.
func (r *Room) recordLocked() *MatchRecord {
	rec := &MatchRecord{
		RoomID:          r.ID,
		InitialFEN:      r.initialFEN,
		FinalFEN:        r.state.CurrentFEN,
		Moves:           slices.Clone(r.state.MoveHistory),
		TimeControl:     r.clock.TimeControl(),
		HasMobilePlayer: r.hasMobilePlayer,
		StartedAt:       r.startedAt,
		EndedAt:         r.endedAt,
	}
	if r.state.GameResult != nil {
		rec.Result = *r.state.GameResult
	}

	for _, id := range r.order {
		u := r.users[id]
		p := &PlayerRecord{UserName: u.UserName, Avatar: u.Avatar, AccountID: u.AccountID}
		switch {
		case u.Color == color.White && rec.White == nil:
			rec.White = p
		case u.Color == color.Black && rec.Black == nil:
			rec.Black = p
		}
	}
	return rec
}

// UserIDByName resolves the internal id of the seat held by userName.
func (r *Room) UserIDByName(userName string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.userByNameLocked(userName)
	if u == nil {
		return "", false
	}
	return u.ID, true
}

// UserIDs returns the ids of every seat, live or not.
func (r *Room) UserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.order)
}

// User returns a copy of the seat with the given id.
func (r *Room) User(userID string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.users[userID]
	if u == nil {
		return User{}, false
	}
	return *u, true
}

// SetAccountID attaches a verified account to the seat held by userName.
func (r *Room) SetAccountID(userName, accountID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.userByNameLocked(userName)
	if u == nil {
		return false
	}
	u.AccountID = accountID
	return true
}

// Notify sends a system notice of the given kind to one seat.
func (r *Room) Notify(userID, kind string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u := r.users[userID]; u != nil {
		u.send(r.noticeLocked(kind, args...))
	}
}

// LiveCount returns the number of connected seats.
func (r *Room) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.liveCountLocked()
}

// Ended reports whether the game is over.
func (r *Room) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.GameEnded
}

// ClockRunning reports whether the room's clock is ticking.
func (r *Room) ClockRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ticker.Running()
}

// TimeControl returns the clock settings the room was created with.
func (r *Room) TimeControl() TimeControlView {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.clock.TimeControl()
	return TimeControlView{
		WhiteTimer: c.WhiteTime,
		BlackTimer: c.BlackTime,
		Increment:  c.WhiteIncrement,
		CurrentFEN: r.initialFEN,
		Color:      r.firstPlayerColor,
	}
}

// CreatedAt returns when the room was built.
func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// TimeControlView is the timer configuration echoed by the create-room call.
type TimeControlView struct {
	WhiteTimer int64       `json:"whiteTimer"`
	BlackTimer int64       `json:"blackTimer"`
	Increment  int64       `json:"increment"`
	CurrentFEN string      `json:"currentFEN"`
	Color      color.Color `json:"color,omitempty"`
}
