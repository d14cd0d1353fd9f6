// Package chess holds the chess-specific building blocks used by a room:
// the game clock and the FEN helpers behind the draw rules.
package chess

import (
	"fmt"
	"sync"
	"time"

	"github.com/tecu23/chess-rooms/internal/color"
)

// TimeControl defines the time settings for a game, in whole seconds
type TimeControl struct {
	WhiteTime      int64 `json:"whiteTime"`
	BlackTime      int64 `json:"blackTime"`
	WhiteIncrement int64 `json:"whiteIncrement"`
	BlackIncrement int64 `json:"blackIncrement"`
}

// TimerState is the serializable snapshot of a clock
type TimerState struct {
	WhiteTime        int64 `json:"whiteTime"`
	BlackTime        int64 `json:"blackTime"`
	WhiteIncrement   int64 `json:"whiteIncrement"`
	BlackIncrement   int64 `json:"blackIncrement"`
	InitialWhiteTime int64 `json:"initialWhiteTime"`
	InitialBlackTime int64 `json:"initialBlackTime"`
}

// Clock keeps the remaining time of both players. It is not safe for
// concurrent use; the owning room serializes access.
type Clock struct {
	whiteTime int64
	blackTime int64

	whiteIncrement int64
	blackIncrement int64

	initialWhiteTime int64
	initialBlackTime int64
}

// NewClock creates a new chess clock with the given time controls
func NewClock(tc TimeControl) *Clock {
	return &Clock{
		whiteTime:        tc.WhiteTime,
		blackTime:        tc.BlackTime,
		whiteIncrement:   tc.WhiteIncrement,
		blackIncrement:   tc.BlackIncrement,
		initialWhiteTime: tc.WhiteTime,
		initialBlackTime: tc.BlackTime,
	}
}

// Tick takes one second off the active side. It reports true when that
// side's time went below zero, i.e. the flag fell.
func (c *Clock) Tick(active color.Color) bool {
	if active == color.Black {
		c.blackTime--
		return c.blackTime < 0
	}

	c.whiteTime--
	return c.whiteTime < 0
}

// AddIncrement credits the mover with its configured increment.
func (c *Clock) AddIncrement(mover color.Color) {
	if mover == color.Black {
		c.blackTime += c.blackIncrement
		return
	}
	c.whiteTime += c.whiteIncrement
}

// Remaining returns the seconds left for the given side.
func (c *Clock) Remaining(side color.Color) int64 {
	if side == color.Black {
		return c.blackTime
	}
	return c.whiteTime
}

// State returns a copy of the clock values.
func (c *Clock) State() TimerState {
	return TimerState{
		WhiteTime:        c.whiteTime,
		BlackTime:        c.blackTime,
		WhiteIncrement:   c.whiteIncrement,
		BlackIncrement:   c.blackIncrement,
		InitialWhiteTime: c.initialWhiteTime,
		InitialBlackTime: c.initialBlackTime,
	}
}

// TimeControl returns the settings the clock was created with.
func (c *Clock) TimeControl() TimeControl {
	return TimeControl{
		WhiteTime:      c.initialWhiteTime,
		BlackTime:      c.initialBlackTime,
		WhiteIncrement: c.whiteIncrement,
		BlackIncrement: c.blackIncrement,
	}
}

// Ticker drives a clock at a fixed cadence on its own goroutine. Start and
// Stop are idempotent, and every Start hands out a new generation number so
// the receiver can discard ticks that were already in flight when the
// ticker was stopped or restarted.
type Ticker struct {
	interval time.Duration

	mu      sync.Mutex
	done    chan struct{}
	gen     uint64
	running bool
}

// NewTicker creates a stopped ticker with the given cadence.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{interval: interval}
}

// Start begins calling fn with the current generation every interval. A
// running ticker is stopped first.
func (t *Ticker) Start(fn func(gen uint64)) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	t.gen++
	t.running = true
	t.done = make(chan struct{})

	go t.tickRoutine(t.gen, t.done, fn)

	return t.gen
}

// Stop halts the ticker; it is a no-op when already stopped.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
}

func (t *Ticker) stopLocked() {
	if !t.running {
		return
	}
	close(t.done)
	t.running = false
}

// Live reports whether gen belongs to the ticker that is currently running.
func (t *Ticker) Live(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running && t.gen == gen
}

// Running reports whether the ticker is started.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running
}

// Generation returns the generation of the most recent Start.
func (t *Ticker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.gen
}

func (t *Ticker) tickRoutine(gen uint64, done <-chan struct{}, fn func(uint64)) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			fn(gen)
		}
	}
}

// FormatClockTime formats whole seconds as "m:ss" (e.g. "1:30"). Negative
// values render as "0:00".
func FormatClockTime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
