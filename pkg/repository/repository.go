// Package repository stores finished matches. Every backend is
// first-writer-wins: saving a room that already has a record is a no-op.
package repository

import (
	"context"
	"errors"

	"github.com/tecu23/chess-rooms/pkg/game"
)

var (
	// ErrAlreadySaved is returned when a record for the room already exists.
	// The existing record is left untouched.
	ErrAlreadySaved = errors.New("match already saved")

	// ErrMatchNotFound is returned by GetMatch for unknown rooms.
	ErrMatchNotFound = errors.New("match not found")
)

// MatchRepository persists completed matches keyed by room id.
type MatchRepository interface {
	SaveIfAbsent(ctx context.Context, rec *game.MatchRecord) error
	GetMatch(ctx context.Context, roomID string) (*game.MatchRecord, error)
}

var (
	_ MatchRepository = (*InMemoryMatchRepository)(nil)
	_ MatchRepository = (*PostgresMatchRepository)(nil)
	_ MatchRepository = (*RedisMatchRepository)(nil)
)
