package repository

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tecu23/chess-rooms/pkg/game"
)

// InMemoryMatchRepository is an in-memory implementation of MatchRepository
type InMemoryMatchRepository struct {
	matches map[string]*game.MatchRecord
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository(logger *zap.Logger) *InMemoryMatchRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryMatchRepository{
		matches: make(map[string]*game.MatchRecord),
		logger:  logger,
	}
}

// SaveIfAbsent stores rec unless the room already has a record
func (r *InMemoryMatchRepository) SaveIfAbsent(_ context.Context, rec *game.MatchRecord) error {
	if rec == nil || rec.RoomID == "" {
		return fmt.Errorf("save match: missing room id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.matches[rec.RoomID]; ok {
		return ErrAlreadySaved
	}

	stored := *rec
	r.matches[rec.RoomID] = &stored

	r.logger.Debug("match stored", zap.String("room_id", rec.RoomID))
	return nil
}

// GetMatch retrieves a match by room id
func (r *InMemoryMatchRepository) GetMatch(_ context.Context, roomID string) (*game.MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.matches[roomID]
	if !ok {
		return nil, ErrMatchNotFound
	}

	out := *rec
	return &out, nil
}

// Len returns the number of stored matches
func (r *InMemoryMatchRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.matches)
}
