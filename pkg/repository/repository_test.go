package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecu23/chess-rooms/internal/color"
	"github.com/tecu23/chess-rooms/pkg/chess"
	"github.com/tecu23/chess-rooms/pkg/game"
)

func sampleRecord(roomID string) *game.MatchRecord {
	return &game.MatchRecord{
		RoomID:     roomID,
		InitialFEN: chess.StartingFEN,
		FinalFEN:   "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2",
		Moves: []game.Move{
			{FEN: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", From: "e2", To: "e4", Figure: "p", Color: color.White},
			{FEN: "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2", From: "e7", To: "e5", Figure: "p", Color: color.Black},
		},
		Result:      game.Result{ResultType: game.ResultResignation, WinColor: color.Black},
		White:       &game.PlayerRecord{UserName: "alice"},
		Black:       &game.PlayerRecord{UserName: "bob", AccountID: "acct-2"},
		TimeControl: chess.TimeControl{WhiteTime: 300, BlackTime: 300, WhiteIncrement: 2, BlackIncrement: 2},
		StartedAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		EndedAt:     time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC),
	}
}

func newRedisRepo(t *testing.T) *RedisMatchRepository {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisRepository(rdb, 0, nil)
}

func TestBackendsAreFirstWriterWins(t *testing.T) {
	backends := map[string]func(t *testing.T) MatchRepository{
		"memory": func(*testing.T) MatchRepository { return NewInMemoryRepository(nil) },
		"redis":  func(t *testing.T) MatchRepository { return newRedisRepo(t) },
	}

	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := build(t)

			first := sampleRecord("room-a")
			require.NoError(t, repo.SaveIfAbsent(ctx, first))

			second := sampleRecord("room-a")
			second.Result = game.Result{ResultType: game.ResultDraw}
			assert.ErrorIs(t, repo.SaveIfAbsent(ctx, second), ErrAlreadySaved)

			got, err := repo.GetMatch(ctx, "room-a")
			require.NoError(t, err)
			assert.Equal(t, game.ResultResignation, got.Result.ResultType)
			assert.Equal(t, "acct-2", got.Black.AccountID)
			assert.Len(t, got.Moves, 2)

			_, err = repo.GetMatch(ctx, "room-b")
			assert.ErrorIs(t, err, ErrMatchNotFound)

			assert.Error(t, repo.SaveIfAbsent(ctx, &game.MatchRecord{}))
		})
	}
}

func TestInMemoryConcurrentSaves(t *testing.T) {
	repo := NewInMemoryRepository(nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	saved := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if repo.SaveIfAbsent(context.Background(), sampleRecord("race")) == nil {
				mu.Lock()
				saved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, saved)
	assert.Equal(t, 1, repo.Len())
}

func TestRedisRecordTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	repo := NewRedisRepository(rdb, time.Hour, nil)
	require.NoError(t, repo.SaveIfAbsent(context.Background(), sampleRecord("ttl")))

	assert.Equal(t, time.Hour, mr.TTL(defaultRedisPrefix+"ttl"))
}
