package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tecu23/chess-rooms/pkg/game"
)

const defaultRedisPrefix = "chess:match:"

// RedisMatchRepository stores one JSON document per room with SETNX.
type RedisMatchRepository struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration // 0 keeps records forever
	logger *zap.Logger
}

// NewRedisRepository wraps a go-redis client.
func NewRedisRepository(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisMatchRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMatchRepository{rdb: rdb, prefix: defaultRedisPrefix, ttl: ttl, logger: logger}
}

// OpenRedis parses a redis:// URL and checks the connection.
func OpenRedis(ctx context.Context, url string, ttl time.Duration, logger *zap.Logger) (*RedisMatchRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisRepository(rdb, ttl, logger), nil
}

func (r *RedisMatchRepository) key(roomID string) string {
	return r.prefix + roomID
}

// SaveIfAbsent writes rec only if no record exists for the room.
func (r *RedisMatchRepository) SaveIfAbsent(ctx context.Context, rec *game.MatchRecord) error {
	if rec == nil || rec.RoomID == "" {
		return fmt.Errorf("save match: missing room id")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal match record: %w", err)
	}

	ok, err := r.rdb.SetNX(ctx, r.key(rec.RoomID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("setnx match: %w", err)
	}
	if !ok {
		return ErrAlreadySaved
	}

	r.logger.Debug("match stored", zap.String("room_id", rec.RoomID))
	return nil
}

// GetMatch loads the stored record of a room.
func (r *RedisMatchRepository) GetMatch(ctx context.Context, roomID string) (*game.MatchRecord, error) {
	data, err := r.rdb.Get(ctx, r.key(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}

	var rec game.MatchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	return &rec, nil
}

// Close releases the client.
func (r *RedisMatchRepository) Close() error {
	return r.rdb.Close()
}
