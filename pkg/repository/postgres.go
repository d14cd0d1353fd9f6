package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"

	"github.com/tecu23/chess-rooms/pkg/game"
)

const createMatchesTable = `
	CREATE TABLE IF NOT EXISTS chess_matches (
		room_id      TEXT PRIMARY KEY,
		initial_fen  TEXT NOT NULL,
		final_fen    TEXT NOT NULL,
		result_type  TEXT NOT NULL,
		win_color    TEXT NOT NULL DEFAULT '',
		reason       TEXT NOT NULL DEFAULT '',
		pgn          TEXT NOT NULL,
		record       JSONB NOT NULL,
		started_at   TIMESTAMPTZ,
		ended_at     TIMESTAMPTZ NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// PostgresMatchRepository stores matches in Postgres. The primary key on
// room_id makes the insert first-writer-wins.
type PostgresMatchRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenPostgres connects with lib/pq and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresMatchRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	repo := NewPostgresRepository(db, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sql.DB, logger *zap.Logger) *PostgresMatchRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresMatchRepository{db: db, logger: logger}
}

// EnsureSchema creates the matches table when missing.
func (r *PostgresMatchRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createMatchesTable); err != nil {
		return fmt.Errorf("create chess_matches: %w", err)
	}
	return nil
}

// SaveIfAbsent inserts rec, doing nothing if the room already has a row.
func (r *PostgresMatchRepository) SaveIfAbsent(ctx context.Context, rec *game.MatchRecord) error {
	if rec == nil || rec.RoomID == "" {
		return fmt.Errorf("save match: missing room id")
	}

	record, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal match record: %w", err)
	}

	var startedAt sql.NullTime
	if !rec.StartedAt.IsZero() {
		startedAt = sql.NullTime{Time: rec.StartedAt, Valid: true}
	}

	const query = `
		INSERT INTO chess_matches (
			room_id,
			initial_fen,
			final_fen,
			result_type,
			win_color,
			reason,
			pgn,
			record,
			started_at,
			ended_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)
		ON CONFLICT (room_id) DO NOTHING`

	res, err := r.db.ExecContext(
		ctx,
		query,
		rec.RoomID,
		rec.InitialFEN,
		rec.FinalFEN,
		string(rec.Result.ResultType),
		string(rec.Result.WinColor),
		rec.Result.Reason,
		BuildPGN(rec),
		record,
		startedAt,
		rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chess match: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert chess match: %w", err)
	}
	if n == 0 {
		return ErrAlreadySaved
	}

	r.logger.Debug("match stored", zap.String("room_id", rec.RoomID))
	return nil
}

// GetMatch loads the stored record of a room.
func (r *PostgresMatchRepository) GetMatch(ctx context.Context, roomID string) (*game.MatchRecord, error) {
	const query = `SELECT record FROM chess_matches WHERE room_id = $1`

	var raw []byte
	err := r.db.QueryRowContext(ctx, query, roomID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select chess match: %w", err)
	}

	var rec game.MatchRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode chess match: %w", err)
	}
	return &rec, nil
}

// Close releases the database handle.
func (r *PostgresMatchRepository) Close() error {
	return r.db.Close()
}
