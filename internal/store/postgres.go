package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/domain"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS games (
    id         TEXT PRIMARY KEY,
    pgn        TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL DEFAULT 'ONGOING',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres stores game records in the shared games table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{db: db}
	if _, err := db.ExecContext(pingCtx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure games table: %w", err)
	}
	return p, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) UpdatePGN(ctx context.Context, gameID, pgn string) error {
	if p == nil || p.db == nil {
		return ErrNotConfigured
	}
	id, err := normalizeID(gameID)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO games (id, pgn, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (id) DO UPDATE SET
            pgn = EXCLUDED.pgn,
            updated_at = EXCLUDED.updated_at`, id, pgn)
	if err != nil {
		return fmt.Errorf("update pgn: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateStatus(ctx context.Context, gameID string, status chessdto.GameStatus) error {
	if p == nil || p.db == nil {
		return ErrNotConfigured
	}
	id, err := normalizeID(gameID)
	if err != nil {
		return err
	}
	if err := validStatus(status); err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO games (id, status, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            updated_at = EXCLUDED.updated_at`, id, string(status))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (p *Postgres) GetGame(ctx context.Context, gameID string) (*domain.GameRecord, error) {
	if p == nil || p.db == nil {
		return nil, ErrNotConfigured
	}
	id, err := normalizeID(gameID)
	if err != nil {
		return nil, err
	}
	var (
		g      domain.GameRecord
		status string
	)
	err = p.db.QueryRowContext(ctx, `SELECT id, pgn, status, updated_at FROM games WHERE id = $1`, id).
		Scan(&g.ID, &g.PGN, &status, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	g.Status = chessdto.GameStatus(status)
	return &g, nil
}
