package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/domain"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS games (
	id         TEXT PRIMARY KEY,
	pgn        TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'ONGOING',
	updated_at INTEGER NOT NULL
)`

// SQLite is a single-file local store for offline games.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens path and creates the games table when missing.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create games table: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) UpdatePGN(ctx context.Context, gameID, pgn string) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	id, err := normalizeID(gameID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO games (id, pgn, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET pgn = excluded.pgn, updated_at = excluded.updated_at`,
		id, pgn, s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("update pgn: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateStatus(ctx context.Context, gameID string, status chessdto.GameStatus) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	id, err := normalizeID(gameID)
	if err != nil {
		return err
	}
	if err := validStatus(status); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO games (id, status, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		id, string(status), s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (s *SQLite) GetGame(ctx context.Context, gameID string) (*domain.GameRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	id, err := normalizeID(gameID)
	if err != nil {
		return nil, err
	}
	var (
		g         domain.GameRecord
		status    string
		updatedAt int64
	)
	err = s.db.QueryRowContext(ctx, `SELECT id, pgn, status, updated_at FROM games WHERE id = ?`, id).
		Scan(&g.ID, &g.PGN, &status, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	g.Status = chessdto.GameStatus(status)
	g.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &g, nil
}
