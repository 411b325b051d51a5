package store

import (
	"context"
	"sync"
	"time"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/domain"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

// Memory keeps records in process. Used when no database is configured and in tests.
type Memory struct {
	mu    sync.RWMutex
	games map[string]*domain.GameRecord
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{games: make(map[string]*domain.GameRecord), now: time.Now}
}

func (m *Memory) record(id string) *domain.GameRecord {
	g, ok := m.games[id]
	if !ok {
		g = &domain.GameRecord{ID: id, Status: chessdto.StatusOngoing}
		m.games[id] = g
	}
	return g
}

func (m *Memory) UpdatePGN(ctx context.Context, gameID, pgn string) error {
	id, err := normalizeID(gameID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.record(id)
	g.PGN = pgn
	g.UpdatedAt = m.now()
	return nil
}

func (m *Memory) UpdateStatus(ctx context.Context, gameID string, status chessdto.GameStatus) error {
	id, err := normalizeID(gameID)
	if err != nil {
		return err
	}
	if err := validStatus(status); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.record(id)
	g.Status = status
	g.UpdatedAt = m.now()
	return nil
}

func (m *Memory) GetGame(ctx context.Context, gameID string) (*domain.GameRecord, error) {
	id, err := normalizeID(gameID)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (m *Memory) Close() error { return nil }
