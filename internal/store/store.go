// Package store persists game progress: the PGN text and the status column.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/domain"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

var (
	ErrNotFound       = errors.New("game not found")
	ErrGameIDRequired = errors.New("game id is required")
	ErrInvalidStatus  = errors.New("invalid game status")
	ErrNotConfigured  = errors.New("storage is not configured")
)

// Store is the durable side of game recording.
type Store interface {
	UpdatePGN(ctx context.Context, gameID, pgn string) error
	UpdateStatus(ctx context.Context, gameID string, status chessdto.GameStatus) error
	GetGame(ctx context.Context, gameID string) (*domain.GameRecord, error)
	Close() error
}

func normalizeID(gameID string) (string, error) {
	id := strings.TrimSpace(gameID)
	if id == "" {
		return "", ErrGameIDRequired
	}
	return id, nil
}

func validStatus(s chessdto.GameStatus) error {
	switch s {
	case chessdto.StatusOngoing, chessdto.StatusWhiteWins, chessdto.StatusBlackWins, chessdto.StatusDraw, chessdto.StatusAborted:
		return nil
	default:
		return ErrInvalidStatus
	}
}
