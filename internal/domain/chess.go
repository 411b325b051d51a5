package domain

import (
	"time"

	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

// GameRecord is the persisted row for one game.
type GameRecord struct {
	ID        string
	PGN       string
	Status    chessdto.GameStatus
	UpdatedAt time.Time
}

// Clone returns a copy safe to hand to callers.
func (g *GameRecord) Clone() *GameRecord {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}
