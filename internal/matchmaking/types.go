package matchmaking

import (
	"time"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
)

// Ticket is a waiting search stored as JSON in the queue list.
type Ticket struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is the result of a search, from the searching user's point of view.
type Match struct {
	GameID     string      `json:"game_id"`
	WhiteID    string      `json:"white_id"`
	BlackID    string      `json:"black_id"`
	Color      rules.Color `json:"-"`
	OpponentID string      `json:"-"`
}

func (m Match) forUser(userID string) Match {
	m.Color = rules.Black
	m.OpponentID = m.WhiteID
	if m.WhiteID == userID {
		m.Color = rules.White
		m.OpponentID = m.BlackID
	}
	return m
}

var (
	ErrInvalidUser  = errf("user id is required")
	ErrSearchActive = errf("user already searching")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
