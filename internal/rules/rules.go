// Package rules adapts a chess rules engine to immutable positions.
//
// A Position is never mutated in place: Apply returns a new Position, so the
// live game and any preview replay can never alias the same engine state.
package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrInvalidIntent = errors.New("invalid move intent")
	ErrInvalidColor  = errors.New("invalid color")
)

// Color identifies a side.
type Color string

const (
	White   Color = "white"
	Black   Color = "black"
	NoColor Color = ""
)

func (c Color) Opponent() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	default:
		return NoColor, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
}

// Intent is a square-to-square move request from the player.
// Promotion is one of q, r, b, n or empty.
type Intent struct {
	From      string
	To        string
	Promotion string
}

func (i Intent) UCI() string {
	return i.From + i.To + i.Promotion
}

func (i Intent) Validate() error {
	if !validSquare(i.From) || !validSquare(i.To) {
		return fmt.Errorf("%w: squares %q %q", ErrInvalidIntent, i.From, i.To)
	}
	if i.From == i.To {
		return fmt.Errorf("%w: null move", ErrInvalidIntent)
	}
	switch i.Promotion {
	case "", "q", "r", "b", "n":
	default:
		return fmt.Errorf("%w: promotion %q", ErrInvalidIntent, i.Promotion)
	}
	return nil
}

// ParseIntent reads long algebraic input such as "e2e4" or "e7e8q".
func ParseIntent(s string) (Intent, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if len(v) != 4 && len(v) != 5 {
		return Intent{}, fmt.Errorf("%w: %q", ErrInvalidIntent, s)
	}
	in := Intent{From: v[0:2], To: v[2:4]}
	if len(v) == 5 {
		in.Promotion = v[4:5]
	}
	if err := in.Validate(); err != nil {
		return Intent{}, err
	}
	return in, nil
}

func validSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

// Played describes a move that was applied to a position.
type Played struct {
	From      string
	To        string
	Promotion string
	SAN       string
	UCI       string
	Color     Color
}

// Result is the coarse state of a game.
type Result int

const (
	Ongoing Result = iota
	Draw
	Decisive
)

func (r Result) String() string {
	switch r {
	case Draw:
		return "draw"
	case Decisive:
		return "decisive"
	default:
		return "ongoing"
	}
}

// Verdict is the terminal-state predicate of a position.
type Verdict struct {
	Result Result
	Winner Color
	Method string
}

func (v Verdict) Terminal() bool { return v.Result != Ongoing }

// Position is an immutable game position with its move history.
type Position interface {
	// Apply plays a move given in SAN or UCI notation.
	Apply(notation string) (Position, Played, error)
	ApplyIntent(in Intent) (Position, Played, error)
	// NeedsPromotion reports whether from->to is legal only with a promotion piece.
	NeedsPromotion(from, to string) bool
	Turn() Color
	Verdict() Verdict
	FEN() string
	Ply() int
	Board() string
	Opening() (code, title string)
}

// Engine creates starting positions. Implementations must be safe to share.
type Engine interface {
	Start() Position
}

// Replay applies notations in order to a fresh starting position.
func Replay(e Engine, notations []string) (Position, []Played, error) {
	pos := e.Start()
	played := make([]Played, 0, len(notations))
	for i, n := range notations {
		next, p, err := pos.Apply(n)
		if err != nil {
			return nil, nil, fmt.Errorf("replay ply %d (%s): %w", i+1, n, err)
		}
		pos = next
		played = append(played, p)
	}
	return pos, played, nil
}
