package rules

import (
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func ecoBookInstance() *opening.BookECO {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	return ecoBook
}

// Chess is the standard chess Engine backed by corentings/chess.
type Chess struct{}

func NewChess() *Chess { return &Chess{} }

func (c *Chess) Start() Position {
	return &chessPosition{game: nchess.NewGame()}
}

type chessPosition struct {
	game *nchess.Game
}

func (p *chessPosition) Apply(notation string) (Position, Played, error) {
	raw := strings.TrimSpace(notation)
	if raw == "" {
		return nil, Played{}, fmt.Errorf("%w: empty notation", ErrIllegalMove)
	}
	pos := p.game.Position()
	if mv, err := (nchess.UCINotation{}).Decode(pos, strings.ToLower(raw)); err == nil {
		return p.play(mv, raw)
	}
	mv, err := (nchess.AlgebraicNotation{}).Decode(pos, raw)
	if err != nil {
		return nil, Played{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}
	return p.play(mv, raw)
}

func (p *chessPosition) ApplyIntent(in Intent) (Position, Played, error) {
	if err := in.Validate(); err != nil {
		return nil, Played{}, err
	}
	mv, err := (nchess.UCINotation{}).Decode(p.game.Position(), in.UCI())
	if err != nil {
		return nil, Played{}, fmt.Errorf("%w: %s", ErrIllegalMove, in.UCI())
	}
	return p.play(mv, in.UCI())
}

func (p *chessPosition) play(mv *nchess.Move, raw string) (Position, Played, error) {
	before := p.game.Position()
	mover := colorFrom(before.Turn())
	san := nchess.AlgebraicNotation{}.Encode(before, mv)
	next := p.game.Clone()
	if err := next.Move(mv, nil); err != nil {
		return nil, Played{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}
	played := Played{
		From:      mv.S1().String(),
		To:        mv.S2().String(),
		Promotion: promotionLetter(mv.Promo()),
		SAN:       san,
		Color:     mover,
	}
	played.UCI = played.From + played.To + played.Promotion
	return &chessPosition{game: next}, played, nil
}

func (p *chessPosition) NeedsPromotion(from, to string) bool {
	if !validSquare(from) || !validSquare(to) {
		return false
	}
	if p.legalUCI(from + to) {
		return false
	}
	return p.legalUCI(from + to + "q")
}

func (p *chessPosition) legalUCI(uci string) bool {
	mv, err := (nchess.UCINotation{}).Decode(p.game.Position(), uci)
	if err != nil {
		return false
	}
	return p.game.Clone().Move(mv, nil) == nil
}

func (p *chessPosition) Turn() Color {
	return colorFrom(p.game.Position().Turn())
}

func (p *chessPosition) Verdict() Verdict {
	method := p.game.Method().String()
	switch p.game.Outcome() {
	case nchess.WhiteWon:
		return Verdict{Result: Decisive, Winner: White, Method: method}
	case nchess.BlackWon:
		return Verdict{Result: Decisive, Winner: Black, Method: method}
	case nchess.Draw:
		return Verdict{Result: Draw, Method: method}
	}
	// Repetition and the fifty-move rule are only claimable in the engine;
	// the game server adjudicates them automatically, so treat them as drawn.
	for _, m := range p.game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			return Verdict{Result: Draw, Method: m.String()}
		}
	}
	return Verdict{Result: Ongoing}
}

func (p *chessPosition) FEN() string { return p.game.FEN() }

func (p *chessPosition) Ply() int { return len(p.game.Moves()) }

func (p *chessPosition) Board() string {
	return p.game.Position().Board().Draw()
}

func (p *chessPosition) Opening() (string, string) {
	moves := p.game.Moves()
	if len(moves) == 0 {
		return "", ""
	}
	book := ecoBookInstance()
	if book == nil {
		return "", ""
	}
	if eco := book.Find(moves); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}

func promotionLetter(pt nchess.PieceType) string {
	switch pt {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	default:
		return ""
	}
}
