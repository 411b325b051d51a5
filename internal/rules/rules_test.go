package rules

import (
	"errors"
	"strings"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
)

func mustApply(t *testing.T, p Position, n string) Position {
	t.Helper()
	next, _, err := p.Apply(n)
	if err != nil {
		t.Fatalf("apply %s: %v", n, err)
	}
	return next
}

func TestApplySANAndUCI(t *testing.T) {
	start := NewChess().Start()
	p, played, err := start.Apply("e4")
	if err != nil {
		t.Fatalf("apply e4: %v", err)
	}
	if played.SAN != "e4" || played.From != "e2" || played.To != "e4" || played.Color != White {
		t.Fatalf("unexpected played: %+v", played)
	}
	if start.Ply() != 0 {
		t.Fatalf("start position mutated: ply=%d", start.Ply())
	}
	p, played, err = p.Apply("e7e5")
	if err != nil {
		t.Fatalf("apply e7e5: %v", err)
	}
	if played.SAN != "e5" || played.Color != Black {
		t.Fatalf("unexpected played: %+v", played)
	}
	if p.Turn() != White || p.Ply() != 2 {
		t.Fatalf("turn=%s ply=%d", p.Turn(), p.Ply())
	}
}

func TestApplyIllegal(t *testing.T) {
	start := NewChess().Start()
	for _, n := range []string{"", "e5", "Ke2", "e2e5", "zz"} {
		if _, _, err := start.Apply(n); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("%q: expected ErrIllegalMove, got %v", n, err)
		}
	}
}

func TestApplyIntentValidates(t *testing.T) {
	start := NewChess().Start()
	if _, _, err := start.ApplyIntent(Intent{From: "e2", To: "e2"}); !errors.Is(err, ErrInvalidIntent) {
		t.Fatalf("expected ErrInvalidIntent, got %v", err)
	}
	if _, _, err := start.ApplyIntent(Intent{From: "e2", To: "e4", Promotion: "k"}); !errors.Is(err, ErrInvalidIntent) {
		t.Fatalf("expected ErrInvalidIntent, got %v", err)
	}
	_, played, err := start.ApplyIntent(Intent{From: "g1", To: "f3"})
	if err != nil || played.SAN != "Nf3" {
		t.Fatalf("played=%+v err=%v", played, err)
	}
}

func TestParseIntent(t *testing.T) {
	in, err := ParseIntent(" E7E8Q ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if in.From != "e7" || in.To != "e8" || in.Promotion != "q" {
		t.Fatalf("unexpected intent: %+v", in)
	}
	if _, err := ParseIntent("e9e4"); !errors.Is(err, ErrInvalidIntent) {
		t.Fatalf("expected ErrInvalidIntent, got %v", err)
	}
}

func promotionPosition(t *testing.T) Position {
	t.Helper()
	p := NewChess().Start()
	for _, n := range []string{"h4", "g5", "hxg5", "h6", "gxh6", "Nf6", "h7", "Ng8"} {
		p = mustApply(t, p, n)
	}
	return p
}

func TestNeedsPromotion(t *testing.T) {
	p := promotionPosition(t)
	if !p.NeedsPromotion("h7", "g8") {
		t.Fatalf("expected h7g8 to need promotion")
	}
	if p.NeedsPromotion("a2", "a3") {
		t.Fatalf("a2a3 does not need promotion")
	}
	if p.NeedsPromotion("h7", "h5") {
		t.Fatalf("illegal move must not report promotion")
	}
	next, played, err := p.ApplyIntent(Intent{From: "h7", To: "g8", Promotion: "n"})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if played.Promotion != "n" || !strings.HasPrefix(played.SAN, "hxg8") {
		t.Fatalf("unexpected played: %+v", played)
	}
	if next.Turn() != Black {
		t.Fatalf("turn after promotion = %s", next.Turn())
	}
}

func TestVerdictCheckmate(t *testing.T) {
	p := NewChess().Start()
	for _, n := range []string{"f3", "e5", "g4", "Qh4#"} {
		p = mustApply(t, p, n)
	}
	v := p.Verdict()
	if v.Result != Decisive || v.Winner != Black {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if ResultToken(v) != "0-1" {
		t.Fatalf("token=%s", ResultToken(v))
	}
	if _, _, err := p.Apply("a3"); err == nil {
		t.Fatalf("expected no moves after mate")
	}
}

func TestVerdictRepetitionIsDraw(t *testing.T) {
	p := NewChess().Start()
	cycle := []string{"Nf3", "Nf6", "Ng1", "Ng8"}
	for i := 0; i < 2; i++ {
		for _, n := range cycle {
			p = mustApply(t, p, n)
		}
	}
	if v := p.Verdict(); v.Result != Draw {
		t.Fatalf("expected draw by repetition, got %+v", v)
	}
}

func fromFEN(t *testing.T, fen string) Position {
	t.Helper()
	opt, err := nchess.FEN(fen)
	if err != nil {
		t.Fatalf("fen %q: %v", fen, err)
	}
	return &chessPosition{game: nchess.NewGame(opt)}
}

func TestVerdictStalemate(t *testing.T) {
	p := NewChess().Start()
	line := []string{"e3", "a5", "Qh5", "Ra6", "Qxa5", "h5", "h4", "Rah6", "Qxc7", "f6",
		"Qxd7+", "Kf7", "Qxb7", "Qd3", "Qxb8", "Qh7", "Qxc8", "Kg6", "Qe6"}
	for _, n := range line {
		p = mustApply(t, p, n)
	}
	v := p.Verdict()
	if v.Result != Draw || v.Method != "Stalemate" {
		t.Fatalf("expected stalemate, got %+v", v)
	}
	if ResultToken(v) != "1/2-1/2" {
		t.Fatalf("token=%s", ResultToken(v))
	}
	if _, _, err := p.Apply("Kh8"); err == nil {
		t.Fatalf("expected no legal moves in stalemate")
	}
}

func TestVerdictInsufficientMaterial(t *testing.T) {
	p := fromFEN(t, "7k/8/8/3r4/8/2N5/8/K7 w - - 0 1")
	if v := p.Verdict(); v.Terminal() {
		t.Fatalf("rook on board should not be drawn: %+v", v)
	}
	p = mustApply(t, p, "Nxd5")
	v := p.Verdict()
	if v.Result != Draw || v.Method != "InsufficientMaterial" {
		t.Fatalf("expected insufficient material, got %+v", v)
	}
}

func TestVerdictFiftyMoveRule(t *testing.T) {
	p := fromFEN(t, "7k/8/8/8/8/8/R7/K7 w - - 99 80")
	if v := p.Verdict(); v.Terminal() {
		t.Fatalf("clock at 99 should not be drawn: %+v", v)
	}
	p = mustApply(t, p, "Ra3")
	v := p.Verdict()
	if v.Result != Draw || v.Method != "FiftyMoveRule" {
		t.Fatalf("expected fifty-move draw, got %+v", v)
	}
}

func TestVerdictFiftyMoveClockResetsOnCapture(t *testing.T) {
	p := fromFEN(t, "7k/8/8/8/8/p7/R7/K7 w - - 99 80")
	p = mustApply(t, p, "Rxa3")
	if v := p.Verdict(); v.Terminal() {
		t.Fatalf("capture resets the clock: %+v", v)
	}
}

func TestReplay(t *testing.T) {
	p, played, err := Replay(NewChess(), []string{"e4", "e5", "Nf3"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(played) != 3 || p.Ply() != 3 || p.Turn() != Black {
		t.Fatalf("played=%d ply=%d turn=%s", len(played), p.Ply(), p.Turn())
	}
	if _, _, err := Replay(NewChess(), []string{"e4", "e4"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
}

func TestOpening(t *testing.T) {
	p, _, err := Replay(NewChess(), []string{"e4", "e5", "Nf3", "Nc6", "Bb5"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	code, title := p.Opening()
	if code == "" || title == "" {
		t.Fatalf("expected an opening, got %q %q", code, title)
	}
}

func TestFormatPGN(t *testing.T) {
	h := PGNHeader{Date: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), White: "al\"ice", Termination: "Checkmate"}
	got := FormatPGN(h, []string{"f3", "e5", "g4", "Qh4#"}, "0-1")
	for _, want := range []string{
		"[Date \"2024.03.09\"]",
		"[White \"al'ice\"]",
		"[Black \"?\"]",
		"[Termination \"checkmate\"]",
		"[Result \"0-1\"]",
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("pgn missing %q:\n%s", want, got)
		}
	}
	if odd := FormatPGN(PGNHeader{}, []string{"e4"}, ""); !strings.HasSuffix(odd, "1. e4 *") {
		t.Fatalf("unexpected move text: %q", odd)
	}
}

func TestColor(t *testing.T) {
	c, err := ParseColor("Black")
	if err != nil || c != Black || c.Opponent() != White {
		t.Fatalf("c=%s err=%v", c, err)
	}
	if _, err := ParseColor("red"); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
}
