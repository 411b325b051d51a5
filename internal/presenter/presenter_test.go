package presenter

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/connection"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/msgcat"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/session"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

func newFormatter(t *testing.T) *Formatter {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	return NewFormatter(cat)
}

func moves(sans ...string) []chessdto.MoveEntry {
	out := make([]chessdto.MoveEntry, len(sans))
	for i, s := range sans {
		out[i] = chessdto.MoveEntry{Ply: i + 1, SAN: s}
	}
	return out
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestStatusGolden(t *testing.T) {
	f := newFormatter(t)
	cases := []struct {
		name  string
		state chessdto.SessionState
	}{
		{"status_live", chessdto.SessionState{
			GameID: "g1", LocalColor: "white", Connection: "authenticated", Turn: "white",
			Moves: moves("e4", "e5"), Outcome: "ongoing",
			OpeningCode: "C20", OpeningTitle: "King's Pawn Game",
		}},
		{"status_preview_provisional", chessdto.SessionState{
			GameID: "g2", LocalColor: "black", Connection: "offline", Turn: "black",
			Moves: moves("f3", "e5", "g4", "Qh4#"), Cursor: 2, Previewing: true,
			Outcome: "decisive", OutcomeWinner: "white", OutcomeMethod: "Checkmate",
		}},
		{"status_promotion", chessdto.SessionState{
			GameID: "g3", LocalColor: "white", Connection: "degraded", Turn: "white",
			PromotionFrom: "e7", PromotionTo: "e8", Outcome: "ongoing",
		}},
	}
	g := golden(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g.Assert(t, tc.name, []byte(f.Status(&tc.state)))
		})
	}
}

func TestMoveListGolden(t *testing.T) {
	f := newFormatter(t)
	st := chessdto.SessionState{Moves: moves("e4", "e5", "Nf3", "Nc6", "Bb5")}
	golden(t).Assert(t, "move_list", []byte(f.MoveList(&st)))

	if got := f.MoveList(&chessdto.SessionState{}); got != "No moves yet." {
		t.Fatalf("empty list %q", got)
	}
}

func TestOutcomeLines(t *testing.T) {
	f := newFormatter(t)
	cases := []struct {
		kind, winner, method string
		final                bool
		want                 string
	}{
		{"draw", "", "ThreefoldRepetition", true, "Draw by threefold repetition."},
		{"draw", "", "", true, "Draw."},
		{"decisive", "black", "Resignation", true, "Black wins by resignation."},
		{"aborted", "", "Abort", true, "Game aborted."},
		{"ongoing", "", "", true, ""},
	}
	for _, tc := range cases {
		if got := f.outcomeLine(tc.kind, tc.winner, tc.method, tc.final); got != tc.want {
			t.Fatalf("%s/%s: got %q want %q", tc.kind, tc.method, got, tc.want)
		}
	}
}

func TestEventLines(t *testing.T) {
	f := newFormatter(t)
	cases := []struct {
		ev   session.Event
		want string
	}{
		{session.Event{Kind: session.EventMoveApplied, Move: session.MoveRecord{Notation: "e4", Origin: session.Local}}, "You played e4."},
		{session.Event{Kind: session.EventMoveApplied, Move: session.MoveRecord{Notation: "e5", Origin: session.Remote}}, "Opponent played e5."},
		{session.Event{Kind: session.EventEchoConfirmed, Notation: "e4"}, ""},
		{session.Event{Kind: session.EventRemoteRejected, Notation: "Ke9"}, "Ignored an illegal move from the server: Ke9"},
		{session.Event{Kind: session.EventProtocolError, ProtocolError: chessdto.ErrInvalidTurn}, "The server says it is not your turn."},
		{session.Event{Kind: session.EventUnparseable}, "Received a message that could not be read."},
		{session.Event{Kind: session.EventConnection, Connection: connection.Connecting}, ""},
		{session.Event{Kind: session.EventConnection, Connection: connection.Disconnected}, "Disconnected. Run the connect command to rejoin."},
		{session.Event{Kind: session.EventTakeBack, Count: 2}, "Took back 2 move(s)."},
		{session.Event{Kind: session.EventOutcome, Outcome: session.Outcome{Kind: session.Decisive, Winner: rules.White, Method: "Checkmate", Final: true}}, "White wins by checkmate."},
	}
	for _, tc := range cases {
		if got := f.Event(tc.ev); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.ev.Kind, got, tc.want)
		}
	}
}

func TestErrorLines(t *testing.T) {
	f := newFormatter(t)
	if got := f.Error(fmt.Errorf("wrap: %w", session.ErrIllegalMove), "Ke9"); got != "Ke9 is not a legal move." {
		t.Fatalf("illegal: %q", got)
	}
	if got := f.Error(session.ErrNotYourTurn, ""); got != "It is not your turn." {
		t.Fatalf("turn: %q", got)
	}
	if got := f.Error(errors.New("socket closed"), "e4"); got != "Could not send the move: socket closed" {
		t.Fatalf("fallback: %q", got)
	}
	if got := f.Error(nil, ""); got != "" {
		t.Fatalf("nil: %q", got)
	}
}

func TestPresenterBoard(t *testing.T) {
	var out []string
	p := NewPresenter(func(m string) error {
		out = append(out, m)
		return nil
	}, newFormatter(t), nil)

	st := chessdto.SessionState{
		GameID: "g1", LocalColor: "white", Connection: "offline", Turn: "white",
		Board: "8 ........\n", Moves: moves("e4", "e5"), Outcome: "ongoing",
	}
	if err := p.Board(&st); err != nil {
		t.Fatalf("Board: %v", err)
	}
	want := "8 ........\n\n1. e4 e5\n\nGame g1 | you play white | offline\nYour move."
	if len(out) != 1 || out[0] != want {
		t.Fatalf("got %q", out)
	}

	p.Listener()(session.Event{Kind: session.EventEchoConfirmed})
	if len(out) != 1 {
		t.Fatalf("empty event should not be delivered")
	}
	if err := p.Reject(session.ErrGameOver, ""); err != nil || !strings.Contains(out[1], "over") {
		t.Fatalf("reject: %v %q", err, out)
	}
}
