// Package presenter turns session snapshots and events into terminal text.
package presenter

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/connection"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/msgcat"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/session"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

// Formatter renders chess DTOs and session events through the message catalog.
type Formatter struct {
	cat *msgcat.Catalog
}

func NewFormatter(cat *msgcat.Catalog) *Formatter {
	return &Formatter{cat: cat}
}

func (f *Formatter) text(key string, data map[string]any) string {
	if f == nil || f.cat == nil {
		return key
	}
	return f.cat.Text(key, data)
}

// Status is the block shown under the board.
func (f *Formatter) Status(state *chessdto.SessionState) string {
	if state == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(f.text("status.header", map[string]any{
		"GameID":     state.GameID,
		"Color":      state.LocalColor,
		"Connection": state.Connection,
	}))
	sb.WriteString("\n")
	if state.OpeningCode != "" {
		sb.WriteString(f.text("status.opening", map[string]any{"Code": state.OpeningCode, "Title": state.OpeningTitle}))
		sb.WriteString("\n")
	}
	if state.Previewing {
		sb.WriteString(f.text("status.preview", map[string]any{"Ply": state.Cursor + 1, "Total": len(state.Moves)}))
		sb.WriteString("\n")
	}
	if state.PromotionTo != "" {
		sb.WriteString(f.text("move.promotion_choose", map[string]any{"To": state.PromotionTo}))
		sb.WriteString("\n")
	}
	if line := f.outcomeLine(state.Outcome, state.OutcomeWinner, state.OutcomeMethod, state.OutcomeFinal); line != "" {
		sb.WriteString(line)
	} else if state.Turn == state.LocalColor {
		sb.WriteString(f.text("status.turn_you", nil))
	} else {
		sb.WriteString(f.text("status.turn_opponent", nil))
	}
	return sb.String()
}

// MoveList numbers SAN moves in pairs, one full move per line.
func (f *Formatter) MoveList(state *chessdto.SessionState) string {
	if state == nil || len(state.Moves) == 0 {
		return f.text("status.no_moves", nil)
	}
	var sb strings.Builder
	for i := 0; i < len(state.Moves); i += 2 {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%d. %s", i/2+1, state.Moves[i].SAN))
		if i+1 < len(state.Moves) {
			sb.WriteString(" ")
			sb.WriteString(state.Moves[i+1].SAN)
		}
	}
	return sb.String()
}

func (f *Formatter) outcomeLine(kind, winner, method string, final bool) string {
	var line string
	m := humanizeMethod(method)
	switch kind {
	case "draw":
		line = f.text("outcome.draw", map[string]any{"Method": m})
	case "decisive":
		key := "outcome.black_wins"
		if winner == string(rules.White) {
			key = "outcome.white_wins"
		}
		line = f.text(key, map[string]any{"Method": m})
	case "aborted":
		line = f.text("outcome.aborted", nil)
	default:
		return ""
	}
	if !final {
		return f.text("outcome.provisional", map[string]any{"Result": line})
	}
	return line
}

// Event returns the line to print for ev, or "" when nothing should be shown.
func (f *Formatter) Event(ev session.Event) string {
	switch ev.Kind {
	case session.EventMoveApplied:
		who := "You"
		if ev.Move.Origin == session.Remote {
			who = "Opponent"
		}
		return f.text("move.applied", map[string]any{"Who": who, "SAN": ev.Move.Notation})
	case session.EventRemoteRejected:
		return f.text("move.remote_rejected", map[string]any{"Move": ev.Notation})
	case session.EventPromotionPending:
		return f.text("move.promotion_choose", map[string]any{"To": ev.Move.To})
	case session.EventOutcome:
		o := ev.Outcome
		return f.outcomeLine(o.Kind.String(), string(o.Winner), o.Method, o.Final)
	case session.EventProtocolError:
		return f.text("protocol."+string(ev.ProtocolError), nil)
	case session.EventUnparseable:
		return f.text("protocol.unparseable", nil)
	case session.EventConnection:
		return f.connectionLine(ev.Connection)
	case session.EventTakeBack:
		return f.text("takeback.done", map[string]any{"Count": ev.Count})
	default:
		return ""
	}
}

func (f *Formatter) connectionLine(st connection.State) string {
	switch st {
	case connection.Authenticated, connection.Degraded, connection.Disconnected:
		return f.text("connection."+st.String(), map[string]any{"GameID": ""})
	default:
		return ""
	}
}

// Error maps a rejected local action to a readable line.
func (f *Formatter) Error(err error, move string) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrIllegalMove):
		return f.text("move.illegal", map[string]any{"Move": move})
	case errors.Is(err, session.ErrNotYourTurn):
		return f.text("move.not_your_turn", nil)
	case errors.Is(err, session.ErrGameOver):
		return f.text("move.game_over", nil)
	case errors.Is(err, session.ErrPromotionPending):
		return f.text("move.promotion_pending", nil)
	case errors.Is(err, session.ErrNotConnected):
		return f.text("move.not_connected", nil)
	case errors.Is(err, session.ErrPreviewActive):
		return f.text("move.preview_exited", nil)
	case errors.Is(err, session.ErrOnlineTakeBack):
		return f.text("takeback.online", nil)
	default:
		return f.text("move.send_failed", map[string]any{"Error": err.Error()})
	}
}

// humanizeMethod turns "ThreefoldRepetition" into "threefold repetition".
func humanizeMethod(method string) string {
	method = strings.TrimSpace(method)
	if method == "" || method == "NoMethod" {
		return ""
	}
	var sb strings.Builder
	for i, r := range method {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
