package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/presenter"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/session"
)

const replHelp = `commands:
  <move>          play a move in SAN (Nf3) or UCI (g1f3)
  q|r|b|n         choose the promotion piece; cancel drops the move
  board           show the displayed position
  moves, pgn      show the move list or the PGN
  first, prev, next, last, live, goto <n>
                  browse earlier positions
  takeback [n]    undo moves (offline only)
  resign, abort   end the game
  connect         reconnect (online only)
  quit            leave`

// repl drives one session from line input until quit or EOF.
type repl struct {
	s         *session.Session
	p         *presenter.Presenter
	out       io.Writer
	reconnect func(ctx context.Context) error
}

func (r *repl) println(text string) {
	if strings.TrimSpace(text) != "" {
		fmt.Fprintln(r.out, text)
	}
}

func (r *repl) board() {
	st := r.s.Snapshot()
	_ = r.p.Board(&st)
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	r.board()
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			quit, err := r.dispatch(ctx, line)
			if err != nil || quit {
				return err
			}
		}
	}
}

// dispatch handles one input line. Rejected actions are printed, not returned.
func (r *repl) dispatch(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		r.println(replHelp)
	case "board", "status":
		r.board()
	case "moves":
		st := r.s.Snapshot()
		_ = r.p.Moves(&st)
	case "pgn":
		r.println(r.s.PGN())
	case "first":
		r.s.PreviewFirst()
		r.board()
	case "prev", "previous":
		r.s.PreviewPrevious()
		r.board()
	case "next":
		r.s.PreviewNext()
		r.board()
	case "last", "live":
		r.s.PreviewLast()
		r.board()
	case "goto":
		n, err := intArg(args, -1)
		if err != nil {
			r.println(err.Error())
			return false, nil
		}
		r.s.PreviewMove(n)
		r.board()
	case "resign":
		r.reject(r.s.Resign(), "")
	case "abort":
		r.reject(r.s.Abort(), "")
	case "takeback":
		n, err := intArg(args, 1)
		if err != nil {
			r.println(err.Error())
			return false, nil
		}
		r.reject(r.s.TakeBack(n), "")
	case "cancel":
		r.s.CancelPromotion()
	case "connect":
		if r.reconnect == nil {
			r.println("not an online game")
			return false, nil
		}
		if err := r.reconnect(ctx); err != nil {
			r.println(err.Error())
		}
	case "q", "r", "b", "n":
		if _, pending := r.s.PendingPromotion(); pending {
			r.afterMove(r.s.Promote(ctx, cmd), cmd)
			return false, nil
		}
		r.afterMove(r.s.Play(ctx, line), line)
	case "promote":
		if len(args) != 1 {
			r.println("usage: promote q|r|b|n")
			return false, nil
		}
		r.afterMove(r.s.Promote(ctx, args[0]), args[0])
	default:
		r.afterMove(r.s.Play(ctx, line), line)
	}
	return false, nil
}

func (r *repl) afterMove(err error, move string) {
	if err != nil {
		r.reject(err, move)
		if errors.Is(err, session.ErrPreviewActive) {
			r.board()
		}
		return
	}
	if _, pending := r.s.PendingPromotion(); pending {
		return
	}
	r.board()
}

func (r *repl) reject(err error, move string) {
	if err != nil {
		_ = r.p.Reject(err, move)
	}
}

func intArg(args []string, def int) (int, error) {
	if len(args) == 0 {
		if def < 0 {
			return 0, errors.New("a number is required")
		}
		return def, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("not a number: %s", args[0])
	}
	return n, nil
}
