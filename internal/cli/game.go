package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/clientbuilder"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/presenter"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/rules"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/session"
)

func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	var gameID, color, opponentID string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join an online game",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rules.ParseColor(color)
			if err != nil {
				return err
			}
			return runOnline(cmd, rootOpts, gameID, c, opponentID)
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "", "game id (required)")
	cmd.Flags().StringVar(&color, "color", "white", "your colour: white or black")
	cmd.Flags().StringVar(&opponentID, "opponent", "", "opponent user id; when set the game is created first")
	_ = cmd.MarkFlagRequired("game")
	return cmd
}

func NewOfflineCommand(rootOpts *RootOptions) *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "offline",
		Short: "Play against the computer",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rules.ParseColor(color)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			deps, err := setup(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer closeDeps(deps)

			you := firstNonEmpty(deps.Config.UserID, "you")
			players := session.Players{White: you, Black: "computer"}
			if c == rules.Black {
				players = session.Players{White: "computer", Black: you}
			}
			s, err := deps.NewSession(ctx, clientbuilder.SessionOptions{
				GameID:     "offline-" + uuid.NewString(),
				LocalColor: c,
				Players:    players,
			})
			if err != nil {
				return err
			}
			defer s.Close()
			return play(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), deps, s, nil)
		},
	}
	cmd.Flags().StringVar(&color, "color", "white", "your colour: white or black")
	return cmd
}

func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match",
		Short: "Find an opponent and start an online game",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			deps, err := setup(ctx, rootOpts)
			if err != nil {
				return err
			}
			if deps.Queue == nil {
				closeDeps(deps)
				return clientbuilder.ErrMatchmakingDisabled
			}
			if err := deps.Config.RequireOnline(); err != nil {
				closeDeps(deps)
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, deps.Catalog.Text("match.searching", nil))

			searchCtx, cancel := context.WithTimeout(ctx, deps.Config.MatchTimeout())
			m, err := deps.Queue.Search(searchCtx, deps.Config.UserID)
			cancel()
			if err != nil {
				key := "match.cancelled"
				if errors.Is(searchCtx.Err(), context.DeadlineExceeded) {
					key = "match.timeout"
				}
				fmt.Fprintln(out, deps.Catalog.Text(key, nil))
				closeDeps(deps)
				return err
			}
			fmt.Fprintln(out, deps.Catalog.Text("match.found", map[string]any{"Opponent": m.OpponentID, "Color": string(m.Color)}))
			return playOnline(ctx, cmd, deps, m.GameID, m.Color, m.OpponentID)
		},
	}
}

func runOnline(cmd *cobra.Command, rootOpts *RootOptions, gameID string, c rules.Color, opponentID string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	deps, err := setup(ctx, rootOpts)
	if err != nil {
		return err
	}
	if err := deps.Config.RequireOnline(); err != nil {
		closeDeps(deps)
		return err
	}
	return playOnline(ctx, cmd, deps, gameID, c, opponentID)
}

// playOnline registers the game when the opponent is known, attaches a
// session to the connection manager and connects.
func playOnline(ctx context.Context, cmd *cobra.Command, deps *clientbuilder.Deps, gameID string, c rules.Color, opponentID string) error {
	defer closeDeps(deps)
	cfg := deps.Config

	players := session.Players{White: cfg.UserID, Black: opponentID}
	if c == rules.Black {
		players = session.Players{White: opponentID, Black: cfg.UserID}
	}
	if opponentID != "" {
		if err := deps.EnsureGame(ctx, gameID, players.White, players.Black); err != nil {
			return fmt.Errorf("create game: %w", err)
		}
	}

	s, err := deps.NewSession(ctx, clientbuilder.SessionOptions{GameID: gameID, LocalColor: c, Online: true, Players: players})
	if err != nil {
		return err
	}
	defer s.Close()
	detach := s.Attach(deps.Conn)
	defer detach()

	connect := func(ctx context.Context) error {
		_, err := deps.Conn.Connect(ctx, cfg.ServerWSURL, gameID, cfg.UserID)
		return err
	}
	if err := connect(ctx); err != nil {
		return err
	}
	return play(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), deps, s, connect)
}

func play(ctx context.Context, in io.Reader, out io.Writer, deps *clientbuilder.Deps, s *session.Session, reconnect func(context.Context) error) error {
	p := presenter.NewPresenter(func(m string) error {
		_, err := fmt.Fprintln(out, m)
		return err
	}, deps.Formatter, deps.Logger)
	id := s.OnEvent(p.Listener())
	defer s.RemoveListener(id)

	r := &repl{s: s, p: p, out: out, reconnect: reconnect}
	err := r.run(ctx, in)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func closeDeps(deps *clientbuilder.Deps) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := deps.Close(ctx); err != nil {
		deps.Logger.Warn("shutdown_failed", zap.Error(err))
	}
	_ = syncLogger()
}
