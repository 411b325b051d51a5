package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/connection"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/obslog"
	"github.com/HEKPYTO/ChessClouds-sub000/pkg/chessdto"
)

// NewProbeCommand connects, authenticates and prints every state and message
// seen during a short window.
func NewProbeCommand(rootOpts *RootOptions) *cobra.Command {
	var gameID string
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check connectivity to the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setupConfig(rootOpts)
			if err != nil {
				return err
			}
			defer func() { _ = syncLogger() }()
			if err := cfg.RequireOnline(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			m := connection.NewManager(connection.Options{Logger: logger.Named("probe")})
			m.OnStateChange(func(s connection.State) {
				fmt.Fprintf(out, "ws state: %s\n", s)
			})
			m.OnMessage(func(msg chessdto.ServerMessage) {
				fmt.Fprintf(out, "ws msg: %s\n", msg.Kind)
			})
			m.OnDecodeError(func(err error) {
				fmt.Fprintf(out, "ws undecodable frame: %v\n", err)
			})

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_, err = m.Connect(cctx, cfg.ServerWSURL, gameID, cfg.UserID)
			cancel()
			if err != nil {
				logger.Warn("probe_connect_failed", zap.Error(err))
				return err
			}

			t := time.NewTimer(window)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
			}
			fmt.Fprintf(out, "final state: %s\n", m.State())
			return m.Close(context.Background())
		},
	}
	cmd.Flags().StringVar(&gameID, "game", "probe", "game id used for the Auth message")
	cmd.Flags().DurationVar(&window, "window", 5*time.Second, "how long to observe after connecting")
	return cmd
}

func syncLogger() error { return obslog.Sync() }
