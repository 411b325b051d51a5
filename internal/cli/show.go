package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <game-id>",
		Short: "Print the stored status and PGN of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			deps, err := setup(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer closeDeps(deps)
			g, err := deps.Store.GetGame(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "game:    %s\nstatus:  %s\nupdated: %s\n\n%s\n", g.ID, g.Status, g.UpdatedAt.Format("2006-01-02 15:04:05"), g.PGN)
			return nil
		},
	}
}
