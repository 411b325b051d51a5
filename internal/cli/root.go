// Package cli implements the chessclouds command line.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/clientbuilder"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/config"
	"github.com/HEKPYTO/ChessClouds-sub000/internal/obslog"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	EnvFile string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:           "chessclouds",
		Short:         "Play ChessClouds games from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewOfflineCommand(opts))
	cmd.AddCommand(NewMatchCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewProbeCommand(opts))
	return cmd
}

// setupConfig loads dotenv, initialises logging and reads the configuration.
func setupConfig(opts *RootOptions) (*config.AppConfig, *zap.Logger, error) {
	if err := config.LoadDotEnv(opts.EnvFile); err != nil {
		return nil, nil, err
	}
	logOpts := obslog.OptionsFromEnv()
	if opts.Verbose {
		logOpts.Level = "debug"
	}
	if err := obslog.Init(logOpts); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, obslog.L(), nil
}

func setup(ctx context.Context, opts *RootOptions) (*clientbuilder.Deps, error) {
	cfg, logger, err := setupConfig(opts)
	if err != nil {
		return nil, err
	}
	return clientbuilder.New(ctx, cfg, logger)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
