// Command wsprobe runs the connectivity probe as a standalone binary.
package main

import (
	"fmt"
	"os"

	"github.com/HEKPYTO/ChessClouds-sub000/internal/cli"
)

func main() {
	cmd := cli.NewProbeCommand(&cli.RootOptions{EnvFile: ".env"})
	cmd.Use = "wsprobe"
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
