// Package main is the entry point for the penknife command.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "penknife",
		Short:         "Render and serve Penknife templates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = version + " (commit=" + commit + ", built=" + date + ")"
	root.SetVersionTemplate("penknife version {{.Version}}\n")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (default info, env LOG_LEVEL)")

	root.AddCommand(newRenderCmd(), newCheckCmd(), newServeCmd())
	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "penknife:", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newLogger builds a text logger at the level named by --log-level or LOG_LEVEL.
func newLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	name := envOrDefault("LOG_LEVEL", "info")
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		name = v
	}

	var level slog.Level
	switch strings.ToLower(name) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
