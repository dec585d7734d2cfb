// Command protograph compiles, validates, evaluates and stores node graph
// documents.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/protograph/protograph/internal/cli"
	"github.com/protograph/protograph/internal/ctxlog"
)

func main() {
	level := slog.LevelInfo
	for _, arg := range os.Args[1:] {
		if arg == "-v" || arg == "--verbose" {
			level = slog.LevelDebug
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx := ctxlog.WithLogger(context.Background(), logger)
	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(cli.GetExitCode(err))
	}
}
