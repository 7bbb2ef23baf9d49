package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	// Commands get their logger from the resolved config; the signal
	// handler starts before config exists, so it logs at warn only.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx := shutdownContext(context.Background(), logger)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		exitOnError(err)
	}
}
