// Package main implements the stanagfeed command line. It ingests STANAG 4778 JSON
// envelopes into feature stores, seals records for testing, verifies signed envelopes
// and serves an ingestion endpoint with health and metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
)

// Build information.
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "stanagfeed"
)

const (
	exitFailure = 1
	exitPanic   = 2
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "%s panicked: %v\n%s", appName, r, debug.Stack())
			code = exitPanic
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}
	return 0
}
