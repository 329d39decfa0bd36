package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/travelsaas/ratescrape/internal/cli"
)

func main() {
	// Cancelling the context aborts the in-flight request; the run stops
	// before the manifest is written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx)
}
