package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/thetaxjournal/accountsvedartha/cmd/vedarthactl/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
