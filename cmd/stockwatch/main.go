package main

import (
	"context"
	"os/signal"
	"syscall"

	"stock-watch/cmd/stockwatch/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands.ExecuteContext(ctx)
}
