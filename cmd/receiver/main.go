package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"example.com/notetools/internal/cli"
)

func main() {
	log.SetFlags(log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewReceiverCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
