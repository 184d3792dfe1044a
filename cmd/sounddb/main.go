package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/soundscape-lab/sounddb/protocol"
	"github.com/soundscape-lab/sounddb/utils/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := protocol.Execute(ctx); err != nil {
		logger.Fatal(err)
	}
}
