package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
