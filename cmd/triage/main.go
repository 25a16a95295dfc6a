package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spec-kit/ticket-triage/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.DefaultEnv(), os.Args[1:])
	stop()
	os.Exit(code)
}
