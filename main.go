package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sbdl/pkg/cli"
)

func main() {
	// Interrupts cancel in-flight downloads instead of killing the process.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
