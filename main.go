// ./main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wabisuke-dev/thsrbot/cmd"
)

// main is the entry point for the thsrbot CLI. The root context is cancelled
// on SIGINT/SIGTERM so an in-flight booking stops between workflow steps.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.ExecuteContext(ctx)
}
