// Command journalctl decodes and watches game journals from the terminal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/journal-monitor/backend/cmd/journalctl/cmd"
)

// Version info (set during build)
var Version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.NewRootCommand(Version).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
