// File: main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/chromehand/cmd"
	"github.com/xkilldash9x/chromehand/internal/observability"
)

func main() {
	// SIGINT/SIGTERM cancel the context so in-flight driver actions stop
	// at their next retry boundary instead of leaving a browser behind.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
