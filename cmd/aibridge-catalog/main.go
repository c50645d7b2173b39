// Command aibridge-catalog validates model catalogs and compiles them into Go source.
//
//	aibridge-catalog validate catalogs/openai.yaml
//	aibridge-catalog gen -o models_gen.go -pkg models catalogs/openai.yaml
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/skosovsky/aibridge/cmd/aibridge-catalog/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, os.Args, os.Stdout); err != nil {
		slog.ErrorContext(ctx, "aibridge-catalog failed", "error", err)
		os.Exit(1)
	}
}
