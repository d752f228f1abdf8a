// indistocksd is the local market-data daemon. It owns the SQLite
// store and exposes the REST and WebSocket API the desktop UI talks to.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"indistocks/internal/app"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	application, err := app.New(*configFile)
	if err != nil {
		slog.Error("failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		application.Logger.Error("daemon exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
