package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/civistrom/civid/internal/buildinfo"
	"github.com/civistrom/civid/internal/config"
	"github.com/civistrom/civid/internal/logging"
	"github.com/civistrom/civid/internal/web"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	srv := web.NewServer(cfg.EndpointAddr, logger)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
