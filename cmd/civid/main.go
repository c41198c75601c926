package main

import (
	"context"
	"log"

	"github.com/civistrom/civid/internal/config"
	"github.com/civistrom/civid/internal/tui"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := tui.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
