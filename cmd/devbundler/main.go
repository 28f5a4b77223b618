package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/helix/internal/devbundler"
	"github.com/dmitrijs2005/helix/internal/devbundler/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := devbundler.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
