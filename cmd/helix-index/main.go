package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/helix/internal/index"
	"github.com/dmitrijs2005/helix/internal/index/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := index.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
