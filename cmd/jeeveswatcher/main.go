// Command jeeveswatcher runs the indexing pipeline as a standalone
// process: load config, start the application, and block until an
// interrupt or terminate signal requests a graceful shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"jeeveswatcher/internal/app"
	"jeeveswatcher/internal/config"
)

func main() {
	log.SetFlags(0)
	configPath := flag.String("config", "jeeveswatcher.yaml", "path to the YAML config document")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("build application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		log.Fatalf("start application: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	stopCtx, cancelStop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		log.Fatalf("stop application: %v", err)
	}
}
